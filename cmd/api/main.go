package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/config"
	"alfredoptarigan/cv-copilot/internal/logger"
)

var (
	cfg *config.Config
	log *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "cv-copilot",
	Short: "AI pipelines for CV analysis, headshots and LinkedIn critique",
	Long: `cv-copilot runs the multi-stage model pipelines behind the career tools.

Examples:
  cv-copilot                                   # Start the API server
  cv-copilot serve                             # Same as above
  cv-copilot ingest --type hr_rubric ./docs    # Load reviewer guidance into Qdrant`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		l, err := logger.New(cfg.Server.Env)
		if err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		log = l
		log.Infow("✅ Config loaded successfully", "env", cfg.Server.Env)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
