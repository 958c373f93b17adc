package main

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"alfredoptarigan/cv-copilot/internal/services"
)

var (
	ingestDocType      string
	ingestChunkSize    int
	ingestChunkOverlap int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Load reviewer guidance documents into Qdrant",
	Long: `Chunk, embed and upsert reference documents (.pdf, .docx, .txt, .md).

Directories are scanned one level deep. Re-ingesting a file replaces its chunks.

Examples:
  cv-copilot ingest --type candidate_guidelines ./reference_docs/guidelines
  cv-copilot ingest --type hr_rubric ./reference_docs/rubric.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestDocType, "type", "t", services.DocTypeCandidateGuidelines,
		fmt.Sprintf("document type (%s or %s)", services.DocTypeCandidateGuidelines, services.DocTypeHRRubric))
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 1000, "maximum characters per chunk")
	ingestCmd.Flags().IntVar(&ingestChunkOverlap, "chunk-overlap", 200, "characters carried over between chunks")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log.Info("🚀 Starting document ingestion...")

	if cfg.Qdrant.URL == "" {
		return errors.New("QDRANT_URL is required for ingestion")
	}

	gemini, err := services.NewGeminiService(ctx, cfg.Gemini, log)
	if err != nil {
		return errors.Wrap(err, "failed to initialize Gemini")
	}
	store, err := services.NewQdrantStore(cfg.Qdrant, log)
	if err != nil {
		return errors.Wrap(err, "failed to initialize Qdrant")
	}

	ingest := services.NewIngestService(store, gemini, services.NewTextChunker(ingestChunkSize, ingestChunkOverlap), log)
	summary, err := ingest.IngestPaths(ctx, ingestDocType, args...)
	if err != nil {
		return err
	}

	log.Infow("📊 Ingestion summary", "documents", summary.Documents, "chunks", summary.Chunks, "failed", len(summary.Failed))
	if len(summary.Failed) > 0 {
		return errors.Newf("%d document(s) failed: %v", len(summary.Failed), summary.Failed)
	}
	log.Info("🎉 All documents ingested successfully!")
	return nil
}
