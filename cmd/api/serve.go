package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"alfredoptarigan/cv-copilot/internal/config"
	"alfredoptarigan/cv-copilot/internal/handlers"
	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/pipeline"
	"alfredoptarigan/cv-copilot/internal/repositories"
	"alfredoptarigan/cv-copilot/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Initialize database
	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		return err
	}
	guard := services.NewUsageGuard(repositories.NewAnalysisRepository(db))
	log.Info("✅ Repositories initialized successfully")

	// Initialize Gemini AI
	gemini, err := services.NewGeminiService(ctx, cfg.Gemini, log)
	if err != nil {
		return errors.Wrap(err, "failed to initialize Gemini AI")
	}
	runner := pipeline.NewRunner(pipeline.NewInvoker(gemini, log), log)
	log.Info("✅ Gemini AI initialized successfully")

	storage, err := services.NewR2Storage(ctx, cfg.Storage, log)
	if err != nil {
		return errors.Wrap(err, "failed to initialize object storage")
	}

	notifier, err := services.NewProgressNotifier(cfg.Broker, log)
	if err != nil {
		return err
	}
	defer notifier.Close()

	knowledge, err := initKnowledgeBase(ctx, gemini)
	if err != nil {
		return err
	}

	validator := services.NewDocumentValidator(cfg.Storage.MaxFileSize)
	verifier := services.NewBotVerifier(cfg.Captcha, log)
	tasks := services.NewFaceSwapClient(cfg.FaceSwap, nil)

	analyzer := services.NewAnalyzerService(runner, validator, verifier, knowledge, guard, notifier, log)
	headshots := services.NewHeadshotService(services.HeadshotDependencies{
		Runner:    runner,
		Validator: validator,
		Verifier:  verifier,
		Guard:     guard,
		Images:    gemini,
		Storage:   storage,
		Tasks:     tasks,
		Poller:    services.NewPoller(tasks, cfg.FaceSwap, log),
		Notifier:  notifier,
		SignedTTL: cfg.Storage.SignedURLTTL,
	}, log)
	linkedin := services.NewLinkedInService(runner, services.NewChromeBrowser(cfg.LinkedIn, log), verifier, guard, notifier, cfg.LinkedIn, log)
	results := services.NewResultService(guard, headshots)
	log.Info("✅ Services initialized successfully")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "CV Copilot API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		BodyLimit:    int(4 * cfg.Storage.MaxFileSize),
		ErrorHandler: customErrorHandler,
		Immutable:    true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + handlers.UserIDHeader,
	}))

	// Routes
	handlers.Register(app.Group("/api/v1"), handlers.Handlers{
		Analyze:  handlers.NewAnalyzeHandler(analyzer, cfg.Storage.MaxFileSize, log),
		Photo:    handlers.NewPhotoHandler(headshots, cfg.Storage.MaxFileSize, log),
		LinkedIn: handlers.NewLinkedInHandler(linkedin, log),
		Result:   handlers.NewResultHandler(results, log),
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "CV Copilot API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/actions/analyze-cv",
				"POST /api/v1/actions/analyze-job-poster",
				"POST /api/v1/actions/analyze-candidate",
				"POST /api/v1/actions/transform-photo",
				"POST /api/v1/actions/linkedin-profile",
				"GET /api/v1/results/:feature",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("🛑 Shutting down server...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Errorw("❌ Server forced to shutdown", "error", err)
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Infow("🚀 Server starting", "addr", addr)
	if err := app.Listen(addr); err != nil {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

// initKnowledgeBase connects to Qdrant when configured. Without it the
// cross-analysis prompts run without reviewer guidance.
func initKnowledgeBase(ctx context.Context, embedder services.Embedder) (services.KnowledgeBase, error) {
	if cfg.Qdrant.URL == "" {
		log.Info("⚠️ Qdrant not configured, reviewer guidance disabled")
		return nil, nil
	}

	store, err := services.NewQdrantStore(cfg.Qdrant, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Qdrant")
	}
	if err := store.InitCollection(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to initialize Qdrant collection")
	}
	log.Info("✅ Qdrant initialized successfully")
	return services.NewKnowledgeBase(store, embedder), nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	envelope := models.ErrorEnvelope(models.CodeInternalError)

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		switch code {
		case fiber.StatusNotFound:
			envelope = models.ErrorEnvelope(models.CodeNotFound)
		case fiber.StatusRequestEntityTooLarge, fiber.StatusBadRequest:
			envelope = models.ErrorEnvelope(models.CodeValidationError)
		}
	}

	return c.Status(code).JSON(envelope)
}
