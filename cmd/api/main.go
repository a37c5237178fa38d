package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"alfredoptarigan/report-evaluator/internal/config"
	"alfredoptarigan/report-evaluator/internal/handlers"
	"alfredoptarigan/report-evaluator/internal/repositories"
	"alfredoptarigan/report-evaluator/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Println("✅ Config loaded successfully")

	if _, err := os.Stat(cfg.Evaluation.ReferencePath); err != nil {
		log.Fatalf("❌ Reference document not readable: %v", err)
	}

	// Initialize history store
	evalRepo, err := newEvaluationRepository(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize history store: %v", err)
	}
	log.Printf("✅ History store initialized (%s)\n", cfg.History.Store)

	// Initialize services
	storageService := services.NewStorageService(cfg.Storage.UploadPath)
	if err := storageService.EnsureUploadDir(); err != nil {
		log.Fatalf("❌ Failed to create upload directory: %v", err)
	}

	var pdfParser services.PDFParserService
	if cfg.Evaluation.ValidatePDF {
		pdfParser = services.NewPDFParserService()
	}

	openAIService, err := services.NewOpenAIService(cfg.OpenAI)
	if err != nil {
		log.Fatalf("❌ Failed to initialize OpenAI client: %v", err)
	}
	log.Println("✅ OpenAI client initialized successfully")

	// Cleanup worker only runs when failed evaluations should release
	// their provider resources.
	var cleanupWorker services.Worker
	if cfg.Evaluation.CleanupOnFailure {
		cleanupWorker = services.NewWorker(openAIService, cfg.Worker.Concurrency)
		cleanupWorker.Start(context.Background())
		log.Println("✅ Cleanup worker started")
	}

	evaluatorService := services.NewEvaluatorService(openAIService, cleanupWorker, cfg)
	log.Println("✅ Evaluator service initialized")

	// Initialize handlers
	evaluateHandler := handlers.NewEvaluationHandler(
		evaluatorService,
		evalRepo,
		storageService,
		pdfParser,
		cfg.Storage.MaxFileSize,
		cfg.Storage.KeepUploads,
	)
	resultHandler := handlers.NewResultHandler(evalRepo)
	log.Println("✅ Handlers initialized")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Report Evaluator API",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    cfg.BodyLimit(),
		ErrorHandler: handlers.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	handlers.RegisterRoutes(app, evaluateHandler, resultHandler, cfg.Server.StaticDir)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
		if cleanupWorker != nil {
			cleanupWorker.Stop()
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server is running on port %s\n", cfg.Server.Port)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func newEvaluationRepository(cfg *config.Config) (repositories.EvaluationRepository, error) {
	if cfg.History.Store != config.HistoryStorePostgres {
		return repositories.NewMemoryEvaluationRepository(), nil
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return repositories.NewEvaluationRepository(db), nil
}
