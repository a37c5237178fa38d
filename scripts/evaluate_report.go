package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"alfredoptarigan/report-evaluator/internal/config"
	"alfredoptarigan/report-evaluator/internal/services"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: go run ./scripts/evaluate_report.go <report.pdf>")
		os.Exit(2)
	}
	path := os.Args[1]

	log.Println("🚀 Starting report evaluation...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	if cfg.Evaluation.ValidatePDF {
		info, err := services.NewPDFParserService().Inspect(path)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		log.Printf("   📄 %s: %d pages", path, info.PageCount)
	}

	openAIService, err := services.NewOpenAIService(cfg.OpenAI)
	if err != nil {
		log.Fatalf("❌ Failed to initialize OpenAI client: %v", err)
	}

	var cleanupWorker services.Worker
	if cfg.Evaluation.CleanupOnFailure {
		cleanupWorker = services.NewWorker(openAIService, 1)
		cleanupWorker.Start(context.Background())
	}

	evaluator := services.NewEvaluatorService(openAIService, cleanupWorker, cfg)
	outcome, err := evaluator.Evaluate(context.Background(), path)
	if cleanupWorker != nil {
		cleanupWorker.Stop()
	}
	if err != nil {
		log.Printf("❌ Evaluation failed [%s]: %v", services.ErrorKind(err), err)
		os.Exit(1)
	}

	log.Println(strings.Repeat("=", 60))
	log.Printf("📊 Score: %s", outcome.Result.Score)
	log.Println(strings.Repeat("=", 60))
	fmt.Println(outcome.Result.Explanation)
}
