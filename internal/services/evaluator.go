package services

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"alfredoptarigan/report-evaluator/internal/config"
	"alfredoptarigan/report-evaluator/internal/models"
)

type EvaluatorService interface {
	Evaluate(ctx context.Context, userFilePath string) (*EvaluationOutcome, error)
}

// EvaluationOutcome carries the handles created so far even when Evaluate
// fails, so callers can record or release them.
type EvaluationOutcome struct {
	Result  *models.EvaluationResult
	Handles models.ProviderHandles
}

type evaluatorService struct {
	openAIService   OpenAIService
	cleanupWorker   Worker
	referencePath   string
	model           string
	parallelUploads bool
}

// NewEvaluatorService wires the orchestrator. cleanupWorker may be nil, in
// which case provider resources from failed evaluations are left in place.
func NewEvaluatorService(
	openAIService OpenAIService,
	cleanupWorker Worker,
	cfg *config.Config,
) EvaluatorService {
	return &evaluatorService{
		openAIService:   openAIService,
		cleanupWorker:   cleanupWorker,
		referencePath:   cfg.Evaluation.ReferencePath,
		model:           cfg.OpenAI.Model,
		parallelUploads: cfg.Evaluation.ParallelUploads,
	}
}

func (e *evaluatorService) Evaluate(ctx context.Context, userFilePath string) (*EvaluationOutcome, error) {
	outcome := &EvaluationOutcome{}

	log.Printf("🔄 Starting evaluation of %s\n", userFilePath)

	// Step 1 + 2: Upload the reference and the user document
	if err := e.uploadDocuments(ctx, userFilePath, &outcome.Handles); err != nil {
		e.releaseResources(outcome.Handles)
		return outcome, err
	}

	// Step 3: Build the retrieval index from both files
	log.Println("🗂️  Creating vector store...")
	storeID, err := e.openAIService.CreateVectorStore(ctx, VectorStoreName, []string{
		outcome.Handles.ReferenceFileID,
		outcome.Handles.UserFileID,
	})
	if err != nil {
		e.releaseResources(outcome.Handles)
		return outcome, fmt.Errorf("failed to create vector store: %w", err)
	}
	outcome.Handles.VectorStoreID = storeID

	// Step 4: Run the evaluator assistant
	result, err := e.runEvaluation(ctx, storeID, &outcome.Handles)
	if err != nil {
		e.releaseResources(outcome.Handles)
		return outcome, err
	}
	outcome.Result = result

	log.Printf("✅ Evaluation completed with score %q (run %s)\n", result.Score, outcome.Handles.RunID)
	return outcome, nil
}

func (e *evaluatorService) uploadDocuments(ctx context.Context, userFilePath string, handles *models.ProviderHandles) error {
	if !e.parallelUploads {
		log.Println("📤 Uploading reference document...")
		refID, err := e.openAIService.UploadFile(ctx, e.referencePath)
		if err != nil {
			return fmt.Errorf("failed to upload reference document: %w", err)
		}
		handles.ReferenceFileID = refID

		log.Println("📤 Uploading user document...")
		userID, err := e.openAIService.UploadFile(ctx, userFilePath)
		if err != nil {
			return fmt.Errorf("failed to upload user document: %w", err)
		}
		handles.UserFileID = userID
		return nil
	}

	log.Println("📤 Uploading reference and user documents concurrently...")
	var refID, userID string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := e.openAIService.UploadFile(gctx, e.referencePath)
		if err != nil {
			return fmt.Errorf("failed to upload reference document: %w", err)
		}
		refID = id
		return nil
	})
	g.Go(func() error {
		id, err := e.openAIService.UploadFile(gctx, userFilePath)
		if err != nil {
			return fmt.Errorf("failed to upload user document: %w", err)
		}
		userID = id
		return nil
	})

	err := g.Wait()
	handles.ReferenceFileID = refID
	handles.UserFileID = userID
	return err
}

func (e *evaluatorService) runEvaluation(ctx context.Context, storeID string, handles *models.ProviderHandles) (*models.EvaluationResult, error) {
	log.Println("🤖 Creating evaluator assistant...")
	assistantID, err := e.openAIService.CreateAssistant(ctx, AssistantRequest{
		Name:          AssistantName,
		Instructions:  EvaluatorInstructions,
		Model:         e.model,
		VectorStoreID: storeID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}
	handles.AssistantID = assistantID

	threadID, err := e.openAIService.CreateThread(ctx, EvaluationRequestMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	handles.ThreadID = threadID

	log.Println("🤖 Running evaluation...")
	run, err := e.openAIService.RunAssistant(ctx, threadID, assistantID)
	if err != nil {
		return nil, fmt.Errorf("failed to run assistant: %w", err)
	}
	handles.RunID = run.RunID

	result := ParseEvaluation(run.Content)
	return &result, nil
}

func (e *evaluatorService) releaseResources(handles models.ProviderHandles) {
	job := CleanupJob{
		FileIDs:       handles.FileIDs(),
		VectorStoreID: handles.VectorStoreID,
	}
	if e.cleanupWorker == nil || job.Empty() {
		return
	}
	e.cleanupWorker.Enqueue(job)
}
