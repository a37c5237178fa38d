package handlers

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/report-evaluator/internal/models"
	"alfredoptarigan/report-evaluator/internal/repositories"
	"alfredoptarigan/report-evaluator/internal/services"
)

const (
	uploadField = "pdfFile"

	// EvaluationFailedMessage is the only body a failed evaluation returns.
	EvaluationFailedMessage = "An error occurred during evaluation."
)

type EvaluationHandler struct {
	evaluator      services.EvaluatorService
	evalRepo       repositories.EvaluationRepository
	storageService services.StorageService
	pdfParser      services.PDFParserService
	maxFileSize    int64
	keepUploads    bool
}

// NewEvaluationHandler builds the POST /evaluate handler. A nil pdfParser
// skips upload validation.
func NewEvaluationHandler(
	evaluator services.EvaluatorService,
	evalRepo repositories.EvaluationRepository,
	storageService services.StorageService,
	pdfParser services.PDFParserService,
	maxFileSize int64,
	keepUploads bool,
) *EvaluationHandler {
	return &EvaluationHandler{
		evaluator:      evaluator,
		evalRepo:       evalRepo,
		storageService: storageService,
		pdfParser:      pdfParser,
		maxFileSize:    maxFileSize,
		keepUploads:    keepUploads,
	}
}

// HandleEvaluate handles POST /evaluate
func (h *EvaluationHandler) HandleEvaluate(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		return h.fail(c, fmt.Errorf("%w: missing %s upload: %v", services.ErrInvalidInput, uploadField, err))
	}

	if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
		return h.fail(c, fmt.Errorf("%w: file too large (%d > %d bytes)", services.ErrInvalidInput, fileHeader.Size, h.maxFileSize))
	}

	upload, err := h.storageService.Save(fileHeader)
	if err != nil {
		return h.fail(c, fmt.Errorf("failed to store upload: %w", err))
	}
	if !h.keepUploads {
		defer func() {
			if err := h.storageService.Remove(upload); err != nil {
				log.Printf("⚠️  Failed to remove upload %s: %v\n", upload.Name, err)
			}
		}()
	}
	filePath := upload.Path

	record := h.startRecord(upload.OriginalName, filePath)
	if record != nil {
		c.Set("X-Evaluation-ID", record.ID.String())
	}

	if h.pdfParser != nil {
		info, err := h.pdfParser.Inspect(filePath)
		if err != nil {
			h.failRecord(record, err, models.ProviderHandles{})
			return h.fail(c, err)
		}
		log.Printf("📄 Received %s (%d pages)\n", fileHeader.Filename, info.PageCount)
	}

	outcome, err := h.evaluator.Evaluate(c.UserContext(), filePath)
	if err != nil {
		var handles models.ProviderHandles
		if outcome != nil {
			handles = outcome.Handles
		}
		h.failRecord(record, err, handles)
		return h.fail(c, err)
	}

	if record != nil {
		if err := h.evalRepo.UpdateResult(record.ID, &repositories.EvaluationUpdateData{
			Score:       outcome.Result.Score,
			Explanation: outcome.Result.Explanation,
			Handles:     outcome.Handles,
		}); err != nil {
			log.Printf("⚠️  Failed to record result for %s: %v\n", record.ID, err)
		}
	}

	return c.JSON(outcome.Result)
}

func (h *EvaluationHandler) startRecord(originalName, filePath string) *models.Evaluation {
	record := &models.Evaluation{
		ID:               uuid.New(),
		OriginalFileName: originalName,
		FilePath:         filePath,
		Status:           models.StatusProcessing,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := h.evalRepo.Create(record); err != nil {
		log.Printf("⚠️  Failed to record evaluation: %v\n", err)
		return nil
	}
	return record
}

func (h *EvaluationHandler) failRecord(record *models.Evaluation, cause error, handles models.ProviderHandles) {
	if record == nil {
		return
	}
	if err := h.evalRepo.UpdateError(record.ID, cause.Error(), handles); err != nil {
		log.Printf("⚠️  Failed to record failure for %s: %v\n", record.ID, err)
	}
}

func (h *EvaluationHandler) fail(c *fiber.Ctx, err error) error {
	log.Printf("❌ Evaluation failed [%s]: %v\n", services.ErrorKind(err), err)
	return c.Status(fiber.StatusInternalServerError).SendString(EvaluationFailedMessage)
}
