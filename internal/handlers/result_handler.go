package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/report-evaluator/internal/models"
	"alfredoptarigan/report-evaluator/internal/repositories"
)

const defaultListLimit = 20

type ResultHandler struct {
	evalRepo repositories.EvaluationRepository
}

func NewResultHandler(evalRepo repositories.EvaluationRepository) *ResultHandler {
	return &ResultHandler{
		evalRepo: evalRepo,
	}
}

// HandleGetResult handles GET /evaluations/:id
func (h *ResultHandler) HandleGetResult(c *fiber.Ctx) error {
	evalID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid evaluation ID format",
		})
	}

	evaluation, err := h.evalRepo.FindByID(evalID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Evaluation not found",
			})
		}
		return err
	}

	return c.JSON(toResultResponse(evaluation))
}

// HandleList handles GET /evaluations
func (h *ResultHandler) HandleList(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 || limit > 100 {
		limit = defaultListLimit
	}

	evaluations, err := h.evalRepo.List(limit)
	if err != nil {
		return err
	}

	responses := make([]models.ResultResponse, 0, len(evaluations))
	for i := range evaluations {
		responses = append(responses, toResultResponse(&evaluations[i]))
	}

	return c.JSON(fiber.Map{
		"evaluations": responses,
	})
}

func toResultResponse(evaluation *models.Evaluation) models.ResultResponse {
	response := models.ResultResponse{
		ID:       evaluation.ID.String(),
		Status:   string(evaluation.Status),
		FileName: evaluation.OriginalFileName,
		Handles:  handleMap(evaluation),
	}

	if evaluation.Status == models.StatusCompleted && evaluation.Score != nil {
		result := &models.EvaluationResult{Score: *evaluation.Score}
		if evaluation.Explanation != nil {
			result.Explanation = *evaluation.Explanation
		}
		response.Result = result
	}

	if evaluation.Status == models.StatusFailed && evaluation.ErrorMessage != nil {
		response.ErrorMessage = evaluation.ErrorMessage
	}

	return response
}

func handleMap(evaluation *models.Evaluation) map[string]string {
	handles := map[string]string{}
	for key, value := range map[string]string{
		"reference_file_id": evaluation.ReferenceFileID,
		"user_file_id":      evaluation.UserFileID,
		"vector_store_id":   evaluation.VectorStoreID,
		"assistant_id":      evaluation.AssistantID,
		"thread_id":         evaluation.ThreadID,
		"run_id":            evaluation.RunID,
	} {
		if value != "" {
			handles[key] = value
		}
	}
	if len(handles) == 0 {
		return nil
	}
	return handles
}
