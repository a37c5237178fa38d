package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/report-evaluator/internal/models"
)

var ErrNotFound = errors.New("evaluation not found")

type EvaluationRepository interface {
	Create(eval *models.Evaluation) error
	FindByID(id uuid.UUID) (*models.Evaluation, error)
	UpdateResult(id uuid.UUID, data *EvaluationUpdateData) error
	UpdateError(id uuid.UUID, errorMsg string, handles models.ProviderHandles) error
	List(limit int) ([]models.Evaluation, error)
}

type EvaluationUpdateData struct {
	Score       string
	Explanation string
	Handles     models.ProviderHandles
}

type evaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) Create(eval *models.Evaluation) error {
	if err := r.db.Create(eval).Error; err != nil {
		return fmt.Errorf("failed to create evaluation: %w", err)
	}
	return nil
}

func (r *evaluationRepository) FindByID(id uuid.UUID) (*models.Evaluation, error) {
	var eval models.Evaluation
	if err := r.db.Where("id = ?", id).First(&eval).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find evaluation: %w", err)
	}
	return &eval, nil
}

func (r *evaluationRepository) UpdateResult(id uuid.UUID, data *EvaluationUpdateData) error {
	updates := handleColumns(data.Handles)
	updates["status"] = models.StatusCompleted
	updates["score"] = data.Score
	updates["explanation"] = data.Explanation
	updates["updated_at"] = time.Now()

	return r.update(id, updates)
}

func (r *evaluationRepository) UpdateError(id uuid.UUID, errorMsg string, handles models.ProviderHandles) error {
	updates := handleColumns(handles)
	updates["status"] = models.StatusFailed
	updates["error_message"] = errorMsg
	updates["updated_at"] = time.Now()

	return r.update(id, updates)
}

func (r *evaluationRepository) List(limit int) ([]models.Evaluation, error) {
	var evals []models.Evaluation
	err := r.db.
		Order("created_at DESC").
		Limit(limit).
		Find(&evals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	return evals, nil
}

func (r *evaluationRepository) update(id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.Model(&models.Evaluation{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update evaluation: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func handleColumns(h models.ProviderHandles) map[string]interface{} {
	return map[string]interface{}{
		"reference_file_id": h.ReferenceFileID,
		"user_file_id":      h.UserFileID,
		"vector_store_id":   h.VectorStoreID,
		"assistant_id":      h.AssistantID,
		"thread_id":         h.ThreadID,
		"run_id":            h.RunID,
	}
}
