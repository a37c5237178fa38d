package repositories

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"alfredoptarigan/report-evaluator/internal/models"
)

type memoryEvaluationRepository struct {
	mu    sync.RWMutex
	evals map[uuid.UUID]models.Evaluation
	now   func() time.Time
}

// NewMemoryEvaluationRepository keeps history in process memory. Used when no
// database is configured.
func NewMemoryEvaluationRepository() EvaluationRepository {
	return &memoryEvaluationRepository{
		evals: make(map[uuid.UUID]models.Evaluation),
		now:   time.Now,
	}
}

func (r *memoryEvaluationRepository) Create(eval *models.Evaluation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if eval.ID == uuid.Nil {
		eval.ID = uuid.New()
	}
	now := r.now()
	if eval.CreatedAt.IsZero() {
		eval.CreatedAt = now
	}
	if eval.UpdatedAt.IsZero() {
		eval.UpdatedAt = now
	}
	if eval.Status == "" {
		eval.Status = models.StatusProcessing
	}
	r.evals[eval.ID] = *eval
	return nil
}

func (r *memoryEvaluationRepository) FindByID(id uuid.UUID) (*models.Evaluation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eval, ok := r.evals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &eval, nil
}

func (r *memoryEvaluationRepository) UpdateResult(id uuid.UUID, data *EvaluationUpdateData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	eval, ok := r.evals[id]
	if !ok {
		return ErrNotFound
	}
	score := data.Score
	explanation := data.Explanation
	eval.Status = models.StatusCompleted
	eval.Score = &score
	eval.Explanation = &explanation
	eval.ApplyHandles(data.Handles)
	eval.UpdatedAt = r.now()
	r.evals[id] = eval
	return nil
}

func (r *memoryEvaluationRepository) UpdateError(id uuid.UUID, errorMsg string, handles models.ProviderHandles) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	eval, ok := r.evals[id]
	if !ok {
		return ErrNotFound
	}
	msg := errorMsg
	eval.Status = models.StatusFailed
	eval.ErrorMessage = &msg
	eval.ApplyHandles(handles)
	eval.UpdatedAt = r.now()
	r.evals[id] = eval
	return nil
}

func (r *memoryEvaluationRepository) List(limit int) ([]models.Evaluation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	evals := make([]models.Evaluation, 0, len(r.evals))
	for _, eval := range r.evals {
		evals = append(evals, eval)
	}
	sort.Slice(evals, func(i, j int) bool {
		return evals[i].CreatedAt.After(evals[j].CreatedAt)
	})
	if limit > 0 && len(evals) > limit {
		evals = evals[:limit]
	}
	return evals, nil
}
