package models

import (
	"time"

	"github.com/google/uuid"
)

type EvaluationStatus string

const (
	StatusProcessing EvaluationStatus = "processing"
	StatusCompleted  EvaluationStatus = "completed"
	StatusFailed     EvaluationStatus = "failed"
)

// Evaluation is the history row kept for every POST /evaluate request.
type Evaluation struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	OriginalFileName string           `gorm:"type:text" json:"original_filename"`
	FilePath         string           `gorm:"type:text" json:"-"`
	Status           EvaluationStatus `gorm:"not null;default:'processing'" json:"status"`
	Score            *string          `gorm:"type:text" json:"score,omitempty"`
	Explanation      *string          `gorm:"type:text" json:"explanation,omitempty"`
	ReferenceFileID  string           `gorm:"type:text" json:"reference_file_id,omitempty"`
	UserFileID       string           `gorm:"type:text" json:"user_file_id,omitempty"`
	VectorStoreID    string           `gorm:"type:text" json:"vector_store_id,omitempty"`
	AssistantID      string           `gorm:"type:text" json:"assistant_id,omitempty"`
	ThreadID         string           `gorm:"type:text" json:"thread_id,omitempty"`
	RunID            string           `gorm:"type:text" json:"run_id,omitempty"`
	ErrorMessage     *string          `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

// ApplyHandles copies the provider handles onto the record.
func (e *Evaluation) ApplyHandles(h ProviderHandles) {
	e.ReferenceFileID = h.ReferenceFileID
	e.UserFileID = h.UserFileID
	e.VectorStoreID = h.VectorStoreID
	e.AssistantID = h.AssistantID
	e.ThreadID = h.ThreadID
	e.RunID = h.RunID
}
