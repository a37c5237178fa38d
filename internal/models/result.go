package models

// EvaluationResult is the body returned by POST /evaluate.
type EvaluationResult struct {
	Score       string `json:"score"`
	Explanation string `json:"explanation"`
}

// ProviderHandles are the provider-side identifiers created during one
// evaluation. They are never shared across requests.
type ProviderHandles struct {
	ReferenceFileID string
	UserFileID      string
	VectorStoreID   string
	AssistantID     string
	ThreadID        string
	RunID           string
}

// FileIDs returns the uploaded file handles that were actually created.
func (h ProviderHandles) FileIDs() []string {
	var ids []string
	if h.ReferenceFileID != "" {
		ids = append(ids, h.ReferenceFileID)
	}
	if h.UserFileID != "" {
		ids = append(ids, h.UserFileID)
	}
	return ids
}

type ResultResponse struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	FileName     string            `json:"original_filename"`
	Result       *EvaluationResult `json:"result,omitempty"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Handles      map[string]string `json:"handles,omitempty"`
}
