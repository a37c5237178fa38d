package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"alfredoptarigan/report-evaluator/internal/config"
)

const (
	filePurposeAssistants = "assistants"
	maxErrorMessageRunes  = 200
)

type OpenAIService interface {
	UploadFile(ctx context.Context, path string) (string, error)
	CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error)
	CreateAssistant(ctx context.Context, req AssistantRequest) (string, error)
	CreateThread(ctx context.Context, message string) (string, error)
	RunAssistant(ctx context.Context, threadID, assistantID string) (*RunOutput, error)
	DeleteFile(ctx context.Context, fileID string) error
	DeleteVectorStore(ctx context.Context, vectorStoreID string) error
}

type AssistantRequest struct {
	Name          string
	Instructions  string
	Model         string
	VectorStoreID string
}

type RunOutput struct {
	RunID   string
	Content string
}

type openAIService struct {
	client       *openai.Client
	httpClient   *http.Client
	betaURL      string
	apiKey       string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewOpenAIService talks to {BaseURL}/v1 for files and vector stores and to
// {BaseURL}/v1/beta for assistants, threads and runs.
func NewOpenAIService(cfg config.OpenAIConfig) (OpenAIService, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	httpClient := &http.Client{Timeout: cfg.Timeout}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = baseURL + "/v1"
	clientConfig.HTTPClient = httpClient

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &openAIService{
		client:       openai.NewClientWithConfig(clientConfig),
		httpClient:   httpClient,
		betaURL:      baseURL + "/v1/beta",
		apiKey:       cfg.APIKey,
		pollInterval: pollInterval,
		pollTimeout:  cfg.PollTimeout,
	}, nil
}

// UploadFile implements OpenAIService.
func (o *openAIService) UploadFile(ctx context.Context, path string) (string, error) {
	file, err := o.client.CreateFile(ctx, openai.FileRequest{
		FileName: filepath.Base(path),
		FilePath: path,
		Purpose:  filePurposeAssistants,
	})
	if err != nil {
		return "", classifyClientError("upload file", err)
	}
	if file.ID == "" {
		return "", &DecodeError{Op: "upload file", Field: "id"}
	}
	return file.ID, nil
}

// CreateVectorStore implements OpenAIService.
func (o *openAIService) CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error) {
	store, err := o.client.CreateVectorStore(ctx, openai.VectorStoreRequest{
		Name:    name,
		FileIDs: fileIDs,
	})
	if err != nil {
		return "", classifyClientError("create vector store", err)
	}
	if store.ID == "" {
		return "", &DecodeError{Op: "create vector store", Field: "id"}
	}
	return store.ID, nil
}

// DeleteFile implements OpenAIService.
func (o *openAIService) DeleteFile(ctx context.Context, fileID string) error {
	if err := o.client.DeleteFile(ctx, fileID); err != nil {
		return classifyClientError("delete file", err)
	}
	return nil
}

// DeleteVectorStore implements OpenAIService.
func (o *openAIService) DeleteVectorStore(ctx context.Context, vectorStoreID string) error {
	if _, err := o.client.DeleteVectorStore(ctx, vectorStoreID); err != nil {
		return classifyClientError("delete vector store", err)
	}
	return nil
}

type assistantTool struct {
	Type string `json:"type"`
}

type createAssistantRequest struct {
	Name          string          `json:"name"`
	Instructions  string          `json:"instructions"`
	Model         string          `json:"model"`
	Tools         []assistantTool `json:"tools"`
	ToolResources toolResources   `json:"tool_resources"`
}

type toolResources struct {
	FileSearch fileSearchResource `json:"file_search"`
}

type fileSearchResource struct {
	VectorStoreIDs []string `json:"vector_store_ids"`
}

type threadMessageInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createThreadRequest struct {
	Messages []threadMessageInput `json:"messages"`
}

type createRunRequest struct {
	AssistantID string `json:"assistant_id"`
}

type idResponse struct {
	ID string `json:"id"`
}

type threadMessage struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type runResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Messages  []threadMessage `json:"messages"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error,omitempty"`
}

type messageListResponse struct {
	Data []threadMessage `json:"data"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// CreateAssistant implements OpenAIService.
func (o *openAIService) CreateAssistant(ctx context.Context, req AssistantRequest) (string, error) {
	body := createAssistantRequest{
		Name:         req.Name,
		Instructions: req.Instructions,
		Model:        req.Model,
		Tools:        []assistantTool{{Type: "file_search"}},
		ToolResources: toolResources{
			FileSearch: fileSearchResource{VectorStoreIDs: []string{req.VectorStoreID}},
		},
	}

	var resp idResponse
	if err := o.doJSON(ctx, "create assistant", http.MethodPost, "/assistants", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &DecodeError{Op: "create assistant", Field: "id"}
	}
	return resp.ID, nil
}

// CreateThread implements OpenAIService.
func (o *openAIService) CreateThread(ctx context.Context, message string) (string, error) {
	body := createThreadRequest{
		Messages: []threadMessageInput{{Role: "user", Content: message}},
	}

	var resp idResponse
	if err := o.doJSON(ctx, "create thread", http.MethodPost, "/threads", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &DecodeError{Op: "create thread", Field: "id"}
	}
	return resp.ID, nil
}

// RunAssistant implements OpenAIService. When the run response does not carry
// the resulting messages inline, the run is polled to completion and the
// thread's newest message is read instead.
func (o *openAIService) RunAssistant(ctx context.Context, threadID, assistantID string) (*RunOutput, error) {
	var run runResponse
	path := fmt.Sprintf("/threads/%s/runs", threadID)
	if err := o.doJSON(ctx, "run assistant", http.MethodPost, path, createRunRequest{AssistantID: assistantID}, &run); err != nil {
		return nil, err
	}

	if len(run.Messages) > 0 {
		content, err := messageText(run.Messages[0].Content)
		if err != nil {
			return nil, &DecodeError{Op: "run assistant", Field: "messages[0].content", Err: err}
		}
		return &RunOutput{RunID: run.ID, Content: content}, nil
	}

	if run.ID == "" {
		return nil, &DecodeError{Op: "run assistant", Field: "messages[0].content"}
	}

	if err := o.waitForRun(ctx, threadID, run); err != nil {
		return nil, err
	}

	content, err := o.latestMessage(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return &RunOutput{RunID: run.ID, Content: content}, nil
}

func (o *openAIService) waitForRun(ctx context.Context, threadID string, run runResponse) error {
	if o.pollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.pollTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	path := fmt.Sprintf("/threads/%s/runs/%s", threadID, run.ID)
	for {
		switch run.Status {
		case "completed":
			return nil
		case "failed", "cancelled", "expired", "incomplete", "requires_action":
			msg := "run ended with status " + run.Status
			if run.LastError != nil && run.LastError.Message != "" {
				msg += ": " + run.LastError.Message
			}
			return &ProviderError{Op: "run assistant", Message: msg}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for run %s: %w", run.ID, ctx.Err())
		case <-ticker.C:
		}

		if err := o.doJSON(ctx, "retrieve run", http.MethodGet, path, nil, &run); err != nil {
			return err
		}
		log.Printf("⏳ Run %s status: %s\n", run.ID, run.Status)
	}
}

func (o *openAIService) latestMessage(ctx context.Context, threadID string) (string, error) {
	var list messageListResponse
	path := fmt.Sprintf("/threads/%s/messages?order=desc&limit=1", threadID)
	if err := o.doJSON(ctx, "list messages", http.MethodGet, path, nil, &list); err != nil {
		return "", err
	}
	if len(list.Data) == 0 {
		return "", &DecodeError{Op: "list messages", Field: "data[0].content"}
	}
	content, err := messageText(list.Data[0].Content)
	if err != nil {
		return "", &DecodeError{Op: "list messages", Field: "data[0].content", Err: err}
	}
	return content, nil
}

func (o *openAIService) doJSON(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, o.betaURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Op: op, Field: "body", Err: err}
	}
	return nil
}

// messageText accepts either a bare string or the structured content parts
// array and returns the concatenated text.
func messageText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("content is empty")
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", err
	}

	var b strings.Builder
	found := false
	for _, part := range parts {
		if part.Type != "text" {
			continue
		}
		if found {
			b.WriteString("\n")
		}
		b.WriteString(part.Text.Value)
		found = true
	}
	if !found {
		return "", errors.New("content has no text parts")
	}
	return b.String(), nil
}

func errorMessage(raw []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	msg := strings.ToValidUTF8(strings.TrimSpace(string(raw)), "\uFFFD")
	if runes := []rune(msg); len(runes) > maxErrorMessageRunes {
		msg = string(runes[:maxErrorMessageRunes])
	}
	if msg == "" {
		msg = "empty response body"
	}
	return msg
}

func classifyClientError(op string, err error) error {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	if errors.As(err, &apiErr) || errors.As(err, &reqErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &DecodeError{Op: op, Field: "body", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
