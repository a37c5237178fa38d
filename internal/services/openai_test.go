package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/report-evaluator/internal/config"
)

type providerStub struct {
	t        *testing.T
	mu       sync.Mutex
	requests []string
	bodies   map[string]map[string]any
	handlers map[string]http.HandlerFunc
}

func newProviderStub(t *testing.T) (*providerStub, *httptest.Server) {
	stub := &providerStub{
		t:        t,
		bodies:   map[string]map[string]any{},
		handlers: map[string]http.HandlerFunc{},
	}
	server := httptest.NewServer(http.HandlerFunc(stub.serve))
	t.Cleanup(server.Close)
	return stub, server
}

func (s *providerStub) on(method, path string, h http.HandlerFunc) {
	s.handlers[method+" "+path] = h
}

func (s *providerStub) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	s.mu.Lock()
	s.requests = append(s.requests, key)
	s.mu.Unlock()

	if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
		s.t.Errorf("%s: unexpected Authorization header %q", key, got)
	}

	// Multipart bodies are left for the route handler.
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		s.route(w, r, key)
		return
	}

	raw, _ := io.ReadAll(r.Body)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") && len(raw) > 0 {
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			s.t.Errorf("%s: decode body: %v", key, err)
		}
		s.mu.Lock()
		s.bodies[key] = body
		s.mu.Unlock()
	}

	s.route(w, r, key)
}

func (s *providerStub) route(w http.ResponseWriter, r *http.Request, key string) {
	h, ok := s.handlers[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"no route","type":"invalid_request_error"}}`))
		return
	}
	h(w, r)
}

func (s *providerStub) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *providerStub) Body(key string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[key]
}

func writeJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func newTestOpenAIService(t *testing.T, baseURL string) OpenAIService {
	t.Helper()
	svc, err := NewOpenAIService(config.OpenAIConfig{
		APIKey:       "sk-test",
		BaseURL:      baseURL + "/",
		Model:        "gpt-4",
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  2 * time.Second,
	})
	require.NoError(t, err)
	return svc
}

func TestNewOpenAIServiceRequiresKey(t *testing.T) {
	_, err := NewOpenAIService(config.OpenAIConfig{BaseURL: "https://api.openai.com"})
	assert.Error(t, err)
}

func TestUploadFileSendsMultipartWithPurpose(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/files", func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "assistants", r.FormValue("purpose"))

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "report.pdf", header.Filename)
		assert.Equal(t, "%PDF-1.4 body", string(data))

		writeJSON(`{"id":"file-abc","object":"file","purpose":"assistants"}`)(w, r)
	})

	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 body"), 0o644))

	id, err := newTestOpenAIService(t, server.URL).UploadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "file-abc", id)
}

func TestUploadFileErrorStatus(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	})

	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

	_, err := newTestOpenAIService(t, server.URL).UploadFile(context.Background(), path)
	require.Error(t, err)

	var apiErr *openai.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatusCode)
	assert.Equal(t, "provider_status", ErrorKind(err))
}

func TestUploadFileMissingID(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/files", writeJSON(`{"object":"file"}`))

	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

	_, err := newTestOpenAIService(t, server.URL).UploadFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestCreateVectorStore(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/vector_stores", writeJSON(`{"id":"vs_123","object":"vector_store"}`))

	id, err := newTestOpenAIService(t, server.URL).CreateVectorStore(context.Background(), VectorStoreName, []string{"file-ref", "file-user"})
	require.NoError(t, err)
	assert.Equal(t, "vs_123", id)

	body := stub.Body("POST /v1/vector_stores")
	assert.Equal(t, "TNFD Evaluation Store", body["name"])
	assert.Equal(t, []any{"file-ref", "file-user"}, body["file_ids"])
}

func TestCreateVectorStoreMissingID(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/vector_stores", writeJSON(`{}`))

	_, err := newTestOpenAIService(t, server.URL).CreateVectorStore(context.Background(), VectorStoreName, []string{"a", "b"})
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "create vector store", decodeErr.Op)
	assert.Equal(t, "id", decodeErr.Field)
}

func TestCreateAssistantRequestShape(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/beta/assistants", writeJSON(`{"id":"asst_1"}`))

	id, err := newTestOpenAIService(t, server.URL).CreateAssistant(context.Background(), AssistantRequest{
		Name:          AssistantName,
		Instructions:  EvaluatorInstructions,
		Model:         "gpt-4",
		VectorStoreID: "vs_123",
	})
	require.NoError(t, err)
	assert.Equal(t, "asst_1", id)

	body := stub.Body("POST /v1/beta/assistants")
	assert.Equal(t, "TNFD Evaluator", body["name"])
	assert.Equal(t, EvaluatorInstructions, body["instructions"])
	assert.Equal(t, "gpt-4", body["model"])
	assert.Equal(t, []any{map[string]any{"type": "file_search"}}, body["tools"])
	assert.Equal(t, map[string]any{
		"file_search": map[string]any{"vector_store_ids": []any{"vs_123"}},
	}, body["tool_resources"])
}

func TestCreateThreadSeedsUserMessage(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/beta/threads", writeJSON(`{"id":"thread_1"}`))

	id, err := newTestOpenAIService(t, server.URL).CreateThread(context.Background(), EvaluationRequestMessage)
	require.NoError(t, err)
	assert.Equal(t, "thread_1", id)

	body := stub.Body("POST /v1/beta/threads")
	assert.Equal(t, []any{map[string]any{
		"role":    "user",
		"content": "Please evaluate the uploaded TNFD report.",
	}}, body["messages"])
}

func TestRunAssistantInlineMessages(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/beta/threads/thread_1/runs",
		writeJSON(`{"id":"run_1","status":"completed","messages":[{"role":"assistant","content":"87%\nThe report demonstrates..."}]}`))

	out, err := newTestOpenAIService(t, server.URL).RunAssistant(context.Background(), "thread_1", "asst_1")
	require.NoError(t, err)
	assert.Equal(t, "run_1", out.RunID)
	assert.Equal(t, "87%\nThe report demonstrates...", out.Content)
	assert.Equal(t, map[string]any{"assistant_id": "asst_1"}, stub.Body("POST /v1/beta/threads/thread_1/runs"))
}

func TestRunAssistantStructuredContent(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/beta/threads/thread_1/runs",
		writeJSON(`{"id":"run_1","messages":[{"content":[{"type":"text","text":{"value":"72%"}},{"type":"image_file"},{"type":"text","text":{"value":"Gaps in metrics."}}]}]}`))

	out, err := newTestOpenAIService(t, server.URL).RunAssistant(context.Background(), "thread_1", "asst_1")
	require.NoError(t, err)
	assert.Equal(t, "72%\nGaps in metrics.", out.Content)
}

func TestRunAssistantPollsUntilCompleted(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/beta/threads/thread_1/runs", writeJSON(`{"id":"run_1","status":"queued"}`))

	var mu sync.Mutex
	polls := 0
	stub.on(http.MethodGet, "/v1/beta/threads/thread_1/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()
		if n < 2 {
			writeJSON(`{"id":"run_1","status":"in_progress"}`)(w, r)
			return
		}
		writeJSON(`{"id":"run_1","status":"completed"}`)(w, r)
	})
	stub.on(http.MethodGet, "/v1/beta/threads/thread_1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		writeJSON(`{"data":[{"role":"assistant","content":[{"type":"text","text":{"value":"64%\nPartial alignment."}}]}]}`)(w, r)
	})

	out, err := newTestOpenAIService(t, server.URL).RunAssistant(context.Background(), "thread_1", "asst_1")
	require.NoError(t, err)
	assert.Equal(t, "run_1", out.RunID)
	assert.Equal(t, "64%\nPartial alignment.", out.Content)
	assert.Equal(t, []string{
		"POST /v1/beta/threads/thread_1/runs",
		"GET /v1/beta/threads/thread_1/runs/run_1",
		"GET /v1/beta/threads/thread_1/runs/run_1",
		"GET /v1/beta/threads/thread_1/messages",
	}, stub.Requests())
}

func TestRunAssistantFailedRun(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/beta/threads/thread_1/runs",
		writeJSON(`{"id":"run_1","status":"failed","last_error":{"code":"server_error","message":"Something went wrong"}}`))

	_, err := newTestOpenAIService(t, server.URL).RunAssistant(context.Background(), "thread_1", "asst_1")
	require.Error(t, err)

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Contains(t, providerErr.Message, "failed")
	assert.Contains(t, providerErr.Message, "Something went wrong")
	assert.ErrorIs(t, err, ErrProvider)
}

func TestRunAssistantMissingMessages(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/beta/threads/thread_1/runs", writeJSON(`{"object":"thread.run"}`))

	_, err := newTestOpenAIService(t, server.URL).RunAssistant(context.Background(), "thread_1", "asst_1")
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "messages[0].content", decodeErr.Field)
}

func TestBetaCallNonJSONBody(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/beta/threads", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway</html>"))
	})

	_, err := newTestOpenAIService(t, server.URL).CreateThread(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestBetaCallErrorStatus(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodPost, "/v1/beta/assistants", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"The server had an error","type":"server_error"}}`))
	})

	_, err := newTestOpenAIService(t, server.URL).CreateAssistant(context.Background(), AssistantRequest{Model: "gpt-4", VectorStoreID: "vs"})
	require.Error(t, err)

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, http.StatusInternalServerError, providerErr.StatusCode)
	assert.Equal(t, "The server had an error", providerErr.Message)
}

func TestDeleteResources(t *testing.T) {
	stub, server := newProviderStub(t)
	stub.on(http.MethodDelete, "/v1/files/file-1", writeJSON(`{"id":"file-1","object":"file","deleted":true}`))
	stub.on(http.MethodDelete, "/v1/vector_stores/vs_1", writeJSON(`{"id":"vs_1","object":"vector_store.deleted","deleted":true}`))

	svc := newTestOpenAIService(t, server.URL)
	require.NoError(t, svc.DeleteVectorStore(context.Background(), "vs_1"))
	require.NoError(t, svc.DeleteFile(context.Background(), "file-1"))

	assert.Equal(t, []string{"DELETE /v1/vector_stores/vs_1", "DELETE /v1/files/file-1"}, stub.Requests())
}

func TestMessageText(t *testing.T) {
	text, err := messageText(json.RawMessage(`"plain"`))
	require.NoError(t, err)
	assert.Equal(t, "plain", text)

	_, err = messageText(json.RawMessage(`null`))
	assert.Error(t, err)

	_, err = messageText(json.RawMessage(`[{"type":"image_file"}]`))
	assert.Error(t, err)

	_, err = messageText(json.RawMessage(`42`))
	assert.Error(t, err)
}

func TestErrorMessageTruncatesOnRuneBoundary(t *testing.T) {
	raw := []byte(strings.Repeat("é", 150) + strings.Repeat("日", 150))

	msg := errorMessage(raw)
	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, maxErrorMessageRunes, utf8.RuneCountInString(msg))
	assert.True(t, strings.HasPrefix(msg, strings.Repeat("é", 150)))
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "provider error body", raw: `{"error":{"message":"Invalid API key","type":"auth"}}`, want: "Invalid API key"},
		{name: "plain text", raw: "  upstream unavailable \n", want: "upstream unavailable"},
		{name: "empty", raw: "", want: "empty response body"},
		{name: "invalid utf8", raw: "bad \xff byte", want: "bad \uFFFD byte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorMessage([]byte(tt.raw)))
		})
	}
}
