package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

type fakeOpenAI struct {
	mu    sync.Mutex
	calls []string
	seq   atomic.Int64

	uploadErr      map[string]error
	vectorStoreErr error
	assistantErr   error
	runErr         error
	content        func(threadID, assistantID string) string

	storeFiles      map[string][]string
	assistantStores map[string]string
	deletedFiles    []string
	deletedStores   []string
}

func newFakeOpenAI() *fakeOpenAI {
	return &fakeOpenAI{
		uploadErr:       map[string]error{},
		storeFiles:      map[string][]string{},
		assistantStores: map[string]string{},
	}
}

func (f *fakeOpenAI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeOpenAI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeOpenAI) next(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, f.seq.Add(1))
}

func (f *fakeOpenAI) UploadFile(ctx context.Context, path string) (string, error) {
	f.record("upload:" + path)
	if err := f.uploadErr[path]; err != nil {
		return "", err
	}
	return f.next("file"), nil
}

func (f *fakeOpenAI) CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error) {
	f.record(fmt.Sprintf("vector_store:%v", fileIDs))
	if f.vectorStoreErr != nil {
		return "", f.vectorStoreErr
	}
	id := f.next("vs")
	f.mu.Lock()
	f.storeFiles[id] = append([]string(nil), fileIDs...)
	f.mu.Unlock()
	return id, nil
}

func (f *fakeOpenAI) CreateAssistant(ctx context.Context, req AssistantRequest) (string, error) {
	f.record("assistant:" + req.Model)
	if f.assistantErr != nil {
		return "", f.assistantErr
	}
	id := f.next("asst")
	f.mu.Lock()
	f.assistantStores[id] = req.VectorStoreID
	f.mu.Unlock()
	return id, nil
}

func (f *fakeOpenAI) CreateThread(ctx context.Context, message string) (string, error) {
	f.record("thread")
	return f.next("thread"), nil
}

func (f *fakeOpenAI) RunAssistant(ctx context.Context, threadID, assistantID string) (*RunOutput, error) {
	f.record("run")
	if f.runErr != nil {
		return nil, f.runErr
	}
	content := "87%\nThe report demonstrates..."
	if f.content != nil {
		content = f.content(threadID, assistantID)
	}
	return &RunOutput{RunID: f.next("run"), Content: content}, nil
}

func (f *fakeOpenAI) DeleteFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedFiles = append(f.deletedFiles, fileID)
	return nil
}

func (f *fakeOpenAI) DeleteVectorStore(ctx context.Context, vectorStoreID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedStores = append(f.deletedStores, vectorStoreID)
	return nil
}

type fakeWorker struct {
	mu   sync.Mutex
	jobs []CleanupJob
}

func (w *fakeWorker) Start(ctx context.Context) {}
func (w *fakeWorker) Stop()                     {}

func (w *fakeWorker) Enqueue(job CleanupJob) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.jobs = append(w.jobs, job)
	return true
}
