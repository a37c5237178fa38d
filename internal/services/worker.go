package services

import (
	"context"
	"log"
	"sync"
)

// CleanupJob lists provider resources left behind by a failed evaluation.
type CleanupJob struct {
	FileIDs       []string
	VectorStoreID string
}

func (j CleanupJob) Empty() bool {
	return len(j.FileIDs) == 0 && j.VectorStoreID == ""
}

type Worker interface {
	Start(ctx context.Context)
	Stop()
	// Enqueue reports whether the job was accepted. Jobs arriving after Stop
	// are dropped.
	Enqueue(job CleanupJob) bool
}

type worker struct {
	openAIService OpenAIService
	jobQueue      chan CleanupJob
	concurrency   int
	wg            sync.WaitGroup
	stopChan      chan struct{}
	stopOnce      sync.Once

	// mu guards stopped. Enqueue holds it shared across the send so Stop
	// cannot close the queue between the check and the send.
	mu      sync.RWMutex
	stopped bool
}

// NewWorker builds the cleanup worker that deletes leaked files and vector
// stores on the provider side.
func NewWorker(openAIService OpenAIService, concurrency int) Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &worker{
		openAIService: openAIService,
		jobQueue:      make(chan CleanupJob, 100),
		concurrency:   concurrency,
		stopChan:      make(chan struct{}),
	}
}

// Start implements Worker.
func (w *worker) Start(ctx context.Context) {
	log.Printf("🚀 Starting cleanup worker with %d goroutines\n", w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1)
	}
}

// Stop implements Worker. Jobs still queued are drained before it returns.
func (w *worker) Stop() {
	w.stopOnce.Do(func() {
		log.Println("🛑 Stopping cleanup worker...")
		w.mu.Lock()
		w.stopped = true
		close(w.stopChan)
		w.mu.Unlock()
		w.wg.Wait()
		log.Println("✅ Cleanup worker stopped")
	})
}

// Enqueue implements Worker.
func (w *worker) Enqueue(job CleanupJob) bool {
	if job.Empty() {
		return false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		log.Printf("⚠️  Worker stopped, dropping cleanup of %v %s\n", job.FileIDs, job.VectorStoreID)
		return false
	}

	w.jobQueue <- job
	log.Printf("📥 Cleanup queued for files %v vector store %q\n", job.FileIDs, job.VectorStoreID)
	return true
}

func (w *worker) processJobs(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case job := <-w.jobQueue:
			w.cleanup(ctx, workerID, job)
		case <-w.stopChan:
			for {
				select {
				case job := <-w.jobQueue:
					w.cleanup(ctx, workerID, job)
				default:
					log.Printf("👷 Cleanup worker #%d stopped\n", workerID)
					return
				}
			}
		}
	}
}

func (w *worker) cleanup(ctx context.Context, workerID int, job CleanupJob) {
	// The store references the files, so it goes first.
	if job.VectorStoreID != "" {
		if err := w.openAIService.DeleteVectorStore(ctx, job.VectorStoreID); err != nil {
			log.Printf("❌ Worker #%d failed to delete vector store %s: %v\n", workerID, job.VectorStoreID, err)
		} else {
			log.Printf("🧹 Worker #%d deleted vector store %s\n", workerID, job.VectorStoreID)
		}
	}

	for _, fileID := range job.FileIDs {
		if err := w.openAIService.DeleteFile(ctx, fileID); err != nil {
			log.Printf("❌ Worker #%d failed to delete file %s: %v\n", workerID, fileID, err)
			continue
		}
		log.Printf("🧹 Worker #%d deleted file %s\n", workerID, fileID)
	}
}
