package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docgrid/docgrid/internal/extraction"
)

// Job is one queued extraction request.
type Job struct {
	AccountID uuid.UUID
	TableID   uuid.UUID
	RowID     uuid.UUID
}

// ExtractionQueue fans queued rows out to a fixed worker pool, each worker
// driving the orchestrator with a per-job timeout. Duplicate enqueues for
// the same row are harmless: the claim transition makes later workers
// observe in-progress or extracted and back off.
type ExtractionQueue struct {
	orch    *extraction.Orchestrator
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ExtractionQueue)

func WithWorkers(n int) Option {
	return func(q *ExtractionQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ExtractionQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *ExtractionQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewExtractionQueue(orch *extraction.Orchestrator, logger *slog.Logger, opts ...Option) *ExtractionQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ExtractionQueue{
		orch:    orch,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ExtractionQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					res, err := q.orch.ExtractRow(ctx, job.AccountID, job.TableID, job.RowID)
					cancel()

					if err != nil {
						q.logger.Error("extraction failed hard", "worker_id", workerID, "row_id", job.RowID, "error", err)
					} else {
						q.logger.Info("extraction finished", "worker_id", workerID, "row_id", job.RowID, "status", res.Status)
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ExtractionQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "row_id", job.RowID)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued row for extraction", "row_id", job.RowID)
	default:
		q.logger.Warn("queue full, applying backpressure", "row_id", job.RowID)
		q.ch <- job
	}
	return nil
}

func (q *ExtractionQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
