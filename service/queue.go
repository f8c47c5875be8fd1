package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("work queue is shutting down")

// Job is one unit of work for the queue.
type Job func(ctx context.Context)

// WorkQueue runs jobs on a fixed set of workers. Enqueue never blocks: when
// the buffer is full the job is handed to its own goroutine instead.
type WorkQueue struct {
	logger  *slog.Logger
	workers int

	ch       chan Job
	wg       sync.WaitGroup
	overflow sync.WaitGroup
	once     sync.Once

	mu     sync.Mutex
	closed bool
}

type QueueOption func(*WorkQueue)

func WithWorkers(n int) QueueOption {
	return func(q *WorkQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) QueueOption {
	return func(q *WorkQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func NewWorkQueue(logger *slog.Logger, opts ...QueueOption) *WorkQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &WorkQueue{
		logger:  logger,
		workers: 4,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *WorkQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)
				for job := range q.ch {
					job(context.Background())
				}
				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *WorkQueue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, running job outside the pool")
		q.overflow.Add(1)
		go func() {
			defer q.overflow.Done()
			job(context.Background())
		}()
	}
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones to finish or for
// ctx to expire.
func (q *WorkQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.wg.Wait()
		q.overflow.Wait()
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
		return ctx.Err()
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
		return nil
	}
}
