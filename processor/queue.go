// ABOUTME: Job queue abstraction for asynchronous processors
// ABOUTME: MemoryQueue runs jobs on in-process worker goroutines
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var (
	ErrQueueFull   = errors.New("processor queue is full")
	ErrQueueClosed = errors.New("processor queue is closed")
)

// Payload is the body posted to a processor.
type Payload struct {
	UserID   string          `json:"userId"`
	Platform string          `json:"platform"`
	Stage    string          `json:"stage"`
	Data     json.RawMessage `json:"data"`
}

// Job is one queued asynchronous processor invocation.
type Job struct {
	TaskID    string  `json:"taskId"`
	Processor Config  `json:"processor"`
	Payload   Payload `json:"payload"`
}

// JobHandler executes a job. It owns reporting of its own failures.
type JobHandler func(ctx context.Context, job Job)

// Queue transports jobs from handlers to workers.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Start(ctx context.Context, handle JobHandler) error
	Close() error
}

// MemoryQueue is a bounded in-process queue.
type MemoryQueue struct {
	jobs    chan Job
	workers int

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewMemoryQueue creates a queue holding up to size jobs, served by workers goroutines.
func NewMemoryQueue(size, workers int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	if workers <= 0 {
		workers = 2
	}
	return &MemoryQueue{
		jobs:    make(chan Job, size),
		workers: workers,
		done:    make(chan struct{}),
	}
}

// Enqueue never blocks; a full queue rejects the job.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Start(ctx context.Context, handle JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.done:
					return
				case job := <-q.jobs:
					handle(ctx, job)
				}
			}
		}()
	}
	return nil
}

// Close stops the workers after their current job. Queued jobs are dropped.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
