package pipeline

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("queue is full")
)

// Queue is a bounded in-process job queue drained by a fixed pool of
// worker goroutines. Completed and failed jobs are dropped, not kept.
type Queue struct {
	name   string
	jobs   chan Job
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(name string, capacity int) *Queue {
	return &Queue{
		name: name,
		jobs: make(chan Job, capacity),
	}
}

func (q *Queue) Name() string {
	return q.name
}

func (q *Queue) Enqueue(job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

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

// Process starts concurrency workers that call handler for each job
// until the queue is closed and drained.
func (q *Queue) Process(ctx context.Context, concurrency int, handler func(context.Context, Job)) {
	for i := 0; i < concurrency; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for job := range q.jobs {
				handler(ctx, job)
			}
		}()
	}
}

// Close stops accepting jobs and blocks until in-flight jobs finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) Len() int {
	return len(q.jobs)
}
