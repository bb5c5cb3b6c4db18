package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mariasu11/grepstream/internal/metrics"
)

// Pool represents a worker pool that processes jobs concurrently
type Pool struct {
	workers  int
	jobs     chan Job
	wg       sync.WaitGroup
	metrics  *metrics.Metrics
	stopOnce sync.Once

	mu   sync.Mutex
	errs []error
}

// Job is a function that should be executed by a worker
type Job func(ctx context.Context) error

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	// Ensure at least one worker
	if workers < 1 {
		workers = 1
	}

	return &Pool{
		workers: workers,
		jobs:    make(chan Job, workers),
		metrics: metrics.GetMetrics(),
	}
}

// Workers returns the number of workers
func (p *Pool) Workers() int {
	return p.workers
}

// Start starts the worker pool
func (p *Pool) Start(ctx context.Context) {
	p.metrics.WorkersActive.Add(float64(p.workers))

	// Start workers
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// worker is the main worker goroutine
func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			// Context is cancelled, exit
			return
		case job, ok := <-p.jobs:
			if !ok {
				// Channel closed, exit
				return
			}
			p.metrics.WorkQueueSize.Dec()

			// Process the job
			p.processJob(ctx, job)
		}
	}
}

// processJob executes a job and records metrics
func (p *Pool) processJob(ctx context.Context, job Job) {
	start := time.Now()

	// Execute the job
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		return job(ctx)
	}()

	// Record metrics
	if err != nil {
		p.metrics.WorkItemsErrored.Inc()
		p.mu.Lock()
		p.errs = append(p.errs, err)
		p.mu.Unlock()
	}
	p.metrics.WorkItemsProcessed.Inc()
	p.metrics.WorkerProcessingTime.Observe(time.Since(start).Seconds())
}

// Submit queues a job, blocking while every worker is busy and the queue
// is full. It fails once ctx is done.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case p.jobs <- job:
		p.metrics.WorkQueueSize.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the queue and waits for the workers to drain it or for ctx
// to be done. It returns the errors of the failed jobs.
func (p *Pool) Stop(ctx context.Context) []error {
	p.stopOnce.Do(func() {
		// Close the jobs channel to signal workers to exit
		close(p.jobs)

		// Wait for all workers to finish with a timeout
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// All workers exited cleanly
		case <-ctx.Done():
			// Timeout reached, some workers may still be running
		}

		p.metrics.WorkersActive.Sub(float64(p.workers))
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.errs...)
}
