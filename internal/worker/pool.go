// Package worker provides the bounded pool that runs per-claim verdict
// jobs concurrently during the ensemble phase.
package worker

import (
	"context"
	"sync"
)

// Job is one unit of work
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of one job
type Result interface {
	Err() error
}

// Pool runs jobs with bounded concurrency. Results come back aligned
// with the submitted job order, so callers keep claim ordering without
// re-sorting.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given concurrency
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run executes all jobs and blocks until every one has finished or the
// context is cancelled. Slots for jobs skipped by cancellation are nil.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	indices := make(chan int)
	var wg sync.WaitGroup

	n := p.workers
	if n > len(jobs) {
		n = len(jobs)
	}
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				results[i] = jobs[i].Execute(ctx)
			}
		}()
	}

	for i := range jobs {
		select {
		case indices <- i:
		case <-ctx.Done():
			close(indices)
			wg.Wait()
			return results
		}
	}
	close(indices)
	wg.Wait()
	return results
}
