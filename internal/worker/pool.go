// Package worker runs per-symbol work on a bounded number of goroutines.
package worker

import (
	"context"
	"sync"
)

const defaultConcurrency = 8

// Map applies fn to every item using at most concurrency goroutines. The
// result slice is index-aligned with items regardless of completion order.
// Items not started before ctx is cancelled keep their zero value and ok
// reports false for them.
func Map[T, R any](ctx context.Context, concurrency int, items []T, fn func(context.Context, T) R) (results []R, ok []bool) {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	results = make([]R, len(items))
	ok = make([]bool, len(items))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < concurrency && i < len(items); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = fn(ctx, items[idx])
				ok[idx] = true
			}
		}()
	}

feed:
	for i := range items {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return results, ok
}
