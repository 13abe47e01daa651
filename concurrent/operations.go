package concurrent

import (
	"context"
	"errors"
	"sync"
)

// Result pairs a job with the error its worker returned.
type Result[T any] struct {
	Index int
	Item  T
	Err   error
}

// Process runs fn over items with at most numWorkers goroutines.
// Results come back in input order. Jobs not yet started when ctx is
// cancelled report ctx.Err().
func Process[T any](ctx context.Context, items []T, numWorkers int, fn func(context.Context, T) error) []Result[T] {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	if numWorkers > len(items) {
		numWorkers = len(items)
	}

	type job struct {
		index int
		item  T
	}

	jobs := make(chan job, len(items))
	results := make([]Result[T], len(items))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				var err error
				if err = ctx.Err(); err == nil {
					err = fn(ctx, j.item)
				}
				results[j.index] = Result[T]{Index: j.index, Item: j.item, Err: err}
			}
		}()
	}

	for i, item := range items {
		jobs <- job{index: i, item: item}
	}
	close(jobs)
	wg.Wait()

	return results
}

// Errors joins every failed result into one error, nil when all succeeded.
func Errors[T any](results []Result[T]) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
