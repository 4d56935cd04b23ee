package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Result pairs a work item with the outcome of processing it. Exactly one of
// Artifact and Err is meaningful.
type Result[T, A any] struct {
	Item     T
	Artifact A
	Err      error
}

// Worker processes a single item. It must be safe for concurrent use.
type Worker[T, A any] func(ctx context.Context, item T) (A, error)

// RunBatch fans items out across at most workers goroutines and returns one
// result per item, in the order workers finished them. Sibling items are not
// cancelled when one fails; callers inspect each Result.Err individually.
// A worker panic is recovered into that item's result.
func RunBatch[T, A any](ctx context.Context, items []T, workers int, worker Worker[T, A]) []Result[T, A] {
	if len(items) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	feed := make(chan T)
	out := make(chan Result[T, A], len(items))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range feed {
				out <- runOne(ctx, item, worker)
			}
		}()
	}

	go func() {
		defer close(feed)
		for _, item := range items {
			select {
			case feed <- item:
			case <-ctx.Done():
				out <- Result[T, A]{Item: item, Err: ctx.Err()}
			}
		}
	}()

	results := make([]Result[T, A], 0, len(items))
	for range items {
		results = append(results, <-out)
	}
	wg.Wait()
	return results
}

func runOne[T, A any](ctx context.Context, item T, worker Worker[T, A]) (res Result[T, A]) {
	res.Item = item
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("worker panic: %v\n%s", r, debug.Stack())
		}
	}()
	res.Artifact, res.Err = worker(ctx, item)
	return res
}

// Failures filters a batch down to the results that carry an error.
func Failures[T, A any](results []Result[T, A]) []Result[T, A] {
	var failed []Result[T, A]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
