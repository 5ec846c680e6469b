// Package async provides helpers for running provisioning tasks in parallel
// while keeping all result handling on a single goroutine.
package async

import (
	"context"
	"fmt"
)

// Task is a named asynchronous operation producing a value.
type Task[T any] struct {
	Name string
	Func func(ctx context.Context) (T, error)
}

// Collect runs all tasks concurrently and delivers each successful result to
// collect on the calling goroutine, in completion order. Because collect is
// never called concurrently, it may mutate and persist shared state without
// further locking.
//
// Every task is allowed to finish even after another one has failed, and
// results that arrive after a failure are still collected: work that
// completed must be recorded before the error is surfaced. The first task or
// collect error is returned.
func Collect[T any](ctx context.Context, tasks []Task[T], collect func(name string, value T) error) error {
	if len(tasks) == 0 {
		return nil
	}

	type result struct {
		name  string
		value T
		err   error
	}

	results := make(chan result, len(tasks))
	for _, task := range tasks {
		task := task
		go func() {
			value, err := task.Func(ctx)
			results <- result{name: task.Name, value: value, err: err}
		}()
	}

	var firstErr error
	for i := 0; i < len(tasks); i++ {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", res.name, res.err)
			}
			continue
		}
		if err := collect(res.name, res.value); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", res.name, err)
		}
	}

	return firstErr
}
