// Package dataset is the in-process partitioned collection the fitters run
// on. It offers the four primitives fitting relies on: Map, Filter, Reduce and
// Count. Partitions are processed by a bounded worker pool; results keep
// partition order so reductions are reproducible for a fixed partitioning.
package dataset

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"thunderfit/internal/errs"
)

type Options struct {
	// Partitions is the number of slices items are split into. Zero picks
	// one partition per worker.
	Partitions int
	// Workers bounds concurrent partition tasks. Zero uses GOMAXPROCS.
	Workers int
}

type Collection[T any] struct {
	parts   [][]T
	workers int
}

// New splits items into contiguous partitions. items is not copied; callers
// must not mutate it while the collection is in use.
func New[T any](items []T, opts Options) *Collection[T] {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	partitions := opts.Partitions
	if partitions <= 0 {
		partitions = workers
	}
	if partitions > len(items) {
		partitions = len(items)
	}
	if partitions < 1 {
		partitions = 1
	}

	parts := make([][]T, partitions)
	size := len(items) / partitions
	extra := len(items) % partitions
	start := 0
	for p := range parts {
		end := start + size
		if p < extra {
			end++
		}
		parts[p] = items[start:end:end]
		start = end
	}
	return &Collection[T]{parts: parts, workers: workers}
}

// Count returns the exact number of records.
func (c *Collection[T]) Count() int {
	n := 0
	for _, part := range c.parts {
		n += len(part)
	}
	return n
}

func (c *Collection[T]) Partitions() int {
	return len(c.parts)
}

// Collect flattens the collection in partition order.
func (c *Collection[T]) Collect() []T {
	out := make([]T, 0, c.Count())
	for _, part := range c.parts {
		out = append(out, part...)
	}
	return out
}

// Map applies f to every record independently. The result has the same
// partitioning and record count.
func Map[T, U any](ctx context.Context, c *Collection[T], f func(T) U) (*Collection[U], error) {
	parts := make([][]U, len(c.parts))
	err := c.each(ctx, func(p int, part []T) {
		out := make([]U, len(part))
		for i, item := range part {
			out[i] = f(item)
		}
		parts[p] = out
	})
	if err != nil {
		return nil, err
	}
	return &Collection[U]{parts: parts, workers: c.workers}, nil
}

// Filter keeps the records satisfying pred.
func (c *Collection[T]) Filter(ctx context.Context, pred func(T) bool) (*Collection[T], error) {
	parts := make([][]T, len(c.parts))
	err := c.each(ctx, func(p int, part []T) {
		var out []T
		for _, item := range part {
			if pred(item) {
				out = append(out, item)
			}
		}
		parts[p] = out
	})
	if err != nil {
		return nil, err
	}
	return &Collection[T]{parts: parts, workers: c.workers}, nil
}

// Reduce folds all records with an associative combine. Each partition is
// folded in order, then partials are folded in partition order. An empty
// collection returns errs.ErrEmptyCollection.
func Reduce[T any](ctx context.Context, c *Collection[T], combine func(T, T) T) (T, error) {
	type partial struct {
		value T
		ok    bool
	}
	partials := make([]partial, len(c.parts))
	err := c.each(ctx, func(p int, part []T) {
		if len(part) == 0 {
			return
		}
		acc := part[0]
		for _, item := range part[1:] {
			acc = combine(acc, item)
		}
		partials[p] = partial{value: acc, ok: true}
	})

	var zero T
	if err != nil {
		return zero, err
	}

	var (
		acc  T
		seen bool
	)
	for _, pt := range partials {
		if !pt.ok {
			continue
		}
		if !seen {
			acc, seen = pt.value, true
			continue
		}
		acc = combine(acc, pt.value)
	}
	if !seen {
		return zero, fmt.Errorf("reduce: %w", errs.ErrEmptyCollection)
	}
	return acc, nil
}

// each runs task once per partition on the worker pool.
func (c *Collection[T]) each(ctx context.Context, task func(p int, part []T)) error {
	jobs := make(chan int)

	workerCount := c.workers
	if workerCount > len(c.parts) {
		workerCount = len(c.parts)
	}
	if workerCount < 1 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for p := range jobs {
				task(p, c.parts[p])
			}
		}()
	}

	var err error
dispatch:
	for p := range c.parts {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break dispatch
		case jobs <- p:
		}
	}
	close(jobs)
	wg.Wait()
	return err
}
