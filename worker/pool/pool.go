package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// WorkerPool bounds the number of CPU-heavy jobs running at once.
type WorkerPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewWorkerPool sizes the pool to maxWorkers, or to the number of CPUs when
// maxWorkers is not positive.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	return &WorkerPool{
		sem: make(chan struct{}, maxWorkers),
	}
}

func (p *WorkerPool) Size() int {
	return cap(p.sem)
}

// Submit runs task in the background once a slot frees up. Tasks still
// queued when ctx ends are dropped.
func (p *WorkerPool) Submit(ctx context.Context, task func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
			task(ctx)
		case <-ctx.Done():
		}
	}()
}

// Wait blocks until every submitted task has returned.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

type outcome[T any] struct {
	val T
	err error
}

// Do runs fn on the pool and waits for its result. When ctx ends first Do
// returns ctx.Err(); a job that already started keeps its slot until fn
// returns and its result is discarded.
func Do[T any](ctx context.Context, p *WorkerPool, fn func(context.Context) (T, error)) (T, error) {
	done := make(chan outcome[T], 1)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
			done <- run(ctx, fn)
		case <-ctx.Done():
			done <- outcome[T]{err: ctx.Err()}
		}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func run[T any](ctx context.Context, fn func(context.Context) (T, error)) (o outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			o = outcome[T]{err: fmt.Errorf("worker panic: %v", r)}
		}
	}()
	v, err := fn(ctx)
	return outcome[T]{val: v, err: err}
}
