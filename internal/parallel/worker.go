// Package parallel provides the worker pool shared by the parse and write
// stages of a parse session.
//
// Parse tasks of one cycle are fanned out with ProcessIndexed, which keeps
// results in worker order. The asynchronous write of a cycle runs in a
// TaskGroup launched from the same pool and joined before the next cycle
// hands its buffers over.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// WorkerPool manages a pool of goroutines for parallel processing
type WorkerPool struct {
	numWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		numWorkers: numWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// NumWorkers returns the pool size.
func (wp *WorkerPool) NumWorkers() int {
	return wp.numWorkers
}

// ProcessIndexed executes work items in parallel while preserving order.
// Items not started before Close leave zero results.
func ProcessIndexed[T, R any](
	wp *WorkerPool,
	items []T,
	worker func(int, T) R,
) []R {
	if len(items) == 0 {
		return nil
	}

	// Channel for input items with index
	itemCh := make(chan indexedItem[T], len(items))

	// Channel for results with index
	resultCh := make(chan indexedResult[R], len(items))

	workers := min(wp.numWorkers, len(items))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				select {
				case <-wp.ctx.Done():
					return
				default:
					result := worker(item.index, item.value)
					resultCh <- indexedResult[R]{
						index:  item.index,
						result: result,
					}
				}
			}
		}()
	}

	for i, item := range items {
		itemCh <- indexedItem[T]{index: i, value: item}
	}
	close(itemCh)

	// Close result channel when all workers are done
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Collect results and maintain order
	results := make([]R, len(items))
	for result := range resultCh {
		results[result.index] = result.result
	}

	return results
}

// Close shuts down the worker pool
func (wp *WorkerPool) Close() {
	wp.cancel()
}

// TaskGroup runs background tasks that are later joined as a unit.
// Launch and Join must be called from one goroutine.
type TaskGroup struct {
	limit   int
	group   *errgroup.Group
	pending int
}

// NewTaskGroup creates a task group whose concurrency is bounded by the
// pool size.
func (wp *WorkerPool) NewTaskGroup() *TaskGroup {
	return &TaskGroup{limit: wp.numWorkers}
}

// Launch starts fn in the background.
func (g *TaskGroup) Launch(fn func() error) {
	if g.group == nil {
		g.group = &errgroup.Group{}
		g.group.SetLimit(g.limit)
	}
	g.pending++
	g.group.Go(fn)
}

// Pending returns the number of tasks launched since the last Join.
func (g *TaskGroup) Pending() int {
	return g.pending
}

// Join waits for every launched task and returns the first error. The
// group can be reused afterwards.
func (g *TaskGroup) Join() error {
	if g.group == nil {
		return nil
	}
	err := g.group.Wait()
	g.group = nil
	g.pending = 0
	return err
}

// indexedItem holds an item with its index
type indexedItem[T any] struct {
	index int
	value T
}

// indexedResult holds a result with its index
type indexedResult[R any] struct {
	index  int
	result R
}
