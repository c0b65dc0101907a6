package csvframe

import (
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Releasable represents any resource that can be released to free memory.
//
// This interface is implemented by Tables, Results and the Arrow arrays
// returned by Table.Column. Always call Release() when done with a
// resource to prevent memory leaks.
//
// The recommended pattern is to use defer for automatic cleanup:
//
//	res, err := csvframe.ReadCSV(ctx, "data/*.csv", csvframe.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	defer res.Release()
type Releasable interface {
	Release()
}

// MemoryManager helps track and release multiple resources automatically.
//
// MemoryManager is useful when many files are read one after another and
// the results are released together. For most use cases, prefer the defer
// pattern with individual Release() calls.
//
// The MemoryManager is safe for concurrent use from multiple goroutines.
//
// Example:
//
//	err := csvframe.WithMemoryManager(mem, func(manager *csvframe.MemoryManager) error {
//		for _, path := range paths {
//			res, err := csvframe.ReadCSV(ctx, path, opts, manager.ReadOption())
//			if err != nil {
//				return err
//			}
//			manager.Track(res)
//		}
//		return summarize()
//	})
//	// All tracked results are released here
type MemoryManager struct {
	allocator memory.Allocator
	resources []Releasable
	mu        sync.Mutex
}

// NewMemoryManager creates a new memory manager with the given allocator.
// A nil allocator means the Go allocator.
func NewMemoryManager(allocator memory.Allocator) *MemoryManager {
	if allocator == nil {
		allocator = memory.NewGoAllocator()
	}
	return &MemoryManager{
		allocator: allocator,
		resources: make([]Releasable, 0),
	}
}

// Allocator returns the allocator of the manager.
func (m *MemoryManager) Allocator() memory.Allocator {
	return m.allocator
}

// ReadOption returns a read option that allocates the result table from
// the manager's allocator.
func (m *MemoryManager) ReadOption() ReadOption {
	return WithAllocator(m.allocator)
}

// Track adds a resource to be managed and automatically released
func (m *MemoryManager) Track(resource Releasable) {
	if resource != nil {
		m.mu.Lock()
		m.resources = append(m.resources, resource)
		m.mu.Unlock()
	}
}

// Count returns the number of tracked resources
func (m *MemoryManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resources)
}

// ReleaseAll releases all tracked resources and clears the tracking list
func (m *MemoryManager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, resource := range m.resources {
		if resource != nil {
			resource.Release()
		}
	}
	m.resources = m.resources[:0]
}

// WithResult runs a read, passes the result to fn and releases it when fn
// returns.
//
// Example:
//
//	err := csvframe.WithResult(func() (*csvframe.Result, error) {
//		return csvframe.ReadCSV(ctx, "prices.csv", opts)
//	}, func(res *csvframe.Result) error {
//		return res.Table.WriteParquet(out)
//	})
func WithResult(read func() (*Result, error), fn func(*Result) error) error {
	res, err := read()
	if err != nil {
		return err
	}
	defer res.Release()
	return fn(res)
}

// WithMemoryManager creates a memory manager, executes a function with it, and releases all tracked resources
func WithMemoryManager(allocator memory.Allocator, fn func(*MemoryManager) error) error {
	manager := NewMemoryManager(allocator)
	defer manager.ReleaseAll()
	return fn(manager)
}
