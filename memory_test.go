package csvframe

import (
	"context"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResource struct {
	mu       sync.Mutex
	released int
}

func (r *countingResource) Release() {
	r.mu.Lock()
	r.released++
	r.mu.Unlock()
}

func readSample(t *testing.T, mem memory.Allocator) *Result {
	t.Helper()
	res, err := ReadCSVBytes(context.Background(), "sample.csv",
		[]byte("name,qty\napple,3\npear,5\n"), DefaultOptions(), WithAllocator(mem))
	require.NoError(t, err)
	return res
}

// TestMemoryManager tests the memory management utilities
func TestMemoryManager(t *testing.T) {
	t.Run("track and release multiple resources", func(t *testing.T) {
		mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
		defer mem.AssertSize(t, 0)
		manager := NewMemoryManager(mem)

		manager.Track(readSample(t, manager.Allocator()))
		manager.Track(readSample(t, manager.Allocator()))
		manager.Track(nil)

		assert.Equal(t, 2, manager.Count())

		require.NotPanics(t, func() {
			manager.ReleaseAll()
		})
		assert.Equal(t, 0, manager.Count())
	})

	t.Run("release all is idempotent", func(t *testing.T) {
		manager := NewMemoryManager(nil)
		r := &countingResource{}
		manager.Track(r)

		manager.ReleaseAll()
		manager.ReleaseAll()
		assert.Equal(t, 1, r.released)
	})

	t.Run("concurrent access", func(t *testing.T) {
		manager := NewMemoryManager(memory.NewGoAllocator())

		var wg sync.WaitGroup
		const numGoroutines = 10
		const resourcesPerGoroutine = 5

		r := &countingResource{}
		wg.Add(numGoroutines)
		for range numGoroutines {
			go func() {
				defer wg.Done()
				for range resourcesPerGoroutine {
					manager.Track(r)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, numGoroutines*resourcesPerGoroutine, manager.Count())
		manager.ReleaseAll()
		assert.Equal(t, numGoroutines*resourcesPerGoroutine, r.released)
		assert.Equal(t, 0, manager.Count())
	})

	t.Run("read option uses the manager allocator", func(t *testing.T) {
		mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
		defer mem.AssertSize(t, 0)
		manager := NewMemoryManager(mem)

		res, err := ReadCSVBytes(context.Background(), "sample.csv",
			[]byte("a\n1\n"), DefaultOptions(), manager.ReadOption())
		require.NoError(t, err)
		manager.Track(res)
		assert.Positive(t, mem.CurrentAlloc())
		manager.ReleaseAll()
	})
}

// TestWithResult tests the automatic cleanup helper
func TestWithResult(t *testing.T) {
	t.Run("automatically releases the result", func(t *testing.T) {
		mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
		defer mem.AssertSize(t, 0)

		err := WithResult(func() (*Result, error) {
			return readSample(t, mem), nil
		}, func(res *Result) error {
			assert.Equal(t, int64(2), res.Table.NumRows())
			assert.Equal(t, 2, res.Table.NumCols())
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("propagates read error", func(t *testing.T) {
		called := false
		err := WithResult(func() (*Result, error) {
			return nil, assert.AnError
		}, func(*Result) error {
			called = true
			return nil
		})
		assert.Equal(t, assert.AnError, err)
		assert.False(t, called)
	})

	t.Run("propagates function error", func(t *testing.T) {
		err := WithResult(func() (*Result, error) {
			return readSample(t, memory.NewGoAllocator()), nil
		}, func(*Result) error {
			return assert.AnError
		})
		assert.Equal(t, assert.AnError, err)
	})
}

// TestWithMemoryManager tests the scoped memory management helper
func TestWithMemoryManager(t *testing.T) {
	t.Run("automatically releases tracked resources", func(t *testing.T) {
		r := &countingResource{}
		err := WithMemoryManager(memory.NewGoAllocator(), func(manager *MemoryManager) error {
			manager.Track(r)
			manager.Track(r)
			assert.Equal(t, 2, manager.Count())
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, r.released)
	})

	t.Run("propagates function error", func(t *testing.T) {
		r := &countingResource{}
		err := WithMemoryManager(memory.NewGoAllocator(), func(manager *MemoryManager) error {
			manager.Track(r)
			return assert.AnError
		})

		assert.Equal(t, assert.AnError, err)
		assert.Equal(t, 1, r.released)
	})
}
