package monitoring

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// TrackedAllocator wraps an Arrow allocator and records the bytes it holds
// and the peak it reached.
type TrackedAllocator struct {
	underlying memory.Allocator
	current    atomic.Int64
	peak       atomic.Int64
}

// NewTrackedAllocator creates a tracked allocator. A nil underlying
// allocator means the Go allocator.
func NewTrackedAllocator(underlying memory.Allocator) *TrackedAllocator {
	if underlying == nil {
		underlying = memory.NewGoAllocator()
	}
	return &TrackedAllocator{underlying: underlying}
}

// Allocate allocates memory and records the allocation
func (a *TrackedAllocator) Allocate(size int) []byte {
	buf := a.underlying.Allocate(size)
	if buf != nil {
		a.record(int64(size))
	}
	return buf
}

// Reallocate reallocates memory and updates allocation records
func (a *TrackedAllocator) Reallocate(size int, b []byte) []byte {
	oldSize := len(b)
	buf := a.underlying.Reallocate(size, b)
	if buf != nil {
		a.record(int64(size - oldSize))
	}
	return buf
}

// Free frees memory and records the deallocation
func (a *TrackedAllocator) Free(b []byte) {
	if b != nil {
		a.record(-int64(len(b)))
		a.underlying.Free(b)
	}
}

func (a *TrackedAllocator) record(delta int64) {
	cur := a.current.Add(delta)
	for {
		peak := a.peak.Load()
		if cur <= peak || a.peak.CompareAndSwap(peak, cur) {
			return
		}
	}
}

// CurrentBytes returns the bytes currently held.
func (a *TrackedAllocator) CurrentBytes() int64 { return a.current.Load() }

// PeakBytes returns the largest number of bytes held at once.
func (a *TrackedAllocator) PeakBytes() int64 { return a.peak.Load() }
