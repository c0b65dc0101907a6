package table

import (
	"fmt"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ErrorColumn collects the raw text of lines that failed to parse.
type ErrorColumn struct {
	mu      sync.Mutex
	builder *array.StringBuilder
	values  *array.String
}

// NewErrorColumn creates an empty error collection.
func NewErrorColumn(mem memory.Allocator) *ErrorColumn {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &ErrorColumn{builder: array.NewStringBuilder(mem)}
}

// OutputIterator returns a writer appending to the collection.
func (c *ErrorColumn) OutputIterator() *ErrorWriter {
	return &ErrorWriter{col: c}
}

// ErrorWriter appends lines to an ErrorColumn.
type ErrorWriter struct {
	col *ErrorColumn
}

// Append adds one line.
func (w *ErrorWriter) Append(line string) error {
	w.col.mu.Lock()
	defer w.col.mu.Unlock()
	if w.col.builder == nil {
		return fmt.Errorf("error collection is closed")
	}
	w.col.builder.Append(line)
	return nil
}

// Close seals the collection.
func (c *ErrorColumn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.builder == nil {
		return
	}
	c.values = c.builder.NewStringArray()
	c.builder.Release()
	c.builder = nil
}

// Len returns the number of collected lines.
func (c *ErrorColumn) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.builder != nil:
		return c.builder.Len()
	case c.values != nil:
		return c.values.Len()
	default:
		return 0
	}
}

// Values returns the collected lines of a closed collection.
func (c *ErrorColumn) Values() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		return nil
	}
	out := make([]string, c.values.Len())
	for i := range out {
		out[i] = strings.Clone(c.values.Value(i))
	}
	return out
}

// Array returns the sealed column, retained for the caller.
func (c *ErrorColumn) Array() arrow.Array {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		return nil
	}
	c.values.Retain()
	return c.values
}

// Release frees the collection memory.
func (c *ErrorColumn) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.builder != nil {
		c.builder.Release()
		c.builder = nil
	}
	if c.values != nil {
		c.values.Release()
		c.values = nil
	}
}
