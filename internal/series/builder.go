package series

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ColumnBuilder appends Values of one column type to an Arrow builder.
// It is not safe for concurrent use.
type ColumnBuilder struct {
	typ     Type
	builder array.Builder
}

// NewColumnBuilder creates a builder for a column of type t.
func NewColumnBuilder(t Type, mem memory.Allocator) *ColumnBuilder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &ColumnBuilder{
		typ:     t,
		builder: array.NewBuilder(mem, ArrowType(t)),
	}
}

// Type returns the column type.
func (c *ColumnBuilder) Type() Type { return c.typ }

// Len returns the number of appended values.
func (c *ColumnBuilder) Len() int { return c.builder.Len() }

// Append adds v to the column. Undefined values become nulls; any other
// type mismatch is an error.
func (c *ColumnBuilder) Append(v *Value) error {
	if v.IsNull() {
		c.builder.AppendNull()
		return nil
	}
	if v.Type() != c.typ {
		return fmt.Errorf("cannot append %s value to %s column", v.Type(), c.typ)
	}

	switch b := c.builder.(type) {
	case *array.Int64Builder:
		b.Append(v.Int())
	case *array.Float64Builder:
		b.Append(v.Float())
	case *array.StringBuilder:
		b.Append(v.Str())
	case *array.ListBuilder:
		b.Append(true)
		vb := b.ValueBuilder().(*array.Float64Builder)
		vb.AppendValues(v.Vector(), nil)
	default:
		return fmt.Errorf("unsupported builder: %T", b)
	}
	return nil
}

// NewArray finalizes the appended values into an array and resets the builder.
func (c *ColumnBuilder) NewArray() arrow.Array {
	return c.builder.NewArray()
}

// Release releases the builder memory.
func (c *ColumnBuilder) Release() {
	c.builder.Release()
}

// ValueAt reads element i of arr into a Go value, using the same mapping
// as Value.Any.
func ValueAt(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.List:
		start, end := a.ValueOffsets(i)
		values := a.ListValues().(*array.Float64)
		out := make([]float64, 0, end-start)
		for j := start; j < end; j++ {
			out = append(out, values.Value(int(j)))
		}
		return out
	default:
		return a.ValueStr(i)
	}
}
