package series

import (
	"fmt"
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Element lists the Go types a parsed column can be read back as.
type Element interface {
	int64 | float64 | string | []float64
}

// Series represents a typed data column with Apache Arrow backend
type Series[T Element] struct {
	name  string
	array arrow.Array
}

// New creates a new Series from a slice of values
func New[T Element](name string, values []T, mem memory.Allocator) *Series[T] {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	var arr arrow.Array

	switch v := any(values).(type) {
	case []string:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		builder.AppendValues(v, nil)
		arr = builder.NewArray()
	case []int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, nil)
		arr = builder.NewArray()
	case []float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, nil)
		arr = builder.NewArray()
	case [][]float64:
		builder := NewColumnBuilder(Vector, mem)
		defer builder.Release()
		var slot Value
		for _, vec := range v {
			slot.SetVector(vec)
			_ = builder.Append(&slot)
		}
		arr = builder.NewArray()
	}

	return &Series[T]{
		name:  name,
		array: arr,
	}
}

// FromArray wraps an existing array, checking that its type matches T.
// The array is retained; call Release when done.
func FromArray[T Element](name string, arr arrow.Array) (*Series[T], error) {
	var zero T
	var want Type
	switch any(zero).(type) {
	case int64:
		want = Integer
	case float64:
		want = Float
	case string:
		want = String
	case []float64:
		want = Vector
	}
	got, err := FromArrowType(arr.DataType())
	if err != nil {
		return nil, err
	}
	if got != want {
		return nil, fmt.Errorf("column %s is %s, not %s", name, got, want)
	}
	arr.Retain()
	return &Series[T]{name: name, array: arr}, nil
}

// Name returns the column name
func (s *Series[T]) Name() string {
	return s.name
}

// Len returns the length of the series
func (s *Series[T]) Len() int {
	return s.array.Len()
}

// Values returns the data as a Go slice; nulls read as zero values.
func (s *Series[T]) Values() []T {
	result := make([]T, s.array.Len())
	for i := range result {
		result[i] = s.Value(i)
	}
	return result
}

// Value returns the value at the given index
func (s *Series[T]) Value(index int) T {
	var result T
	if index < 0 || index >= s.array.Len() || s.array.IsNull(index) {
		return result
	}
	if v, ok := ValueAt(s.array, index).(T); ok {
		result = v
	}
	return result
}

// DataType returns the Arrow data type
func (s *Series[T]) DataType() arrow.DataType {
	return s.array.DataType()
}

// IsNull checks if the value at index is null
func (s *Series[T]) IsNull(index int) bool {
	return s.array.IsNull(index)
}

// String returns a string representation of the series
func (s *Series[T]) String() string {
	return fmt.Sprintf("Series[%s]: %s (len=%d)",
		reflect.TypeOf(new(T)).Elem().String(),
		s.name,
		s.Len())
}

// Array returns the underlying Arrow array (retains a reference)
func (s *Series[T]) Array() arrow.Array {
	if s.array != nil {
		s.array.Retain()
		return s.array
	}
	return nil
}

// Release releases the underlying Arrow memory
func (s *Series[T]) Release() {
	if s.array != nil {
		s.array.Release()
	}
}
