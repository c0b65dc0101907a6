package series

import (
	"strconv"
	"strings"
)

// Value is one typed field slot. Slots are reused across records: a slot
// whose type already matches the column type is overwritten in place, and
// Reset is only needed when the type differs.
type Value struct {
	typ Type
	i   int64
	f   float64
	s   string
	v   []float64
}

// Reset sets the slot to the zero value of t.
func (v *Value) Reset(t Type) {
	v.typ = t
	v.i = 0
	v.f = 0
	v.s = ""
	v.v = v.v[:0]
}

// Type returns the current type of the slot; Undefined means null.
func (v *Value) Type() Type { return v.typ }

// IsNull reports whether the slot holds a missing value.
func (v *Value) IsNull() bool { return v.typ == Undefined }

// SetNull marks the slot as missing.
func (v *Value) SetNull() { v.typ = Undefined }

// SetInt stores an integer.
func (v *Value) SetInt(i int64) {
	v.typ = Integer
	v.i = i
}

// SetFloat stores a float.
func (v *Value) SetFloat(f float64) {
	v.typ = Float
	v.f = f
}

// SetString stores a string.
func (v *Value) SetString(s string) {
	v.typ = String
	v.s = s
}

// SetVector stores a numeric vector. The backing array of the slot is
// reused; the caller keeps ownership of vec.
func (v *Value) SetVector(vec []float64) {
	v.typ = Vector
	v.v = append(v.v[:0], vec...)
}

// AppendVector appends one element to the vector held by the slot,
// converting the slot to an empty vector first if needed.
func (v *Value) AppendVector(x float64) {
	if v.typ != Vector {
		v.typ = Vector
		v.v = v.v[:0]
	}
	v.v = append(v.v, x)
}

// Int returns the integer payload.
func (v *Value) Int() int64 { return v.i }

// Float returns the float payload.
func (v *Value) Float() float64 { return v.f }

// Str returns the string payload.
func (v *Value) Str() string { return v.s }

// Vector returns the vector payload. The slice is only valid until the
// slot is next written.
func (v *Value) Vector() []float64 { return v.v }

// Any returns the payload as a Go value: int64, float64, string,
// []float64 (copied) or nil.
func (v *Value) Any() any {
	switch v.typ {
	case Integer:
		return v.i
	case Float:
		return v.f
	case String:
		return v.s
	case Vector:
		return append([]float64(nil), v.v...)
	default:
		return nil
	}
}

// String renders the slot for diagnostics.
func (v *Value) String() string {
	switch v.typ {
	case Integer:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case String:
		return v.s
	case Vector:
		return FormatVector(v.v)
	default:
		return ""
	}
}

// FormatVector renders a vector as "[1 2 3]".
func FormatVector(vec []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range vec {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}
