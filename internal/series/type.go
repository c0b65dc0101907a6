// Package series provides the typed field slots filled by the tokenizer and
// the Arrow-backed column types the parsed rows are written into.
package series

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Type is the static type of a column.
type Type int

const (
	// Undefined marks a missing value; it is never a column type.
	Undefined Type = iota
	Integer
	Float
	String
	Vector
)

func (t Type) String() string {
	switch t {
	case Undefined:
		return "undefined"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case String:
		return "string"
	case Vector:
		return "vector"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ParseType resolves a type hint name. Names are case insensitive.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "integer", "int64":
		return Integer, nil
	case "float", "double", "float64":
		return Float, nil
	case "str", "string":
		return String, nil
	case "vector", "array", "list":
		return Vector, nil
	default:
		return Undefined, fmt.Errorf("unknown column type %q", name)
	}
}

// ArrowType returns the Arrow data type used to store a column of type t.
func ArrowType(t Type) arrow.DataType {
	switch t {
	case Integer:
		return arrow.PrimitiveTypes.Int64
	case Float:
		return arrow.PrimitiveTypes.Float64
	case Vector:
		return arrow.ListOf(arrow.PrimitiveTypes.Float64)
	default:
		return arrow.BinaryTypes.String
	}
}

// FromArrowType is the inverse of ArrowType.
func FromArrowType(dt arrow.DataType) (Type, error) {
	//nolint:exhaustive // only the column types the parser produces
	switch dt.ID() {
	case arrow.INT64:
		return Integer, nil
	case arrow.FLOAT64:
		return Float, nil
	case arrow.STRING:
		return String, nil
	case arrow.LIST:
		return Vector, nil
	default:
		return Undefined, fmt.Errorf("unsupported Arrow type: %s", dt)
	}
}
