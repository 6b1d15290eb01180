package datablock

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
)

// DataType is the logical type of a column.
type DataType int

const (
	TypeUInt64 DataType = iota + 1
	TypeInt64
	TypeFloat64
	TypeString
	TypeBoolean
)

func (t DataType) String() string {
	switch t {
	case TypeUInt64:
		return "UInt64"
	case TypeInt64:
		return "Int64"
	case TypeFloat64:
		return "Float64"
	case TypeString:
		return "String"
	case TypeBoolean:
		return "Boolean"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// ArrowType returns the arrow type the logical type is stored as.
func (t DataType) ArrowType() arrow.DataType {
	switch t {
	case TypeUInt64:
		return arrow.PrimitiveTypes.Uint64
	case TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case TypeFloat64:
		return arrow.PrimitiveTypes.Float64
	case TypeString:
		return arrow.BinaryTypes.String
	case TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	default:
		return nil
	}
}

// ParseDataType parses a type name, case-insensitively.
func ParseDataType(name string) (DataType, error) {
	for _, t := range []DataType{TypeUInt64, TypeInt64, TypeFloat64, TypeString, TypeBoolean} {
		if strings.EqualFold(t.String(), name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown data type `%s`", name)
}

func fromArrowType(dt arrow.DataType) (DataType, bool) {
	switch dt.ID() {
	case arrow.UINT64:
		return TypeUInt64, true
	case arrow.INT64:
		return TypeInt64, true
	case arrow.FLOAT64:
		return TypeFloat64, true
	case arrow.STRING:
		return TypeString, true
	case arrow.BOOL:
		return TypeBoolean, true
	default:
		return 0, false
	}
}
