package datablock

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/ccoveille/go-safecast/v2"

	"github.com/fuselabs/fusequery/pkg/fuseerrors"
)

// Builder accumulates rows for a schema and produces blocks.
type Builder struct {
	schema   *Schema
	builders []array.Builder
	rows     int
}

// NewBuilder returns a row builder for the schema.
func NewBuilder(schema *Schema) *Builder {
	b := &Builder{
		schema:   schema,
		builders: make([]array.Builder, 0, schema.NumFields()),
	}
	for _, f := range schema.fields {
		b.builders = append(b.builders, array.NewBuilder(memory.DefaultAllocator, f.Type.ArrowType()))
	}
	return b
}

// Len returns the number of rows appended since the last Build.
func (b *Builder) Len() int { return b.rows }

// AppendRow appends one row. Values are converted to the column type; a nil
// value appends a null.
func (b *Builder) AppendRow(values ...any) error {
	if len(values) != len(b.builders) {
		return fuseerrors.NewValidationError(fmt.Errorf("%w: %d values for a schema of %d fields",
			ErrShapeMismatch, len(values), len(b.builders)))
	}

	// Convert everything first so a bad value does not leave a ragged row.
	converted := make([]any, len(values))
	for i, v := range values {
		c, err := Convert(b.schema.fields[i].Type, v)
		if err != nil {
			return fuseerrors.NewValidationError(fmt.Errorf("column `%s`: %w", b.schema.fields[i].Name, err))
		}
		converted[i] = c
	}

	for i, v := range converted {
		appendValue(b.builders[i], v)
	}
	b.rows++
	return nil
}

// Build returns a block with the appended rows and resets the builder.
func (b *Builder) Build() (*Block, error) {
	columns := make([]arrow.Array, 0, len(b.builders))
	for _, builder := range b.builders {
		columns = append(columns, builder.NewArray())
	}
	defer func() {
		for _, c := range columns {
			c.Release()
		}
	}()

	b.rows = 0
	return New(b.schema, columns)
}

// Release frees the pending column builders.
func (b *Builder) Release() {
	for _, builder := range b.builders {
		builder.Release()
	}
}

// Convert converts a boxed value to the Go type stored for t. A nil value
// stays nil.
func Convert(t DataType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case TypeUInt64:
		return toUint64(v)
	case TypeInt64:
		return toInt64(v)
	case TypeFloat64:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case uint64:
			return float64(n), nil
		}
	case TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		case fmt.Stringer:
			return s.String(), nil
		case bool:
			return strconv.FormatBool(s), nil
		case int, int64, uint64, uint32, int32:
			return fmt.Sprint(s), nil
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("cannot store %T as %s", v, t)
}

func toUint64(v any) (any, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint:
		return safecast.Convert[uint64](n)
	case uint32:
		return uint64(n), nil
	case int:
		return safecast.Convert[uint64](n)
	case int64:
		return safecast.Convert[uint64](n)
	case int32:
		return safecast.Convert[uint64](n)
	default:
		return nil, fmt.Errorf("cannot store %T as %s", v, TypeUInt64)
	}
}

func toInt64(v any) (any, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return safecast.Convert[int64](n)
	case uint:
		return safecast.Convert[int64](n)
	case uint32:
		return int64(n), nil
	default:
		return nil, fmt.Errorf("cannot store %T as %s", v, TypeInt64)
	}
}

func appendValue(builder array.Builder, v any) {
	if v == nil {
		builder.AppendNull()
		return
	}

	switch b := builder.(type) {
	case *array.Uint64Builder:
		b.Append(v.(uint64))
	case *array.Int64Builder:
		b.Append(v.(int64))
	case *array.Float64Builder:
		b.Append(v.(float64))
	case *array.StringBuilder:
		b.Append(v.(string))
	case *array.BooleanBuilder:
		b.Append(v.(bool))
	default:
		fuseerrors.MustPanicf("unsupported arrow builder %T", builder)
	}
}

// UInt64Column returns a column holding the given values.
func UInt64Column(values ...uint64) arrow.Array {
	b := array.NewUint64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// Int64Column returns a column holding the given values.
func Int64Column(values ...int64) arrow.Array {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// Float64Column returns a column holding the given values.
func Float64Column(values ...float64) arrow.Array {
	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// StringColumn returns a column holding the given values.
func StringColumn(values ...string) arrow.Array {
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// BooleanColumn returns a column holding the given values.
func BooleanColumn(values ...bool) arrow.Array {
	b := array.NewBooleanBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}
