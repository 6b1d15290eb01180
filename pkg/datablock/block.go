package datablock

import (
	"errors"
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/ccoveille/go-safecast/v2"

	"github.com/fuselabs/fusequery/pkg/fuseerrors"
)

// ErrShapeMismatch is returned when columns disagree with their schema or
// with each other.
var ErrShapeMismatch = errors.New("data block shape mismatch")

// Block is a batch of rows stored column-wise. The number of columns always
// equals the schema length and all columns have the same number of rows.
type Block struct {
	schema *Schema
	record arrow.Record
}

// New validates the columns against the schema and assembles a block. The
// block takes its own reference on every column.
func New(schema *Schema, columns []arrow.Array) (*Block, error) {
	if len(columns) != schema.NumFields() {
		return nil, fuseerrors.NewValidationError(fmt.Errorf("%w: %d columns for a schema of %d fields",
			ErrShapeMismatch, len(columns), schema.NumFields()))
	}

	rows := 0
	for i, col := range columns {
		field := schema.Field(i)
		if col == nil {
			return nil, fuseerrors.NewValidationError(fmt.Errorf("%w: column `%s` is missing", ErrShapeMismatch, field.Name))
		}
		if !arrow.TypeEqual(col.DataType(), field.Type.ArrowType()) {
			return nil, fuseerrors.NewValidationError(fmt.Errorf("%w: column `%s` has type %s, expected %s",
				ErrShapeMismatch, field.Name, col.DataType(), field.Type))
		}
		if i == 0 {
			rows = col.Len()
		} else if col.Len() != rows {
			return nil, fuseerrors.NewValidationError(fmt.Errorf("%w: column `%s` has %d rows, expected %d",
				ErrShapeMismatch, field.Name, col.Len(), rows))
		}
	}

	return &Block{
		schema: schema,
		record: array.NewRecord(schema.Arrow(), columns, int64(rows)),
	}, nil
}

// MustNew is New for statically known shapes.
func MustNew(schema *Schema, columns []arrow.Array) *Block {
	b, err := New(schema, columns)
	if err != nil {
		fuseerrors.MustPanicf("invalid data block: %s", err)
	}
	return b
}

// Empty returns a block with the schema's columns and no rows.
func Empty(schema *Schema) *Block {
	columns := make([]arrow.Array, 0, schema.NumFields())
	for _, f := range schema.fields {
		b := array.NewBuilder(memory.DefaultAllocator, f.Type.ArrowType())
		columns = append(columns, b.NewArray())
		b.Release()
	}
	block := MustNew(schema, columns)
	for _, c := range columns {
		c.Release()
	}
	return block
}

// Schema returns the block's schema.
func (b *Block) Schema() *Schema { return b.schema }

// NumColumns returns the number of columns.
func (b *Block) NumColumns() int { return b.schema.NumFields() }

// NumRows returns the number of rows.
func (b *Block) NumRows() int { return int(b.record.NumRows()) }

// Column returns the column at index i.
func (b *Block) Column(i int) arrow.Array { return b.record.Column(i) }

// ColumnByName returns the named column.
func (b *Block) ColumnByName(name string) (arrow.Array, error) {
	i, ok := b.schema.IndexOf(name)
	if !ok {
		return nil, fuseerrors.NewValidationError(fmt.Errorf("unknown column `%s`", name))
	}
	return b.record.Column(i), nil
}

// Record returns the underlying arrow record.
func (b *Block) Record() arrow.Record { return b.record }

// Value returns the boxed value at the given column and row.
func (b *Block) Value(col, row int) any {
	return valueAt(b.record.Column(col), row)
}

// Row returns the boxed values of a row.
func (b *Block) Row(row int) []any {
	out := make([]any, b.NumColumns())
	for i := range out {
		out[i] = b.Value(i, row)
	}
	return out
}

// Project returns a block with only the named columns, in the given order.
func (b *Block) Project(names ...string) (*Block, error) {
	schema, err := b.schema.Project(names...)
	if err != nil {
		return nil, fuseerrors.NewValidationError(err)
	}

	columns := make([]arrow.Array, 0, len(names))
	for _, name := range names {
		i, _ := b.schema.IndexOf(name)
		columns = append(columns, b.record.Column(i))
	}
	return New(schema, columns)
}

// Slice returns the rows [offset, offset+length) as a new block sharing the
// same buffers.
func (b *Block) Slice(offset, length int) *Block {
	offset = min(max(offset, 0), b.NumRows())
	end := min(offset+max(length, 0), b.NumRows())
	return &Block{
		schema: b.schema,
		record: b.record.NewSlice(int64(offset), int64(end)),
	}
}

// Take returns a block with the rows at the given indices, in order.
func (b *Block) Take(rows []int) (*Block, error) {
	columns := make([]arrow.Array, 0, b.NumColumns())
	defer func() {
		for _, c := range columns {
			c.Release()
		}
	}()

	for i := 0; i < b.NumColumns(); i++ {
		src := b.record.Column(i)
		builder := array.NewBuilder(memory.DefaultAllocator, src.DataType())
		builder.Reserve(len(rows))
		for _, row := range rows {
			if row < 0 || row >= src.Len() {
				builder.Release()
				return nil, fuseerrors.NewValidationError(fmt.Errorf("row %d out of range", row))
			}
			appendFrom(builder, src, row)
		}
		columns = append(columns, builder.NewArray())
		builder.Release()
	}
	return New(b.schema, columns)
}

// MemorySize returns the number of bytes held by the block's buffers.
func (b *Block) MemorySize() uint64 {
	var total uint64
	for _, col := range b.record.Columns() {
		for _, buf := range col.Data().Buffers() {
			if buf == nil {
				continue
			}
			n, err := safecast.Convert[uint64](buf.Len())
			if err == nil {
				total += n
			}
		}
	}
	return total
}

// Release drops the block's reference on its buffers.
func (b *Block) Release() {
	b.record.Release()
}

func valueAt(arr arrow.Array, row int) any {
	if arr.IsNull(row) {
		return nil
	}

	switch a := arr.(type) {
	case *array.Uint64:
		return a.Value(row)
	case *array.Int64:
		return a.Value(row)
	case *array.Float64:
		return a.Value(row)
	case *array.String:
		return a.Value(row)
	case *array.Boolean:
		return a.Value(row)
	default:
		return fuseerrors.MustBugf("unsupported arrow array %T", arr)
	}
}

func appendFrom(builder array.Builder, src arrow.Array, row int) {
	if src.IsNull(row) {
		builder.AppendNull()
		return
	}

	switch b := builder.(type) {
	case *array.Uint64Builder:
		b.Append(src.(*array.Uint64).Value(row))
	case *array.Int64Builder:
		b.Append(src.(*array.Int64).Value(row))
	case *array.Float64Builder:
		b.Append(src.(*array.Float64).Value(row))
	case *array.StringBuilder:
		b.Append(src.(*array.String).Value(row))
	case *array.BooleanBuilder:
		b.Append(src.(*array.Boolean).Value(row))
	default:
		fuseerrors.MustPanicf("unsupported arrow builder %T", builder)
	}
}

// FromRecord wraps an arrow record whose column types are all supported. The
// block takes its own reference on the record's columns.
func FromRecord(record arrow.Record) (*Block, error) {
	fields := make([]Field, 0, record.NumCols())
	for _, f := range record.Schema().Fields() {
		t, ok := fromArrowType(f.Type)
		if !ok {
			return nil, fuseerrors.NewValidationError(fmt.Errorf("column `%s` has unsupported type %s", f.Name, f.Type))
		}
		fields = append(fields, NewField(f.Name, t))
	}
	return New(NewSchema(fields...), record.Columns())
}
