package system

import (
	"errors"
	"fmt"

	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/storages"
)

// ErrNumbersRequiresLimit is returned when reading system.numbers without a
// limit.
var ErrNumbersRequiresLimit = errors.New("system.numbers must be read with a limit")

var numbersSchema = datablock.NewSchema(
	datablock.NewField("number", datablock.TypeUInt64),
)

// NumbersTable yields the sequence 0, 1, 2, ... up to the pushed down limit.
// The sequence is split into at most max_threads parts, each produced in
// blocks of at most max_block_size rows.
type NumbersTable struct {
	storages.TableInfo
}

func NewNumbersTable(id uint64) *NumbersTable {
	return &NumbersTable{TableInfo: storages.TableInfo{
		TableID:     id,
		DBName:      Database,
		TableName:   "numbers",
		EngineName:  EngineNumbers,
		TableSchema: numbersSchema,
	}}
}

func (t *NumbersTable) ReadPlan(ctx storages.Context, extras *planner.Extras) (*planner.ReadDataSourcePlan, error) {
	if extras == nil || extras.Limit == nil {
		return nil, fuseerrors.NewValidationError(ErrNumbersRequiresLimit)
	}

	total := *extras.Limit
	partCount := min(ctx.Settings().MaxThreads(), total)

	parts := make([]planner.Part, 0, partCount)
	if partCount > 0 {
		size := total / partCount
		remainder := total % partCount
		var offset uint64
		for i := uint64(0); i < partCount; i++ {
			rows := size
			if i < remainder {
				rows++
			}
			parts = append(parts, planner.Part{
				Name:   fmt.Sprintf("numbers-%d", i),
				Offset: offset,
				Rows:   rows,
			})
			offset += rows
		}
	}

	return t.NewReadPlan(extras, parts, planner.Statistics{
		ReadRows:  total,
		ReadBytes: total * 8,
		Exact:     true,
	}, fmt.Sprintf("(Read from system.numbers table, Read Rows:%d, Read Bytes:%d)", total, total*8))
}

func (t *NumbersTable) Read(ctx storages.Context, plan *planner.ReadDataSourcePlan) (datastream.Stream, error) {
	blockSize := ctx.Settings().MaxBlockSize()
	parts := plan.Parts

	return datastream.FromSeq(plan.Schema, func(yield func(*datablock.Block, error) bool) {
		for _, part := range parts {
			end := part.Offset + part.Rows
			for start := part.Offset; start < end; {
				size := min(blockSize, end-start)
				values := make([]uint64, size)
				for i := range values {
					values[i] = start + uint64(i)
				}
				start += size

				b, err := newBlock(numbersSchema, datablock.UInt64Column(values...))
				if err == nil {
					b, err = storages.ProjectBlock(plan, b)
				}
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(b, nil) {
					return
				}
			}
		}
	}), nil
}

var _ storages.Table = (*NumbersTable)(nil)
