// Package memory implements the Memory engine: tables holding their blocks in
// process memory, one part per append.
package memory

import (
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/fuselabs/fusequery/internal/logging"
	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/storages"
)

// Engine is the engine name of memory tables.
const Engine = "Memory"

type part struct {
	name   string
	blocks []*datablock.Block
	rows   uint64
	bytes  uint64
}

// Table is a Memory engine table. It is safe for concurrent use.
type Table struct {
	storages.TableInfo

	mu    sync.RWMutex
	parts []*part
}

// New returns an empty memory table.
func New(id uint64, database, name string, schema *datablock.Schema) *Table {
	return &Table{TableInfo: storages.TableInfo{
		TableID:     id,
		DBName:      database,
		TableName:   name,
		EngineName:  Engine,
		TableSchema: schema,
	}}
}

func (t *Table) snapshot() []*part {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*part(nil), t.parts...)
}

// ReadPlan plans every part. With a limit, the trailing parts not needed to
// reach it are pruned.
func (t *Table) ReadPlan(_ storages.Context, extras *planner.Extras) (*planner.ReadDataSourcePlan, error) {
	limit, hasLimit := uint64(0), false
	if extras != nil && extras.Limit != nil && len(extras.Filters) == 0 {
		limit, hasLimit = *extras.Limit, true
	}

	var (
		parts []planner.Part
		stats = planner.Statistics{Exact: true}
	)
	for _, p := range t.snapshot() {
		if hasLimit && stats.ReadRows >= limit {
			break
		}
		parts = append(parts, planner.Part{Name: p.name, Rows: p.rows})
		stats.ReadRows += p.rows
		stats.ReadBytes += p.bytes
	}

	description := fmt.Sprintf("(Read from %s.%s table, Read Rows:%d, Read Bytes:%d)",
		t.DBName, t.TableName, stats.ReadRows, stats.ReadBytes)
	return t.NewReadPlan(extras, parts, stats, description)
}

// Read streams the blocks of the planned parts, in plan order.
func (t *Table) Read(_ storages.Context, plan *planner.ReadDataSourcePlan) (datastream.Stream, error) {
	byName := make(map[string]*part, len(plan.Parts))
	for _, p := range t.snapshot() {
		byName[p.name] = p
	}

	planned := make([]*part, 0, len(plan.Parts))
	for _, pp := range plan.Parts {
		p, ok := byName[pp.Name]
		if !ok {
			return nil, fuseerrors.NewNotFoundError(fmt.Errorf("part `%s` of %s.%s no longer exists", pp.Name, t.DBName, t.TableName))
		}
		planned = append(planned, p)
	}

	return datastream.FromSeq(plan.Schema, func(yield func(*datablock.Block, error) bool) {
		for _, p := range planned {
			for _, b := range p.blocks {
				projected, err := storages.ProjectBlock(plan, b)
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(projected, nil) {
					return
				}
			}
		}
	}), nil
}

// Append stores the blocks of the input as a new part. Nothing is stored if
// the input fails.
func (t *Table) Append(ctx storages.Context, input datastream.Stream) (uint64, error) {
	p := &part{name: xid.New().String()}
	for b, err := range datastream.Blocks(ctx, input) {
		if err != nil {
			return 0, err
		}
		if !b.Schema().Equal(t.TableSchema) {
			return 0, fuseerrors.NewValidationError(fmt.Errorf("%w: cannot append %s to %s.%s of %s",
				datablock.ErrShapeMismatch, b.Schema(), t.DBName, t.TableName, t.TableSchema))
		}
		if b.NumRows() == 0 {
			continue
		}
		p.blocks = append(p.blocks, b)
		p.rows += uint64(b.NumRows())
		p.bytes += b.MemorySize()
	}

	if p.rows == 0 {
		return 0, nil
	}

	t.mu.Lock()
	t.parts = append(t.parts, p)
	t.mu.Unlock()

	logging.Ctx(ctx).Debug().
		Str("table", t.DBName+"."+t.TableName).
		Str("part", p.name).
		Uint64("rows", p.rows).
		Msg("appended part to memory table")
	return p.rows, nil
}

// Truncate drops every part.
func (t *Table) Truncate(_ storages.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parts = nil
	return nil
}

var (
	_ storages.Table     = (*Table)(nil)
	_ storages.Appender  = (*Table)(nil)
	_ storages.Truncater = (*Table)(nil)
)
