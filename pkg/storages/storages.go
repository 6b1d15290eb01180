// Package storages defines tables: named, schema-bearing sources of blocks
// that plan their reads and then produce them lazily.
package storages

import (
	"context"

	"github.com/fuselabs/fusequery/pkg/cluster"
	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/settings"
	"github.com/fuselabs/fusequery/pkg/users"
)

// Context is the query-scoped environment a table reads in.
type Context interface {
	context.Context

	// ID returns the id of the running query.
	ID() string

	// Settings returns the settings of the running query.
	Settings() *settings.Settings

	UserManager() users.Manager
	Cluster() *cluster.Cluster
	Catalog() Catalog
}

// Catalog resolves tables.
type Catalog interface {
	// GetTable returns the table, or a not found error.
	GetTable(database, table string) (Table, error)

	// GetAllTables returns every table ordered by database and name.
	GetAllTables() []Table
}

// Table is a source of blocks.
type Table interface {
	Name() string
	Database() string
	ID() uint64
	Engine() string
	Schema() *datablock.Schema

	// ReadPlan computes, without reading any data, the parts to read and the
	// output schema once the push-downs of extras are applied.
	ReadPlan(ctx Context, extras *planner.Extras) (*planner.ReadDataSourcePlan, error)

	// Read returns a lazy stream of the blocks of the planned parts.
	Read(ctx Context, plan *planner.ReadDataSourcePlan) (datastream.Stream, error)
}

// Appender is implemented by tables that accept writes.
type Appender interface {
	// Append consumes the input stream, stores its blocks and returns the
	// number of rows written. The input is not closed.
	Append(ctx Context, input datastream.Stream) (uint64, error)
}

// Truncater is implemented by tables that can drop their data.
type Truncater interface {
	Truncate(ctx Context) error
}

// TableInfo holds the identity of a table and implements its accessors.
type TableInfo struct {
	TableID     uint64
	DBName      string
	TableName   string
	EngineName  string
	TableSchema *datablock.Schema
}

func (t *TableInfo) Name() string              { return t.TableName }
func (t *TableInfo) Database() string          { return t.DBName }
func (t *TableInfo) ID() uint64                { return t.TableID }
func (t *TableInfo) Engine() string            { return t.EngineName }
func (t *TableInfo) Schema() *datablock.Schema { return t.TableSchema }

// NewReadPlan returns a read plan of the table with its identity and output
// schema filled in.
func (t *TableInfo) NewReadPlan(extras *planner.Extras, parts []planner.Part, stats planner.Statistics, description string) (*planner.ReadDataSourcePlan, error) {
	schema, err := extras.OutputSchema(t.TableSchema)
	if err != nil {
		return nil, err
	}
	return &planner.ReadDataSourcePlan{
		Database:    t.DBName,
		Table:       t.TableName,
		TableID:     t.TableID,
		Schema:      schema,
		Parts:       parts,
		Statistics:  stats,
		Description: description,
		Extras:      extras,
	}, nil
}

// ProjectBlock applies the plan's projection to a block of the table.
func ProjectBlock(plan *planner.ReadDataSourcePlan, b *datablock.Block) (*datablock.Block, error) {
	if len(plan.Projection()) == 0 {
		return b, nil
	}
	return b.Project(plan.Projection()...)
}
