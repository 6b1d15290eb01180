// Package system implements the tables of the `system` database, which expose
// the live state of the engine.
package system

import (
	"github.com/apache/arrow/go/v13/arrow"

	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/storages"
)

// Database is the name of the system database.
const Database = "system"

const (
	EngineSettings = "SystemSettings"
	EngineUsers    = "SystemUsers"
	EngineTables   = "SystemTables"
	EngineClusters = "SystemClusters"
	EngineNumbers  = "SystemNumbers"
)

// Tables returns every system table, with ids allocated by nextID.
func Tables(nextID func() uint64) []storages.Table {
	return []storages.Table{
		NewSettingsTable(nextID()),
		NewUsersTable(nextID()),
		NewTablesTable(nextID()),
		NewClustersTable(nextID()),
		NewNumbersTable(nextID()),
	}
}

// singlePart is the plan of tables read as a whole.
func singlePart(info *storages.TableInfo, extras *planner.Extras, rows uint64, description string) (*planner.ReadDataSourcePlan, error) {
	return info.NewReadPlan(extras,
		[]planner.Part{{Name: info.TableName, Rows: rows}},
		planner.Statistics{ReadRows: rows, Exact: true},
		description,
	)
}

// snapshotStream returns a stream of one block built on first pull.
func snapshotStream(plan *planner.ReadDataSourcePlan, build func() (*datablock.Block, error)) datastream.Stream {
	return datastream.FromSeq(plan.Schema, func(yield func(*datablock.Block, error) bool) {
		b, err := build()
		if err == nil {
			b, err = storages.ProjectBlock(plan, b)
		}
		if err != nil {
			yield(nil, err)
			return
		}
		yield(b, nil)
	})
}

// newBlock assembles a block and drops the caller's column references.
func newBlock(schema *datablock.Schema, columns ...arrow.Array) (*datablock.Block, error) {
	defer func() {
		for _, c := range columns {
			c.Release()
		}
	}()
	return datablock.New(schema, columns)
}
