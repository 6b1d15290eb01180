package system

import (
	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/storages"
)

var tablesSchema = datablock.NewSchema(
	datablock.NewField("database", datablock.TypeString),
	datablock.NewField("name", datablock.TypeString),
	datablock.NewField("engine", datablock.TypeString),
)

// TablesTable lists every table of the catalog.
type TablesTable struct {
	storages.TableInfo
}

func NewTablesTable(id uint64) *TablesTable {
	return &TablesTable{TableInfo: storages.TableInfo{
		TableID:     id,
		DBName:      Database,
		TableName:   "tables",
		EngineName:  EngineTables,
		TableSchema: tablesSchema,
	}}
}

func (t *TablesTable) ReadPlan(ctx storages.Context, extras *planner.Extras) (*planner.ReadDataSourcePlan, error) {
	rows := uint64(len(ctx.Catalog().GetAllTables()))
	return singlePart(&t.TableInfo, extras, rows, "(Read from system.tables table)")
}

func (t *TablesTable) Read(ctx storages.Context, plan *planner.ReadDataSourcePlan) (datastream.Stream, error) {
	return snapshotStream(plan, func() (*datablock.Block, error) {
		tables := ctx.Catalog().GetAllTables()
		databases := make([]string, 0, len(tables))
		names := make([]string, 0, len(tables))
		engines := make([]string, 0, len(tables))
		for _, table := range tables {
			databases = append(databases, table.Database())
			names = append(names, table.Name())
			engines = append(engines, table.Engine())
		}
		return newBlock(tablesSchema,
			datablock.StringColumn(databases...),
			datablock.StringColumn(names...),
			datablock.StringColumn(engines...),
		)
	}), nil
}

var _ storages.Table = (*TablesTable)(nil)
