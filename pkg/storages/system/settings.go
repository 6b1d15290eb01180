package system

import (
	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/storages"
)

var settingsSchema = datablock.NewSchema(
	datablock.NewField("name", datablock.TypeString),
	datablock.NewField("value", datablock.TypeString),
	datablock.NewField("default", datablock.TypeString),
	datablock.NewField("description", datablock.TypeString),
)

// SettingsTable lists the settings of the reading query, one row per setting.
type SettingsTable struct {
	storages.TableInfo
}

func NewSettingsTable(id uint64) *SettingsTable {
	return &SettingsTable{TableInfo: storages.TableInfo{
		TableID:     id,
		DBName:      Database,
		TableName:   "settings",
		EngineName:  EngineSettings,
		TableSchema: settingsSchema,
	}}
}

func (t *SettingsTable) ReadPlan(ctx storages.Context, extras *planner.Extras) (*planner.ReadDataSourcePlan, error) {
	rows := uint64(len(ctx.Settings().Entries()))
	return singlePart(&t.TableInfo, extras, rows, "(Read from system.settings table)")
}

func (t *SettingsTable) Read(ctx storages.Context, plan *planner.ReadDataSourcePlan) (datastream.Stream, error) {
	return snapshotStream(plan, func() (*datablock.Block, error) {
		entries := ctx.Settings().Entries()
		names := make([]string, 0, len(entries))
		values := make([]string, 0, len(entries))
		defaults := make([]string, 0, len(entries))
		descriptions := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
			values = append(values, e.Value)
			defaults = append(defaults, e.Default)
			descriptions = append(descriptions, e.Description)
		}
		return newBlock(settingsSchema,
			datablock.StringColumn(names...),
			datablock.StringColumn(values...),
			datablock.StringColumn(defaults...),
			datablock.StringColumn(descriptions...),
		)
	}), nil
}

var _ storages.Table = (*SettingsTable)(nil)
