package system

import (
	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/storages"
)

var clustersSchema = datablock.NewSchema(
	datablock.NewField("name", datablock.TypeString),
	datablock.NewField("address", datablock.TypeString),
	datablock.NewField("priority", datablock.TypeUInt64),
	datablock.NewField("local", datablock.TypeBoolean),
)

// ClustersTable lists the nodes of the cluster.
type ClustersTable struct {
	storages.TableInfo
}

func NewClustersTable(id uint64) *ClustersTable {
	return &ClustersTable{TableInfo: storages.TableInfo{
		TableID:     id,
		DBName:      Database,
		TableName:   "clusters",
		EngineName:  EngineClusters,
		TableSchema: clustersSchema,
	}}
}

func (t *ClustersTable) ReadPlan(ctx storages.Context, extras *planner.Extras) (*planner.ReadDataSourcePlan, error) {
	rows := uint64(len(ctx.Cluster().GetNodes()))
	return singlePart(&t.TableInfo, extras, rows, "(Read from system.clusters table)")
}

func (t *ClustersTable) Read(ctx storages.Context, plan *planner.ReadDataSourcePlan) (datastream.Stream, error) {
	return snapshotStream(plan, func() (*datablock.Block, error) {
		b := datablock.NewBuilder(clustersSchema)
		defer b.Release()
		for _, n := range ctx.Cluster().GetNodes() {
			if err := b.AppendRow(n.Name, n.Address, uint64(n.Priority), n.Local); err != nil {
				return nil, err
			}
		}
		return b.Build()
	}), nil
}

var _ storages.Table = (*ClustersTable)(nil)
