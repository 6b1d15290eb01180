package system

import (
	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/storages"
)

var usersSchema = datablock.NewSchema(
	datablock.NewField("name", datablock.TypeString),
	datablock.NewField("hostname", datablock.TypeString),
	datablock.NewField("auth_type", datablock.TypeString),
	datablock.NewField("privileges", datablock.TypeString),
)

// UsersTable lists the users known to the user manager.
type UsersTable struct {
	storages.TableInfo
}

func NewUsersTable(id uint64) *UsersTable {
	return &UsersTable{TableInfo: storages.TableInfo{
		TableID:     id,
		DBName:      Database,
		TableName:   "users",
		EngineName:  EngineUsers,
		TableSchema: usersSchema,
	}}
}

func (t *UsersTable) ReadPlan(_ storages.Context, extras *planner.Extras) (*planner.ReadDataSourcePlan, error) {
	// The number of users is only known once read.
	return t.NewReadPlan(extras, []planner.Part{{Name: t.TableName}}, planner.Statistics{}, "(Read from system.users table)")
}

func (t *UsersTable) Read(ctx storages.Context, plan *planner.ReadDataSourcePlan) (datastream.Stream, error) {
	return snapshotStream(plan, func() (*datablock.Block, error) {
		all, err := ctx.UserManager().GetUsers(ctx)
		if err != nil {
			return nil, err
		}

		b := datablock.NewBuilder(usersSchema)
		defer b.Release()
		for _, u := range all {
			if err := b.AppendRow(u.Name, u.Hostname, u.AuthType.String(), u.Privileges.String()); err != nil {
				return nil, err
			}
		}
		return b.Build()
	}), nil
}

var _ storages.Table = (*UsersTable)(nil)
