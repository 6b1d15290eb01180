// Package planner defines the plans handed to interpreters and the read plans
// tables produce for them.
package planner

import (
	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/settings"
	"github.com/fuselabs/fusequery/pkg/users"
)

// Kind identifies the statement a plan was built for.
type Kind string

const (
	KindGrantPrivilege  Kind = "GrantPrivilege"
	KindRevokePrivilege Kind = "RevokePrivilege"
	KindCreateUser      Kind = "CreateUser"
	KindDropUser        Kind = "DropUser"
	KindSetting         Kind = "Setting"
	KindCreateTable     Kind = "CreateTable"
	KindDropTable       Kind = "DropTable"
	KindTruncateTable   Kind = "TruncateTable"
	KindSelect          Kind = "Select"
	KindInsertInto      Kind = "InsertInto"
)

// Plan is an immutable, fully validated statement.
type Plan interface {
	// Kind returns the statement kind.
	Kind() Kind

	// Schema returns the schema of the statement's result.
	Schema() *datablock.Schema
}

var emptySchema = datablock.EmptySchema()

// GrantPrivilegePlan grants a set of privileges to a user, replacing the
// privileges it held.
type GrantPrivilegePlan struct {
	Name       string
	Hostname   string
	Privileges users.PrivilegeSet
}

func (p *GrantPrivilegePlan) Kind() Kind                { return KindGrantPrivilege }
func (p *GrantPrivilegePlan) Schema() *datablock.Schema { return emptySchema }

// RevokePrivilegePlan removes a set of privileges from a user.
type RevokePrivilegePlan struct {
	Name       string
	Hostname   string
	Privileges users.PrivilegeSet
}

func (p *RevokePrivilegePlan) Kind() Kind                { return KindRevokePrivilege }
func (p *RevokePrivilegePlan) Schema() *datablock.Schema { return emptySchema }

type CreateUserPlan struct {
	Name        string
	Hostname    string
	Password    string
	AuthType    users.AuthType
	IfNotExists bool
}

func (p *CreateUserPlan) Kind() Kind                { return KindCreateUser }
func (p *CreateUserPlan) Schema() *datablock.Schema { return emptySchema }

type DropUserPlan struct {
	Name     string
	Hostname string
	IfExists bool
}

func (p *DropUserPlan) Kind() Kind                { return KindDropUser }
func (p *DropUserPlan) Schema() *datablock.Schema { return emptySchema }

// SettingPlan assigns settings of the running query.
type SettingPlan struct {
	Vars []settings.Var
}

func (p *SettingPlan) Kind() Kind                { return KindSetting }
func (p *SettingPlan) Schema() *datablock.Schema { return emptySchema }

type CreateTablePlan struct {
	Database    string
	Table       string
	TableSchema *datablock.Schema
	Engine      string
	IfNotExists bool
}

func (p *CreateTablePlan) Kind() Kind                { return KindCreateTable }
func (p *CreateTablePlan) Schema() *datablock.Schema { return emptySchema }

type DropTablePlan struct {
	Database string
	Table    string
	IfExists bool
}

func (p *DropTablePlan) Kind() Kind                { return KindDropTable }
func (p *DropTablePlan) Schema() *datablock.Schema { return emptySchema }

// TruncateTablePlan drops the data of a table, keeping the table.
type TruncateTablePlan struct {
	Database string
	Table    string
}

func (p *TruncateTablePlan) Kind() Kind                { return KindTruncateTable }
func (p *TruncateTablePlan) Schema() *datablock.Schema { return emptySchema }

// SelectPlan reads a table, applying the push-downs of Extras.
type SelectPlan struct {
	Database     string
	Table        string
	Extras       Extras
	OutputSchema *datablock.Schema
}

func (p *SelectPlan) Kind() Kind { return KindSelect }

func (p *SelectPlan) Schema() *datablock.Schema {
	if p.OutputSchema == nil {
		return emptySchema
	}
	return p.OutputSchema
}

// InsertIntoPlan appends the blocks of its input to a table.
type InsertIntoPlan struct {
	Database    string
	Table       string
	TableSchema *datablock.Schema
}

func (p *InsertIntoPlan) Kind() Kind                { return KindInsertInto }
func (p *InsertIntoPlan) Schema() *datablock.Schema { return emptySchema }

var (
	_ Plan = (*GrantPrivilegePlan)(nil)
	_ Plan = (*RevokePrivilegePlan)(nil)
	_ Plan = (*CreateUserPlan)(nil)
	_ Plan = (*DropUserPlan)(nil)
	_ Plan = (*SettingPlan)(nil)
	_ Plan = (*CreateTablePlan)(nil)
	_ Plan = (*DropTablePlan)(nil)
	_ Plan = (*TruncateTablePlan)(nil)
	_ Plan = (*SelectPlan)(nil)
	_ Plan = (*InsertIntoPlan)(nil)
)
