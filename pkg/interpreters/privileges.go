package interpreters

import (
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/sessions"
	"github.com/fuselabs/fusequery/pkg/users"
)

func init() {
	Register(planner.KindGrantPrivilege, NewGrantPrivilegeInterpreter)
	Register(planner.KindRevokePrivilege, NewRevokePrivilegeInterpreter)
}

// GrantPrivilegeInterpreter replaces the privileges of a user with the
// granted set.
type GrantPrivilegeInterpreter struct {
	lifecycle
	ctx  *sessions.QueryContext
	plan *planner.GrantPrivilegePlan
}

func NewGrantPrivilegeInterpreter(ctx *sessions.QueryContext, plan planner.Plan) (Interpreter, error) {
	p, err := planAs[*planner.GrantPrivilegePlan](plan)
	if err != nil {
		return nil, err
	}
	return &GrantPrivilegeInterpreter{ctx: ctx, plan: p}, nil
}

func (i *GrantPrivilegeInterpreter) Name() string { return "GrantPrivilegeInterpreter" }

// Execute stores the privileges before returning. Errors of the user manager
// are returned as is.
func (i *GrantPrivilegeInterpreter) Execute(_ datastream.Stream) (datastream.Stream, error) {
	if err := i.begin(); err != nil {
		return nil, err
	}

	err := i.ctx.UserManager().SetUserPrivileges(i.ctx, i.plan.Name, i.plan.Hostname, i.plan.Privileges)
	if err != nil {
		return i.finish(nil, err)
	}

	i.ctx.Logger().Info().
		Str("user", users.Identity(i.plan.Name, i.plan.Hostname)).
		Stringer("privileges", i.plan.Privileges).
		Msg("granted privileges")
	return i.finish(datastream.Empty(i.plan.Schema()), nil)
}

// RevokePrivilegeInterpreter removes privileges from a user.
type RevokePrivilegeInterpreter struct {
	lifecycle
	ctx  *sessions.QueryContext
	plan *planner.RevokePrivilegePlan
}

func NewRevokePrivilegeInterpreter(ctx *sessions.QueryContext, plan planner.Plan) (Interpreter, error) {
	p, err := planAs[*planner.RevokePrivilegePlan](plan)
	if err != nil {
		return nil, err
	}
	return &RevokePrivilegeInterpreter{ctx: ctx, plan: p}, nil
}

func (i *RevokePrivilegeInterpreter) Name() string { return "RevokePrivilegeInterpreter" }

func (i *RevokePrivilegeInterpreter) Execute(_ datastream.Stream) (datastream.Stream, error) {
	if err := i.begin(); err != nil {
		return nil, err
	}

	err := i.ctx.UserManager().RevokeUserPrivileges(i.ctx, i.plan.Name, i.plan.Hostname, i.plan.Privileges)
	if err != nil {
		return i.finish(nil, err)
	}

	i.ctx.Logger().Info().
		Str("user", users.Identity(i.plan.Name, i.plan.Hostname)).
		Stringer("privileges", i.plan.Privileges).
		Msg("revoked privileges")
	return i.finish(datastream.Empty(i.plan.Schema()), nil)
}
