package interpreters

import (
	"errors"

	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/sessions"
	"github.com/fuselabs/fusequery/pkg/users"
)

func init() {
	Register(planner.KindCreateUser, NewCreateUserInterpreter)
	Register(planner.KindDropUser, NewDropUserInterpreter)
}

type CreateUserInterpreter struct {
	lifecycle
	ctx  *sessions.QueryContext
	plan *planner.CreateUserPlan
}

func NewCreateUserInterpreter(ctx *sessions.QueryContext, plan planner.Plan) (Interpreter, error) {
	p, err := planAs[*planner.CreateUserPlan](plan)
	if err != nil {
		return nil, err
	}
	return &CreateUserInterpreter{ctx: ctx, plan: p}, nil
}

func (i *CreateUserInterpreter) Name() string { return "CreateUserInterpreter" }

func (i *CreateUserInterpreter) Execute(_ datastream.Stream) (datastream.Stream, error) {
	if err := i.begin(); err != nil {
		return nil, err
	}

	info := users.NewUserInfo(i.plan.Name, i.plan.Hostname, i.plan.Password, i.plan.AuthType)
	err := i.ctx.UserManager().AddUser(i.ctx, info)
	if err != nil && !(i.plan.IfNotExists && errors.As(err, &users.ErrUserAlreadyExists{})) {
		return i.finish(nil, err)
	}
	return i.finish(datastream.Empty(i.plan.Schema()), nil)
}

type DropUserInterpreter struct {
	lifecycle
	ctx  *sessions.QueryContext
	plan *planner.DropUserPlan
}

func NewDropUserInterpreter(ctx *sessions.QueryContext, plan planner.Plan) (Interpreter, error) {
	p, err := planAs[*planner.DropUserPlan](plan)
	if err != nil {
		return nil, err
	}
	return &DropUserInterpreter{ctx: ctx, plan: p}, nil
}

func (i *DropUserInterpreter) Name() string { return "DropUserInterpreter" }

func (i *DropUserInterpreter) Execute(_ datastream.Stream) (datastream.Stream, error) {
	if err := i.begin(); err != nil {
		return nil, err
	}

	err := i.ctx.UserManager().DropUser(i.ctx, i.plan.Name, i.plan.Hostname)
	if err != nil && !(i.plan.IfExists && users.IsUserNotFound(err)) {
		return i.finish(nil, err)
	}
	return i.finish(datastream.Empty(i.plan.Schema()), nil)
}
