package interpreters

import (
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/sessions"
)

func init() {
	Register(planner.KindSetting, NewSettingInterpreter)
}

// SettingInterpreter assigns settings of the running query. Either every
// assignment applies or none does.
type SettingInterpreter struct {
	lifecycle
	ctx  *sessions.QueryContext
	plan *planner.SettingPlan
}

func NewSettingInterpreter(ctx *sessions.QueryContext, plan planner.Plan) (Interpreter, error) {
	p, err := planAs[*planner.SettingPlan](plan)
	if err != nil {
		return nil, err
	}
	return &SettingInterpreter{ctx: ctx, plan: p}, nil
}

func (i *SettingInterpreter) Name() string { return "SettingInterpreter" }

func (i *SettingInterpreter) Execute(_ datastream.Stream) (datastream.Stream, error) {
	if err := i.begin(); err != nil {
		return nil, err
	}
	if err := i.ctx.Settings().SetAll(i.plan.Vars...); err != nil {
		return i.finish(nil, err)
	}
	return i.finish(datastream.Empty(i.plan.Schema()), nil)
}
