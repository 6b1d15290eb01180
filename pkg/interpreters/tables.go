package interpreters

import (
	"errors"
	"fmt"

	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/sessions"
	"github.com/fuselabs/fusequery/pkg/storages"
)

// ErrNotTruncatable is returned when truncating a table that cannot drop its
// data.
var ErrNotTruncatable = errors.New("table cannot be truncated")

func init() {
	Register(planner.KindCreateTable, NewCreateTableInterpreter)
	Register(planner.KindDropTable, NewDropTableInterpreter)
	Register(planner.KindTruncateTable, NewTruncateTableInterpreter)
}

type CreateTableInterpreter struct {
	lifecycle
	ctx  *sessions.QueryContext
	plan *planner.CreateTablePlan
}

func NewCreateTableInterpreter(ctx *sessions.QueryContext, plan planner.Plan) (Interpreter, error) {
	p, err := planAs[*planner.CreateTablePlan](plan)
	if err != nil {
		return nil, err
	}
	return &CreateTableInterpreter{ctx: ctx, plan: p}, nil
}

func (i *CreateTableInterpreter) Name() string { return "CreateTableInterpreter" }

func (i *CreateTableInterpreter) Execute(_ datastream.Stream) (datastream.Stream, error) {
	if err := i.begin(); err != nil {
		return nil, err
	}

	err := i.ctx.SessionManager().Catalog().CreateTable(
		i.plan.Database, i.plan.Table, i.plan.Engine, i.plan.TableSchema, i.plan.IfNotExists)
	if err != nil {
		return i.finish(nil, err)
	}
	return i.finish(datastream.Empty(i.plan.Schema()), nil)
}

type DropTableInterpreter struct {
	lifecycle
	ctx  *sessions.QueryContext
	plan *planner.DropTablePlan
}

func NewDropTableInterpreter(ctx *sessions.QueryContext, plan planner.Plan) (Interpreter, error) {
	p, err := planAs[*planner.DropTablePlan](plan)
	if err != nil {
		return nil, err
	}
	return &DropTableInterpreter{ctx: ctx, plan: p}, nil
}

func (i *DropTableInterpreter) Name() string { return "DropTableInterpreter" }

func (i *DropTableInterpreter) Execute(_ datastream.Stream) (datastream.Stream, error) {
	if err := i.begin(); err != nil {
		return nil, err
	}

	err := i.ctx.SessionManager().Catalog().DropTable(i.plan.Database, i.plan.Table, i.plan.IfExists)
	if err != nil {
		return i.finish(nil, err)
	}
	return i.finish(datastream.Empty(i.plan.Schema()), nil)
}

type TruncateTableInterpreter struct {
	lifecycle
	ctx  *sessions.QueryContext
	plan *planner.TruncateTablePlan
}

func NewTruncateTableInterpreter(ctx *sessions.QueryContext, plan planner.Plan) (Interpreter, error) {
	p, err := planAs[*planner.TruncateTablePlan](plan)
	if err != nil {
		return nil, err
	}
	return &TruncateTableInterpreter{ctx: ctx, plan: p}, nil
}

func (i *TruncateTableInterpreter) Name() string { return "TruncateTableInterpreter" }

func (i *TruncateTableInterpreter) Execute(_ datastream.Stream) (datastream.Stream, error) {
	if err := i.begin(); err != nil {
		return nil, err
	}

	table, err := i.ctx.SessionManager().Catalog().GetTable(i.plan.Database, i.plan.Table)
	if err != nil {
		return i.finish(nil, err)
	}

	truncater, ok := table.(storages.Truncater)
	if !ok {
		return i.finish(nil, fuseerrors.NewPermissionDeniedError(
			fmt.Errorf("%w: `%s.%s`", ErrNotTruncatable, i.plan.Database, i.plan.Table)))
	}
	if err := truncater.Truncate(i.ctx); err != nil {
		return i.finish(nil, err)
	}

	i.ctx.Logger().Debug().Str("table", i.plan.Database+"."+i.plan.Table).Msg("truncated table")
	return i.finish(datastream.Empty(i.plan.Schema()), nil)
}
