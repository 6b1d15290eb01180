package interpreters

import (
	"fmt"
	"slices"

	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/sessions"
)

func init() {
	Register(planner.KindSelect, NewSelectInterpreter)
}

// SelectInterpreter reads a table. Blocks are produced as the returned stream
// is consumed.
type SelectInterpreter struct {
	lifecycle
	ctx  *sessions.QueryContext
	plan *planner.SelectPlan
}

func NewSelectInterpreter(ctx *sessions.QueryContext, plan planner.Plan) (Interpreter, error) {
	p, err := planAs[*planner.SelectPlan](plan)
	if err != nil {
		return nil, err
	}
	return &SelectInterpreter{ctx: ctx, plan: p}, nil
}

func (i *SelectInterpreter) Name() string { return "SelectInterpreter" }

func (i *SelectInterpreter) Execute(_ datastream.Stream) (datastream.Stream, error) {
	if err := i.begin(); err != nil {
		return nil, err
	}
	return i.finish(i.execute())
}

func (i *SelectInterpreter) execute() (datastream.Stream, error) {
	table, err := i.ctx.Catalog().GetTable(i.plan.Database, i.plan.Table)
	if err != nil {
		return nil, err
	}

	extras := i.plan.Extras
	readPlan, err := table.ReadPlan(i.ctx, pushDown(extras))
	if err != nil {
		return nil, err
	}
	i.ctx.Logger().Trace().
		Str("description", readPlan.Description).
		Int("parts", len(readPlan.Parts)).
		Msg("planned read")

	stream, err := table.Read(i.ctx, readPlan)
	if err != nil {
		return nil, err
	}

	stream, err = applyExtras(stream, extras)
	if err != nil {
		return nil, err
	}

	if i.plan.OutputSchema != nil && !stream.Schema().Equal(i.plan.OutputSchema) {
		_ = stream.Close()
		return nil, fuseerrors.NewValidationError(fmt.Errorf(
			"select produces %s but the plan declares %s", stream.Schema(), i.plan.OutputSchema))
	}
	return stream, nil
}

// pushDown returns the extras handed to the table. The projection is widened
// with the filtered columns, and the limit is only pushed down when no filter
// could drop rows after it.
func pushDown(extras planner.Extras) *planner.Extras {
	pushed := planner.Extras{Filters: extras.Filters}
	if len(extras.Filters) == 0 {
		pushed.Limit = extras.Limit
	}
	if len(extras.Projection) > 0 {
		pushed.Projection = slices.Clone(extras.Projection)
		for _, f := range extras.Filters {
			if !slices.Contains(pushed.Projection, f.Column) {
				pushed.Projection = append(pushed.Projection, f.Column)
			}
		}
	}
	return &pushed
}

// applyExtras applies the extras to the stream read from the table. Tables
// may ignore the pushed down extras, so every one of them is applied again.
// The stream is closed on error.
func applyExtras(stream datastream.Stream, extras planner.Extras) (datastream.Stream, error) {
	if len(extras.Filters) > 0 {
		keep, err := planner.CompileFilters(stream.Schema(), extras.Filters)
		if err != nil {
			_ = stream.Close()
			return nil, err
		}
		stream = datastream.Filter(stream, keep)
	}

	if len(extras.Projection) > 0 && !slices.Equal(stream.Schema().FieldNames(), extras.Projection) {
		projected, err := datastream.Project(stream, extras.Projection...)
		if err != nil {
			_ = stream.Close()
			return nil, err
		}
		stream = projected
	}

	if extras.Limit != nil {
		stream = datastream.Limit(stream, *extras.Limit)
	}
	return stream, nil
}
