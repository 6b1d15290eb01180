package interpreters

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/sessions"
	"github.com/fuselabs/fusequery/pkg/storages"
)

var (
	// ErrMissingInput is returned when an insert is executed without input.
	ErrMissingInput = errors.New("insert requires an input stream")

	// ErrNotWritable is returned when inserting into a table that does not
	// accept writes.
	ErrNotWritable = errors.New("table does not accept writes")
)

func init() {
	Register(planner.KindInsertInto, NewInsertIntoInterpreter)
}

// InsertIntoInterpreter appends its input to a table. The input is consumed
// and closed before Execute returns.
type InsertIntoInterpreter struct {
	lifecycle
	ctx  *sessions.QueryContext
	plan *planner.InsertIntoPlan
}

func NewInsertIntoInterpreter(ctx *sessions.QueryContext, plan planner.Plan) (Interpreter, error) {
	p, err := planAs[*planner.InsertIntoPlan](plan)
	if err != nil {
		return nil, err
	}
	return &InsertIntoInterpreter{ctx: ctx, plan: p}, nil
}

func (i *InsertIntoInterpreter) Name() string { return "InsertIntoInterpreter" }

func (i *InsertIntoInterpreter) Execute(input datastream.Stream) (datastream.Stream, error) {
	if err := i.begin(); err != nil {
		return nil, err
	}
	if input == nil {
		return i.finish(nil, fuseerrors.NewValidationError(ErrMissingInput))
	}

	rows, err := i.insert(input)
	if closeErr := input.Close(); closeErr != nil {
		err = multierror.Append(err, closeErr).ErrorOrNil()
	}
	if err != nil {
		return i.finish(nil, err)
	}

	i.ctx.Logger().Debug().
		Str("table", i.plan.Database+"."+i.plan.Table).
		Uint64("rows", rows).
		Msg("inserted rows")
	return i.finish(datastream.Empty(i.plan.Schema()), nil)
}

func (i *InsertIntoInterpreter) insert(input datastream.Stream) (uint64, error) {
	table, err := i.ctx.Catalog().GetTable(i.plan.Database, i.plan.Table)
	if err != nil {
		return 0, err
	}

	appender, ok := table.(storages.Appender)
	if !ok {
		return 0, fuseerrors.NewPermissionDeniedError(fmt.Errorf("%w: `%s.%s`", ErrNotWritable, i.plan.Database, i.plan.Table))
	}

	expected := i.plan.TableSchema
	if expected == nil {
		expected = table.Schema()
	}
	if !input.Schema().Equal(expected) {
		return 0, fuseerrors.NewValidationError(fmt.Errorf("%w: input %s, table %s",
			datablock.ErrShapeMismatch, input.Schema(), expected))
	}

	return appender.Append(i.ctx, input)
}
