package interpreters

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/sessions"
	"github.com/fuselabs/fusequery/pkg/settings"
	"github.com/fuselabs/fusequery/pkg/storages/system"
)

var peopleSchema = datablock.NewSchema(
	datablock.NewField("id", datablock.TypeUInt64),
	datablock.NewField("name", datablock.TypeString),
)

func peopleBlock(t *testing.T, rows ...[]any) *datablock.Block {
	t.Helper()

	b := datablock.NewBuilder(peopleSchema)
	for _, row := range rows {
		require.NoError(t, b.AppendRow(row...))
	}
	block, err := b.Build()
	require.NoError(t, err)
	return block
}

func createPeople(t *testing.T, q *sessions.QueryContext, table string, blocks ...*datablock.Block) {
	t.Helper()

	create := &planner.CreateTablePlan{Database: "default", Table: table, TableSchema: peopleSchema}
	requireEmptyResult(t, q, create, mustExecute(t, q, create, nil))

	insert := &planner.InsertIntoPlan{Database: "default", Table: table, TableSchema: peopleSchema}
	requireEmptyResult(t, q, insert, mustExecute(t, q, insert, datastream.FromBlocks(peopleSchema, blocks...)))
}

func selectRows(t *testing.T, q *sessions.QueryContext, plan *planner.SelectPlan) [][]any {
	t.Helper()

	rows, err := datastream.Rows(q, mustExecute(t, q, plan, nil))
	require.NoError(t, err)
	return rows
}

func TestSelectSettings(t *testing.T) {
	t.Parallel()

	q := newQuery(t)

	set := &planner.SettingPlan{Vars: []settings.Var{{Name: settings.MaxThreads, Value: "2"}}}
	requireEmptyResult(t, q, set, mustExecute(t, q, set, nil))

	stream := mustExecute(t, q, &planner.SelectPlan{Database: system.Database, Table: "settings"}, nil)
	blocks, err := datastream.Collect(q, stream)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, 4, blocks[0].NumColumns())
	require.Equal(t, len(q.Settings().Entries()), blocks[0].NumRows())

	values := make(map[string]any, blocks[0].NumRows())
	for row := 0; row < blocks[0].NumRows(); row++ {
		values[blocks[0].Value(0, row).(string)] = blocks[0].Value(1, row)
	}
	require.Equal(t, "2", values[settings.MaxThreads])
}

func TestSettingIsAllOrNothing(t *testing.T) {
	t.Parallel()

	q := newQuery(t)

	_, err := execute(t, q, &planner.SettingPlan{Vars: []settings.Var{
		{Name: settings.MaxThreads, Value: "2"},
		{Name: settings.MaxBlockSize, Value: "0"},
	}}, nil)
	require.ErrorIs(t, err, settings.ErrInvalidSettingValue)
	require.Equal(t, uint64(8), q.Settings().MaxThreads())

	_, err = execute(t, q, &planner.SettingPlan{Vars: []settings.Var{{Name: "no_such_setting", Value: "1"}}}, nil)
	require.ErrorIs(t, err, settings.ErrUnknownSetting)
}

func TestSettingIsScopedToQuery(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	set := &planner.SettingPlan{Vars: []settings.Var{{Name: settings.MaxThreads, Value: "2"}}}
	requireEmptyResult(t, q, set, mustExecute(t, q, set, nil))

	other, err := q.SessionManager().NewQueryContext(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })
	require.Equal(t, uint64(8), other.Settings().MaxThreads())
}

func TestSelect(t *testing.T) {
	t.Parallel()

	limit := func(n uint64) *uint64 { return &n }

	tcs := []struct {
		name         string
		extras       planner.Extras
		expectedRows [][]any
	}{
		{
			"all rows",
			planner.Extras{},
			[][]any{{uint64(1), "ann"}, {uint64(2), "ben"}, {uint64(3), "cid"}, {uint64(4), "dot"}},
		},
		{
			"projection",
			planner.Extras{Projection: []string{"name"}},
			[][]any{{"ann"}, {"ben"}, {"cid"}, {"dot"}},
		},
		{
			"filter on projected away column",
			planner.Extras{
				Projection: []string{"name"},
				Filters:    []planner.Filter{{Column: "id", Op: planner.OpGt, Value: uint64(2)}},
			},
			[][]any{{"cid"}, {"dot"}},
		},
		{
			"limit across parts",
			planner.Extras{Limit: limit(3)},
			[][]any{{uint64(1), "ann"}, {uint64(2), "ben"}, {uint64(3), "cid"}},
		},
		{
			"filter then limit",
			planner.Extras{
				Filters: []planner.Filter{{Column: "name", Op: planner.OpNotEq, Value: "ann"}},
				Limit:   limit(2),
			},
			[][]any{{uint64(2), "ben"}, {uint64(3), "cid"}},
		},
		{
			"zero limit",
			planner.Extras{Limit: limit(0)},
			nil,
		},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			q := newQuery(t)
			createPeople(t, q, "people",
				peopleBlock(t, []any{uint64(1), "ann"}, []any{uint64(2), "ben"}),
				peopleBlock(t, []any{uint64(3), "cid"}, []any{uint64(4), "dot"}),
			)

			rows := selectRows(t, q, &planner.SelectPlan{Database: "default", Table: "people", Extras: tc.extras})
			require.Equal(t, tc.expectedRows, rows)
		})
	}
}

func TestSelectUnknownTable(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	_, err := execute(t, q, &planner.SelectPlan{Database: "default", Table: "missing"}, nil)
	require.True(t, fuseerrors.IsKind(err, fuseerrors.KindNotFound))
}

func TestSelectChecksDeclaredSchema(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	createPeople(t, q, "people", peopleBlock(t, []any{uint64(1), "ann"}))

	plan := &planner.SelectPlan{
		Database:     "default",
		Table:        "people",
		Extras:       planner.Extras{Projection: []string{"name"}},
		OutputSchema: datablock.NewSchema(datablock.NewField("name", datablock.TypeString)),
	}
	stream := mustExecute(t, q, plan, nil)
	require.True(t, stream.Schema().Equal(plan.Schema()))
	require.NoError(t, stream.Close())

	mismatch := &planner.SelectPlan{Database: "default", Table: "people", OutputSchema: plan.OutputSchema}
	_, err := execute(t, q, mismatch, nil)
	require.True(t, fuseerrors.IsKind(err, fuseerrors.KindValidation))
}

func TestInsertFromSelect(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	createPeople(t, q, "source",
		peopleBlock(t, []any{uint64(1), "ann"}, []any{uint64(2), "ben"}),
		peopleBlock(t, []any{uint64(3), "cid"}),
	)
	createPeople(t, q, "target")

	selected := mustExecute(t, q, &planner.SelectPlan{
		Database: "default",
		Table:    "source",
		Extras:   planner.Extras{Filters: []planner.Filter{{Column: "id", Op: planner.OpLtEq, Value: uint64(2)}}},
	}, nil)

	insert := &planner.InsertIntoPlan{Database: "default", Table: "target", TableSchema: peopleSchema}
	requireEmptyResult(t, q, insert, mustExecute(t, q, insert, selected))

	rows := selectRows(t, q, &planner.SelectPlan{Database: "default", Table: "target"})
	require.Equal(t, [][]any{{uint64(1), "ann"}, {uint64(2), "ben"}}, rows)
}

func TestSelectNumbers(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	require.NoError(t, q.Settings().SetMaxThreads(2))
	require.NoError(t, q.Settings().SetMaxBlockSize(10))

	limit := uint64(25)
	stream := mustExecute(t, q, &planner.SelectPlan{
		Database: system.Database,
		Table:    "numbers",
		Extras:   planner.Extras{Limit: &limit},
	}, nil)

	blocks, err := datastream.Collect(q, stream)
	require.NoError(t, err)

	total := 0
	for _, b := range blocks {
		require.LessOrEqual(t, b.NumRows(), 10)
		total += b.NumRows()
	}
	require.Equal(t, 25, total)
}

func TestAbandonedSelect(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	require.NoError(t, q.Settings().SetMaxBlockSize(10))

	limit := uint64(1000)
	stream := mustExecute(t, q, &planner.SelectPlan{
		Database: system.Database,
		Table:    "numbers",
		Extras:   planner.Extras{Limit: &limit},
	}, nil)

	b, err := stream.Next(q)
	require.NoError(t, err)
	require.Equal(t, 10, b.NumRows())

	require.NoError(t, stream.Close())
	_, err = stream.Next(q)
	require.ErrorIs(t, err, datastream.ErrStreamClosed)
}

func TestTruncateTable(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	createPeople(t, q, "truncated", peopleBlock(t, []any{uint64(1), "alice"}), peopleBlock(t, []any{uint64(2), "bob"}))

	all := &planner.SelectPlan{Database: "default", Table: "truncated"}
	require.Len(t, selectRows(t, q, all), 2)

	truncate := &planner.TruncateTablePlan{Database: "default", Table: "truncated"}
	requireEmptyResult(t, q, truncate, mustExecute(t, q, truncate, nil))
	require.Empty(t, selectRows(t, q, all))

	// The table survives and accepts new rows.
	insert := &planner.InsertIntoPlan{Database: "default", Table: "truncated", TableSchema: peopleSchema}
	requireEmptyResult(t, q, insert, mustExecute(t, q, insert,
		datastream.FromBlocks(peopleSchema, peopleBlock(t, []any{uint64(3), "carol"}))))
	require.Equal(t, [][]any{{uint64(3), "carol"}}, selectRows(t, q, all))
}

func TestTruncateTableErrors(t *testing.T) {
	t.Parallel()

	q := newQuery(t)

	for _, tc := range []struct {
		name         string
		plan         *planner.TruncateTablePlan
		expectedErr  error
		expectedKind fuseerrors.Kind
	}{
		{"system table", &planner.TruncateTablePlan{Database: system.Database, Table: "settings"}, ErrNotTruncatable, fuseerrors.KindPermissionDenied},
		{"unknown table", &planner.TruncateTablePlan{Database: "default", Table: "missing"}, nil, fuseerrors.KindNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := execute(t, q, tc.plan, nil)
			require.Error(t, err)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
			}
			require.Equal(t, tc.expectedKind, fuseerrors.KindOf(err))
		})
	}
}
