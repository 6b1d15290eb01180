package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/stretchr/testify/require"

	"github.com/fuselabs/fusequery/pkg/cluster"
	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/settings"
	"github.com/fuselabs/fusequery/pkg/storages"
	"github.com/fuselabs/fusequery/pkg/users"
)

type testContext struct {
	context.Context
}

func (testContext) ID() string                   { return "test-query" }
func (testContext) Settings() *settings.Settings { return settings.New() }
func (testContext) UserManager() users.Manager   { return nil }
func (testContext) Cluster() *cluster.Cluster    { return nil }
func (testContext) Catalog() storages.Catalog    { return nil }

var eventsSchema = datablock.NewSchema(
	datablock.NewField("id", datablock.TypeInt64),
	datablock.NewField("kind", datablock.TypeString),
)

func eventsBlock(t *testing.T, ids []int64, kinds []string) *datablock.Block {
	t.Helper()
	b, err := datablock.New(eventsSchema, []arrow.Array{
		datablock.Int64Column(ids...),
		datablock.StringColumn(kinds...),
	})
	require.NoError(t, err)
	return b
}

func readAll(t *testing.T, table *Table, extras *planner.Extras) (*planner.ReadDataSourcePlan, [][]any) {
	t.Helper()
	ctx := testContext{context.Background()}

	plan, err := table.ReadPlan(ctx, extras)
	require.NoError(t, err)
	stream, err := table.Read(ctx, plan)
	require.NoError(t, err)
	rows, err := datastream.Rows(ctx, stream)
	require.NoError(t, err)
	return plan, rows
}

func TestAppendAndRead(t *testing.T) {
	t.Parallel()

	ctx := testContext{context.Background()}
	table := New(100, "default", "events", eventsSchema)
	require.Equal(t, Engine, table.Engine())

	_, rows := readAll(t, table, nil)
	require.Empty(t, rows)

	n, err := table.Append(ctx, datastream.FromBlocks(eventsSchema,
		eventsBlock(t, []int64{1, 2}, []string{"a", "b"}),
		eventsBlock(t, []int64{3}, []string{"c"}),
	))
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)

	n, err = table.Append(ctx, datastream.FromBlocks(eventsSchema, eventsBlock(t, []int64{4}, []string{"d"})))
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)

	plan, rows := readAll(t, table, nil)
	require.Len(t, plan.Parts, 2)
	require.Equal(t, uint64(4), plan.Statistics.ReadRows)
	require.Equal(t, [][]any{
		{int64(1), "a"},
		{int64(2), "b"},
		{int64(3), "c"},
		{int64(4), "d"},
	}, rows)

	plan, rows = readAll(t, table, &planner.Extras{Projection: []string{"kind"}})
	require.Equal(t, []string{"kind"}, plan.Schema.FieldNames())
	require.Equal(t, [][]any{{"a"}, {"b"}, {"c"}, {"d"}}, rows)
}

func TestReadPlanPrunesPartsByLimit(t *testing.T) {
	t.Parallel()

	ctx := testContext{context.Background()}
	table := New(100, "default", "events", eventsSchema)
	for i := int64(0); i < 5; i++ {
		_, err := table.Append(ctx, datastream.FromBlocks(eventsSchema,
			eventsBlock(t, []int64{i * 2, i*2 + 1}, []string{"x", "y"})))
		require.NoError(t, err)
	}

	extras := planner.Extras{}.WithLimit(3)
	plan, err := table.ReadPlan(ctx, &extras)
	require.NoError(t, err)
	require.Len(t, plan.Parts, 2)

	// Filters make the number of rows per part unknown.
	extras.Filters = []planner.Filter{{Column: "kind", Op: planner.OpEq, Value: "y"}}
	plan, err = table.ReadPlan(ctx, &extras)
	require.NoError(t, err)
	require.Len(t, plan.Parts, 5)
}

func TestAppendRejectsForeignSchema(t *testing.T) {
	t.Parallel()

	ctx := testContext{context.Background()}
	table := New(100, "default", "events", eventsSchema)

	other := datablock.NewSchema(datablock.NewField("id", datablock.TypeInt64))
	b, err := datablock.New(other, []arrow.Array{datablock.Int64Column(1)})
	require.NoError(t, err)

	_, err = table.Append(ctx, datastream.FromBlocks(other, b))
	require.ErrorIs(t, err, datablock.ErrShapeMismatch)

	_, rows := readAll(t, table, nil)
	require.Empty(t, rows)
}

func TestAppendFailingInputStoresNothing(t *testing.T) {
	t.Parallel()

	ctx := testContext{context.Background()}
	table := New(100, "default", "events", eventsSchema)

	boom := errors.New("boom")
	input := datastream.FromSeq(eventsSchema, func(yield func(*datablock.Block, error) bool) {
		if !yield(eventsBlock(t, []int64{1}, []string{"a"}), nil) {
			return
		}
		yield(nil, boom)
	})
	defer input.Close()

	_, err := table.Append(ctx, input)
	require.ErrorIs(t, err, boom)

	_, rows := readAll(t, table, nil)
	require.Empty(t, rows)
}

func TestTruncateInvalidatesPlans(t *testing.T) {
	t.Parallel()

	ctx := testContext{context.Background()}
	table := New(100, "default", "events", eventsSchema)
	_, err := table.Append(ctx, datastream.FromBlocks(eventsSchema, eventsBlock(t, []int64{1}, []string{"a"})))
	require.NoError(t, err)

	plan, err := table.ReadPlan(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, table.Truncate(ctx))

	_, err = table.Read(ctx, plan)
	require.True(t, fuseerrors.IsKind(err, fuseerrors.KindNotFound))
}
