package interpreters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/planner"
	"github.com/fuselabs/fusequery/pkg/sessions"
	"github.com/fuselabs/fusequery/pkg/settings"
	"github.com/fuselabs/fusequery/pkg/storages/system"
	"github.com/fuselabs/fusequery/pkg/users"
)

func newQuery(t *testing.T, opts ...sessions.Option) *sessions.QueryContext {
	t.Helper()

	sm, err := sessions.NewSessionManager(append([]sessions.Option{sessions.WithNumCPUs(8)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sm.Close() })

	q, err := sm.NewQueryContext(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func execute(t *testing.T, q *sessions.QueryContext, plan planner.Plan, input datastream.Stream) (datastream.Stream, error) {
	t.Helper()

	i, err := Get(q, plan)
	require.NoError(t, err)
	return i.Execute(input)
}

func mustExecute(t *testing.T, q *sessions.QueryContext, plan planner.Plan, input datastream.Stream) datastream.Stream {
	t.Helper()

	stream, err := execute(t, q, plan, input)
	require.NoError(t, err)
	return stream
}

func requireEmptyResult(t *testing.T, q *sessions.QueryContext, plan planner.Plan, stream datastream.Stream) {
	t.Helper()

	require.True(t, stream.Schema().Equal(plan.Schema()))
	blocks, err := datastream.Collect(q, stream)
	require.NoError(t, err)
	require.Empty(t, blocks)
}

func addUser(t *testing.T, q *sessions.QueryContext, name, hostname string) {
	t.Helper()
	require.NoError(t, q.UserManager().AddUser(q, users.NewUserInfo(name, hostname, "", users.AuthNone)))
}

func TestInterpreterNames(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		plan         planner.Plan
		expectedName string
	}{
		{&planner.GrantPrivilegePlan{}, "GrantPrivilegeInterpreter"},
		{&planner.RevokePrivilegePlan{}, "RevokePrivilegeInterpreter"},
		{&planner.CreateUserPlan{}, "CreateUserInterpreter"},
		{&planner.DropUserPlan{}, "DropUserInterpreter"},
		{&planner.SettingPlan{}, "SettingInterpreter"},
		{&planner.CreateTablePlan{}, "CreateTableInterpreter"},
		{&planner.DropTablePlan{}, "DropTableInterpreter"},
		{&planner.TruncateTablePlan{}, "TruncateTableInterpreter"},
		{&planner.SelectPlan{}, "SelectInterpreter"},
		{&planner.InsertIntoPlan{}, "InsertIntoInterpreter"},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(string(tc.plan.Kind()), func(t *testing.T) {
			t.Parallel()

			q := newQuery(t)
			first, err := Get(q, tc.plan)
			require.NoError(t, err)
			second, err := Get(q, tc.plan)
			require.NoError(t, err)

			require.Equal(t, tc.expectedName, first.Name())
			require.Equal(t, first.Name(), first.Name())
			require.Equal(t, first.Name(), second.Name())
		})
	}
}

type unknownPlan struct{}

func (unknownPlan) Kind() planner.Kind        { return "Unknown" }
func (unknownPlan) Schema() *datablock.Schema { return datablock.EmptySchema() }

func TestGetUnsupportedPlan(t *testing.T) {
	t.Parallel()

	q := newQuery(t)

	_, err := Get(q, unknownPlan{})
	require.ErrorIs(t, err, ErrUnsupportedPlan)
	require.True(t, fuseerrors.IsKind(err, fuseerrors.KindValidation))

	_, err = Get(q, nil)
	require.ErrorIs(t, err, ErrUnsupportedPlan)

	// A constructor handed a plan of another kind is a registration bug.
	require.Panics(t, func() {
		_, _ = NewGrantPrivilegeInterpreter(q, &planner.DropUserPlan{})
	})
}

func TestRegisterTwicePanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		Register(planner.KindGrantPrivilege, NewGrantPrivilegeInterpreter)
	})
}

func TestExecuteOnce(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	addUser(t, q, "alice", "localhost")

	plan := &planner.GrantPrivilegePlan{Name: "alice", Hostname: "localhost", Privileges: users.AllPrivileges}
	i, err := Get(q, plan)
	require.NoError(t, err)

	grant := i.(*instrumented).Unwrap().(*GrantPrivilegeInterpreter)
	require.Equal(t, stateCreated, grant.current())

	stream, err := i.Execute(nil)
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	require.Equal(t, stateCompleted, grant.current())

	_, err = i.Execute(nil)
	require.ErrorIs(t, err, ErrAlreadyExecuted)
	require.Equal(t, stateCompleted, grant.current())
}

func TestFailedExecution(t *testing.T) {
	t.Parallel()

	q := newQuery(t)

	i, err := Get(q, &planner.GrantPrivilegePlan{Name: "nobody", Hostname: "localhost", Privileges: users.AllPrivileges})
	require.NoError(t, err)

	_, err = i.Execute(nil)
	require.True(t, users.IsUserNotFound(err))
	require.Equal(t, stateFailed, i.(*instrumented).Unwrap().(*GrantPrivilegeInterpreter).current())

	_, err = i.Execute(nil)
	require.ErrorIs(t, err, ErrAlreadyExecuted)
}

func TestExecuteSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	q := newQuery(t)

	stream := mustExecute(t, q, &planner.SettingPlan{
		Vars: []settings.Var{{Name: settings.MaxThreads, Value: "3"}},
	}, nil)
	require.NoError(t, stream.Close())

	_, err := execute(t, q, &planner.DropUserPlan{Name: "nobody", Hostname: "%"}, nil)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	for _, span := range spans {
		require.Equal(t, "interpreter.Execute", span.Name())
	}
	require.Contains(t, spans[0].Attributes(), attribute.String("ctx.id", q.ID()))
	require.Contains(t, spans[0].Attributes(), attribute.String("interpreter", "SettingInterpreter"))
	require.Contains(t, spans[1].Attributes(), attribute.String("interpreter", "DropUserInterpreter"))
	require.NotEmpty(t, spans[1].Events())
}

func TestDataBlockStreamsCarryPlanSchema(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	addUser(t, q, "alice", "localhost")

	plans := []planner.Plan{
		&planner.GrantPrivilegePlan{Name: "alice", Hostname: "localhost", Privileges: users.AllPrivileges},
		&planner.RevokePrivilegePlan{Name: "alice", Hostname: "localhost", Privileges: users.NewPrivilegeSet(users.PrivilegeDrop)},
		&planner.CreateUserPlan{Name: "bob", Hostname: "%", Password: "secret"},
		&planner.DropUserPlan{Name: "bob", Hostname: "%"},
		&planner.SettingPlan{Vars: []settings.Var{{Name: settings.MaxBlockSize, Value: "100"}}},
		&planner.CreateTablePlan{
			Database:    "default",
			Table:       "t",
			TableSchema: datablock.NewSchema(datablock.NewField("a", datablock.TypeUInt64)),
		},
		&planner.DropTablePlan{Database: "default", Table: "t"},
	}

	for _, plan := range plans {
		stream := mustExecute(t, q, plan, nil)
		requireEmptyResult(t, q, plan, stream)
	}
}

func TestInsertRequiresInput(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	_, err := execute(t, q, &planner.InsertIntoPlan{Database: "default", Table: "t"}, nil)
	require.ErrorIs(t, err, ErrMissingInput)
	require.True(t, fuseerrors.IsKind(err, fuseerrors.KindValidation))
}

func TestInsertIntoSystemTable(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	closed := false
	input := datastream.OnClose(datastream.Empty(datablock.EmptySchema()), func() error {
		closed = true
		return nil
	})

	_, err := execute(t, q, &planner.InsertIntoPlan{Database: system.Database, Table: "settings"}, input)
	require.ErrorIs(t, err, ErrNotWritable)
	require.True(t, fuseerrors.IsKind(err, fuseerrors.KindPermissionDenied))
	require.True(t, closed)
}

func TestInsertSchemaMismatch(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	schema := datablock.NewSchema(datablock.NewField("a", datablock.TypeUInt64))
	create := &planner.CreateTablePlan{Database: "default", Table: "t", TableSchema: schema}
	requireEmptyResult(t, q, create, mustExecute(t, q, create, nil))

	other := datablock.NewSchema(datablock.NewField("a", datablock.TypeString))
	_, err := execute(t, q, &planner.InsertIntoPlan{Database: "default", Table: "t"}, datastream.Empty(other))
	require.ErrorIs(t, err, datablock.ErrShapeMismatch)
	require.True(t, fuseerrors.IsKind(err, fuseerrors.KindValidation))
}

var errStoreUnreachable = errors.New("user store unreachable")

// unreachableManager fails every privilege mutation without reaching its
// delegate.
type unreachableManager struct {
	users.Manager
}

func (m unreachableManager) SetUserPrivileges(context.Context, string, string, users.PrivilegeSet) error {
	return errStoreUnreachable
}

func (m unreachableManager) RevokeUserPrivileges(context.Context, string, string, users.PrivilegeSet) error {
	return errStoreUnreachable
}

func TestUnreachableUserManager(t *testing.T) {
	t.Parallel()

	store, err := users.NewMemdbManager()
	require.NoError(t, err)

	q := newQuery(t, sessions.WithUserManager(unreachableManager{store}))
	addUser(t, q, "alice", "localhost")

	for _, plan := range []planner.Plan{
		&planner.GrantPrivilegePlan{Name: "alice", Hostname: "localhost", Privileges: users.AllPrivileges},
		&planner.RevokePrivilegePlan{Name: "alice", Hostname: "localhost", Privileges: users.AllPrivileges},
	} {
		stream, err := execute(t, q, plan, nil)
		require.Nil(t, stream)
		require.Equal(t, errStoreUnreachable, err)
	}

	found, err := store.GetUser(q, "alice", "localhost")
	require.NoError(t, err)
	require.True(t, found.Privileges.IsEmpty())
}

func TestClosedUserManager(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	addUser(t, q, "alice", "localhost")
	require.NoError(t, q.UserManager().Close())

	_, err := execute(t, q, &planner.GrantPrivilegePlan{Name: "alice", Hostname: "localhost", Privileges: users.AllPrivileges}, nil)
	require.ErrorIs(t, err, users.ErrStoreUnavailable)
	require.True(t, fuseerrors.IsKind(err, fuseerrors.KindUnavailable))
}
