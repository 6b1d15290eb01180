package users_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/users"
	"github.com/fuselabs/fusequery/pkg/users/test"
)

var fastRetries = users.RetryOptions{
	MaxRetries:      3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

func TestObservableManager(t *testing.T) {
	test.All(t, test.ManagerTesterFunc(func() (users.Manager, error) {
		m, err := users.NewMemdbManager()
		if err != nil {
			return nil, err
		}
		return users.NewObservableManager(m), nil
	}))
}

func TestRetryingManager(t *testing.T) {
	test.All(t, test.ManagerTesterFunc(func() (users.Manager, error) {
		m, err := users.NewMemdbManager()
		if err != nil {
			return nil, err
		}
		return users.NewRetryingManager(m, fastRetries), nil
	}))
}

// flakyManager fails with an unavailable error a fixed number of times.
type flakyManager struct {
	users.Manager
	failures atomic.Int32
	calls    atomic.Int32
	err      error
}

func (f *flakyManager) SetUserPrivileges(ctx context.Context, name, hostname string, privileges users.PrivilegeSet) error {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return f.err
	}
	return f.Manager.SetUserPrivileges(ctx, name, hostname, privileges)
}

func newFlaky(t *testing.T, failures int32, err error) *flakyManager {
	t.Helper()

	m, err2 := users.NewMemdbManager()
	require.NoError(t, err2)
	require.NoError(t, m.AddUser(context.Background(), users.NewUserInfo("alice", "localhost", "", users.AuthNone)))

	f := &flakyManager{Manager: m, err: err}
	f.failures.Store(failures)
	return f
}

func TestRetryingManagerRetriesUnavailable(t *testing.T) {
	t.Parallel()

	flaky := newFlaky(t, 2, users.ErrStoreUnavailable)
	m := users.NewRetryingManager(flaky, fastRetries)

	require.NoError(t, m.SetUserPrivileges(context.Background(), "alice", "localhost", users.AllPrivileges))
	require.Equal(t, int32(3), flaky.calls.Load())

	found, err := m.GetUser(context.Background(), "alice", "localhost")
	require.NoError(t, err)
	require.Equal(t, users.AllPrivileges, found.Privileges)
}

func TestRetryingManagerGivesUp(t *testing.T) {
	t.Parallel()

	flaky := newFlaky(t, 100, users.ErrStoreUnavailable)
	m := users.NewRetryingManager(flaky, fastRetries)

	err := m.SetUserPrivileges(context.Background(), "alice", "localhost", users.AllPrivileges)
	require.ErrorIs(t, err, users.ErrStoreUnavailable)
	require.Equal(t, int32(fastRetries.MaxRetries+1), flaky.calls.Load())
}

func TestRetryingManagerCancelledReturnsStoreError(t *testing.T) {
	t.Parallel()

	flaky := newFlaky(t, 100, users.ErrStoreUnavailable)
	m := users.NewRetryingManager(flaky, users.RetryOptions{
		MaxRetries:      3,
		InitialInterval: time.Hour,
		MaxInterval:     time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.SetUserPrivileges(ctx, "alice", "localhost", users.AllPrivileges)
	require.ErrorIs(t, err, users.ErrStoreUnavailable)
	require.NotErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(1), flaky.calls.Load())
}

func TestRetryingManagerDoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()

	denied := fuseerrors.NewPermissionDeniedError(errors.New("denied"))
	flaky := newFlaky(t, 100, denied)
	m := users.NewRetryingManager(flaky, fastRetries)

	err := m.SetUserPrivileges(context.Background(), "alice", "localhost", users.AllPrivileges)
	require.ErrorIs(t, err, denied)
	require.Equal(t, int32(1), flaky.calls.Load())
}

func TestObservableManagerRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	m, err := users.NewMemdbManager()
	require.NoError(t, err)
	observed := users.NewObservableManager(m)

	err = observed.SetUserPrivileges(context.Background(), "nobody", "localhost", users.AllPrivileges)
	require.True(t, users.IsUserNotFound(err))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "SetUserPrivileges", spans[0].Name())
	require.Len(t, spans[0].Events(), 1)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "nobody", attrs["user.name"])
	require.Equal(t, "localhost", attrs["user.hostname"])
}
