package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fuselabs/fusequery/internal/logging"
	"github.com/fuselabs/fusequery/pkg/cluster"
	"github.com/fuselabs/fusequery/pkg/settings"
	"github.com/fuselabs/fusequery/pkg/storages"
	"github.com/fuselabs/fusequery/pkg/users"
)

// QueryContext is the environment of a single query. It is a standard
// context.Context, cancelled when the query is closed, and carries the
// query's id, its own settings and the shared engine state.
type QueryContext struct {
	context.Context
	cancel context.CancelFunc

	id        string
	startedAt time.Time
	settings  *settings.Settings
	manager   *SessionManager
	logger    zerolog.Logger
	closeOnce sync.Once
}

func newQueryContext(parent context.Context, sm *SessionManager) *QueryContext {
	id := uuid.NewString()
	ctx, logger := logging.ForQuery(parent, id)
	ctx, cancel := context.WithCancel(ctx)

	return &QueryContext{
		Context:   ctx,
		cancel:    cancel,
		id:        id,
		startedAt: time.Now(),
		settings:  sm.defaults.Clone(),
		manager:   sm,
		logger:    logger,
	}
}

// ID returns the unique id of the query.
func (q *QueryContext) ID() string { return q.id }

// Settings returns the query's settings, a copy of the defaults taken when the
// query started.
func (q *QueryContext) Settings() *settings.Settings { return q.settings }

func (q *QueryContext) SessionManager() *SessionManager { return q.manager }

func (q *QueryContext) UserManager() users.Manager { return q.manager.userManager }

func (q *QueryContext) Cluster() *cluster.Cluster { return q.manager.cluster }

func (q *QueryContext) Catalog() storages.Catalog { return q.manager.catalog }

// Logger returns the query's logger, which tags every event with the query id.
func (q *QueryContext) Logger() *zerolog.Logger { return &q.logger }

// Close cancels the query and releases its slot. It is idempotent.
func (q *QueryContext) Close() error {
	q.closeOnce.Do(func() {
		q.cancel()
		q.manager.release(q)
		q.logger.Trace().Dur("elapsed", time.Since(q.startedAt)).Msg("query finished")
	})
	return nil
}

var _ storages.Context = (*QueryContext)(nil)
