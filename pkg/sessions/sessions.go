// Package sessions holds the process-wide session manager and the per-query
// contexts it hands out.
package sessions

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/ccoveille/go-safecast/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/semaphore"

	"github.com/fuselabs/fusequery/internal/logging"
	"github.com/fuselabs/fusequery/pkg/catalog"
	"github.com/fuselabs/fusequery/pkg/closer"
	"github.com/fuselabs/fusequery/pkg/cluster"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/settings"
	"github.com/fuselabs/fusequery/pkg/users"
)

// ErrSessionManagerClosed is returned when starting a query after Close.
var ErrSessionManagerClosed = fuseerrors.NewUnavailableError(errors.New("session manager is closed"))

type options struct {
	userManager      users.Manager
	cluster          *cluster.Cluster
	catalog          *catalog.Catalog
	numCPUs          uint64
	maxActiveQueries int64
}

// Option configures a SessionManager.
type Option func(*options)

// WithUserManager sets the user manager. The session manager closes it.
func WithUserManager(m users.Manager) Option {
	return func(o *options) { o.userManager = m }
}

func WithCluster(c *cluster.Cluster) Option {
	return func(o *options) { o.cluster = c }
}

func WithCatalog(c *catalog.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithNumCPUs sets the number of CPUs, which max_threads defaults to.
func WithNumCPUs(n uint64) Option {
	return func(o *options) { o.numCPUs = n }
}

// WithMaxActiveQueries bounds the number of queries running at once. Zero
// selects twice the number of CPUs.
func WithMaxActiveQueries(n int64) Option {
	return func(o *options) { o.maxActiveQueries = n }
}

// ProcessInfo describes a live query.
type ProcessInfo struct {
	ID        string
	StartedAt time.Time
}

// SessionManager owns the shared state of the engine: the user manager, the
// cluster, the catalog and the default settings. It bounds the number of
// active queries.
type SessionManager struct {
	userManager users.Manager
	cluster     *cluster.Cluster
	catalog     *catalog.Catalog
	defaults    *settings.Settings

	slots     *semaphore.Weighted
	processes *xsync.Map[string, *QueryContext]
	closed    atomic.Bool
	closers   closer.Stack
}

// NewSessionManager returns a session manager. Collaborators not given as
// options are created empty.
func NewSessionManager(opts ...Option) (*SessionManager, error) {
	cpus, _ := safecast.Convert[uint64](runtime.NumCPU())
	o := &options{numCPUs: cpus}
	for _, opt := range opts {
		opt(o)
	}

	if o.userManager == nil {
		m, err := users.NewMemdbManager()
		if err != nil {
			return nil, err
		}
		o.userManager = m
	}
	if o.cluster == nil {
		c, err := cluster.New()
		if err != nil {
			return nil, err
		}
		o.cluster = c
	}
	if o.catalog == nil {
		o.catalog = catalog.New()
	}
	if o.maxActiveQueries <= 0 {
		n, err := safecast.Convert[int64](o.numCPUs * 2)
		if err != nil {
			return nil, fmt.Errorf("invalid number of cpus: %w", err)
		}
		o.maxActiveQueries = max(n, 1)
	}

	sm := &SessionManager{
		userManager: o.userManager,
		cluster:     o.cluster,
		catalog:     o.catalog,
		defaults:    settings.New(settings.WithNumCPUs(o.numCPUs)),
		slots:       semaphore.NewWeighted(o.maxActiveQueries),
		processes:   xsync.NewMap[string, *QueryContext](),
	}
	sm.closers.AddWithError(o.userManager.Close)
	return sm, nil
}

func (sm *SessionManager) UserManager() users.Manager   { return sm.userManager }
func (sm *SessionManager) Cluster() *cluster.Cluster    { return sm.cluster }
func (sm *SessionManager) Catalog() *catalog.Catalog    { return sm.catalog }
func (sm *SessionManager) Settings() *settings.Settings { return sm.defaults }

// NewQueryContext starts a query. It waits for an active query slot, giving
// up when ctx is done. The returned context must be closed.
func (sm *SessionManager) NewQueryContext(ctx context.Context) (*QueryContext, error) {
	if sm.closed.Load() {
		return nil, ErrSessionManagerClosed
	}
	if err := sm.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	q := newQueryContext(ctx, sm)
	sm.processes.Store(q.id, q)

	// Close may have run while waiting for the slot.
	if sm.closed.Load() {
		_ = q.Close()
		return nil, ErrSessionManagerClosed
	}

	q.logger.Trace().Msg("query started")
	return q, nil
}

func (sm *SessionManager) release(q *QueryContext) {
	sm.processes.Delete(q.id)
	sm.slots.Release(1)
}

// ProcessList returns the live queries, oldest first.
func (sm *SessionManager) ProcessList() []ProcessInfo {
	infos := make([]ProcessInfo, 0, sm.processes.Size())
	sm.processes.Range(func(id string, q *QueryContext) bool {
		infos = append(infos, ProcessInfo{ID: id, StartedAt: q.startedAt})
		return true
	})
	slices.SortFunc(infos, func(a, b ProcessInfo) int {
		return cmp.Or(a.StartedAt.Compare(b.StartedAt), cmp.Compare(a.ID, b.ID))
	})
	return infos
}

// Close cancels every live query and releases the shared state. It is
// idempotent.
func (sm *SessionManager) Close() error {
	if !sm.closed.CompareAndSwap(false, true) {
		return nil
	}

	sm.processes.Range(func(_ string, q *QueryContext) bool {
		q.cancel()
		return true
	})

	logging.Info().Msg("session manager closed")
	return sm.closers.Close()
}
