package users

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fuselabs/fusequery/internal/logging"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
)

// RetryOptions configures NewRetryingManager.
type RetryOptions struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryOptions are the retry options used by the server.
var DefaultRetryOptions = RetryOptions{
	MaxRetries:      3,
	InitialInterval: 20 * time.Millisecond,
	MaxInterval:     500 * time.Millisecond,
}

// NewRetryingManager returns a manager that retries operations failing with
// an unavailable error. Any other error, and the last unavailable error once
// retries are exhausted or the context is cancelled, is returned unchanged.
func NewRetryingManager(m Manager, opts RetryOptions) Manager {
	return &retryingManager{delegate: m, opts: opts}
}

type retryingManager struct {
	delegate Manager
	opts     RetryOptions
}

func (r *retryingManager) retry(ctx context.Context, operation string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialInterval
	b.MaxInterval = r.opts.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	var lastErr error
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !fuseerrors.IsKind(err, fuseerrors.KindUnavailable) {
			return backoff.Permanent(err)
		}

		lastErr = err
		logging.Ctx(ctx).Debug().Err(err).Str("operation", operation).Int("attempt", attempt).Msg("retrying user store operation")
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, r.opts.MaxRetries), ctx))

	// A cancelled context stops the retries but the caller still sees why
	// the store failed.
	if lastErr != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return lastErr
	}
	return err
}

func (r *retryingManager) AddUser(ctx context.Context, user UserInfo) error {
	return r.retry(ctx, "AddUser", func() error {
		return r.delegate.AddUser(ctx, user)
	})
}

func (r *retryingManager) GetUser(ctx context.Context, name, hostname string) (info UserInfo, err error) {
	err = r.retry(ctx, "GetUser", func() error {
		info, err = r.delegate.GetUser(ctx, name, hostname)
		return err
	})
	return info, err
}

func (r *retryingManager) GetUsers(ctx context.Context) (infos []UserInfo, err error) {
	err = r.retry(ctx, "GetUsers", func() error {
		infos, err = r.delegate.GetUsers(ctx)
		return err
	})
	return infos, err
}

func (r *retryingManager) DropUser(ctx context.Context, name, hostname string) error {
	return r.retry(ctx, "DropUser", func() error {
		return r.delegate.DropUser(ctx, name, hostname)
	})
}

func (r *retryingManager) SetUserPrivileges(ctx context.Context, name, hostname string, privileges PrivilegeSet) error {
	return r.retry(ctx, "SetUserPrivileges", func() error {
		return r.delegate.SetUserPrivileges(ctx, name, hostname, privileges)
	})
}

func (r *retryingManager) RevokeUserPrivileges(ctx context.Context, name, hostname string, privileges PrivilegeSet) error {
	return r.retry(ctx, "RevokeUserPrivileges", func() error {
		return r.delegate.RevokeUserPrivileges(ctx, name, hostname, privileges)
	})
}

func (r *retryingManager) Close() error { return r.delegate.Close() }

// Unwrap returns the wrapped manager.
func (r *retryingManager) Unwrap() Manager { return r.delegate }

var _ Manager = (*retryingManager)(nil)
