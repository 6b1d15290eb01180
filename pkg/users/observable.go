package users

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("fusequery/users/observable")

	operationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fusequery",
		Subsystem: "users",
		Name:      "operation_latency",
		Buckets:   []float64{.0001, .0005, .001, .002, .005, .01, .02, .05, .1, .2, .5},
		Help:      "latency of user manager operations",
	}, []string{"operation"})
)

// NewObservableManager returns a manager which adds tracing and metrics to
// the delegate.
func NewObservableManager(m Manager) Manager {
	return &observableManager{delegate: m}
}

type observableManager struct{ delegate Manager }

func userAttributes(name, hostname string) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("user.name", name),
		attribute.String("user.hostname", hostname),
	)
}

func (p *observableManager) AddUser(ctx context.Context, user UserInfo) error {
	ctx, closer := observe(ctx, "AddUser", userAttributes(user.Name, user.Hostname))
	return closer(p.delegate.AddUser(ctx, user))
}

func (p *observableManager) GetUser(ctx context.Context, name, hostname string) (UserInfo, error) {
	ctx, closer := observe(ctx, "GetUser", userAttributes(name, hostname))
	info, err := p.delegate.GetUser(ctx, name, hostname)
	return info, closer(err)
}

func (p *observableManager) GetUsers(ctx context.Context) ([]UserInfo, error) {
	ctx, closer := observe(ctx, "GetUsers")
	infos, err := p.delegate.GetUsers(ctx)
	return infos, closer(err)
}

func (p *observableManager) DropUser(ctx context.Context, name, hostname string) error {
	ctx, closer := observe(ctx, "DropUser", userAttributes(name, hostname))
	return closer(p.delegate.DropUser(ctx, name, hostname))
}

func (p *observableManager) SetUserPrivileges(ctx context.Context, name, hostname string, privileges PrivilegeSet) error {
	ctx, closer := observe(ctx, "SetUserPrivileges", userAttributes(name, hostname), trace.WithAttributes(
		attribute.String("user.privileges", privileges.String()),
	))
	return closer(p.delegate.SetUserPrivileges(ctx, name, hostname, privileges))
}

func (p *observableManager) RevokeUserPrivileges(ctx context.Context, name, hostname string, privileges PrivilegeSet) error {
	ctx, closer := observe(ctx, "RevokeUserPrivileges", userAttributes(name, hostname), trace.WithAttributes(
		attribute.String("user.privileges", privileges.String()),
	))
	return closer(p.delegate.RevokeUserPrivileges(ctx, name, hostname, privileges))
}

func (p *observableManager) Close() error { return p.delegate.Close() }

// Unwrap returns the wrapped manager.
func (p *observableManager) Unwrap() Manager { return p.delegate }

// observe starts a span and a latency timer. The returned closer ends both,
// records err on the span and hands err back unchanged.
func observe(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, func(error) error) {
	ctx, span := tracer.Start(ctx, name, opts...)
	timer := prometheus.NewTimer(operationLatency.WithLabelValues(name))

	return ctx, func(err error) error {
		timer.ObserveDuration()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		return err
	}
}

var _ Manager = (*observableManager)(nil)
