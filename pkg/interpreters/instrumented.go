package interpreters

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fuselabs/fusequery/pkg/datastream"
	"github.com/fuselabs/fusequery/pkg/sessions"
)

const tracerName = "fusequery/interpreters"

var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fusequery",
		Subsystem: "interpreter",
		Name:      "executions_total",
		Help:      "total number of interpreter executions, by outcome",
	}, []string{"interpreter", "outcome"})

	executeSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fusequery",
		Subsystem: "interpreter",
		Name:      "execute_seconds",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		Help:      "time spent in interpreter Execute, excluding the consumption of its stream",
	}, []string{"interpreter"})
)

// instrumented traces, measures and logs the execution of an interpreter.
type instrumented struct {
	ctx      *sessions.QueryContext
	delegate Interpreter
}

func newInstrumented(ctx *sessions.QueryContext, i Interpreter) Interpreter {
	return &instrumented{ctx: ctx, delegate: i}
}

func (i *instrumented) Name() string { return i.delegate.Name() }

func (i *instrumented) Execute(input datastream.Stream) (datastream.Stream, error) {
	name := i.delegate.Name()

	// The tracer is looked up on every call so a provider installed after
	// package initialization is honored.
	_, span := otel.Tracer(tracerName).Start(i.ctx, "interpreter.Execute", trace.WithAttributes(
		attribute.String("ctx.id", i.ctx.ID()),
		attribute.String("interpreter", name),
	))
	defer span.End()

	timer := prometheus.NewTimer(executeSeconds.WithLabelValues(name))
	out, err := i.delegate.Execute(input)
	timer.ObserveDuration()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		executionsTotal.WithLabelValues(name, "error").Inc()
		i.ctx.Logger().Debug().Err(err).Str("interpreter", name).Msg("interpreter failed")
		return nil, err
	}

	executionsTotal.WithLabelValues(name, "ok").Inc()
	i.ctx.Logger().Trace().Str("interpreter", name).Msg("interpreter executed")
	return out, nil
}

// Unwrap returns the wrapped interpreter.
func (i *instrumented) Unwrap() Interpreter { return i.delegate }
