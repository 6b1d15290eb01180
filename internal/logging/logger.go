package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// QueryIDKey is the log field carrying the id of the query an event belongs to.
const QueryIDKey = "query_id"

var Logger zerolog.Logger

func init() {
	SetGlobalLogger(zerolog.Nop())
}

func SetGlobalLogger(logger zerolog.Logger) {
	Logger = logger
	zerolog.DefaultContextLogger = &Logger
}

func With() zerolog.Context { return Logger.With() }

func Err(err error) *zerolog.Event { return Logger.Err(err) }

func Trace() *zerolog.Event { return Logger.Trace() }

func Debug() *zerolog.Event { return Logger.Debug() }

func Info() *zerolog.Event { return Logger.Info() }

func Warn() *zerolog.Event { return Logger.Warn() }

func Error() *zerolog.Event { return Logger.Error() }

func Fatal() *zerolog.Event { return Logger.Fatal() }

func WithLevel(level zerolog.Level) *zerolog.Event { return Logger.WithLevel(level) }

func Ctx(ctx context.Context) *zerolog.Logger { return zerolog.Ctx(ctx) }

// ForQuery returns a child of the global logger tagged with the query id and
// a context carrying it, so that Ctx(ctx) resolves to the tagged logger.
func ForQuery(ctx context.Context, queryID string) (context.Context, zerolog.Logger) {
	l := Logger.With().Str(QueryIDKey, queryID).Logger()
	return l.WithContext(ctx), l
}
