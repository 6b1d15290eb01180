package server

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/fuselabs/fusequery/internal/logging"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
)

// ConfigureLogging replaces the global logger with one of the given level and
// format writing to w. Empty values keep the corresponding setting of the
// current logger. The format is one of "auto", "console" or "json"; "auto"
// selects console output when w is a terminal.
func ConfigureLogging(level, format string, w io.Writer) error {
	if level == "" && format == "" {
		return nil
	}

	logger := logging.Logger
	if format != "" {
		console := false
		switch strings.ToLower(format) {
		case "console":
			console = true
		case "json":
		case "auto":
			if f, ok := w.(interface{ Fd() uintptr }); ok {
				console = isatty.IsTerminal(f.Fd())
			}
		default:
			return fmt.Errorf("unknown log format `%s`", format)
		}

		if console {
			logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
		} else {
			logger = zerolog.New(w).With().Timestamp().Logger()
		}
	}

	if level != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("unknown log level `%s`: %w", level, err)
		}
		logger = logger.Level(lvl)
	}

	logging.SetGlobalLogger(logger)
	return nil
}

// LevelForError returns the level a failed statement is logged at. Failures
// caused by the statement itself are informational.
func LevelForError(err error) zerolog.Level {
	switch fuseerrors.KindOf(err) {
	case fuseerrors.KindValidation, fuseerrors.KindNotFound, fuseerrors.KindAlreadyExists,
		fuseerrors.KindPermissionDenied:
		return zerolog.InfoLevel
	case fuseerrors.KindUnavailable:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
