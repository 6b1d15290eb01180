package server

import (
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/go-logr/zerologr"
	"github.com/jzelinskie/cobrautil/v2"
	"github.com/jzelinskie/cobrautil/v2/cobraotel"
	"github.com/jzelinskie/cobrautil/v2/cobrazerolog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fuselabs/fusequery/internal/logging"
)

// EnvPrefix prefixes the environment variables flags are read from.
const EnvPrefix = "fuse_query"

// ServeExample creates an example usage string with the provided program name.
func ServeExample(programName string) string {
	return fmt.Sprintf(`	%[1]s:
		%[3]s serve

	%[2]s:
		%[3]s serve --config path/to/fusequery.toml --metric-api-address 0.0.0.0:7070
`,
		color.YellowString("Defaults"),
		color.GreenString("Config file and public metrics"),
		programName,
	)
}

// DefaultPreRunE sets up viper, zerolog, and OpenTelemetry flag handling for a
// command.
func DefaultPreRunE(programName string) cobrautil.CobraRunFunc {
	return cobrautil.CommandStack(
		cobrautil.SyncViperDotEnvPreRunE(EnvPrefix, programName+".env", zerologr.New(&logging.Logger)),
		cobrazerolog.New(
			cobrazerolog.WithTarget(func(logger zerolog.Logger) {
				logging.SetGlobalLogger(logger)
			}),
		).RunE(),
		cobraotel.New(programName,
			cobraotel.WithLogger(zerologr.New(&logging.Logger)),
		).RunE(),
	)
}

// MetricsHandler serves Prometheus metrics, pprof endpoints and the
// configuration of the server.
func MetricsHandler(c *Config) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/cmdline", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "This profile type has been disabled to avoid leaking private command-line arguments")
	})
	mux.HandleFunc("/debug/config", func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/toml")
		if err := toml.NewEncoder(w).Encode(c.DebugConfig()); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	return mux
}

// DebugConfig returns a copy of the config safe to expose: passwords are
// redacted.
func (c *Config) DebugConfig() Config {
	redacted := *c
	redacted.BootstrapUsers = make([]UserConfig, 0, len(c.BootstrapUsers))
	for _, u := range c.BootstrapUsers {
		if u.Password != "" {
			u.Password = "(redacted)"
		}
		redacted.BootstrapUsers = append(redacted.BootstrapUsers, u)
	}
	return redacted
}
