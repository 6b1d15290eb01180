package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fuselabs/fusequery/pkg/cmd/server"
	"github.com/fuselabs/fusequery/pkg/cmd/termination"
)

const (
	configFlag              = "config"
	shutdownGracePeriodFlag = "shutdown-grace-period"
)

// RegisterConfigFlags adds the flags of the fields of config.
func RegisterConfigFlags(flags *pflag.FlagSet, config *server.Config) {
	flags.StringVar(&config.LogLevel, "config-log-level", config.LogLevel, "log level applied once the server starts, empty keeps --log-level")
	flags.StringVar(&config.LogFormat, "config-log-format", config.LogFormat, `log format applied once the server starts ("auto", "console", "json"), empty keeps --log-format`)
	flags.Uint64Var(&config.NumCPUs, "num-cpus", config.NumCPUs, "number of CPUs, the default of the max_threads setting")
	flags.Int64Var(&config.MaxActiveQueries, "max-active-queries", config.MaxActiveQueries, "maximum number of queries running at once, 0 for twice the number of CPUs")
	flags.BoolVar(&config.MetricsAPIEnabled, "metric-api-enabled", config.MetricsAPIEnabled, "enable the metrics http server")
	flags.StringVar(&config.MetricsAPIAddress, "metric-api-address", config.MetricsAPIAddress, "address to listen on to serve metrics")
	flags.BoolVar(&config.RootUserEnabled, "root-user-enabled", config.RootUserEnabled, "create the root user with every privilege")
	flags.Uint64Var(&config.UserStoreMaxRetries, "user-store-max-retries", config.UserStoreMaxRetries, "number of retries of user store operations failing as unavailable")
	flags.DurationVar(&config.UserStoreRetryInterval, "user-store-retry-interval", config.UserStoreRetryInterval, "initial backoff between retries of user store operations")
}

func RegisterServeFlags(cmd *cobra.Command, config *server.Config) {
	cmd.Flags().StringVar(&config.ConfigFile, configFlag, "", "path to a TOML config file; flags override its values")
	cmd.Flags().Duration(shutdownGracePeriodFlag, 0*time.Second, "amount of time after receiving sigint to continue serving")
	RegisterConfigFlags(cmd.Flags(), config)
}

// ResolveConfig returns the config to serve with. When a config file is set,
// it is loaded and the flags explicitly set on the command line are applied
// on top of it.
func ResolveConfig(flags *pflag.FlagSet, config *server.Config) (*server.Config, error) {
	if config.ConfigFile == "" {
		return config, nil
	}

	loaded, err := server.LoadFromToml(config.ConfigFile)
	if err != nil {
		return nil, err
	}

	overrides := pflag.NewFlagSet("overrides", pflag.ContinueOnError)
	RegisterConfigFlags(overrides, loaded)

	var setErr error
	flags.Visit(func(f *pflag.Flag) {
		if setErr != nil || overrides.Lookup(f.Name) == nil {
			return
		}
		if err := overrides.Set(f.Name, f.Value.String()); err != nil {
			setErr = fmt.Errorf("invalid value for --%s: %w", f.Name, err)
		}
	})
	if setErr != nil {
		return nil, setErr
	}
	return loaded, nil
}

func NewServeCommand(programName string, config *server.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "serve the query engine",
		Long:    "Starts the query engine and its metrics API, serving until interrupted",
		PreRunE: server.DefaultPreRunE(programName),
		RunE: termination.PublishError(func(cmd *cobra.Command, args []string) error {
			resolved, err := ResolveConfig(cmd.Flags(), config)
			if err != nil {
				return err
			}

			gracePeriod, err := cmd.Flags().GetDuration(shutdownGracePeriodFlag)
			if err != nil {
				return err
			}

			signalctx := SignalContextWithGracePeriod(cmd.Context(), gracePeriod)
			srv, err := resolved.Complete(signalctx)
			if err != nil {
				return err
			}
			return srv.Run(signalctx)
		}),
		Example: server.ServeExample(programName),
	}
}
