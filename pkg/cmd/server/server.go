package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/jzelinskie/stringz"
	"golang.org/x/sync/errgroup"

	"github.com/fuselabs/fusequery/internal/logging"
	"github.com/fuselabs/fusequery/pkg/catalog"
	"github.com/fuselabs/fusequery/pkg/cluster"
	"github.com/fuselabs/fusequery/pkg/sessions"
	"github.com/fuselabs/fusequery/pkg/users"
)

// RootUser is the name of the user created when the root user is enabled.
const RootUser = "root"

// UserConfig describes a user created when the server starts.
type UserConfig struct {
	Name       string `toml:"name"`
	Hostname   string `toml:"hostname"`
	Password   string `toml:"password"`
	AuthType   string `toml:"auth_type"`
	Privileges string `toml:"privileges"`
}

// NodeConfig describes a member of the cluster.
type NodeConfig struct {
	Name     string `toml:"name"`
	Address  string `toml:"address"`
	Priority uint8  `toml:"priority"`
	Local    bool   `toml:"local"`
}

// Config is the configuration of a server.
type Config struct {
	// Logging. Empty values keep the logger configured by the command line.
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// Execution
	NumCPUs          uint64 `toml:"num_cpus" default:"8"`
	MaxActiveQueries int64  `toml:"max_active_queries"`

	// Metrics API
	MetricsAPIEnabled bool   `toml:"metric_api_enabled" default:"true"`
	MetricsAPIAddress string `toml:"metric_api_address" default:"127.0.0.1:7070"`

	// User store
	RootUserEnabled        bool          `toml:"root_user_enabled" default:"true"`
	BootstrapUsers         []UserConfig  `toml:"bootstrap_users"`
	UserStoreMaxRetries    uint64        `toml:"user_store_max_retries" default:"3"`
	UserStoreRetryInterval time.Duration `toml:"user_store_retry_interval" default:"20ms"`

	ClusterNodes []NodeConfig `toml:"cluster_nodes"`

	// ConfigFile is the file the configuration was loaded from, if any.
	ConfigFile string `toml:"-"`
}

// ConfigOption mutates a Config.
type ConfigOption func(*Config)

// ConfigWithOptions applies the options to the config and returns it.
func ConfigWithOptions(c *Config, opts ...ConfigOption) *Config {
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithNumCPUs(n uint64) ConfigOption { return func(c *Config) { c.NumCPUs = n } }

func WithMaxActiveQueries(n int64) ConfigOption {
	return func(c *Config) { c.MaxActiveQueries = n }
}

func WithMetricsAPI(enabled bool, address string) ConfigOption {
	return func(c *Config) {
		c.MetricsAPIEnabled = enabled
		c.MetricsAPIAddress = address
	}
}

func WithRootUserEnabled(enabled bool) ConfigOption {
	return func(c *Config) { c.RootUserEnabled = enabled }
}

func WithBootstrapUsers(users ...UserConfig) ConfigOption {
	return func(c *Config) { c.BootstrapUsers = append(c.BootstrapUsers, users...) }
}

func WithClusterNodes(nodes ...NodeConfig) ConfigOption {
	return func(c *Config) { c.ClusterNodes = append(c.ClusterNodes, nodes...) }
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		panic("invalid config defaults: " + err.Error())
	}
	return c
}

// LoadFromToml returns the default config overridden by the keys of the TOML
// file at path.
func LoadFromToml(path string) (*Config, error) {
	c := DefaultConfig()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("unable to read config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("unable to parse config file %s: %w", path, err)
	}
	c.ConfigFile = path
	return c, nil
}

// RunnableServer is a server ready to run.
type RunnableServer interface {
	// Run serves until ctx is done, then releases the server.
	Run(ctx context.Context) error

	SessionManager() *sessions.SessionManager

	// MetricsAddr returns the address the metrics API listens on, or an
	// empty string when it is disabled.
	MetricsAddr() string
}

// Complete builds the server described by the config.
func (c *Config) Complete(ctx context.Context) (RunnableServer, error) {
	if err := ConfigureLogging(c.LogLevel, c.LogFormat, os.Stderr); err != nil {
		return nil, err
	}
	if c.ConfigFile != "" {
		logging.Info().Str("path", c.ConfigFile).Msg("loaded config file")
	}

	nodes := make([]cluster.Node, 0, len(c.ClusterNodes))
	for _, n := range c.ClusterNodes {
		nodes = append(nodes, cluster.Node{Name: n.Name, Address: n.Address, Priority: n.Priority, Local: n.Local})
	}
	clus, err := cluster.New(nodes...)
	if err != nil {
		return nil, fmt.Errorf("invalid cluster configuration: %w", err)
	}

	store, err := users.NewMemdbManager()
	if err != nil {
		return nil, err
	}
	retryOpts := users.DefaultRetryOptions
	retryOpts.MaxRetries = c.UserStoreMaxRetries
	retryOpts.InitialInterval = c.UserStoreRetryInterval
	userManager := users.NewRetryingManager(users.NewObservableManager(store), retryOpts)

	sm, err := sessions.NewSessionManager(
		sessions.WithUserManager(userManager),
		sessions.WithCluster(clus),
		sessions.WithCatalog(catalog.New()),
		sessions.WithNumCPUs(c.NumCPUs),
		sessions.WithMaxActiveQueries(c.MaxActiveQueries),
	)
	if err != nil {
		_ = userManager.Close()
		return nil, err
	}

	closeOnErr := func(err error) (RunnableServer, error) {
		_ = sm.Close()
		return nil, err
	}

	if err := c.bootstrapUsers(ctx, userManager); err != nil {
		return closeOnErr(err)
	}

	srv := &completedServer{sessionManager: sm}
	if c.MetricsAPIEnabled {
		l, err := net.Listen("tcp", c.MetricsAPIAddress)
		if err != nil {
			return closeOnErr(fmt.Errorf("failed to listen on addr for metrics server: %w", err))
		}
		srv.metricsListener = l
		srv.metricsServer = &http.Server{
			Handler:           MetricsHandler(c),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return srv, nil
}

func (c *Config) bootstrapUsers(ctx context.Context, m users.Manager) error {
	toCreate := c.BootstrapUsers
	if c.RootUserEnabled {
		toCreate = append([]UserConfig{{Name: RootUser, AuthType: users.AuthNone.String(), Privileges: "ALL"}}, toCreate...)
	}

	for _, u := range toCreate {
		if u.Name == "" {
			return errors.New("bootstrap users require a name")
		}
		hostname := stringz.DefaultEmpty(u.Hostname, "%")

		authType, err := users.ParseAuthType(u.AuthType)
		if err != nil {
			return fmt.Errorf("invalid bootstrap user %s: %w", users.Identity(u.Name, hostname), err)
		}
		privileges, err := users.ParsePrivilegeSet(u.Privileges)
		if err != nil {
			return fmt.Errorf("invalid bootstrap user %s: %w", users.Identity(u.Name, hostname), err)
		}

		if err := m.AddUser(ctx, users.NewUserInfo(u.Name, hostname, u.Password, authType)); err != nil {
			return err
		}
		if err := m.SetUserPrivileges(ctx, u.Name, hostname, privileges); err != nil {
			return err
		}
		logging.Info().Str("user", users.Identity(u.Name, hostname)).Stringer("privileges", privileges).Msg("bootstrapped user")
	}
	return nil
}

type completedServer struct {
	sessionManager  *sessions.SessionManager
	metricsServer   *http.Server
	metricsListener net.Listener
}

func (s *completedServer) SessionManager() *sessions.SessionManager { return s.sessionManager }

func (s *completedServer) MetricsAddr() string {
	if s.metricsListener == nil {
		return ""
	}
	return s.metricsListener.Addr().String()
}

func (s *completedServer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.metricsServer != nil {
		g.Go(func() error {
			logging.Info().Str("addr", s.MetricsAddr()).Msg("metrics server started listening")
			if err := s.metricsServer.Serve(s.metricsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed while serving metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			if err := s.metricsServer.Close(); err != nil {
				logging.Warn().Err(err).Msg("error stopping metrics server")
			}
			logging.Info().Str("addr", s.MetricsAddr()).Msg("metrics server stopped serving")
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	err := g.Wait()
	if closeErr := s.sessionManager.Close(); closeErr != nil {
		logging.Warn().Err(closeErr).Msg("error closing session manager")
	}
	return err
}
