// Package settings implements the per-query settings store. Every setting has
// a fixed type, default and valid range; values are validated on write so
// typed accessors never fail.
package settings

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/ccoveille/go-safecast/v2"
	"github.com/dustin/go-humanize"

	"github.com/fuselabs/fusequery/pkg/fuseerrors"
)

var (
	// ErrUnknownSetting is returned for setting names that are not recognized.
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrInvalidSettingValue is returned for values that cannot be parsed or
	// fall outside of the setting's range.
	ErrInvalidSettingValue = errors.New("invalid setting value")
)

const (
	MaxThreads            = "max_threads"
	MaxBlockSize          = "max_block_size"
	FlightClientTimeout   = "flight_client_timeout"
	StorageReadBufferSize = "storage_read_buffer_size"
	EnableQueryLog        = "enable_query_log"
)

const maxThreadsLimit = 1024

type valueKind int

const (
	kindUint valueKind = iota
	kindBytes
	kindBool
)

type definition struct {
	name        string
	description string
	kind        valueKind
	min, max    uint64
	defaultFn   func(o *options) uint64
}

// definitions are listed in the order they are reported.
var definitions = []definition{
	{
		name:        MaxBlockSize,
		description: "Maximum block size for reading",
		kind:        kindUint,
		min:         1,
		defaultFn:   func(*options) uint64 { return 10000 },
	},
	{
		name:        MaxThreads,
		description: "The maximum number of threads to execute the request. By default, it is determined automatically.",
		kind:        kindUint,
		min:         1,
		max:         maxThreadsLimit,
		defaultFn:   func(o *options) uint64 { return o.numCPUs },
	},
	{
		name:        FlightClientTimeout,
		description: "Max duration the flight client request is allowed to take in seconds. By default, it is 60 seconds",
		kind:        kindUint,
		min:         1,
		defaultFn:   func(*options) uint64 { return 60 },
	},
	{
		name:        StorageReadBufferSize,
		description: "The size of buffer in bytes for buffered reader of dal. By default, it is 1MB.",
		kind:        kindBytes,
		min:         1,
		defaultFn:   func(*options) uint64 { return 1 << 20 },
	},
	{
		name:        EnableQueryLog,
		description: "Log every executed query. By default, it is disabled.",
		kind:        kindBool,
		max:         1,
		defaultFn:   func(*options) uint64 { return 0 },
	},
}

var definitionsByName = func() map[string]*definition {
	m := make(map[string]*definition, len(definitions))
	for i := range definitions {
		m[definitions[i].name] = &definitions[i]
	}
	return m
}()

func (d *definition) parse(value string) (uint64, error) {
	var (
		v   uint64
		err error
	)
	switch d.kind {
	case kindBytes:
		v, err = humanize.ParseBytes(value)
	case kindBool:
		var b bool
		b, err = strconv.ParseBool(value)
		if b {
			v = 1
		}
	default:
		v, err = strconv.ParseUint(value, 10, 64)
	}
	if err != nil {
		return 0, d.invalid(value)
	}
	return v, d.check(v)
}

func (d *definition) check(v uint64) error {
	if v < d.min || (d.max > 0 && v > d.max) {
		return d.invalid(d.format(v))
	}
	return nil
}

func (d *definition) invalid(value string) error {
	msg := fmt.Errorf("%w `%s` for %s", ErrInvalidSettingValue, value, d.name)
	if d.max > 0 && d.kind != kindBool {
		msg = fmt.Errorf("%w `%s` for %s: must be between %d and %d", ErrInvalidSettingValue, value, d.name, d.min, d.max)
	} else if d.min > 0 {
		msg = fmt.Errorf("%w `%s` for %s: must be at least %d", ErrInvalidSettingValue, value, d.name, d.min)
	}
	return fuseerrors.NewValidationError(msg).WithDetail("setting", d.name)
}

func (d *definition) format(v uint64) string {
	if d.kind == kindBool {
		return strconv.FormatBool(v == 1)
	}
	return strconv.FormatUint(v, 10)
}

func lookup(name string) (*definition, error) {
	d, ok := definitionsByName[name]
	if !ok {
		return nil, fuseerrors.NewValidationError(fmt.Errorf("%w `%s`", ErrUnknownSetting, name)).WithDetail("setting", name)
	}
	return d, nil
}

type options struct {
	numCPUs uint64
}

// Option configures the defaults of a new Settings.
type Option func(*options)

// WithNumCPUs sets the number of CPUs max_threads defaults to.
func WithNumCPUs(n uint64) Option {
	return func(o *options) {
		o.numCPUs = n
	}
}

// Var is a single name/value assignment.
type Var struct {
	Name  string
	Value string
}

// Entry describes a setting and its current value.
type Entry struct {
	Name        string
	Value       string
	Default     string
	Description string
}

// Settings holds validated setting values. It is safe for concurrent use.
type Settings struct {
	mu       sync.RWMutex
	values   map[string]uint64
	defaults map[string]uint64
}

// New returns settings holding the defaults.
func New(opts ...Option) *Settings {
	cpus, _ := safecast.Convert[uint64](runtime.NumCPU())
	o := &options{numCPUs: cpus}
	for _, opt := range opts {
		opt(o)
	}
	o.numCPUs = min(max(o.numCPUs, 1), maxThreadsLimit)

	s := &Settings{
		values:   make(map[string]uint64, len(definitions)),
		defaults: make(map[string]uint64, len(definitions)),
	}
	for _, d := range definitions {
		v := d.defaultFn(o)
		s.values[d.name] = v
		s.defaults[d.name] = v
	}
	return s
}

// Clone returns an independent copy, used to give each query its own
// settings.
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &Settings{
		values:   make(map[string]uint64, len(s.values)),
		defaults: s.defaults,
	}
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}

// Get returns the current value of the named setting.
func (s *Settings) Get(name string) (string, error) {
	d, err := lookup(name)
	if err != nil {
		return "", err
	}
	return d.format(s.load(name)), nil
}

// Set validates and stores a value given in its textual form.
func (s *Settings) Set(name, value string) error {
	return s.SetAll(Var{Name: name, Value: value})
}

// SetAll validates every assignment and applies them only if all are valid.
func (s *Settings) SetAll(vars ...Var) error {
	parsed := make(map[string]uint64, len(vars))
	for _, v := range vars {
		d, err := lookup(v.Name)
		if err != nil {
			return err
		}
		n, err := d.parse(v.Value)
		if err != nil {
			return err
		}
		parsed[v.Name] = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, n := range parsed {
		s.values[name] = n
	}
	return nil
}

// Entries returns every setting in definition order.
func (s *Settings) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(definitions))
	for _, d := range definitions {
		entries = append(entries, Entry{
			Name:        d.name,
			Value:       d.format(s.values[d.name]),
			Default:     d.format(s.defaults[d.name]),
			Description: d.description,
		})
	}
	return entries
}

func (s *Settings) load(name string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

func (s *Settings) store(name string, v uint64) error {
	if err := definitionsByName[name].check(v); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = v
	return nil
}

// MaxThreads returns the maximum parallelism of a query.
func (s *Settings) MaxThreads() uint64 { return s.load(MaxThreads) }

// SetMaxThreads sets the maximum parallelism of a query, between 1 and 1024.
func (s *Settings) SetMaxThreads(n uint64) error { return s.store(MaxThreads, n) }

// MaxBlockSize returns the maximum number of rows per block.
func (s *Settings) MaxBlockSize() uint64 { return s.load(MaxBlockSize) }

func (s *Settings) SetMaxBlockSize(n uint64) error { return s.store(MaxBlockSize, n) }

// FlightClientTimeout returns the remote request timeout, in seconds.
func (s *Settings) FlightClientTimeout() uint64 { return s.load(FlightClientTimeout) }

func (s *Settings) SetFlightClientTimeout(seconds uint64) error {
	return s.store(FlightClientTimeout, seconds)
}

// StorageReadBufferSize returns the read buffer size, in bytes.
func (s *Settings) StorageReadBufferSize() uint64 { return s.load(StorageReadBufferSize) }

func (s *Settings) SetStorageReadBufferSize(bytes uint64) error {
	return s.store(StorageReadBufferSize, bytes)
}

func (s *Settings) EnableQueryLog() bool { return s.load(EnableQueryLog) == 1 }

func (s *Settings) SetEnableQueryLog(enabled bool) error {
	var v uint64
	if enabled {
		v = 1
	}
	return s.store(EnableQueryLog, v)
}
