// Package catalog holds the databases of the engine and the tables within
// them.
package catalog

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/fuselabs/fusequery/internal/logging"
	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/storages"
	"github.com/fuselabs/fusequery/pkg/storages/memory"
	"github.com/fuselabs/fusequery/pkg/storages/system"
)

// DefaultDatabase is the database user tables are created in by default.
const DefaultDatabase = "default"

var (
	ErrUnknownDatabase = errors.New("unknown database")
	ErrUnknownTable    = errors.New("unknown table")
	ErrUnknownEngine   = errors.New("unknown table engine")
	ErrTableExists     = errors.New("table already exists")
	ErrReadOnly        = errors.New("database is read-only")
)

type engineBuilderFunc func(id uint64, database, name string, schema *datablock.Schema) (storages.Table, error)

// BuilderForEngine maps engine names to the constructors of their tables.
var BuilderForEngine = map[string]engineBuilderFunc{
	memory.Engine: newMemoryTable,
}

func newMemoryTable(id uint64, database, name string, schema *datablock.Schema) (storages.Table, error) {
	return memory.New(id, database, name, schema), nil
}

// Engines returns the names of the engines tables can be created with.
func Engines() []string {
	names := make([]string, 0, len(BuilderForEngine))
	for name := range BuilderForEngine {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type database struct {
	name     string
	readOnly bool
	tables   *xsync.Map[string, storages.Table]
}

// Catalog is the registry of databases and tables. It is safe for concurrent
// use.
type Catalog struct {
	lastID    atomic.Uint64
	databases *xsync.Map[string, *database]
}

// New returns a catalog holding the system database and an empty default
// database.
func New() *Catalog {
	c := &Catalog{databases: xsync.NewMap[string, *database]()}

	sys := c.addDatabase(system.Database, true)
	for _, t := range system.Tables(c.nextID) {
		sys.tables.Store(t.Name(), t)
	}
	c.addDatabase(DefaultDatabase, false)
	return c
}

func (c *Catalog) nextID() uint64 {
	return c.lastID.Add(1)
}

func (c *Catalog) addDatabase(name string, readOnly bool) *database {
	db, _ := c.databases.LoadOrCompute(name, func() (*database, bool) {
		return &database{
			name:     name,
			readOnly: readOnly,
			tables:   xsync.NewMap[string, storages.Table](),
		}, false
	})
	return db
}

func (c *Catalog) database(name string) (*database, error) {
	db, ok := c.databases.Load(name)
	if !ok {
		return nil, fuseerrors.NewNotFoundError(fmt.Errorf("%w `%s`", ErrUnknownDatabase, name)).
			WithDetail("database", name)
	}
	return db, nil
}

// CreateDatabase adds an empty database. Creating an existing database is a
// no-op.
func (c *Catalog) CreateDatabase(name string) {
	c.addDatabase(name, false)
}

// GetDatabases returns the database names in order.
func (c *Catalog) GetDatabases() []string {
	names := make([]string, 0, c.databases.Size())
	c.databases.Range(func(name string, _ *database) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// GetTable returns the table, or a not found error.
func (c *Catalog) GetTable(databaseName, tableName string) (storages.Table, error) {
	db, err := c.database(databaseName)
	if err != nil {
		return nil, err
	}

	t, ok := db.tables.Load(tableName)
	if !ok {
		return nil, fuseerrors.NewNotFoundError(fmt.Errorf("%w `%s.%s`", ErrUnknownTable, databaseName, tableName)).
			WithDetail("table", databaseName+"."+tableName)
	}
	return t, nil
}

// GetAllTables returns every table ordered by database and name.
func (c *Catalog) GetAllTables() []storages.Table {
	var tables []storages.Table
	c.databases.Range(func(_ string, db *database) bool {
		db.tables.Range(func(_ string, t storages.Table) bool {
			tables = append(tables, t)
			return true
		})
		return true
	})
	slices.SortFunc(tables, func(a, b storages.Table) int {
		return cmp.Or(cmp.Compare(a.Database(), b.Database()), cmp.Compare(a.Name(), b.Name()))
	})
	return tables
}

// CreateTable creates a table with the given engine. An empty engine selects
// the Memory engine.
func (c *Catalog) CreateTable(databaseName, tableName, engine string, schema *datablock.Schema, ifNotExists bool) error {
	db, err := c.database(databaseName)
	if err != nil {
		return err
	}
	if db.readOnly {
		return fuseerrors.NewPermissionDeniedError(fmt.Errorf("%w: cannot create `%s.%s`", ErrReadOnly, databaseName, tableName))
	}
	if schema == nil || schema.NumFields() == 0 {
		return fuseerrors.NewValidationError(fmt.Errorf("table `%s.%s` requires at least one column", databaseName, tableName))
	}

	if engine == "" {
		engine = memory.Engine
	}
	builder, ok := BuilderForEngine[engine]
	if !ok {
		return fuseerrors.NewValidationError(fmt.Errorf("%w `%s`", ErrUnknownEngine, engine)).WithDetail("engine", engine)
	}

	table, err := builder(c.nextID(), databaseName, tableName, schema)
	if err != nil {
		return err
	}

	if _, loaded := db.tables.LoadOrStore(tableName, table); loaded {
		if ifNotExists {
			return nil
		}
		return fuseerrors.NewAlreadyExistsError(fmt.Errorf("%w: `%s.%s`", ErrTableExists, databaseName, tableName))
	}

	logging.Info().
		Str("table", databaseName+"."+tableName).
		Str("engine", engine).
		Uint64("id", table.ID()).
		Msg("created table")
	return nil
}

// DropTable removes a table.
func (c *Catalog) DropTable(databaseName, tableName string, ifExists bool) error {
	db, err := c.database(databaseName)
	if err != nil {
		if ifExists {
			return nil
		}
		return err
	}
	if db.readOnly {
		return fuseerrors.NewPermissionDeniedError(fmt.Errorf("%w: cannot drop `%s.%s`", ErrReadOnly, databaseName, tableName))
	}

	if _, ok := db.tables.LoadAndDelete(tableName); !ok && !ifExists {
		return fuseerrors.NewNotFoundError(fmt.Errorf("%w `%s.%s`", ErrUnknownTable, databaseName, tableName))
	}
	return nil
}

var _ storages.Catalog = (*Catalog)(nil)
