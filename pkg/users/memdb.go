package users

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-memdb"
	"github.com/rs/zerolog"

	"github.com/fuselabs/fusequery/internal/logging"
)

const (
	tableUser = "user"
	indexID   = "id"
	indexName = "name"

	errUnableToWriteUser = "unable to write user: %w"
	errUnableToReadUser  = "unable to read user: %w"
)

type user struct {
	name       string
	hostname   string
	authType   AuthType
	password   []byte
	privileges PrivilegeSet
}

func (u user) MarshalZerologObject(e *zerolog.Event) {
	e.Str("user", Identity(u.name, u.hostname)).Stringer("privileges", u.privileges)
}

func (u user) UserInfo() UserInfo {
	return UserInfo{
		Name:       u.name,
		Hostname:   u.hostname,
		AuthType:   u.authType,
		Password:   append([]byte(nil), u.password...),
		Privileges: u.privileges,
	}
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableUser: {
			Name: tableUser,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:   indexID,
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "name"},
							&memdb.StringFieldIndex{Field: "hostname"},
						},
					},
				},
				indexName: {
					Name:    indexName,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "name"},
				},
			},
		},
	},
}

// NewMemdbManager returns an in-memory user manager. Every mutation runs in
// a single write transaction.
func NewMemdbManager() (Manager, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("unable to instantiate user store: %w", err)
	}
	return &memdbManager{db: db}, nil
}

type memdbManager struct {
	sync.RWMutex
	db *memdb.MemDB
}

func (m *memdbManager) txn(write bool) (*memdb.Txn, error) {
	m.RLock()
	db := m.db
	m.RUnlock()
	if db == nil {
		return nil, ErrStoreUnavailable
	}
	return db.Txn(write), nil
}

func (m *memdbManager) AddUser(ctx context.Context, info UserInfo) error {
	txn, err := m.txn(true)
	if err != nil {
		return err
	}
	defer txn.Abort()

	found, err := txn.First(tableUser, indexID, info.Name, info.Hostname)
	if err != nil {
		return fmt.Errorf(errUnableToWriteUser, err)
	}
	if found != nil {
		return NewUserAlreadyExistsErr(info.Name, info.Hostname)
	}

	u := &user{
		name:       info.Name,
		hostname:   info.Hostname,
		authType:   info.AuthType,
		password:   append([]byte(nil), info.Password...),
		privileges: info.Privileges,
	}
	if err := txn.Insert(tableUser, u); err != nil {
		return fmt.Errorf(errUnableToWriteUser, err)
	}
	txn.Commit()

	logging.Ctx(ctx).Trace().Object("added", u).Msg("user added")
	return nil
}

func (m *memdbManager) GetUser(_ context.Context, name, hostname string) (UserInfo, error) {
	txn, err := m.txn(false)
	if err != nil {
		return UserInfo{}, err
	}
	defer txn.Abort()

	found, err := txn.First(tableUser, indexID, name, hostname)
	if err != nil {
		return UserInfo{}, fmt.Errorf(errUnableToReadUser, err)
	}
	if found == nil {
		return UserInfo{}, NewUserNotFoundErr(name, hostname)
	}
	return found.(*user).UserInfo(), nil
}

func (m *memdbManager) GetUsers(_ context.Context) ([]UserInfo, error) {
	txn, err := m.txn(false)
	if err != nil {
		return nil, err
	}
	defer txn.Abort()

	it, err := txn.Get(tableUser, indexID)
	if err != nil {
		return nil, fmt.Errorf(errUnableToReadUser, err)
	}

	var infos []UserInfo
	for raw := it.Next(); raw != nil; raw = it.Next() {
		infos = append(infos, raw.(*user).UserInfo())
	}
	return infos, nil
}

func (m *memdbManager) DropUser(ctx context.Context, name, hostname string) error {
	return m.update(ctx, name, hostname, nil)
}

func (m *memdbManager) SetUserPrivileges(ctx context.Context, name, hostname string, privileges PrivilegeSet) error {
	return m.update(ctx, name, hostname, func(u *user) {
		u.privileges = privileges
	})
}

func (m *memdbManager) RevokeUserPrivileges(ctx context.Context, name, hostname string, privileges PrivilegeSet) error {
	return m.update(ctx, name, hostname, func(u *user) {
		u.privileges = u.privileges.Difference(privileges)
	})
}

// update replaces the user with a mutated copy, or deletes it when mutate is
// nil, in one write transaction.
func (m *memdbManager) update(ctx context.Context, name, hostname string, mutate func(*user)) error {
	txn, err := m.txn(true)
	if err != nil {
		return err
	}
	defer txn.Abort()

	found, err := txn.First(tableUser, indexID, name, hostname)
	if err != nil {
		return fmt.Errorf(errUnableToWriteUser, err)
	}
	if found == nil {
		return NewUserNotFoundErr(name, hostname)
	}

	if mutate == nil {
		if err := txn.Delete(tableUser, found); err != nil {
			return fmt.Errorf(errUnableToWriteUser, err)
		}
		txn.Commit()
		logging.Ctx(ctx).Trace().Str("user", Identity(name, hostname)).Msg("user dropped")
		return nil
	}

	// Stored objects are immutable; write a copy.
	updated := *(found.(*user))
	mutate(&updated)
	if err := txn.Insert(tableUser, &updated); err != nil {
		return fmt.Errorf(errUnableToWriteUser, err)
	}
	txn.Commit()

	logging.Ctx(ctx).Trace().Object("updated", updated).Msg("user updated")
	return nil
}

func (m *memdbManager) Close() error {
	m.Lock()
	defer m.Unlock()
	m.db = nil
	return nil
}

var _ Manager = (*memdbManager)(nil)
