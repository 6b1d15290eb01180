// Package test holds the conformance suite every users.Manager
// implementation must pass.
package test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/fuselabs/fusequery/pkg/fuseerrors"
	"github.com/fuselabs/fusequery/pkg/users"
)

// ManagerTester provides the suite a means of initializing a particular
// manager.
type ManagerTester interface {
	// New creates a new, empty manager for a single test.
	New() (users.Manager, error)
}

type ManagerTesterFunc func() (users.Manager, error)

func (f ManagerTesterFunc) New() (users.Manager, error) { return f() }

// All runs every test of the suite against the tester's managers.
func All(t *testing.T, tester ManagerTester) {
	t.Run("TestAddAndGetUser", func(t *testing.T) { AddAndGetUserTest(t, tester) })
	t.Run("TestAddExistingUser", func(t *testing.T) { AddExistingUserTest(t, tester) })
	t.Run("TestGetUsersOrdered", func(t *testing.T) { GetUsersOrderedTest(t, tester) })
	t.Run("TestDropUser", func(t *testing.T) { DropUserTest(t, tester) })
	t.Run("TestSetPrivilegesOverwrites", func(t *testing.T) { SetPrivilegesOverwritesTest(t, tester) })
	t.Run("TestRevokePrivileges", func(t *testing.T) { RevokePrivilegesTest(t, tester) })
	t.Run("TestUnknownUser", func(t *testing.T) { UnknownUserTest(t, tester) })
	t.Run("TestConcurrentGrants", func(t *testing.T) { ConcurrentGrantsTest(t, tester) })
	t.Run("TestClosedManager", func(t *testing.T) { ClosedManagerTest(t, tester) })
}

func newManager(t *testing.T, tester ManagerTester) users.Manager {
	t.Helper()

	m, err := tester.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func AddAndGetUserTest(t *testing.T, tester ManagerTester) {
	ctx := context.Background()
	m := newManager(t, tester)

	info := users.NewUserInfo("alice", "localhost", "secret", users.AuthSha256)
	require.NoError(t, m.AddUser(ctx, info))

	found, err := m.GetUser(ctx, "alice", "localhost")
	require.NoError(t, err)
	require.Equal(t, info, found)
	require.True(t, found.Privileges.IsEmpty())
	require.NotEqual(t, []byte("secret"), found.Password)
}

func AddExistingUserTest(t *testing.T, tester ManagerTester) {
	ctx := context.Background()
	m := newManager(t, tester)

	info := users.NewUserInfo("alice", "localhost", "secret", users.AuthSha256)
	require.NoError(t, m.AddUser(ctx, info))

	err := m.AddUser(ctx, info)
	require.ErrorAs(t, err, &users.ErrUserAlreadyExists{})
	require.True(t, fuseerrors.IsKind(err, fuseerrors.KindAlreadyExists))

	// Same name on another host is a different principal.
	require.NoError(t, m.AddUser(ctx, users.NewUserInfo("alice", "%", "secret", users.AuthSha256)))
}

func GetUsersOrderedTest(t *testing.T, tester ManagerTester) {
	ctx := context.Background()
	m := newManager(t, tester)

	for _, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, m.AddUser(ctx, users.NewUserInfo(name, "localhost", "", users.AuthNone)))
	}
	require.NoError(t, m.AddUser(ctx, users.NewUserInfo("alice", "%", "", users.AuthNone)))

	all, err := m.GetUsers(ctx)
	require.NoError(t, err)

	identities := make([]string, 0, len(all))
	for _, u := range all {
		identities = append(identities, u.Identity())
	}
	require.Equal(t, []string{
		"'alice'@'%'",
		"'alice'@'localhost'",
		"'bob'@'localhost'",
		"'carol'@'localhost'",
	}, identities)
}

func DropUserTest(t *testing.T, tester ManagerTester) {
	ctx := context.Background()
	m := newManager(t, tester)

	require.NoError(t, m.AddUser(ctx, users.NewUserInfo("alice", "localhost", "", users.AuthNone)))
	require.NoError(t, m.DropUser(ctx, "alice", "localhost"))

	_, err := m.GetUser(ctx, "alice", "localhost")
	require.True(t, users.IsUserNotFound(err))

	require.True(t, users.IsUserNotFound(m.DropUser(ctx, "alice", "localhost")))
}

func SetPrivilegesOverwritesTest(t *testing.T, tester ManagerTester) {
	ctx := context.Background()
	m := newManager(t, tester)

	require.NoError(t, m.AddUser(ctx, users.NewUserInfo("alice", "localhost", "", users.AuthNone)))

	selectInsert := users.NewPrivilegeSet(users.PrivilegeSelect, users.PrivilegeInsert)
	require.NoError(t, m.SetUserPrivileges(ctx, "alice", "localhost", selectInsert))
	require.NoError(t, m.SetUserPrivileges(ctx, "alice", "localhost", selectInsert))

	found, err := m.GetUser(ctx, "alice", "localhost")
	require.NoError(t, err)
	require.Equal(t, selectInsert, found.Privileges)

	create := users.NewPrivilegeSet(users.PrivilegeCreate)
	require.NoError(t, m.SetUserPrivileges(ctx, "alice", "localhost", create))

	found, err = m.GetUser(ctx, "alice", "localhost")
	require.NoError(t, err)
	require.Equal(t, create, found.Privileges)
}

func RevokePrivilegesTest(t *testing.T, tester ManagerTester) {
	ctx := context.Background()
	m := newManager(t, tester)

	require.NoError(t, m.AddUser(ctx, users.NewUserInfo("alice", "localhost", "", users.AuthNone)))
	require.NoError(t, m.SetUserPrivileges(ctx, "alice", "localhost", users.AllPrivileges))
	require.NoError(t, m.RevokeUserPrivileges(ctx, "alice", "localhost",
		users.NewPrivilegeSet(users.PrivilegeDrop, users.PrivilegeGrant)))

	found, err := m.GetUser(ctx, "alice", "localhost")
	require.NoError(t, err)
	require.Equal(t, "CREATE,SELECT,INSERT,SET", found.Privileges.String())
}

func UnknownUserTest(t *testing.T, tester ManagerTester) {
	ctx := context.Background()
	m := newManager(t, tester)

	_, err := m.GetUser(ctx, "nobody", "localhost")
	require.True(t, users.IsUserNotFound(err))
	require.True(t, fuseerrors.IsKind(err, fuseerrors.KindNotFound))

	err = m.SetUserPrivileges(ctx, "nobody", "localhost", users.AllPrivileges)
	require.True(t, users.IsUserNotFound(err))

	var notFound users.ErrUserNotFound
	require.ErrorAs(t, err, &notFound)
	name, hostname := notFound.NotFoundUser()
	require.Equal(t, "nobody", name)
	require.Equal(t, "localhost", hostname)
}

func ConcurrentGrantsTest(t *testing.T, tester ManagerTester) {
	ctx := context.Background()
	m := newManager(t, tester)

	require.NoError(t, m.AddUser(ctx, users.NewUserInfo("alice", "localhost", "", users.AuthNone)))

	sets := []users.PrivilegeSet{
		users.NewPrivilegeSet(users.PrivilegeSelect),
		users.NewPrivilegeSet(users.PrivilegeInsert, users.PrivilegeCreate),
		users.NewPrivilegeSet(users.PrivilegeDrop, users.PrivilegeGrant, users.PrivilegeSetting),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 30; i++ {
		set := sets[i%len(sets)]
		g.Go(func() error {
			if err := m.SetUserPrivileges(gctx, "alice", "localhost", set); err != nil {
				return err
			}

			found, err := m.GetUser(gctx, "alice", "localhost")
			if err != nil {
				return err
			}
			for _, s := range sets {
				if found.Privileges == s {
					return nil
				}
			}
			return fmt.Errorf("observed a mixed privilege set %s", found.Privileges)
		})
	}
	require.NoError(t, g.Wait())

	found, err := m.GetUser(ctx, "alice", "localhost")
	require.NoError(t, err)
	require.Contains(t, sets, found.Privileges)
}

func ClosedManagerTest(t *testing.T, tester ManagerTester) {
	ctx := context.Background()
	m := newManager(t, tester)

	require.NoError(t, m.AddUser(ctx, users.NewUserInfo("alice", "localhost", "", users.AuthNone)))
	require.NoError(t, m.Close())

	err := m.SetUserPrivileges(ctx, "alice", "localhost", users.AllPrivileges)
	require.ErrorIs(t, err, users.ErrStoreUnavailable)
	require.True(t, fuseerrors.IsKind(err, fuseerrors.KindUnavailable))

	_, err = m.GetUsers(ctx)
	require.ErrorIs(t, err, users.ErrStoreUnavailable)
}
