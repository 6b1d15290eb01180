package users_test

import (
	"testing"

	"github.com/fuselabs/fusequery/pkg/users"
	"github.com/fuselabs/fusequery/pkg/users/test"
)

func TestMemdbManager(t *testing.T) {
	test.All(t, test.ManagerTesterFunc(users.NewMemdbManager))
}
