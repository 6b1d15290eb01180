// Package users defines the user manager: the store of principals and their
// privileges that administrative statements mutate.
package users

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// AuthType is how a user authenticates.
type AuthType uint8

const (
	AuthNone AuthType = iota
	AuthPlainText
	AuthSha256
)

func (a AuthType) String() string {
	switch a {
	case AuthNone:
		return "none"
	case AuthPlainText:
		return "plaintext_password"
	case AuthSha256:
		return "sha256_password"
	default:
		return fmt.Sprintf("AuthType(%d)", uint8(a))
	}
}

// ParseAuthType parses the name of an auth type. An empty name is sha256.
func ParseAuthType(name string) (AuthType, error) {
	if name == "" {
		return AuthSha256, nil
	}
	for _, a := range []AuthType{AuthNone, AuthPlainText, AuthSha256} {
		if strings.EqualFold(a.String(), name) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown auth type `%s`", name)
}

// UserInfo is a principal, identified by name and hostname, and the
// privileges granted to it.
type UserInfo struct {
	Name       string
	Hostname   string
	AuthType   AuthType
	Password   []byte
	Privileges PrivilegeSet
}

// NewUserInfo returns a user without privileges. For sha256 users only the
// digest of the password is kept.
func NewUserInfo(name, hostname, password string, authType AuthType) UserInfo {
	info := UserInfo{Name: name, Hostname: hostname, AuthType: authType}
	switch authType {
	case AuthPlainText:
		info.Password = []byte(password)
	case AuthSha256:
		digest := sha256.Sum256([]byte(password))
		info.Password = digest[:]
	}
	return info
}

// Identity returns the user's `name`@`hostname` form.
func (u UserInfo) Identity() string {
	return Identity(u.Name, u.Hostname)
}

// MarshalZerologObject implements zerolog object marshalling.
func (u UserInfo) MarshalZerologObject(e *zerolog.Event) {
	e.Str("user", u.Identity()).Stringer("auth_type", u.AuthType).Stringer("privileges", u.Privileges)
}

// Identity formats a principal as `name`@`hostname`.
func Identity(name, hostname string) string {
	return fmt.Sprintf("'%s'@'%s'", name, hostname)
}

// Manager stores users and their privileges. Each mutation of a single
// (name, hostname) principal is atomic: readers observe either the previous
// or the new privilege set.
type Manager interface {
	// AddUser adds a new user, failing if it already exists.
	AddUser(ctx context.Context, user UserInfo) error

	// GetUser returns the user, or a not found error.
	GetUser(ctx context.Context, name, hostname string) (UserInfo, error)

	// GetUsers returns every user ordered by name and hostname.
	GetUsers(ctx context.Context) ([]UserInfo, error)

	// DropUser removes the user, or returns a not found error.
	DropUser(ctx context.Context, name, hostname string) error

	// SetUserPrivileges replaces the privileges of the user.
	SetUserPrivileges(ctx context.Context, name, hostname string, privileges PrivilegeSet) error

	// RevokeUserPrivileges removes the given privileges from the user.
	RevokeUserPrivileges(ctx context.Context, name, hostname string, privileges PrivilegeSet) error

	// Close releases the store. Every later call fails as unavailable.
	Close() error
}
