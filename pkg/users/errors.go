package users

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fuselabs/fusequery/pkg/fuseerrors"
)

// ErrStoreUnavailable is returned when the user store cannot be reached.
var ErrStoreUnavailable = fuseerrors.NewUnavailableError(errors.New("user store is unavailable"))

// ErrUserNotFound occurs when a user was not found.
type ErrUserNotFound struct {
	error
	name     string
	hostname string
}

// NewUserNotFoundErr constructs a new user not found error.
func NewUserNotFoundErr(name, hostname string) error {
	return ErrUserNotFound{
		error:    fmt.Errorf("user %s not found", Identity(name, hostname)),
		name:     name,
		hostname: hostname,
	}
}

func (err ErrUserNotFound) IsNotFoundError() bool { return true }

func (err ErrUserNotFound) ErrorKind() fuseerrors.Kind { return fuseerrors.KindNotFound }

// NotFoundUser is the identity of the user not found.
func (err ErrUserNotFound) NotFoundUser() (string, string) {
	return err.name, err.hostname
}

// MarshalZerologObject implements zerolog object marshalling.
func (err ErrUserNotFound) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("user", err.name).Str("hostname", err.hostname)
}

// DetailsMetadata returns the metadata for details for this error.
func (err ErrUserNotFound) DetailsMetadata() map[string]string {
	return map[string]string{
		"user_name":     err.name,
		"user_hostname": err.hostname,
	}
}

// ErrUserAlreadyExists occurs when adding a user that already exists.
type ErrUserAlreadyExists struct {
	error
	name     string
	hostname string
}

// NewUserAlreadyExistsErr constructs a new user already exists error.
func NewUserAlreadyExistsErr(name, hostname string) error {
	return ErrUserAlreadyExists{
		error:    fmt.Errorf("user %s already exists", Identity(name, hostname)),
		name:     name,
		hostname: hostname,
	}
}

func (err ErrUserAlreadyExists) ErrorKind() fuseerrors.Kind { return fuseerrors.KindAlreadyExists }

// MarshalZerologObject implements zerolog object marshalling.
func (err ErrUserAlreadyExists) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("user", err.name).Str("hostname", err.hostname)
}

// DetailsMetadata returns the metadata for details for this error.
func (err ErrUserAlreadyExists) DetailsMetadata() map[string]string {
	return map[string]string{
		"user_name":     err.name,
		"user_hostname": err.hostname,
	}
}

// IsUserNotFound returns true if the error is, or wraps, a user not found
// error.
func IsUserNotFound(err error) bool {
	var notFound ErrUserNotFound
	return errors.As(err, &notFound)
}
