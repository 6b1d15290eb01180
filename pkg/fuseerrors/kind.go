package fuseerrors

import (
	"errors"
	"maps"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a failure for callers that must decide how to surface it.
type Kind int

const (
	// KindUnknown is reported for errors carrying no classification.
	KindUnknown Kind = iota

	// KindValidation is a malformed or unsupported request.
	KindValidation

	// KindNotFound is a referenced resource or principal that does not exist.
	KindNotFound

	// KindAlreadyExists is a resource that was expected to be absent.
	KindAlreadyExists

	// KindUnavailable is an I/O or network failure talking to a collaborator.
	KindUnavailable

	// KindPermissionDenied is an access-control rejection.
	KindPermissionDenied

	// KindInternal is a bug in the engine.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindUnavailable:
		return "unavailable"
	case KindPermissionDenied:
		return "permission_denied"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Code returns the gRPC code front ends report for the kind.
func (k Kind) Code() codes.Code {
	switch k {
	case KindValidation:
		return codes.InvalidArgument
	case KindNotFound:
		return codes.NotFound
	case KindAlreadyExists:
		return codes.AlreadyExists
	case KindUnavailable:
		return codes.Unavailable
	case KindPermissionDenied:
		return codes.PermissionDenied
	case KindInternal:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// HasKind is implemented by errors that carry a classification.
type HasKind interface {
	ErrorKind() Kind
}

// HasMetadata indicates that the error has metadata defined.
type HasMetadata interface {
	// DetailsMetadata returns the metadata for details for this error.
	DetailsMetadata() map[string]string
}

// Error is a classified error with optional details.
type Error struct {
	error
	kind     Kind
	metadata map[string]string
}

var (
	_ HasKind     = (*Error)(nil)
	_ HasMetadata = (*Error)(nil)
)

// ErrorKind returns the classification of the error.
func (err *Error) ErrorKind() Kind { return err.kind }

// Unwrap returns the inner, wrapped error.
func (err *Error) Unwrap() error { return err.error }

// DetailsMetadata returns the metadata for details for this error.
func (err *Error) DetailsMetadata() map[string]string {
	return maps.Clone(err.metadata)
}

// WithDetail returns a copy of the error with an additional detail set.
func (err *Error) WithDetail(key, value string) *Error {
	metadata := maps.Clone(err.metadata)
	if metadata == nil {
		metadata = make(map[string]string, 1)
	}
	metadata[key] = value
	return &Error{err.error, err.kind, metadata}
}

// MarshalZerologObject implements zerolog object marshalling.
func (err *Error) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Stringer("kind", err.kind)
	for k, v := range err.metadata {
		e.Str(k, v)
	}
}

// GRPCStatus implements the interface used by status.FromError.
func (err *Error) GRPCStatus() *status.Status {
	return status.New(err.kind.Code(), err.Error())
}

// New classifies err under kind.
func New(kind Kind, err error) *Error {
	return &Error{error: err, kind: kind}
}

// NewValidationError constructs a validation error.
func NewValidationError(err error) *Error { return New(KindValidation, err) }

// NewNotFoundError constructs a not-found error.
func NewNotFoundError(err error) *Error { return New(KindNotFound, err) }

// NewAlreadyExistsError constructs an already-exists error.
func NewAlreadyExistsError(err error) *Error { return New(KindAlreadyExists, err) }

// NewUnavailableError constructs an unavailable error.
func NewUnavailableError(err error) *Error { return New(KindUnavailable, err) }

// NewPermissionDeniedError constructs a permission-denied error.
func NewPermissionDeniedError(err error) *Error { return New(KindPermissionDenied, err) }

// KindOf returns the classification of the outermost classified error in the
// chain, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var withKind HasKind
	if errors.As(err, &withKind) {
		return withKind.ErrorKind()
	}
	return KindUnknown
}

// IsKind returns true if err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// GRPCStatus converts any error into a gRPC status based on its kind.
func GRPCStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if s, ok := status.FromError(err); ok {
		return s
	}
	return status.New(KindOf(err).Code(), err.Error())
}
