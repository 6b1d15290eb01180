package fuseerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	for _, tc := range []struct {
		name     string
		err      error
		expected Kind
		code     codes.Code
	}{
		{"nil", nil, KindUnknown, codes.OK},
		{"plain", base, KindUnknown, codes.Unknown},
		{"validation", NewValidationError(base), KindValidation, codes.InvalidArgument},
		{"not found", NewNotFoundError(base), KindNotFound, codes.NotFound},
		{"already exists", NewAlreadyExistsError(base), KindAlreadyExists, codes.AlreadyExists},
		{"unavailable", NewUnavailableError(base), KindUnavailable, codes.Unavailable},
		{"permission denied", NewPermissionDeniedError(base), KindPermissionDenied, codes.PermissionDenied},
		{"wrapped", fmt.Errorf("outer: %w", NewNotFoundError(base)), KindNotFound, codes.NotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expected, KindOf(tc.err))
			require.Equal(t, tc.code, GRPCStatus(tc.err).Code())
		})
	}
}

func TestErrorUnwrapsToCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("store offline")
	err := NewUnavailableError(cause)
	require.ErrorIs(t, err, cause)

	s, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, codes.Unavailable, s.Code())
	require.Equal(t, "store offline", s.Message())
}

func TestWithDetail(t *testing.T) {
	t.Parallel()

	err := NewNotFoundError(errors.New("missing"))
	detailed := err.WithDetail("user", "alice")
	require.Empty(t, err.DetailsMetadata())
	require.Equal(t, map[string]string{"user": "alice"}, detailed.DetailsMetadata())
}
