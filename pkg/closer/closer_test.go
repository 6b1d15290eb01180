package closer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackClosesInReverseOrderOnce(t *testing.T) {
	t.Parallel()

	var order []int
	var s Stack
	s.AddWithoutError(func() { order = append(order, 1) })
	s.AddWithoutError(func() { order = append(order, 2) })
	s.AddWithError(func() error {
		order = append(order, 3)
		return nil
	})

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Equal(t, []int{3, 2, 1}, order)
	require.True(t, s.Closed())
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestStackCollectsErrors(t *testing.T) {
	t.Parallel()

	first := errors.New("first")
	second := errors.New("second")

	var s Stack
	s.AddWithError(func() error { return first })
	s.AddCloser(closerFunc(func() error { return second }))
	s.AddCloser(nil)

	err := s.Close()
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)
}

func TestStackReleasesLateRegistrations(t *testing.T) {
	t.Parallel()

	var s Stack
	require.NoError(t, s.Close())

	released := false
	s.AddWithoutError(func() { released = true })
	require.True(t, released)
}

func TestCloseIfError(t *testing.T) {
	t.Parallel()

	released := false
	var s Stack
	s.AddWithoutError(func() { released = true })

	require.NoError(t, s.CloseIfError(nil))
	require.False(t, released)

	require.NoError(t, s.CloseIfError(errors.New("failed")))
	require.True(t, released)
}
