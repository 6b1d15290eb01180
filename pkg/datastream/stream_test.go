package datastream

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/testutil"
)

var numbersSchema = datablock.NewSchema(
	datablock.NewField("number", datablock.TypeUInt64),
	datablock.NewField("label", datablock.TypeString),
)

func numbersBlock(t *testing.T, from, to uint64) *datablock.Block {
	t.Helper()

	values := make([]uint64, 0, to-from)
	labels := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		values = append(values, i)
		if i%2 == 0 {
			labels = append(labels, "even")
		} else {
			labels = append(labels, "odd")
		}
	}

	b, err := datablock.New(numbersSchema, []arrow.Array{
		datablock.UInt64Column(values...),
		datablock.StringColumn(labels...),
	})
	require.NoError(t, err)
	return b
}

func TestEmptyStream(t *testing.T) {
	t.Parallel()

	s := Empty(numbersSchema)
	require.Same(t, numbersSchema, s.Schema())

	_, err := s.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, ErrStreamClosed)
}

func TestFromSeqIsLazy(t *testing.T) {
	t.Parallel()

	produced := 0
	s := FromSeq(numbersSchema, func(yield func(*datablock.Block, error) bool) {
		for i := uint64(0); i < 3; i++ {
			produced++
			if !yield(numbersBlock(t, i*10, i*10+10), nil) {
				return
			}
		}
	})
	require.Equal(t, 0, produced)

	b, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, b.NumRows())
	require.Equal(t, 1, produced)

	require.NoError(t, s.Close())
	require.Equal(t, 1, produced)
}

func TestCloseStopsProducerAndRunsClosers(t *testing.T) {
	defer goleak.VerifyNone(t, testutil.GoLeakIgnores()...)

	var order []string
	s := FromSeq(numbersSchema, func(yield func(*datablock.Block, error) bool) {
		defer func() { order = append(order, "producer") }()
		for i := uint64(0); ; i++ {
			if !yield(numbersBlock(t, i, i+1), nil) {
				return
			}
		}
	},
		WithCloser(func() error {
			order = append(order, "first")
			return nil
		}),
		WithCloser(func() error {
			order = append(order, "second")
			return nil
		}),
	)

	_, err := s.Next(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Equal(t, []string{"producer", "second", "first"}, order)
}

func TestCloseBeforeNextRunsClosers(t *testing.T) {
	t.Parallel()

	closed := false
	s := FromSeq(numbersSchema, func(func(*datablock.Block, error) bool) {
		t.Fatal("producer must not start")
	}, WithCloser(func() error {
		closed = true
		return nil
	}))

	require.NoError(t, s.Close())
	require.True(t, closed)
}

func TestProducerErrorIsTerminal(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := FromSeq(numbersSchema, func(yield func(*datablock.Block, error) bool) {
		if !yield(numbersBlock(t, 0, 1), nil) {
			return
		}
		yield(nil, boom)
	})
	defer s.Close()

	_, err := s.Next(context.Background())
	require.NoError(t, err)

	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, boom)
	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	s := FromBlocks(numbersSchema, numbersBlock(t, 0, 5))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSchemaMismatchIsRejected(t *testing.T) {
	t.Parallel()

	other := datablock.NewSchema(datablock.NewField("number", datablock.TypeUInt64))
	s := FromBlocks(other, numbersBlock(t, 0, 5))
	defer s.Close()

	_, err := s.Next(context.Background())
	require.ErrorIs(t, err, datablock.ErrShapeMismatch)
}

func TestCollectAndRows(t *testing.T) {
	t.Parallel()

	blocks, err := Collect(context.Background(), FromBlocks(numbersSchema, numbersBlock(t, 0, 2), numbersBlock(t, 2, 3)))
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	rows, err := Rows(context.Background(), FromBlocks(numbersSchema, numbersBlock(t, 0, 3)))
	require.NoError(t, err)
	testutil.RequireRows(t, [][]any{
		{uint64(0), "even"},
		{uint64(1), "odd"},
		{uint64(2), "even"},
	}, rows)

	boom := errors.New("boom")
	_, err = Collect(context.Background(), Failed(numbersSchema, boom))
	require.ErrorIs(t, err, boom)
}
