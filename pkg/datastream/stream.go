package datastream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/fuselabs/fusequery/pkg/closer"
	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
)

// ErrStreamClosed is returned by Next once the stream has been closed.
var ErrStreamClosed = errors.New("data block stream is closed")

// BlockSeq is a lazy sequence of blocks. Producers yield a non-nil error at
// most once, as their final element.
type BlockSeq = iter.Seq2[*datablock.Block, error]

// Stream is a pull-based, single-consumer sequence of blocks sharing one
// schema. Next returns io.EOF once the stream is exhausted. Close releases
// every resource held by the stream and may be called at any point, any number
// of times.
type Stream interface {
	Schema() *datablock.Schema
	Next(ctx context.Context) (*datablock.Block, error)
	Close() error
}

// Option configures a stream built by FromSeq.
type Option func(*seqStream)

// WithCloser registers a function run when the stream is closed. Closers run
// in reverse registration order after the producing sequence has stopped.
func WithCloser(fn func() error) Option {
	return func(s *seqStream) {
		s.closers.AddWithError(fn)
	}
}

// FromSeq returns a stream over the given sequence. The sequence is not
// started until the first call to Next.
func FromSeq(schema *datablock.Schema, seq BlockSeq, opts ...Option) Stream {
	s := &seqStream{schema: schema, seq: seq}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromBlocks returns a stream yielding the given blocks in order.
func FromBlocks(schema *datablock.Schema, blocks ...*datablock.Block) Stream {
	return FromSeq(schema, func(yield func(*datablock.Block, error) bool) {
		for _, b := range blocks {
			if !yield(b, nil) {
				return
			}
		}
	})
}

// Empty returns a stream that completes immediately without blocks.
func Empty(schema *datablock.Schema) Stream {
	return FromSeq(schema, func(func(*datablock.Block, error) bool) {})
}

// Failed returns a stream whose first Next fails with err.
func Failed(schema *datablock.Schema, err error) Stream {
	return FromSeq(schema, func(yield func(*datablock.Block, error) bool) {
		yield(nil, err)
	})
}

type seqStream struct {
	schema *datablock.Schema
	seq    BlockSeq

	mu      sync.Mutex
	next    func() (*datablock.Block, error, bool)
	stop    func()
	err     error
	closed  bool
	closers closer.Stack
}

func (s *seqStream) Schema() *datablock.Schema { return s.schema }

func (s *seqStream) Next(ctx context.Context) (*datablock.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.next == nil {
		s.next, s.stop = iter.Pull2(s.seq)
	}

	b, err, ok := s.next()
	switch {
	case !ok:
		s.err = io.EOF
	case err != nil:
		s.err = err
	case b == nil:
		s.err = fuseerrors.MustBugf("stream produced a nil block")
	case !b.Schema().Equal(s.schema):
		s.err = fuseerrors.NewValidationError(fmt.Errorf("%w: stream of %s produced a block of %s",
			datablock.ErrShapeMismatch, s.schema, b.Schema()))
	default:
		return b, nil
	}
	return nil, s.err
}

func (s *seqStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stop := s.stop
	s.stop, s.next = nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	return s.closers.Close()
}

// Blocks adapts a stream back into a sequence. The sequence ends at io.EOF and
// does not close the stream.
func Blocks(ctx context.Context, s Stream) BlockSeq {
	return func(yield func(*datablock.Block, error) bool) {
		for {
			b, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(b, nil) {
				return
			}
		}
	}
}

// Collect drains and closes the stream, returning every block it produced.
func Collect(ctx context.Context, s Stream) (blocks []*datablock.Block, err error) {
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for b, err := range Blocks(ctx, s) {
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Rows drains and closes the stream, returning every row as boxed values.
func Rows(ctx context.Context, s Stream) ([][]any, error) {
	blocks, err := Collect(ctx, s)
	if err != nil {
		return nil, err
	}

	var rows [][]any
	for _, b := range blocks {
		for i := 0; i < b.NumRows(); i++ {
			rows = append(rows, b.Row(i))
		}
	}
	return rows, nil
}
