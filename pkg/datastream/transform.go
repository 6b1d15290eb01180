package datastream

import (
	"context"
	"io"
	"sync"

	"github.com/fuselabs/fusequery/pkg/closer"
	"github.com/fuselabs/fusequery/pkg/datablock"
	"github.com/fuselabs/fusequery/pkg/fuseerrors"
)

// transformFunc maps one input block. A nil block with done unset skips the
// input block; done ends the stream after out, if any, is returned.
type transformFunc func(in *datablock.Block) (out *datablock.Block, done bool, err error)

type transformStream struct {
	input  Stream
	schema *datablock.Schema
	fn     transformFunc

	mu      sync.Mutex
	done    bool
	closers closer.Stack
}

func newTransform(input Stream, schema *datablock.Schema, fn transformFunc) *transformStream {
	t := &transformStream{input: input, schema: schema, fn: fn}
	t.closers.AddWithError(input.Close)
	return t
}

func (t *transformStream) Schema() *datablock.Schema { return t.schema }

func (t *transformStream) Next(ctx context.Context) (*datablock.Block, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closers.Closed() {
		return nil, ErrStreamClosed
	}

	for !t.done {
		in, err := t.input.Next(ctx)
		if err != nil {
			return nil, err
		}

		out, done, err := t.fn(in)
		if err != nil {
			return nil, err
		}
		t.done = done
		if out != nil {
			return out, nil
		}
	}
	return nil, io.EOF
}

func (t *transformStream) Close() error {
	return t.closers.Close()
}

// Limit returns a stream yielding at most n rows of the input.
func Limit(input Stream, n uint64) Stream {
	remaining := n
	if remaining == 0 {
		s := Empty(input.Schema())
		return OnClose(s, input.Close)
	}

	return newTransform(input, input.Schema(), func(in *datablock.Block) (*datablock.Block, bool, error) {
		rows := uint64(in.NumRows())
		if rows < remaining {
			remaining -= rows
			return in, false, nil
		}
		out := in.Slice(0, int(remaining))
		remaining = 0
		return out, true, nil
	})
}

// Project returns a stream with only the named columns of the input.
func Project(input Stream, names ...string) (Stream, error) {
	schema, err := input.Schema().Project(names...)
	if err != nil {
		return nil, fuseerrors.NewValidationError(err)
	}

	return newTransform(input, schema, func(in *datablock.Block) (*datablock.Block, bool, error) {
		out, err := in.Project(names...)
		return out, false, err
	}), nil
}

// Predicate decides whether a row of a block is kept.
type Predicate func(b *datablock.Block, row int) (bool, error)

// Filter returns a stream with only the input rows accepted by keep. Blocks
// left without rows are skipped.
func Filter(input Stream, keep Predicate) Stream {
	return newTransform(input, input.Schema(), func(in *datablock.Block) (*datablock.Block, bool, error) {
		rows := make([]int, 0, in.NumRows())
		for i := 0; i < in.NumRows(); i++ {
			ok, err := keep(in, i)
			if err != nil {
				return nil, false, err
			}
			if ok {
				rows = append(rows, i)
			}
		}

		switch len(rows) {
		case 0:
			return nil, false, nil
		case in.NumRows():
			return in, false, nil
		default:
			out, err := in.Take(rows)
			return out, false, err
		}
	})
}

// OnClose returns a stream that runs fn after the input has been closed.
func OnClose(input Stream, fn func() error) Stream {
	t := &transformStream{input: input, schema: input.Schema()}
	t.closers.AddWithError(fn)
	t.closers.AddWithError(input.Close)
	t.fn = func(in *datablock.Block) (*datablock.Block, bool, error) {
		return in, false, nil
	}
	return t
}
