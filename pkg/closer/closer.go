package closer

import (
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Stack releases registered resources in reverse registration order, exactly
// once. It is safe for concurrent use.
type Stack struct {
	mu      sync.Mutex
	closers []func() error
	closed  bool
}

func (c *Stack) AddWithError(closer func() error) {
	if closer == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// Late registrations are released immediately.
		_ = closer()
		return
	}
	c.closers = append(c.closers, closer)
}

func (c *Stack) AddCloser(closer io.Closer) {
	if closer != nil {
		c.AddWithError(closer.Close)
	}
}

func (c *Stack) AddWithoutError(closer func()) {
	if closer == nil {
		return
	}
	c.AddWithError(func() error {
		closer()
		return nil
	})
}

// Closed returns true once Close has been called.
func (c *Stack) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Stack) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var err error
	// closer in reverse order how it's expected in deferred funcs
	for i := len(closers) - 1; i >= 0; i-- {
		if closerErr := closers[i](); closerErr != nil {
			err = multierror.Append(err, closerErr)
		}
	}
	return err
}

func (c *Stack) CloseIfError(err error) error {
	if err != nil {
		return c.Close()
	}
	return nil
}
