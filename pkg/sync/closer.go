package sync

import "sync"

// Closer implements an idempotent, thread-safe closed signal. Close may be
// called any number of times from any goroutine; Done reports completion.
type Closer struct {
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewCloser returns a new Closer.
func NewCloser() *Closer {
	return &Closer{doneCh: make(chan struct{})}
}

// Done returns the channel closed by the first Close call.
func (c *Closer) Done() <-chan struct{} {
	return c.doneCh
}

// Close marks the Closer as closed.
func (c *Closer) Close() {
	c.closeOnce.Do(func() {
		close(c.doneCh)
	})
}
