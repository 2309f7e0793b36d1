// Package stopper provides a cooperative-cancellation context used to
// coordinate shutdown across the extractor, pipeline, and sinker
// goroutines without tearing down in-flight work mid-batch.
package stopper

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// A Context wraps a context.Context with a registry of background
// goroutines and a two-phase shutdown: Stop() requests that tasks wind
// down at their next suspension point, Wait() blocks until they have.
type Context struct {
	context.Context

	mu       sync.Mutex
	wg       sync.WaitGroup
	stopping chan struct{}
	stopOnce sync.Once
	errs     []error
}

// WithContext creates a new stopper Context bound to a parent context.
func WithContext(parent context.Context) *Context {
	return &Context{
		Context:  parent,
		stopping: make(chan struct{}),
	}
}

// Go runs fn in a new goroutine. If fn returns a non-nil error, it is
// recorded and Stop is called so that sibling tasks unwind too.
func (c *Context) Go(fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(); err != nil {
			c.mu.Lock()
			c.errs = append(c.errs, err)
			c.mu.Unlock()
			log.WithError(err).Warn("task exited with error, initiating shutdown")
			c.Stop()
		}
	}()
}

// Stop requests all registered tasks to stop at their next suspension
// point. It is safe to call multiple times.
func (c *Context) Stop() {
	c.stopOnce.Do(func() { close(c.stopping) })
}

// Stopping returns a channel that is closed once Stop has been called.
func (c *Context) Stopping() <-chan struct{} {
	return c.stopping
}

// IsStopping reports whether Stop has already been requested.
func (c *Context) IsStopping() bool {
	select {
	case <-c.stopping:
		return true
	default:
		return false
	}
}

// Wait blocks until every goroutine started with Go has returned, then
// returns the first recorded error, if any.
func (c *Context) Wait() error {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	return errors.WithStack(c.errs[0])
}
