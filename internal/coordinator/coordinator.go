// Package coordinator runs the catalog lookup beside the page render and
// joins it with a bounded wait.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"tesslc/internal/catalog"
	"tesslc/internal/logging"
	"tesslc/internal/metrics"
	"tesslc/internal/tess"
)

const (
	DefaultJoinTimeout = 10 * time.Second

	// TimeoutMessage replaces the metadata panel when the join times out.
	TimeoutMessage = "Timeout getting star data"
)

// Source produces catalog summaries. Failures come back as summaries that
// catalog.IsError recognizes.
type Source interface {
	Fetch(ctx context.Context, id tess.Identifier) string
	Invalidate(id tess.Identifier)
}

// Status is what the metadata panel shows after a checkpoint.
type Status struct {
	Identifier tess.Identifier
	State      State
	Text       string
}

// Failed reports whether the panel shows an error or timeout instead of data.
func (s Status) Failed() bool {
	return s.State == TimedOut || (s.State == Completed && catalog.IsError(s.Text))
}

// handle is one in-flight fetch. The worker is the only writer of result,
// which has room for exactly one value so a late write never blocks.
type handle struct {
	id     tess.Identifier
	result chan string
	done   chan struct{}
	cancel context.CancelFunc
}

func (h *handle) running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

type Options struct {
	JoinTimeout time.Duration
	// Base bounds every worker's lifetime; cancelling it stops them all.
	Base    context.Context
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Coordinator starts, polls and joins background catalog fetches. Its
// methods run on the page-render path and are the only writers of a
// session's metadata cache.
type Coordinator struct {
	source      Source
	joinTimeout time.Duration
	base        context.Context
	logger      logging.Logger
	metrics     *metrics.Metrics
}

func New(source Source, opts Options) *Coordinator {
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	if opts.Base == nil {
		opts.Base = context.Background()
	}
	return &Coordinator{
		source:      source,
		joinTimeout: opts.JoinTimeout,
		base:        opts.Base,
		logger:      logging.OrNop(opts.Logger),
		metrics:     opts.Metrics,
	}
}

// Begin makes id the session's target and starts a fetch unless the session
// already holds a summary for it or one is already running.
func (c *Coordinator) Begin(s *Session, id tess.Identifier) Status {
	if s.identifier != id {
		c.drop(s, Cancelled)
		s.identifier = id
	}
	if text, ok := s.Metadata(id); ok {
		return Status{Identifier: id, State: Completed, Text: text}
	}
	if s.handle != nil {
		return Status{Identifier: id, State: Running}
	}
	s.handle = c.spawn(id)
	return Status{Identifier: id, State: Running}
}

func (c *Coordinator) spawn(id tess.Identifier) *handle {
	ctx, cancel := context.WithCancel(c.base)
	h := &handle{
		id:     id,
		result: make(chan string, 1),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("catalog worker panic [%s]: %v", id.Target(), r)
				deliver(h, fmt.Sprintf("%s: %v", catalog.ErrorPrefix, r))
			}
		}()
		deliver(h, c.source.Fetch(ctx, id))
	}()
	c.logger.Debug("catalog worker started for %s", id.Target())
	return h
}

func deliver(h *handle, text string) {
	select {
	case h.result <- text:
	default:
	}
}

// Poll is a non-blocking checkpoint. It reports true once the session's
// panel has a final value.
func (c *Coordinator) Poll(s *Session) (Status, bool) {
	if text, ok := s.Metadata(s.identifier); ok {
		c.drop(s, Completed)
		return Status{Identifier: s.identifier, State: Completed, Text: text}, true
	}
	h := s.handle
	if h == nil {
		return Status{Identifier: s.identifier, State: Idle}, false
	}
	select {
	case text := <-h.result:
		return c.complete(s, h, text), true
	default:
		return Status{Identifier: s.identifier, State: Running}, false
	}
}

// Finish is the last checkpoint of a page view. If no result has arrived it
// waits up to the join timeout, then cancels the worker and reports a
// timeout. When ctx ends first the worker is cancelled and the status is
// Cancelled. The session holds no handle afterwards.
func (c *Coordinator) Finish(ctx context.Context, s *Session) Status {
	if st, ok := c.Poll(s); ok {
		return st
	}
	h := s.handle
	if h == nil {
		return Status{Identifier: s.identifier, State: Idle}
	}

	timer := time.NewTimer(c.joinTimeout)
	defer timer.Stop()
	select {
	case text := <-h.result:
		return c.complete(s, h, text)
	case <-timer.C:
	case <-ctx.Done():
		c.drop(s, Cancelled)
		return Status{Identifier: s.identifier, State: Cancelled}
	}
	c.drop(s, TimedOut)
	c.logger.Warn("catalog lookup for %s timed out after %s", h.id.Target(), c.joinTimeout)
	return Status{Identifier: s.identifier, State: TimedOut, Text: TimeoutMessage}
}

// Cancel abandons any in-flight fetch, e.g. when the viewer leaves.
func (c *Coordinator) Cancel(s *Session) {
	c.drop(s, Cancelled)
}

func (c *Coordinator) complete(s *Session, h *handle, text string) Status {
	s.handle = nil
	h.cancel()
	if catalog.IsError(text) {
		// Leave the slot empty so the next view tries again.
		c.source.Invalidate(h.id)
		c.metrics.BackgroundFetch("error")
	} else {
		s.metadata.Put(h.id, text)
		c.metrics.BackgroundFetch(Completed.String())
	}
	return Status{Identifier: h.id, State: Completed, Text: text}
}

// drop detaches the session's handle, cancelling the worker if it is still
// running. A result it delivers later lands in a channel nobody reads.
func (c *Coordinator) drop(s *Session, why State) {
	h := s.handle
	if h == nil {
		return
	}
	s.handle = nil
	if h.running() {
		h.cancel()
		c.metrics.BackgroundFetch(why.String())
		c.logger.Debug("catalog worker for %s %s", h.id.Target(), why)
		return
	}
	h.cancel()
}
