// Package timeline keeps the process-wide list of momentum-dump times.
package timeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tesslc/internal/archive"
	"tesslc/internal/cache"
	"tesslc/internal/logging"
	"tesslc/internal/metrics"
	"tesslc/internal/store"
	"tesslc/internal/tess"
)

const (
	DefaultTTL        = 24 * time.Hour
	DefaultRetryAfter = 10 * time.Minute

	snapshotKey = "timeline:dumps"
)

// Source records where the current timeline came from.
type Source string

const (
	SourceNone     Source = ""
	SourceRemote   Source = "remote"
	SourceSnapshot Source = "snapshot"
	SourceEmpty    Source = "empty"
)

// Timeline is an ascending, immutable list of event times.
type Timeline struct {
	times []float64
}

func New(times []float64) Timeline {
	cp := make([]float64, len(times))
	copy(cp, times)
	sort.Float64s(cp)
	return Timeline{times: cp}
}

func (t Timeline) Len() int { return len(t.times) }

// Times returns a copy of the event times.
func (t Timeline) Times() []float64 {
	cp := make([]float64, len(t.times))
	copy(cp, t.times)
	return cp
}

// Between returns the events strictly inside (start, end).
func (t Timeline) Between(start, end float64) []float64 {
	return tess.EventsInWindow(t.times, start, end)
}

type snapshot struct {
	Times []float64
}

type Options struct {
	TTL time.Duration
	// RetryAfter bounds how long a fallback timeline is served before the
	// feed is tried again.
	RetryAfter time.Duration
	Store      *store.Store
	Clock      cache.Clock
	Metrics    *metrics.Metrics
	Logger     logging.Logger
}

// Cache serves the timeline, refreshing it from the feed once it expires.
// A successful fetch overwrites the persisted snapshot; a failed fetch falls
// back to that snapshot, then to an empty timeline. Loads run outside the
// lock, at most one at a time, detached from the caller's cancellation.
type Cache struct {
	feed       archive.DumpFeed
	store      *store.Store
	ttl        time.Duration
	retryAfter time.Duration
	clock      cache.Clock
	metrics    *metrics.Metrics
	logger     logging.Logger
	fallback   *logging.RateLimited
	group      singleflight.Group

	mu        sync.Mutex
	current   Timeline
	source    Source
	expiresAt time.Time
}

type loaded struct {
	timeline Timeline
	source   Source
}

func NewCache(feed archive.DumpFeed, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = DefaultRetryAfter
	}
	logger := logging.OrNop(opts.Logger)
	return &Cache{
		feed:       feed,
		store:      opts.Store,
		ttl:        opts.TTL,
		retryAfter: opts.RetryAfter,
		clock:      cache.OrSystem(opts.Clock),
		metrics:    opts.Metrics,
		logger:     logger,
		fallback:   logging.NewRateLimited(logger, time.Minute),
	}
}

// Get returns the current timeline, loading it first when absent or expired.
// A caller whose ctx ends while the load runs gets the previous timeline;
// the load itself carries on for the next caller.
func (c *Cache) Get(ctx context.Context) Timeline {
	c.mu.Lock()
	cur, fresh := c.current, c.freshLocked()
	c.mu.Unlock()
	if fresh {
		return cur
	}
	if l, ok := c.load(ctx); ok {
		return l.timeline
	}
	return cur
}

// Refresh reloads the timeline regardless of expiry and reports where the
// new value came from.
func (c *Cache) Refresh(ctx context.Context) Source {
	if l, ok := c.load(ctx); ok {
		return l.source
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Expired reports whether the next Get would reload.
func (c *Cache) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.freshLocked()
}

func (c *Cache) freshLocked() bool {
	return c.source != SourceNone && c.clock.Now().Before(c.expiresAt)
}

// load joins or starts the shared fetch and waits for it unless ctx ends
// first.
func (c *Cache) load(ctx context.Context) (loaded, bool) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan("dumps", func() (any, error) {
		return c.fetch(detached), nil
	})
	select {
	case <-ctx.Done():
		return loaded{}, false
	case res := <-ch:
		return res.Val.(loaded), true
	}
}

func (c *Cache) fetch(ctx context.Context) loaded {
	now := c.clock.Now()
	times, err := c.feed.Fetch(ctx)
	if err == nil {
		l := loaded{timeline: New(times), source: SourceRemote}
		c.replace(l, now.Add(c.ttl))
		if c.store != nil {
			if err := store.PutValue(c.store, snapshotKey, snapshot{Times: times}, now); err != nil {
				c.logger.Warn("persist dump snapshot: %v", err)
			}
		}
		return l
	}

	c.fallback.Warn("fetch momentum dumps: %v; using local snapshot", err)
	l := loaded{source: SourceEmpty}
	if c.store != nil {
		var snap snapshot
		if _, ok := store.GetValue(c.store, snapshotKey, &snap); ok {
			l = loaded{timeline: New(snap.Times), source: SourceSnapshot}
		}
	}
	c.replace(l, now.Add(c.retryAfter))
	return l
}

func (c *Cache) replace(l loaded, expiresAt time.Time) {
	c.mu.Lock()
	c.current = l.timeline
	c.source = l.source
	c.expiresAt = expiresAt
	c.mu.Unlock()
	c.metrics.TimelineLoad(string(l.source))
}

// Run refreshes the timeline whenever it has expired, checking every
// interval, until ctx is done.
func (c *Cache) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !c.Expired() {
				continue
			}
			src := c.Refresh(ctx)
			c.logger.Info("momentum dumps refreshed from %s", src)
		}
	}
}
