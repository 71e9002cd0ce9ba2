// Package search memoizes observation searches per target.
package search

import (
	"context"
	"errors"
	"fmt"
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
	DefaultTTL      = 24 * time.Hour
	DefaultCapacity = 4096

	metricName = "search"
	diskPrefix = "search:"
)

// ErrEmptyResult means the search service answered but listed nothing.
var ErrEmptyResult = errors.New("no observation records")

// FetchError means the search service could not be reached or answered with
// something unusable. It is never cached.
type FetchError struct {
	Identifier tess.Identifier
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("search %s: %v", e.Identifier.Target(), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err came from a failed search call.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

type Options struct {
	TTL      time.Duration
	Capacity int
	Clock    cache.Clock
	// Store, when set, keeps results across restarts. Entries read back are
	// honoured only while still inside TTL.
	Store   *store.Store
	Metrics *metrics.Metrics
	Logger  logging.Logger
}

type persisted struct {
	Records []tess.ObservationRecord
}

// Cache returns search results per identifier, calling the search service
// at most once per TTL window.
type Cache struct {
	searcher archive.Searcher
	mem      *cache.TTL[tess.Identifier, []tess.ObservationRecord]
	disk     *store.Store
	group    singleflight.Group
	clock    cache.Clock
	metrics  *metrics.Metrics
	logger   logging.Logger
}

func New(searcher archive.Searcher, opts Options) (*Cache, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	clock := cache.OrSystem(opts.Clock)
	mem, err := cache.NewTTL[tess.Identifier, []tess.ObservationRecord](opts.Capacity, opts.TTL, clock)
	if err != nil {
		return nil, fmt.Errorf("search cache: %w", err)
	}
	return &Cache{
		searcher: searcher,
		mem:      mem,
		disk:     opts.Store,
		clock:    clock,
		metrics:  opts.Metrics,
		logger:   logging.OrNop(opts.Logger),
	}, nil
}

// Fetch returns the records for id. It returns ErrEmptyResult when the
// service listed no records, a *FetchError when the call failed and
// ctx.Err() when ctx ends first.
func (c *Cache) Fetch(ctx context.Context, id tess.Identifier) ([]tess.ObservationRecord, error) {
	if recs, ok := c.mem.Get(id); ok {
		c.metrics.CacheLookup(metricName, metrics.Hit)
		return result(recs)
	}
	if recs, ok := c.fromDisk(id); ok {
		c.metrics.CacheLookup(metricName, metrics.DiskHit)
		return result(recs)
	}
	c.metrics.CacheLookup(metricName, metrics.Miss)

	// The shared call outlives any one caller; each caller stops waiting
	// when its own ctx ends.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(id), func() (any, error) {
		recs, err := c.searcher.Search(detached, id.Target(), archive.Mission)
		if err != nil {
			return nil, &FetchError{Identifier: id, Err: err}
		}
		c.store(id, recs)
		return recs, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.logger.Warn("%v", res.Err)
			return nil, res.Err
		}
		return result(res.Val.([]tess.ObservationRecord))
	}
}

// Invalidate forgets id in every tier so the next Fetch calls the service.
func (c *Cache) Invalidate(id tess.Identifier) {
	c.mem.Invalidate(id)
	if c.disk != nil {
		if err := c.disk.Delete(diskPrefix + string(id)); err != nil {
			c.logger.Warn("invalidate %s: %v", id.Target(), err)
		}
	}
}

func (c *Cache) fromDisk(id tess.Identifier) ([]tess.ObservationRecord, bool) {
	if c.disk == nil {
		return nil, false
	}
	var p persisted
	storedAt, ok := store.GetValue(c.disk, diskPrefix+string(id), &p)
	if !ok {
		return nil, false
	}
	if !c.mem.PutAt(id, p.Records, storedAt) {
		return nil, false
	}
	return p.Records, true
}

func (c *Cache) store(id tess.Identifier, recs []tess.ObservationRecord) {
	c.mem.Put(id, recs)
	if c.disk == nil {
		return
	}
	if err := store.PutValue(c.disk, diskPrefix+string(id), persisted{Records: recs}, c.clock.Now()); err != nil {
		c.logger.Warn("persist search %s: %v", id.Target(), err)
	}
}

func result(recs []tess.ObservationRecord) ([]tess.ObservationRecord, error) {
	if len(recs) == 0 {
		return nil, ErrEmptyResult
	}
	return recs, nil
}
