// Package catalog fetches and formats stellar parameters for a target.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tesslc/internal/archive"
	"tesslc/internal/cache"
	"tesslc/internal/logging"
	"tesslc/internal/metrics"
	"tesslc/internal/tess"
)

// ErrorPrefix starts every summary that reports a failed lookup.
const ErrorPrefix = "Error getting star data"

const (
	DefaultTTL      = 24 * time.Hour
	DefaultCapacity = 200
	DefaultRadius   = 0.001 // degrees

	missing    = "?"
	metricName = "catalog"
)

var errNoFields = errors.New("catalog returned no fields")

// IsError reports whether summary is a failed-lookup sentinel.
func IsError(summary string) bool {
	return strings.HasPrefix(summary, ErrorPrefix)
}

type Options struct {
	TTL      time.Duration
	Capacity int
	Radius   float64
	Clock    cache.Clock
	Metrics  *metrics.Metrics
	Logger   logging.Logger
}

// Fetcher returns a formatted catalog summary per identifier. Successful
// summaries are memoized until they expire or are invalidated; error
// sentinels never are.
type Fetcher struct {
	querier archive.CatalogQuerier
	radius  float64
	memo    *cache.TTL[tess.Identifier, string]
	metrics *metrics.Metrics
	logger  logging.Logger
}

func New(querier archive.CatalogQuerier, opts Options) (*Fetcher, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Radius <= 0 {
		opts.Radius = DefaultRadius
	}
	memo, err := cache.NewTTL[tess.Identifier, string](opts.Capacity, opts.TTL, opts.Clock)
	if err != nil {
		return nil, fmt.Errorf("catalog cache: %w", err)
	}
	return &Fetcher{
		querier: querier,
		radius:  opts.Radius,
		memo:    memo,
		metrics: opts.Metrics,
		logger:  logging.OrNop(opts.Logger),
	}, nil
}

// Fetch never fails: lookup problems come back as a summary starting with
// ErrorPrefix.
func (f *Fetcher) Fetch(ctx context.Context, id tess.Identifier) string {
	if s, ok := f.memo.Get(id); ok {
		f.metrics.CacheLookup(metricName, metrics.Hit)
		return s
	}
	f.metrics.CacheLookup(metricName, metrics.Miss)

	star, err := f.querier.Query(ctx, id.Target(), f.radius)
	if err == nil && empty(star) {
		err = errNoFields
	}
	if err != nil {
		// Failures stay out of the memo so every new attempt reaches the
		// service.
		f.logger.Warn("catalog %s: %v", id.Target(), err)
		return fmt.Sprintf("%s: %v", ErrorPrefix, err)
	}
	summary := Format(star)
	f.memo.Put(id, summary)
	return summary
}

// Invalidate drops the memoized summary for id.
func (f *Fetcher) Invalidate(id tess.Identifier) {
	f.memo.Invalidate(id)
}

// Format renders the catalog fields, one group per line.
func Format(s archive.Star) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RA: %s  Dec: %s\n", num(s.RA, 5), num(s.Dec, 5))
	fmt.Fprintf(&b, "Tmag: %s\n", num(s.Tmag, 3))
	fmt.Fprintf(&b, "Teff: %s K  logg: %s  [M/H]: %s\n", num(s.Teff, 2), num(s.Logg, 3), num(s.MH, 3))
	fmt.Fprintf(&b, "Radius: %s Rsun  Mass: %s Msun  Density: %s\n", num(s.Rad, 3), num(s.Mass, 3), num(s.Rho, 3))
	fmt.Fprintf(&b, "Distance: %s pc", num(s.Distance, 2))
	return b.String()
}

func num(v *float64, prec int) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return missing
	}
	return strconv.FormatFloat(round(*v, prec), 'f', prec, 64)
}

func round(v float64, prec int) float64 {
	p := math.Pow(10, float64(prec))
	return math.Round(v*p) / p
}

func empty(s archive.Star) bool {
	for _, v := range []*float64{s.RA, s.Dec, s.Tmag, s.Rad, s.Mass, s.Teff, s.Logg, s.MH, s.Rho, s.Distance} {
		if v != nil {
			return false
		}
	}
	return true
}
