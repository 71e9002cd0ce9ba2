// Package pipeline runs one page view: search, resolve, paginate,
// materialize and annotate, with the catalog lookup joined at the end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tesslc/internal/archive"
	"tesslc/internal/coordinator"
	"tesslc/internal/logging"
	"tesslc/internal/metrics"
	"tesslc/internal/search"
	"tesslc/internal/tess"
	"tesslc/internal/timeline"
)

const (
	DefaultPageSize = 8

	MsgResolution = "Error in lightcurve search... Try again."
	MsgNoData     = "No available lightcurves or TIC number error..."
)

var (
	// ErrResolution stops a page view whose search failed.
	ErrResolution = errors.New("lightcurve search failed")
	// ErrNoData stops a page view with no qualifying sectors.
	ErrNoData = errors.New("no qualifying lightcurves")
	// ErrEmptySeries marks a sector whose lightcurve came back without points.
	ErrEmptySeries = errors.New("lightcurve has no points")
)

// Searcher is the search-result cache as seen by a page view.
type Searcher interface {
	Fetch(ctx context.Context, id tess.Identifier) ([]tess.ObservationRecord, error)
	Invalidate(id tess.Identifier)
}

// Timelines hands out the current momentum-dump timeline.
type Timelines interface {
	Get(ctx context.Context) timeline.Timeline
}

// Request is one page view.
type Request struct {
	Identifier tess.Identifier
	Flux       tess.FluxChannel
	Page       int
}

// Outcome summarizes a finished page view.
type Outcome struct {
	Identifier tess.Identifier
	Page       int
	PageCount  int
	Rendered   []int
	Failed     []int
	Metadata   coordinator.Status
}

type Options struct {
	PageSize    int
	MinExposure float64
	// Concurrency bounds parallel materializations within a page; 1 keeps
	// them sequential.
	Concurrency        int
	MaterializeTimeout time.Duration
	Stats              *metrics.PointStats
	Metrics            *metrics.Metrics
	Logger             logging.Logger
}

type Pipeline struct {
	search       Searcher
	coord        *coordinator.Coordinator
	timelines    Timelines
	materializer archive.Materializer

	pageSize           int
	minExposure        float64
	concurrency        int
	materializeTimeout time.Duration

	stats   *metrics.PointStats
	metrics *metrics.Metrics
	logger  logging.Logger
}

func New(s Searcher, coord *coordinator.Coordinator, tl Timelines, m archive.Materializer, opts Options) *Pipeline {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MinExposure <= 0 {
		opts.MinExposure = tess.DefaultMinExposure
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Pipeline{
		search:             s,
		coord:              coord,
		timelines:          tl,
		materializer:       m,
		pageSize:           opts.PageSize,
		minExposure:        opts.MinExposure,
		concurrency:        opts.Concurrency,
		materializeTimeout: opts.MaterializeTimeout,
		stats:              opts.Stats,
		metrics:            opts.Metrics,
		logger:             logging.OrNop(opts.Logger),
	}
}

// View renders one page for the session. It returns ErrResolution or
// ErrNoData when the target cannot be shown at all; per-sector failures and
// catalog timeouts are rendered inline and do not produce an error.
func (p *Pipeline) View(ctx context.Context, sess *coordinator.Session, req Request, r Renderer) (Outcome, error) {
	id := req.Identifier
	out := Outcome{Identifier: id}
	if !id.Valid() {
		p.coord.Cancel(sess)
		r.Intro()
		return out, nil
	}
	r.Header(id)

	records, err := p.search.Fetch(ctx, id)
	if err != nil && ctx.Err() != nil {
		return out, ctx.Err()
	}
	if err != nil {
		p.search.Invalidate(id)
		if errors.Is(err, search.ErrEmptyResult) {
			r.Message(MsgNoData)
			return out, fmt.Errorf("%s: %w", id.Target(), ErrNoData)
		}
		r.Message(MsgResolution)
		return out, fmt.Errorf("%w: %w", ErrResolution, err)
	}

	resolved := tess.Resolve(records, p.minExposure)
	r.Sectors(tess.Summarize(records))
	if resolved.Len() == 0 {
		p.search.Invalidate(id)
		r.Message(MsgNoData)
		return out, fmt.Errorf("%s: %w", id.Target(), ErrNoData)
	}

	p.coord.Begin(sess, id)
	st, shown := p.coord.Poll(sess)
	if shown {
		r.Metadata(st)
	}

	pages := tess.Paginate(resolved.Epochs(), p.pageSize)
	page, _ := tess.SelectPage(pages, req.Page)
	out.Page, out.PageCount = page.Number, len(pages)
	if tess.NeedsSelector(pages) {
		r.Pages(tess.Labels(pages), page.Number)
	}

	tl := p.timelines.Get(ctx)
	for _, res := range p.materializePage(ctx, page.Display(), resolved, req.Flux, tl) {
		if res.err != nil {
			r.EpochError(EpochFailure{Epoch: res.plot.Epoch, Authority: res.plot.Authority, Title: res.plot.Title, Err: res.err})
			out.Failed = append(out.Failed, res.plot.Epoch)
			continue
		}
		r.Epoch(res.plot)
		out.Rendered = append(out.Rendered, res.plot.Epoch)
	}

	if !shown {
		st = p.coord.Finish(ctx, sess)
		r.Metadata(st)
	}
	out.Metadata = st
	return out, nil
}

type epochResult struct {
	plot EpochPlot
	err  error
}

// materializePage fetches the sectors of one page, keeping display order.
func (p *Pipeline) materializePage(ctx context.Context, epochs []int, resolved tess.ResolvedEpochMap, flux tess.FluxChannel, tl timeline.Timeline) []epochResult {
	results := make([]epochResult, len(epochs))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, epoch := range epochs {
		res, _ := resolved.Get(epoch)
		results[i].plot = EpochPlot{
			Epoch:     epoch,
			Authority: res.Authority,
			Title:     Title(epoch, res.Authority),
		}
		g.Go(func() error {
			series, err := p.materialize(ctx, res, flux)
			if err != nil {
				p.logger.Warn("sector %d (%s): %v", epoch, res.Authority, err)
				results[i].err = err
				return nil
			}
			results[i].plot.Series = series
			if lo, hi, ok := tess.Span(series.Time); ok {
				results[i].plot.Events = tl.Between(lo, hi)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) materialize(ctx context.Context, res tess.Resolution, flux tess.FluxChannel) (archive.Series, error) {
	if p.materializeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.materializeTimeout)
		defer cancel()
	}
	start := time.Now()
	series, err := p.materializer.Materialize(ctx, MaterializeRequest(res, flux))
	if err == nil && len(series.Time) == 0 {
		err = ErrEmptySeries
	}
	p.metrics.Materialized(res.Authority.String(), time.Since(start), err)
	if err != nil {
		return archive.Series{}, err
	}
	p.stats.Observe(len(series.Time))
	return series, nil
}

// Title is the plot heading for a sector, e.g. "Sector 14 (SPOC)".
func Title(epoch int, a tess.Authority) string {
	return fmt.Sprintf("Sector %d (%s)", epoch, a)
}

// QLPQualityBitmask is the quality mask applied to QLP products.
const QLPQualityBitmask = "1073749231"

// MaterializeRequest builds the download options for a resolved sector.
// SPOC and TESS-SPOC honour the flux channel; QLP and ELEANOR products are
// always read from their default flux column.
func MaterializeRequest(res tess.Resolution, flux tess.FluxChannel) archive.MaterializeRequest {
	req := archive.MaterializeRequest{
		SourceIndex:    res.SourceIndex,
		Authority:      res.Authority,
		FluxColumn:     flux.Column(),
		QualityBitmask: "default",
		SigmaLower:     10,
		SigmaUpper:     3,
	}
	switch res.Authority {
	case tess.TESSSPOC:
		if flux == tess.PDCSAP {
			req.SigmaLower = 20
		}
	case tess.QLP:
		req.FluxColumn = ""
		req.QualityBitmask = QLPQualityBitmask
		req.SigmaLower = 20
	case tess.ELEANOR:
		req.FluxColumn = ""
		req.SigmaLower = 20
	}
	return req
}
