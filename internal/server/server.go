// Package server exposes page views over HTTP. Each viewer is tracked by a
// cookie naming a coordinator.Session.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tesslc/internal/cache"
	"tesslc/internal/coordinator"
	"tesslc/internal/logging"
	"tesslc/internal/metrics"
	"tesslc/internal/pipeline"
	"tesslc/internal/store"
	"tesslc/internal/tess"
	"tesslc/internal/timeline"
)

const (
	CookieName = "tesslc_session"

	// HeaderMetadata carries the metadata panel state of the view.
	HeaderMetadata = "X-Tesslc-Metadata"

	DefaultSessions = 1024
)

// Viewer renders one page view into a renderer.
type Viewer interface {
	View(ctx context.Context, sess *coordinator.Session, req pipeline.Request, r pipeline.Renderer) (pipeline.Outcome, error)
}

type Options struct {
	// Sessions bounds how many viewers are remembered.
	Sessions        int
	SessionTTL      time.Duration
	SessionCapacity int

	// Coordinator, when set, has the fetches of evicted sessions cancelled.
	Coordinator *coordinator.Coordinator

	// Timelines is refreshed every TimelineRefresh when both are set.
	Timelines       *timeline.Cache
	TimelineRefresh time.Duration

	// LogStatsEvery enables the periodic usage line.
	LogStatsEvery time.Duration
	Stats         *metrics.PointStats
	Store         *store.Store

	Gatherer prometheus.Gatherer
	Clock    cache.Clock
	Logger   logging.Logger
}

type slot struct {
	mu   sync.Mutex
	sess *coordinator.Session
}

type Server struct {
	viewer Viewer
	coord  *coordinator.Coordinator
	opts   Options
	logger logging.Logger

	sessMu   sync.Mutex
	sessions *lru.Cache[string, *slot]

	mux *http.ServeMux

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(v Viewer, opts Options) (*Server, error) {
	if opts.Sessions <= 0 {
		opts.Sessions = DefaultSessions
	}
	s := &Server{
		viewer: v,
		coord:  opts.Coordinator,
		opts:   opts,
		logger: logging.OrNop(opts.Logger),
	}
	sessions, err := lru.NewWithEvict[string, *slot](opts.Sessions, s.evicted)
	if err != nil {
		return nil, err
	}
	s.sessions = sessions

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/", s.handle)
	if opts.Gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	if opts.LogStatsEvery > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.statsLoop(opts.LogStatsEvery)
		}()
	}
	if opts.Timelines != nil && opts.TimelineRefresh > 0 {
		s.logger.Info("momentum dump refresh interval: %s", opts.TimelineRefresh)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			opts.Timelines.Run(s.ctx, opts.TimelineRefresh)
		}()
	}
	return s, nil
}

// Close stops the background loops and cancels every session's fetch.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
	s.sessMu.Lock()
	s.sessions.Purge()
	s.sessMu.Unlock()
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) evicted(_ string, sl *slot) {
	if s.coord == nil {
		return
	}
	// The slot may be mid-request; cancel once that request lets go.
	go func() {
		sl.mu.Lock()
		defer sl.mu.Unlock()
		s.coord.Cancel(sl.sess)
	}()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := parseRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sl, err := s.session(w, r)
	if err != nil {
		s.logger.Error("session: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	var c pipeline.Collector
	out, err := s.viewer.View(r.Context(), sl.sess, req, &c)
	if err != nil && r.Context().Err() != nil {
		// Client went away.
		return
	}
	status := http.StatusOK
	switch {
	case errors.Is(err, pipeline.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, pipeline.ErrResolution):
		s.logger.Warn("%v", err)
		status = http.StatusBadGateway
	case err != nil:
		s.logger.Error("view %s: %v", req.Identifier, err)
		status = http.StatusInternalServerError
	}

	if c.View.Metadata != nil {
		setViewHeader(w.Header(), HeaderMetadata, out.Metadata.State.String())
	}
	writeJSON(w, status, c.View)
}

func parseRequest(r *http.Request) (pipeline.Request, error) {
	q := r.URL.Query()
	req := pipeline.Request{
		Identifier: tess.ParseIdentifier(q.Get("tic")),
		Flux:       tess.PDCSAP,
		Page:       1,
	}
	if v := strings.TrimSpace(q.Get("flux")); v != "" {
		f, err := tess.ParseFluxChannel(v)
		if err != nil {
			return req, err
		}
		req.Flux = f
	}
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, errors.New("page must be a positive integer")
		}
		req.Page = n
	}
	return req, nil
}

// session returns the caller's slot, creating it and setting the cookie
// when the request carries none or an unknown one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*slot, error) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()

	if c, err := r.Cookie(CookieName); err == nil {
		if sl, ok := s.sessions.Get(c.Value); ok {
			return sl, nil
		}
	}
	sess, err := coordinator.NewSession(s.opts.SessionTTL, s.opts.SessionCapacity, s.opts.Clock)
	if err != nil {
		return nil, err
	}
	sl := &slot{sess: sess}
	s.sessions.Add(sess.ID, sl)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sl, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setViewHeader(h http.Header, name, value string) {
	if value != "" {
		h.Set(name, value)
	}
	// Custom headers are hidden from browser JS in a CORS context unless exposed.
	ensureExposedHeader(h, name)
}

func ensureExposedHeader(h http.Header, name string) {
	if name == "" {
		return
	}

	const expose = "Access-Control-Expose-Headers"
	cur := h.Values(expose)
	if len(cur) == 0 {
		h.Set(expose, name)
		return
	}

	merged := strings.Join(cur, ",")
	for _, part := range strings.Split(merged, ",") {
		if strings.EqualFold(strings.TrimSpace(part), name) {
			return
		}
	}
	h.Set(expose, strings.TrimSpace(merged)+", "+name)
}

func (s *Server) statsLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			s.logStats()
		}
	}
}

func (s *Server) logStats() {
	ps := s.opts.Stats.Snapshot()
	s.sessMu.Lock()
	sessions := s.sessions.Len()
	s.sessMu.Unlock()

	var keys int
	var disk uint64
	if s.opts.Store != nil {
		keys = s.opts.Store.KeyCount()
		disk = uint64(s.opts.Store.TotalSize())
	}
	rss := "?"
	if n, ok := residentBytes(); ok {
		rss = metrics.FormatBytes(n)
	}
	s.logger.Info(
		"Sessions: %d, Stored keys: %d, Disk usage: %s, RSS: %s, Lightcurves: %d, Points min/avg/max %d/%d/%d",
		sessions, keys, metrics.FormatBytes(disk), rss,
		ps.Lightcurves, ps.MinPoints, ps.AvgPoints, ps.MaxPoints,
	)
}
