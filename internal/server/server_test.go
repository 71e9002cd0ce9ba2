package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tesslc/internal/coordinator"
	"tesslc/internal/metrics"
	"tesslc/internal/pipeline"
	"tesslc/internal/tess"
)

type viewFunc func(sess *coordinator.Session, req pipeline.Request, r pipeline.Renderer) (pipeline.Outcome, error)

type fakeViewer struct {
	fn       viewFunc
	sessions []*coordinator.Session
	requests []pipeline.Request
}

func (f *fakeViewer) View(_ context.Context, sess *coordinator.Session, req pipeline.Request, r pipeline.Renderer) (pipeline.Outcome, error) {
	f.sessions = append(f.sessions, sess)
	f.requests = append(f.requests, req)
	return f.fn(sess, req, r)
}

func completed(_ *coordinator.Session, req pipeline.Request, r pipeline.Renderer) (pipeline.Outcome, error) {
	if !req.Identifier.Valid() {
		r.Intro()
		return pipeline.Outcome{}, nil
	}
	r.Header(req.Identifier)
	st := coordinator.Status{Identifier: req.Identifier, State: coordinator.Completed, Text: "TIC " + string(req.Identifier)}
	r.Metadata(st)
	return pipeline.Outcome{Identifier: req.Identifier, Page: req.Page, Metadata: st}, nil
}

func newTestServer(t *testing.T, v Viewer, opts Options) *Server {
	t.Helper()
	s, err := New(v, opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func get(t *testing.T, h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleRendersView(t *testing.T) {
	v := &fakeViewer{fn: completed}
	s := newTestServer(t, v, Options{})

	rec := get(t, s.Handler(), "/?tic=261136679&flux=sap&page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "completed", rec.Header().Get(HeaderMetadata))
	assert.Equal(t, HeaderMetadata, rec.Header().Get("Access-Control-Expose-Headers"))

	var view pipeline.PageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "TIC 261136679", view.Target)
	require.NotNil(t, view.Metadata)
	assert.Equal(t, "completed", view.Metadata.State)

	require.Len(t, v.requests, 1)
	assert.Equal(t, tess.SAP, v.requests[0].Flux)
	assert.Equal(t, 2, v.requests[0].Page)
}

func TestHandleIntroWithoutIdentifier(t *testing.T) {
	s := newTestServer(t, &fakeViewer{fn: completed}, Options{})

	rec := get(t, s.Handler(), "/?tic=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderMetadata))

	var view pipeline.PageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Intro)
}

func TestHandleReusesSessionByCookie(t *testing.T) {
	v := &fakeViewer{fn: completed}
	s := newTestServer(t, v, Options{})

	first := get(t, s.Handler(), "/?tic=1")
	cookies := first.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)

	second := get(t, s.Handler(), "/?tic=2", cookies[0])
	assert.Empty(t, second.Result().Cookies())

	third := get(t, s.Handler(), "/?tic=3", &http.Cookie{Name: CookieName, Value: "unknown"})
	assert.Len(t, third.Result().Cookies(), 1)

	require.Len(t, v.sessions, 3)
	assert.Same(t, v.sessions[0], v.sessions[1])
	assert.NotSame(t, v.sessions[0], v.sessions[2])
	assert.Equal(t, cookies[0].Value, v.sessions[0].ID)
}

func TestHandleRejectsBadParameters(t *testing.T) {
	s := newTestServer(t, &fakeViewer{fn: completed}, Options{})

	for _, target := range []string{"/?tic=1&page=0", "/?tic=1&page=x", "/?tic=1&flux=raw"} {
		rec := get(t, s.Handler(), target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	req := httptest.NewRequest(http.MethodPost, "/?tic=1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/elsewhere").Code)
}

func TestHandleMapsViewErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no data", fmt.Errorf("TIC 1: %w", pipeline.ErrNoData), http.StatusNotFound},
		{"resolution", fmt.Errorf("%w: boom", pipeline.ErrResolution), http.StatusBadGateway},
		{"other", errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &fakeViewer{fn: func(_ *coordinator.Session, req pipeline.Request, r pipeline.Renderer) (pipeline.Outcome, error) {
				r.Header(req.Identifier)
				r.Message("nothing to show")
				return pipeline.Outcome{Identifier: req.Identifier}, tt.err
			}}
			s := newTestServer(t, v, Options{})

			rec := get(t, s.Handler(), "/?tic=1")
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), "nothing to show")
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	m.CacheLookup("search", metrics.Miss)

	s := newTestServer(t, &fakeViewer{fn: completed}, Options{Gatherer: reg})
	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tesslc_"))
}

func TestEnsureExposedHeaderMerges(t *testing.T) {
	h := http.Header{}
	h.Set("Access-Control-Expose-Headers", "ETag")
	ensureExposedHeader(h, HeaderMetadata)
	ensureExposedHeader(h, HeaderMetadata)
	assert.Equal(t, "ETag, "+HeaderMetadata, h.Get("Access-Control-Expose-Headers"))
}

func TestSessionsAreBounded(t *testing.T) {
	v := &fakeViewer{fn: completed}
	s := newTestServer(t, v, Options{Sessions: 1})

	get(t, s.Handler(), "/?tic=1")
	get(t, s.Handler(), "/?tic=2")

	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	assert.Equal(t, 1, s.sessions.Len())
	assert.True(t, s.sessions.Contains(v.sessions[1].ID))
}

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Debug(string, ...any) {}
func (c *captureLogger) Info(format string, args ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}
func (c *captureLogger) Warn(string, ...any)  {}
func (c *captureLogger) Error(string, ...any) {}

func TestLogStatsReportsUsage(t *testing.T) {
	stats := metrics.NewPointStats()
	stats.Observe(100)
	stats.Observe(300)
	logger := &captureLogger{}
	s := newTestServer(t, &fakeViewer{fn: completed}, Options{Stats: stats, Logger: logger})
	get(t, s.Handler(), "/?tic=1")

	s.logStats()
	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], "Sessions: 1")
	assert.Contains(t, logger.lines[0], "Lightcurves: 2, Points min/avg/max 100/200/300")
}

func TestHandleWritesNothingForDepartedClient(t *testing.T) {
	v := &fakeViewer{fn: func(_ *coordinator.Session, _ pipeline.Request, _ pipeline.Renderer) (pipeline.Outcome, error) {
		return pipeline.Outcome{}, context.Canceled
	}}
	s := newTestServer(t, v, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/?tic=1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Empty(t, rec.Body.String())
	require.Len(t, v.requests, 1)
}
