package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tesslc/internal/tess"
)

const defaultMaxBody = 64 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// ResponseTooLargeError reports that a response body exceeded the limit.
type ResponseTooLargeError struct {
	Limit int64
}

func (e ResponseTooLargeError) Error() string {
	return fmt.Sprintf("response body exceeded limit of %d bytes", e.Limit)
}

// Client talks to an archive gateway exposing /search, /catalog and
// /lightcurve as JSON endpoints.
type Client struct {
	base    string
	http    *http.Client
	maxBody int64
}

func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base:    strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
		maxBody: defaultMaxBody,
	}
}

type searchRow struct {
	SequenceNumber int        `json:"sequence_number"`
	Provenance     string     `json:"provenance_name"`
	ExpTime        float64    `json:"exptime"`
	Index          flexString `json:"index"`
}

// Search lists the products available for target. Rows from pipelines the
// resolver does not know keep AuthorityUnknown.
func (c *Client) Search(ctx context.Context, target, mission string) ([]tess.ObservationRecord, error) {
	q := url.Values{"target": {target}, "mission": {mission}}
	var body struct {
		Rows []searchRow `json:"rows"`
	}
	if err := c.getJSON(ctx, "/search", q, &body); err != nil {
		return nil, err
	}
	out := make([]tess.ObservationRecord, 0, len(body.Rows))
	for _, row := range body.Rows {
		auth, err := tess.ParseAuthority(row.Provenance)
		if err != nil {
			auth = tess.AuthorityUnknown
		}
		out = append(out, tess.ObservationRecord{
			Epoch:            row.SequenceNumber,
			Authority:        auth,
			ExposureDuration: row.ExpTime,
			SourceIndex:      string(row.Index),
		})
	}
	return out, nil
}

func (c *Client) Query(ctx context.Context, target string, radius float64) (Star, error) {
	q := url.Values{
		"target": {target},
		"radius": {strconv.FormatFloat(radius, 'g', -1, 64)},
	}
	var star Star
	if err := c.getJSON(ctx, "/catalog", q, &star); err != nil {
		return Star{}, err
	}
	return star, nil
}

func (c *Client) Materialize(ctx context.Context, req MaterializeRequest) (Series, error) {
	q := url.Values{
		"index":           {req.SourceIndex},
		"author":          {req.Authority.String()},
		"flux_column":     {req.FluxColumn},
		"quality_bitmask": {req.QualityBitmask},
		"sigma_lower":     {strconv.FormatFloat(req.SigmaLower, 'g', -1, 64)},
		"sigma_upper":     {strconv.FormatFloat(req.SigmaUpper, 'g', -1, 64)},
	}
	var s Series
	if err := c.getJSON(ctx, "/lightcurve", q, &s); err != nil {
		return Series{}, err
	}
	if len(s.Time) != len(s.Flux) {
		return Series{}, fmt.Errorf("lightcurve %s: %d times but %d fluxes", req.SourceIndex, len(s.Time), len(s.Flux))
	}
	return s, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.base + path + "?" + q.Encode()
	b, err := c.get(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	return fetch(ctx, c.http, u, c.maxBody)
}

func fetch(ctx context.Context, hc *http.Client, u string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: u, Code: resp.StatusCode}
	}
	return readAllWithLimit(resp.Body, limit)
}

func readAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	lr := &io.LimitedReader{R: r, N: limit + 1}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ResponseTooLargeError{Limit: limit}
	}
	return data, nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("index must be a string or number")
	}
	*f = flexString(n.String())
	return nil
}
