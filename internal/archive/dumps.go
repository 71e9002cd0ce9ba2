package archive

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// HTTPDumpFeed reads momentum-dump times from a CSV document. The first
// column of every row is the dump time; rows whose first column is not a
// number (headers) and lines starting with '#' are skipped.
type HTTPDumpFeed struct {
	URL  string
	http *http.Client
}

func NewHTTPDumpFeed(u string, timeout time.Duration) *HTTPDumpFeed {
	return &HTTPDumpFeed{URL: u, http: &http.Client{Timeout: timeout}}
}

func (f *HTTPDumpFeed) Fetch(ctx context.Context) ([]float64, error) {
	b, err := fetch(ctx, f.http, f.URL, defaultMaxBody)
	if err != nil {
		return nil, err
	}
	return ParseDumps(bytes.NewReader(b))
}

// ParseDumps parses a dump CSV and returns the times sorted ascending.
func ParseDumps(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []float64
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse dumps: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("parse dumps: no rows")
	}
	sort.Float64s(out)
	return out, nil
}
