package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rows":[
			{"sequence_number":1,"provenance_name":"SPOC","exptime":120,"index":"a"},
			{"sequence_number":2,"provenance_name":"QLP","exptime":1800,"index":"b"},
			{"sequence_number":2,"provenance_name":"SPOC","exptime":20,"index":"c"}]}`))
	})
	mux.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ra":10.5,"dec":-3.25,"Tmag":9.1}`))
	})
	mux.HandleFunc("/lightcurve", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"time":[1,2,3],"flux":[1.0,0.99,1.01]}`))
	})
	mux.HandleFunc("/momentum_dumps.csv", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# time\n0.5\n1.5\n2.5\n9\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestShowPrintsPage(t *testing.T) {
	gw := newGateway(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tesslc.yaml")
	body := fmt.Sprintf("archive:\n  gateway: %s\nstorage:\n  path: %s\n", gw.URL, filepath.Join(dir, "db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"show", "1", "--config", cfgPath, "--flux", "sap"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	text := out.String()
	assert.Contains(t, text, "TIC 1")
	assert.Contains(t, text, "Observed sectors: [1, 2]")
	assert.Contains(t, text, "Sector 2 (QLP)")
	assert.Contains(t, text, "Sector 1 (SPOC)")
	assert.Contains(t, text, "momentum dumps: 1.500 2.500")
	assert.Contains(t, text, "RA: 10.50000")
}
