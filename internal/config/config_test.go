package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tesslc.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	p := writeConfig(t, "archive:\n  gateway: http://gw.example/\n")
	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	assert.Equal(t, "http://gw.example", cfg.Archive.Gateway)
	assert.Equal(t, "http://gw.example/momentum_dumps.csv", cfg.Archive.DumpFeed)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Search.TTLDur)
	assert.Equal(t, 200, cfg.Catalog.Capacity)
	assert.Equal(t, 10*time.Second, cfg.Catalog.JoinTimeoutDur)
	assert.Equal(t, 8, cfg.Pages.Size)
	assert.Equal(t, 100.0, cfg.Search.MinExposure)
	assert.Equal(t, time.Duration(0), cfg.Logging.LogStatsEveryDur)
}

func TestLoadConfigFileValues(t *testing.T) {
	p := writeConfig(t, `
server:
  port: 9000
archive:
  gateway: http://gw
  dumpFeed: http://gw/dumps.csv
storage:
  path: ./data
  max: 64m
catalog:
  joinTimeout: 3s
pages:
  size: 4
logging:
  logStatsEvery: 1m
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "http://gw/dumps.csv", cfg.Archive.DumpFeed)
	assert.Equal(t, int64(64*1024*1024), cfg.Storage.MaxBytes)
	assert.Equal(t, 3*time.Second, cfg.Catalog.JoinTimeoutDur)
	assert.Equal(t, 4, cfg.Pages.Size)
	assert.Equal(t, time.Minute, cfg.Logging.LogStatsEveryDur)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	p := writeConfig(t, "archive:\n  gateway: http://gw\n")
	t.Setenv("TESSLC_SERVER_PORT", "7000")
	t.Setenv("TESSLC_CATALOG_JOIN_TIMEOUT", "250ms")
	t.Setenv("TESSLC_ARCHIVE_GATEWAY", "http://other/")

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Catalog.JoinTimeoutDur)
	assert.Equal(t, "http://other", cfg.Archive.Gateway)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing gateway", "server:\n  port: 1\n", "archive.gateway is required"},
		{"bad duration", "archive:\n  gateway: g\ncatalog:\n  joinTimeout: soon\n", "catalog.joinTimeout"},
		{"bad size", "archive:\n  gateway: g\nstorage:\n  max: lots\n", "storage.max"},
		{"negative page size", "archive:\n  gateway: g\npages:\n  size: -1\n", "pages.size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseBytes(t *testing.T) {
	tests := map[string]int64{
		"512":  512,
		"1k":   1024,
		"1.5m": 1536 * 1024,
		"2GB":  2 << 30,
	}
	for in, want := range tests {
		got, err := parseBytes(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseBytes("-1")
	assert.Error(t, err)
}
