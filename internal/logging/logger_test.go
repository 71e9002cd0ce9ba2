package logging

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrNopHandlesTypedNilPointers(t *testing.T) {
	var typed *stdLogger
	var logger Logger = typed
	assert.True(t, IsNil(logger))

	safe := OrNop(logger)
	assert.False(t, IsNil(safe))
	safe.Info("hello %s", "world")
}

func TestStdLoggerTagsComponentAndLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWith(log.New(buf, "", 0), "search", false)

	logger.Warn("fetch %s failed", "TIC 1")
	logger.Debug("hidden")

	assert.Equal(t, "WARN [search] fetch TIC 1 failed\n", buf.String())
}

func TestRateLimitedDropsWithinInterval(t *testing.T) {
	buf := &bytes.Buffer{}
	now := time.Unix(1000, 0)
	rl := NewRateLimited(NewWith(log.New(buf, "", 0), "", false), time.Minute)
	rl.now = func() time.Time { return now }

	rl.Warn("first")
	now = now.Add(30 * time.Second)
	rl.Warn("second")
	now = now.Add(31 * time.Second)
	rl.Warn("third")

	assert.Equal(t, "WARN first\nWARN third\n", buf.String())
}
