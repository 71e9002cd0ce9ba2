package tess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventsInWindowExcludesBoundaries(t *testing.T) {
	timeline := []float64{4, 5, 6, 10, 11}
	assert.Equal(t, []float64{6}, EventsInWindow(timeline, 5, 10))
	assert.Equal(t, []float64{4, 5, 6, 10, 11}, timeline)
}

func TestEventsInWindowEmpty(t *testing.T) {
	assert.Empty(t, EventsInWindow(nil, 0, 100))
	assert.Empty(t, EventsInWindow([]float64{1, 2}, 5, 10))
}

func TestSpanSkipsNonFinite(t *testing.T) {
	lo, hi, ok := Span([]float64{math.NaN(), 3, 1, math.Inf(1), 2})
	assert.True(t, ok)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 3.0, hi)

	_, _, ok = Span([]float64{math.NaN()})
	assert.False(t, ok)
}
