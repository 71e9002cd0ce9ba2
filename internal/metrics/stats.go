package metrics

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// PointStats tracks how many points materialized lightcurves carry.
type PointStats struct {
	total     atomic.Uint64
	sumPoints atomic.Uint64
	minPoints atomic.Uint64
	maxPoints atomic.Uint64
}

func NewPointStats() *PointStats {
	s := &PointStats{}
	s.minPoints.Store(math.MaxUint64)
	return s
}

func (s *PointStats) Observe(points int) {
	if s == nil {
		return
	}
	if points < 0 {
		points = 0
	}
	n := uint64(points)

	s.total.Add(1)
	s.sumPoints.Add(n)

	for {
		cur := s.minPoints.Load()
		if n >= cur {
			break
		}
		if s.minPoints.CompareAndSwap(cur, n) {
			break
		}
	}
	for {
		cur := s.maxPoints.Load()
		if n <= cur {
			break
		}
		if s.maxPoints.CompareAndSwap(cur, n) {
			break
		}
	}
}

type PointSnapshot struct {
	Lightcurves uint64
	MinPoints   uint64
	MaxPoints   uint64
	AvgPoints   uint64
}

func (s *PointStats) Snapshot() PointSnapshot {
	if s == nil {
		return PointSnapshot{}
	}
	count := s.total.Load()
	if count == 0 {
		return PointSnapshot{}
	}
	minv := s.minPoints.Load()
	if minv == math.MaxUint64 {
		minv = 0
	}
	return PointSnapshot{
		Lightcurves: count,
		MinPoints:   minv,
		MaxPoints:   s.maxPoints.Load(),
		AvgPoints:   s.sumPoints.Load() / count,
	}
}

// FormatBytes renders b with a binary unit suffix, e.g. "1.5mb".
func FormatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	if b < kb {
		return fmt.Sprintf("%db", b)
	}
	if b < mb {
		return trimFloat(fmt.Sprintf("%.1f", float64(b)/kb)) + "kb"
	}
	if b < gb {
		return trimFloat(fmt.Sprintf("%.1f", float64(b)/mb)) + "mb"
	}
	return trimFloat(fmt.Sprintf("%.1f", float64(b)/gb)) + "gb"
}

func trimFloat(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".0")
	return s
}
