package tess

import "math"

// EventsInWindow returns the timeline instants strictly between start and
// end, in timeline order. The timeline is not modified.
func EventsInWindow(timeline []float64, start, end float64) []float64 {
	var out []float64
	for _, t := range timeline {
		if start < t && t < end {
			out = append(out, t)
		}
	}
	return out
}

// Span returns the minimum and maximum finite values in times. ok is false
// when there are none.
func Span(times []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			continue
		}
		lo = math.Min(lo, t)
		hi = math.Max(hi, t)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}
