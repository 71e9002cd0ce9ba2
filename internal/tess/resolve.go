package tess

import "sort"

// DefaultMinExposure excludes 20s fast-cadence and calibration products.
const DefaultMinExposure = 100.0

// Resolution is the record chosen to represent one epoch.
type Resolution struct {
	SourceIndex string
	Authority   Authority
}

// ResolvedEpochMap holds one resolution per qualifying epoch. It is built
// once by Resolve and never modified afterwards.
type ResolvedEpochMap struct {
	byEpoch map[int]Resolution
	epochs  []int
}

// Epochs returns the resolved epochs in ascending order. The slice is a copy.
func (m ResolvedEpochMap) Epochs() []int {
	out := make([]int, len(m.epochs))
	copy(out, m.epochs)
	return out
}

func (m ResolvedEpochMap) Get(epoch int) (Resolution, bool) {
	r, ok := m.byEpoch[epoch]
	return r, ok
}

func (m ResolvedEpochMap) Len() int { return len(m.epochs) }

// Resolve picks, for every epoch, the first record of the highest-priority
// authority whose exposure exceeds minExposure. Epochs without such a record
// are dropped.
func Resolve(records []ObservationRecord, minExposure float64) ResolvedEpochMap {
	best := make(map[int]int, len(records)) // epoch -> index into records
	for i, rec := range records {
		rank := rec.Authority.Rank()
		if rank >= len(Priority) || !(rec.ExposureDuration > minExposure) {
			continue
		}
		cur, ok := best[rec.Epoch]
		if !ok || rank < records[cur].Authority.Rank() {
			best[rec.Epoch] = i
		}
	}

	out := ResolvedEpochMap{
		byEpoch: make(map[int]Resolution, len(best)),
		epochs:  make([]int, 0, len(best)),
	}
	for epoch, i := range best {
		out.byEpoch[epoch] = Resolution{
			SourceIndex: records[i].SourceIndex,
			Authority:   records[i].Authority,
		}
		out.epochs = append(out.epochs, epoch)
	}
	sort.Ints(out.epochs)
	return out
}

// SectorSummary lists observed sectors overall and per authority, each in
// ascending order without duplicates. It ignores the exposure threshold so
// the listing shows everything the archive holds.
type SectorSummary struct {
	All         []int
	ByAuthority map[Authority][]int
}

func Summarize(records []ObservationRecord) SectorSummary {
	all := map[int]struct{}{}
	by := map[Authority]map[int]struct{}{}
	for _, rec := range records {
		all[rec.Epoch] = struct{}{}
		if rec.Authority == AuthorityUnknown {
			continue
		}
		if by[rec.Authority] == nil {
			by[rec.Authority] = map[int]struct{}{}
		}
		by[rec.Authority][rec.Epoch] = struct{}{}
	}
	out := SectorSummary{All: sortedKeys(all), ByAuthority: make(map[Authority][]int, len(by))}
	for a, set := range by {
		out.ByAuthority[a] = sortedKeys(set)
	}
	return out
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
