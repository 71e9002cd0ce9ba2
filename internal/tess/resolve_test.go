package tess

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrefersHigherAuthority(t *testing.T) {
	records := []ObservationRecord{
		{Epoch: 1, Authority: SPOC, ExposureDuration: 120, SourceIndex: "spoc-1"},
		{Epoch: 1, Authority: QLP, ExposureDuration: 1800, SourceIndex: "qlp-1"},
		{Epoch: 2, Authority: QLP, ExposureDuration: 1800, SourceIndex: "qlp-2"},
	}

	got := Resolve(records, DefaultMinExposure)

	assert.Equal(t, []int{1, 2}, got.Epochs())
	r, ok := got.Get(1)
	require.True(t, ok)
	assert.Equal(t, Resolution{SourceIndex: "spoc-1", Authority: SPOC}, r)
	r, ok = got.Get(2)
	require.True(t, ok)
	assert.Equal(t, Resolution{SourceIndex: "qlp-2", Authority: QLP}, r)
}

func TestResolveDropsSubThresholdEpochs(t *testing.T) {
	records := []ObservationRecord{
		{Epoch: 5, Authority: SPOC, ExposureDuration: 20, SourceIndex: "fast"},
		{Epoch: 5, Authority: SPOC, ExposureDuration: 100, SourceIndex: "edge"},
		{Epoch: 6, Authority: SPOC, ExposureDuration: 20, SourceIndex: "fast-6"},
		{Epoch: 6, Authority: TESSSPOC, ExposureDuration: 200, SourceIndex: "ffi-6"},
	}

	got := Resolve(records, DefaultMinExposure)

	assert.Equal(t, []int{6}, got.Epochs())
	r, _ := got.Get(6)
	assert.Equal(t, TESSSPOC, r.Authority)
}

func TestResolveIgnoresUnknownAuthority(t *testing.T) {
	records := []ObservationRecord{
		{Epoch: 3, Authority: AuthorityUnknown, ExposureDuration: 600, SourceIndex: "x"},
	}
	assert.Equal(t, 0, Resolve(records, DefaultMinExposure).Len())
}

func TestResolveTieBreakKeepsFirstRecord(t *testing.T) {
	records := []ObservationRecord{
		{Epoch: 7, Authority: QLP, ExposureDuration: 600, SourceIndex: "qlp-a"},
		{Epoch: 7, Authority: QLP, ExposureDuration: 200, SourceIndex: "qlp-b"},
		{Epoch: 7, Authority: ELEANOR, ExposureDuration: 1800, SourceIndex: "el"},
	}
	r, ok := Resolve(records, DefaultMinExposure).Get(7)
	require.True(t, ok)
	assert.Equal(t, "qlp-a", r.SourceIndex)
}

func TestResolveAuthorityIsOrderIndependent(t *testing.T) {
	base := []ObservationRecord{
		{Epoch: 1, Authority: ELEANOR, ExposureDuration: 1800, SourceIndex: "e1"},
		{Epoch: 1, Authority: QLP, ExposureDuration: 1800, SourceIndex: "q1"},
		{Epoch: 1, Authority: TESSSPOC, ExposureDuration: 600, SourceIndex: "t1"},
		{Epoch: 1, Authority: SPOC, ExposureDuration: 20, SourceIndex: "s1-fast"},
		{Epoch: 2, Authority: QLP, ExposureDuration: 200, SourceIndex: "q2"},
		{Epoch: 2, Authority: ELEANOR, ExposureDuration: 1800, SourceIndex: "e2"},
		{Epoch: 3, Authority: SPOC, ExposureDuration: 120, SourceIndex: "s3"},
	}
	want := Resolve(base, DefaultMinExposure)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		shuffled := append([]ObservationRecord(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := Resolve(shuffled, DefaultMinExposure)
		require.Equal(t, want.Epochs(), got.Epochs())
		for _, e := range want.Epochs() {
			w, _ := want.Get(e)
			g, _ := got.Get(e)
			assert.Equal(t, w, g, "epoch %d", e)
		}
	}
}

func TestResolvedEpochsAreCopies(t *testing.T) {
	m := Resolve([]ObservationRecord{{Epoch: 1, Authority: SPOC, ExposureDuration: 120}}, DefaultMinExposure)
	epochs := m.Epochs()
	epochs[0] = 99
	assert.Equal(t, []int{1}, m.Epochs())
}

func TestSummarize(t *testing.T) {
	records := []ObservationRecord{
		{Epoch: 14, Authority: QLP},
		{Epoch: 1, Authority: SPOC},
		{Epoch: 14, Authority: SPOC},
		{Epoch: 1, Authority: SPOC},
		{Epoch: 40, Authority: AuthorityUnknown},
	}
	s := Summarize(records)
	assert.Equal(t, []int{1, 14, 40}, s.All)
	assert.Equal(t, []int{1, 14}, s.ByAuthority[SPOC])
	assert.Equal(t, []int{14}, s.ByAuthority[QLP])
	assert.NotContains(t, s.ByAuthority, AuthorityUnknown)
}

func TestParseAuthority(t *testing.T) {
	tests := []struct {
		in   string
		want Authority
	}{
		{"SPOC", SPOC},
		{"tess-spoc", TESSSPOC},
		{"TESS_SPOC", TESSSPOC},
		{" QLP ", QLP},
		{"GSFC-ELEANOR-LITE", ELEANOR},
	}
	for _, tt := range tests {
		got, err := ParseAuthority(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseAuthority("K2")
	assert.Error(t, err)
}

func TestPriorityRanks(t *testing.T) {
	assert.Less(t, SPOC.Rank(), TESSSPOC.Rank())
	assert.Less(t, TESSSPOC.Rank(), QLP.Rank())
	assert.Less(t, QLP.Rank(), ELEANOR.Rank())
	assert.Equal(t, len(Priority), AuthorityUnknown.Rank())
}

func TestAuthorityTextRoundTrip(t *testing.T) {
	for _, a := range append(Priority[:], AuthorityUnknown) {
		b, err := a.MarshalText()
		require.NoError(t, err)
		var got Authority
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, a, got)
	}
}
