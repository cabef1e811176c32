package rampselect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDistribution_dropsZeroAndNegativeWeights(t *testing.T) {
	d := buildDistribution([]distributionEntry{
		{endpoint: Endpoint{Authority: "a"}, weight: 0},
		{endpoint: Endpoint{Authority: "b"}, weight: -5},
		{endpoint: Endpoint{Authority: "c"}, weight: 10},
	})
	require.Len(t, d.entries, 1)
	assert.Equal(t, "c", d.entries[0].endpoint.Authority)
	assert.Equal(t, int64(10), d.total)
}

func TestDistribution_pick_empty(t *testing.T) {
	d := buildDistribution(nil)
	rng := newRand(1)
	_, ok := d.pick(rng)
	assert.False(t, ok)

	var nilDist *distribution
	_, ok = nilDist.pick(rng)
	assert.False(t, ok)
}

func TestDistribution_pick_singleEntryAlwaysWins(t *testing.T) {
	d := buildDistribution([]distributionEntry{{endpoint: Endpoint{Authority: "only"}, weight: 42}})
	rng := newRand(7)
	for i := 0; i < 50; i++ {
		ep, ok := d.pick(rng)
		require.True(t, ok)
		assert.Equal(t, "only", ep.Authority)
	}
}

func TestDistribution_pick_probabilityProportionalToWeight(t *testing.T) {
	d := buildDistribution([]distributionEntry{
		{endpoint: Endpoint{Authority: "heavy"}, weight: 900},
		{endpoint: Endpoint{Authority: "light"}, weight: 100},
	})
	rng := newRand(99)
	counts := map[string]int{}
	const n = 100000
	for i := 0; i < n; i++ {
		ep, ok := d.pick(rng)
		require.True(t, ok)
		counts[ep.Authority]++
	}
	heavyRatio := float64(counts["heavy"]) / float64(n)
	assert.InDelta(t, 0.9, heavyRatio, 0.02)
}

func TestAtomicDistribution_storeLoad(t *testing.T) {
	var a atomicDistribution
	assert.Nil(t, a.load())

	d := buildDistribution([]distributionEntry{{endpoint: Endpoint{Authority: "x"}, weight: 1}})
	a.store(d)
	assert.Same(t, d, a.load())
}

func TestSafeRand_pick(t *testing.T) {
	r := newSafeRand(5)
	d := buildDistribution([]distributionEntry{{endpoint: Endpoint{Authority: "only"}, weight: 1}})
	ep, ok := r.pick(d)
	require.True(t, ok)
	assert.Equal(t, "only", ep.Authority)
}
