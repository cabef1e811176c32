package rampselect

import (
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
)

// distributionEntry pairs an endpoint with its effective weight, as staged
// for (or published to) a distribution.
type distributionEntry struct {
	endpoint Endpoint
	weight   int
}

// distribution is the weighted random selection structure backing
// Selector.SelectNow. Given entries with weight >= 0, pick returns one
// endpoint with probability weight_i / sum(weight). Zero-weight entries are
// never returned. Rebuilds are O(N); picks are O(log N), via a cumulative
// weight table searched with sort.Search, mirroring the sorted-search idiom
// catrate's ring buffer uses for its own insertion point lookups.
//
// A distribution is immutable once built: Selector publishes a new
// *distribution (via atomic.Pointer) rather than mutating one in place, so
// concurrent picks never observe a partially rebuilt table.
type distribution struct {
	entries    []distributionEntry // weight > 0 only
	cumulative []int64             // cumulative[i] = sum(entries[0..i].weight)
	total      int64
}

// buildDistribution rebuilds a distribution from entries. Entries with
// weight <= 0 are dropped (they are never selectable). The input order is
// preserved for the entries that remain, so repeated builds from
// consistently-ordered input are deterministic.
func buildDistribution(entries []distributionEntry) *distribution {
	d := &distribution{
		entries:    make([]distributionEntry, 0, len(entries)),
		cumulative: make([]int64, 0, len(entries)),
	}
	var sum int64
	for _, e := range entries {
		if e.weight <= 0 {
			continue
		}
		sum += int64(e.weight)
		d.entries = append(d.entries, e)
		d.cumulative = append(d.cumulative, sum)
	}
	d.total = sum
	return d
}

// pick returns an endpoint selected with probability proportional to its
// effective weight, using rng as the source of randomness. It returns
// (Endpoint{}, false) when the distribution is empty.
func (d *distribution) pick(rng *rand.Rand) (Endpoint, bool) {
	if d == nil || d.total <= 0 {
		return Endpoint{}, false
	}
	// int63n-equivalent over [0, total) via Int64N, then locate the first
	// cumulative bucket strictly greater than it.
	target := rng.Int64N(d.total)
	i := sort.Search(len(d.cumulative), func(i int) bool {
		return d.cumulative[i] > target
	})
	if i >= len(d.entries) {
		// unreachable given target < total, guarded defensively
		return Endpoint{}, false
	}
	return d.entries[i].endpoint, true
}

// atomicDistribution is a single-pointer handoff: writers (the executor
// goroutine) install a freshly built *distribution; readers (SelectNow,
// from any goroutine) load the latest one. Neither side blocks the other.
type atomicDistribution struct {
	p atomic.Pointer[distribution]
}

func (a *atomicDistribution) store(d *distribution) { a.p.Store(d) }
func (a *atomicDistribution) load() *distribution   { return a.p.Load() }

// newRand returns a *rand.Rand seeded from seed. A fixed, non-zero seed
// makes selection deterministic for tests; production callers should seed
// from an entropy source (see Config.RandSeed).
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// safeRand serializes access to a single *rand.Rand so SelectNow can be
// called concurrently from many goroutines. rand.Rand itself is not safe
// for concurrent use; the mutex here is held only for the duration of the
// random draw and cumulative-weight search, never across I/O or blocking
// calls, keeping SelectNow's "never blocks" contract for all practical
// purposes.
type safeRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSafeRand(seed uint64) safeRand {
	return safeRand{rng: newRand(seed)}
}

func (s *safeRand) pick(d *distribution) (Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return d.pick(s.rng)
}
