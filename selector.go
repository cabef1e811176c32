package rampselect

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
	"golang.org/x/exp/slices"
)

// Config configures a Selector. The zero value is invalid; see New.
type Config struct {
	// RampingUpInterval is the period between ramp-up ticks for any given
	// window. Must be > 0.
	RampingUpInterval time.Duration

	// TotalSteps is the number of ticks needed for graduation. Must be >= 1.
	TotalSteps int

	// RampingUpTaskWindow is the coalescence window width: additions whose
	// arrival times round to the same windowIndex share a schedule. Must
	// satisfy 0 < RampingUpTaskWindow <= RampingUpInterval.
	RampingUpTaskWindow time.Duration

	// Transition computes effective weight from (step, totalSteps,
	// targetWeight). Defaults to LinearTransition.
	Transition Transition

	// Executor runs all selector mutation serially. If nil, New constructs
	// a default loopExecutor and takes ownership of closing it.
	Executor Executor

	// Ticker supplies monotonic time for window-index math and
	// createdAtNanos bookkeeping. Defaults to NewSystemTicker().
	Ticker Ticker

	// RandSeed seeds the weighted-random picker. Zero is a valid, fixed
	// seed; callers wanting non-deterministic selection across process
	// restarts should supply their own entropy.
	RandSeed uint64

	// Logger receives structured diagnostic events (window lifecycle,
	// ramp steps, upstream failures). Defaults to a silent logger.
	Logger *logiface.Logger[logiface.Event]

	// Metrics, if set, is invoked after every live-view rebuild (from the
	// executor goroutine) with a point-in-time count of ramping vs.
	// graduated/static endpoints. It must return quickly; like Listener,
	// it runs inline and blocks the executor for its duration.
	Metrics func(Counts)
}

// Counts summarizes the live view at the moment of a rebuild.
type Counts struct {
	// Ramping is the number of tracked occurrences currently mid-ramp.
	Ramping int
	// Graduated is the number of tracked occurrences at their recorded
	// target weight, whether because they graduated, were admitted
	// immediately (downgrade), or arrived in the very first snapshot.
	Graduated int
}

// LiveEntry is a read-only view of one tracked endpoint occurrence, as
// returned by Selector.Snapshot.
type LiveEntry struct {
	Endpoint Endpoint
	// Weight is the endpoint's current effective weight - its target
	// weight if static or graduated, its in-progress ramp weight otherwise.
	Weight int
	// Ramping is true while this occurrence is still mid-ramp.
	Ramping bool
}

func (c Config) validate() error {
	if c.RampingUpInterval <= 0 {
		return fmt.Errorf("%w: RampingUpInterval must be > 0", ErrInvalidConfig)
	}
	if c.TotalSteps < 1 {
		return fmt.Errorf("%w: TotalSteps must be >= 1", ErrInvalidConfig)
	}
	if c.RampingUpTaskWindow <= 0 || c.RampingUpTaskWindow > c.RampingUpInterval {
		return fmt.Errorf("%w: RampingUpTaskWindow must satisfy 0 < w <= RampingUpInterval", ErrInvalidConfig)
	}
	return nil
}

// memberState is the Selector's per-occurrence bookkeeping: one per
// EndpointAndStep it currently tracks, whether ramping or graduated/static.
type memberState struct {
	key            Key
	endpoint       Endpoint
	createdAtNanos int64
	ramp           *rampMember // non-nil while ramping
}

func (m *memberState) effectiveWeight() int {
	if m.ramp != nil {
		return m.ramp.currentWeight
	}
	return m.endpoint.TargetWeight
}

// Selector is the public face of the weight ramping-up algorithm: it
// subscribes to an EndpointGroup, maintains a time-bucketed ramp-up
// schedule for newly observed or upgraded endpoints, and exposes SelectNow
// for weighted-random selection over the current live view.
type Selector struct {
	group    EndpointGroup
	executor Executor
	ownsExec bool
	ticker   Ticker
	log      selectorLogger

	scheduler *windowScheduler
	dist      atomicDistribution
	snapshot  atomic.Pointer[[]LiveEntry]
	rng       safeRand
	metrics   func(Counts)

	unsubscribe func()

	closeOnce sync.Once
	closed    chan struct{}

	// current is mutated only by the executor goroutine (inside
	// handleUpdate and rebuild, both always run serially by s.executor);
	// SelectNow never touches it, it only reads the published dist.
	current map[Key][]*memberState

	// firstUpdate is true until the selector has processed one snapshot.
	// The very first snapshot seeds the live view at full target weight
	// with no ramp-up: there is no previous state to have upgraded from,
	// so nothing has "just appeared" relative to anything. Only endpoints
	// observed after that baseline ever enter a WindowEntry.
	firstUpdate bool
}

// New validates cfg and constructs a Selector bound to group. group must
// be non-nil. The returned Selector owns a background subscription to
// group until Close is called.
func New(group EndpointGroup, cfg Config) (*Selector, error) {
	if group == nil {
		return nil, ErrNilEndpointGroup
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	transition := cfg.Transition
	if transition == nil {
		transition = LinearTransition
	}
	ticker := cfg.Ticker
	if ticker == nil {
		ticker = NewSystemTicker()
	}

	log := newSelectorLogger(cfg.Logger)

	ownsExec := cfg.Executor == nil
	executor := cfg.Executor
	if ownsExec {
		executor = NewExecutor(func(recovered any) {
			log.upstreamFailure(fmt.Errorf("%w: %v", ErrTaskPanicked, recovered))
		})
	}

	s := &Selector{
		group:       group,
		executor:    executor,
		ownsExec:    ownsExec,
		ticker:      ticker,
		log:         log,
		rng:         newSafeRand(cfg.RandSeed),
		metrics:     cfg.Metrics,
		current:     make(map[Key][]*memberState),
		closed:      make(chan struct{}),
		firstUpdate: true,
	}
	s.scheduler = newWindowScheduler(cfg.RampingUpInterval, cfg.RampingUpTaskWindow, cfg.TotalSteps, ticker, executor, transition, log, s.rebuild)

	// notified is set once the listener has delivered a snapshot. The
	// WhenReady seed below only applies the group's current snapshot if no
	// listener delivery came first, so a snapshot is not handled twice and
	// an older one is never applied after a newer one.
	var notified atomic.Bool
	s.unsubscribe = group.AddListener(func(endpoints []Endpoint) {
		notified.Store(true)
		s.submitUpdate(endpoints)
	})

	go func() {
		select {
		case <-group.WhenReady():
			if err := s.executor.Execute(func() {
				if !notified.Load() {
					s.handleUpdate(group.CurrentEndpoints())
				}
			}); err != nil {
				s.log.executorRejected(err)
			}
		case <-s.closed:
		}
	}()

	return s, nil
}

func (s *Selector) submitUpdate(endpoints []Endpoint) {
	if err := s.executor.Execute(func() { s.handleUpdate(endpoints) }); err != nil {
		select {
		case <-s.closed:
			s.log.executorRejected(ErrSelectorClosed)
		default:
			s.log.executorRejected(err)
		}
	}
}

// SelectNow returns an endpoint chosen by weighted random selection over
// the current live view, or (Endpoint{}, false) if no endpoints have been
// published yet. It never blocks and is safe to call from any goroutine.
func (s *Selector) SelectNow(_ context.Context) (Endpoint, bool) {
	d := s.dist.load()
	return s.rng.pick(d)
}

// Close idempotently unregisters from the EndpointGroup, cancels every
// scheduled handle, and - if New constructed the default Executor - shuts
// it down.
func (s *Selector) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		done := make(chan struct{})
		_ = s.executor.Execute(func() {
			s.scheduler.close()
			close(done)
		})
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			// executor wedged; proceed with teardown regardless, matching
			// the best-effort cancellation contract.
		}
		if s.ownsExec {
			if closer, ok := s.executor.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}
	})
	return nil
}

// handleUpdate runs on the executor goroutine: it diffs endpoints against
// the previously recorded live set and mutates the ramp-up schedule and
// live view accordingly, per the selector's reconciliation algorithm.
func (s *Selector) handleUpdate(endpoints []Endpoint) {
	now := s.ticker.Now()

	newByKey := make(map[Key][]Endpoint)
	order := make([]Key, 0, len(endpoints))
	for _, ep := range endpoints {
		key := ep.Key()
		if _, seen := newByKey[key]; !seen {
			order = append(order, key)
		}
		newByKey[key] = append(newByKey[key], ep)
	}

	if s.firstUpdate {
		s.firstUpdate = false
		next := make(map[Key][]*memberState, len(newByKey))
		for _, key := range order {
			for _, occ := range newByKey[key] {
				createdAt := occ.CreatedAtNanos
				if createdAt == 0 {
					createdAt = now
				}
				next[key] = append(next[key], &memberState{key: key, endpoint: occ, createdAtNanos: createdAt})
			}
		}
		s.current = next
		s.rebuild()
		return
	}

	next := make(map[Key][]*memberState, len(newByKey))

	for _, key := range order {
		occs := newByKey[key]
		olds := s.current[key]
		n := len(occs)
		if len(olds) > n {
			n = len(olds)
		}
		var kept []*memberState
		for i := 0; i < n; i++ {
			var old *memberState
			if i < len(olds) {
				old = olds[i]
			}
			var occ *Endpoint
			if i < len(occs) {
				occ = &occs[i]
			}
			if occ == nil {
				s.retireMember(old)
				continue
			}
			if old == nil {
				kept = append(kept, s.addMember(key, *occ, now))
				continue
			}
			kept = append(kept, s.reconcileMember(key, old, *occ, now))
		}
		if len(kept) > 0 {
			next[key] = kept
		}
	}
	for key := range s.current {
		if _, ok := newByKey[key]; ok {
			continue
		}
		s.scheduler.removeKey(key)
	}

	s.current = next

	s.rebuild()
}

func (s *Selector) addMember(key Key, ep Endpoint, now int64) *memberState {
	createdAt := ep.CreatedAtNanos
	if createdAt == 0 {
		createdAt = now
	}
	ms := &memberState{key: key, endpoint: ep, createdAtNanos: createdAt}
	if ep.TargetWeight > 0 {
		ms.ramp = s.scheduler.insert(ep, key)
	}
	return ms
}

func (s *Selector) reconcileMember(key Key, old *memberState, occ Endpoint, now int64) *memberState {
	restart := occ.CreatedAtNanos != 0 && occ.CreatedAtNanos > old.createdAtNanos
	if restart {
		if old.ramp != nil {
			s.scheduler.removeMember(old.ramp)
		}
		s.log.restarted(key)
		return s.addMember(key, occ, now)
	}

	if occ.TargetWeight == old.endpoint.TargetWeight {
		old.endpoint = occ
		if occ.CreatedAtNanos != 0 {
			old.createdAtNanos = occ.CreatedAtNanos
		}
		return old
	}

	effective := old.effectiveWeight()
	if old.ramp != nil {
		s.scheduler.removeMember(old.ramp)
	}
	createdAt := old.createdAtNanos
	if occ.CreatedAtNanos != 0 {
		createdAt = occ.CreatedAtNanos
	}
	ms := &memberState{key: key, endpoint: occ, createdAtNanos: createdAt}
	if occ.TargetWeight <= effective {
		s.log.downgraded(key, occ.TargetWeight)
	} else if occ.TargetWeight > 0 {
		ms.ramp = s.scheduler.insert(occ, key)
	}
	return ms
}

func (s *Selector) retireMember(old *memberState) {
	if old == nil {
		return
	}
	if old.ramp != nil {
		s.scheduler.removeMember(old.ramp)
	}
}

// rebuild recomputes the weighted-random distribution from the current
// live view and publishes it atomically. Safe to call from the executor
// goroutine only.
func (s *Selector) rebuild() {
	keys := make([]Key, 0, len(s.current))
	for key := range s.current {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		if c := strings.Compare(a.Authority, b.Authority); c != 0 {
			return c
		}
		return strings.Compare(a.attrs, b.attrs)
	})
	entries := make([]distributionEntry, 0, len(s.current))
	live := make([]LiveEntry, 0, len(s.current))
	var counts Counts
	for _, key := range keys {
		for _, m := range s.current[key] {
			w := m.effectiveWeight()
			entries = append(entries, distributionEntry{endpoint: m.endpoint, weight: w})
			live = append(live, LiveEntry{Endpoint: m.endpoint, Weight: w, Ramping: m.ramp != nil})
			if m.ramp != nil {
				counts.Ramping++
			} else {
				counts.Graduated++
			}
		}
	}
	s.dist.store(buildDistribution(entries))
	s.snapshot.Store(&live)
	if s.metrics != nil {
		s.metrics(counts)
	}
}

// Snapshot returns a point-in-time view of every tracked endpoint
// occurrence, including duplicates and zero-weight entries, without
// consuming a selection. Unlike SelectNow it reflects the live view as of
// the last rebuild rather than a weighted pick, and is intended for
// observability rather than the hot path. Safe to call from any goroutine.
func (s *Selector) Snapshot() []LiveEntry {
	p := s.snapshot.Load()
	if p == nil {
		return nil
	}
	return append([]LiveEntry(nil), (*p)...)
}
