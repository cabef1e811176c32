package rampselect

import (
	"sync"
)

// Listener is notified every time an EndpointGroup's endpoint list changes.
// Implementations must return quickly; AddListener callers that need to do
// real work should hand off to an Executor rather than block the caller of
// publish.
type Listener func(endpoints []Endpoint)

// EndpointGroup is a dynamic, observable source of endpoints. Selector
// treats every list it ever observes from a group as successive snapshots
// to diff against each other, not an incremental delta stream.
type EndpointGroup interface {
	// CurrentEndpoints returns the most recently published snapshot. It
	// never blocks waiting for a first snapshot; call WhenReady for that.
	CurrentEndpoints() []Endpoint

	// AddListener registers fn to be called, synchronously from the
	// publishing goroutine, with every subsequent snapshot. It does not
	// replay the current snapshot; callers that need the current value
	// should call CurrentEndpoints first. The returned func removes the
	// listener; it is safe to call more than once.
	AddListener(fn Listener) (remove func())

	// WhenReady returns a channel closed once the group has published at
	// least one snapshot (even an empty one). If a snapshot has already
	// been published, the returned channel is already closed.
	WhenReady() <-chan struct{}

	// Close releases resources held by the group. Implementations that
	// wrap no external subscription may treat this as a no-op.
	Close() error
}

// group is the shared pub/sub core behind StaticGroup and DynamicGroup,
// grounded on linkerd2's endpointTopic: a mutex-guarded "latest snapshot"
// plus a set of subscriber callbacks invoked synchronously on publish.
type group struct {
	mu        sync.RWMutex
	current   []Endpoint
	listeners map[int]Listener
	nextID    int
	ready     chan struct{}
	readyOnce sync.Once

	// publishMu serializes publish end-to-end (snapshot swap plus listener
	// notification), so that concurrent Update calls can never have their
	// listener notifications observed in a different relative order than
	// their snapshot writes - mu alone only protects the swap itself.
	publishMu sync.Mutex
}

func newGroup() *group {
	return &group{
		listeners: make(map[int]Listener),
		ready:     make(chan struct{}),
	}
}

func (g *group) CurrentEndpoints() []Endpoint {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

func (g *group) AddListener(fn Listener) (remove func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *group) WhenReady() <-chan struct{} {
	return g.ready
}

// publish installs endpoints as the new current snapshot and synchronously
// notifies every registered listener with a copy of the snapshot. publishMu
// holds across both the swap and the notification loop, so that two
// concurrent publish calls can never have their listener notifications
// observed out of order relative to their snapshot writes - without it, a
// publish that wins the snapshot race could still lose the notification
// race against another goroutine's publish.
func (g *group) publish(endpoints []Endpoint) {
	g.publishMu.Lock()
	defer g.publishMu.Unlock()

	snapshot := append([]Endpoint(nil), endpoints...)

	g.mu.Lock()
	g.current = snapshot
	listeners := make([]Listener, 0, len(g.listeners))
	for _, fn := range g.listeners {
		listeners = append(listeners, fn)
	}
	g.mu.Unlock()

	g.readyOnce.Do(func() { close(g.ready) })

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (g *group) Close() error { return nil }

// StaticGroup is an EndpointGroup with a fixed endpoint list, set once at
// construction. Useful for tests and for configurations where membership
// never changes but ramp-up behavior (e.g. on process restart) still
// matters.
type StaticGroup struct {
	*group
}

// NewStaticGroup returns an EndpointGroup that always reports endpoints,
// already marked ready.
func NewStaticGroup(endpoints ...Endpoint) *StaticGroup {
	g := newGroup()
	g.publish(endpoints)
	return &StaticGroup{group: g}
}

// DynamicGroup is an EndpointGroup whose membership is pushed in by a
// producer (service discovery, a DNS poller, a control-plane stream) via
// Update. Safe for concurrent use: Update may be called from any goroutine,
// including concurrently with itself, and observers see a consistent total
// order of snapshots.
type DynamicGroup struct {
	*group
}

// NewDynamicGroup returns an EndpointGroup with no endpoints and not yet
// ready; call Update to publish the first snapshot.
func NewDynamicGroup() *DynamicGroup {
	return &DynamicGroup{group: newGroup()}
}

// Update publishes a new endpoint snapshot, notifying all listeners.
func (d *DynamicGroup) Update(endpoints []Endpoint) {
	d.publish(endpoints)
}
