package rampselect

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Key identifies an Endpoint independent of its weight. Two endpoints are
// the same endpoint iff their Key values compare equal.
type Key struct {
	Authority string
	attrs     string // pre-flattened, sorted "k=v\x00k=v\x00..." of stable attributes
}

// Endpoint is an immutable value identified by (Authority, Attributes),
// carrying a non-negative TargetWeight. Duplicate endpoints (equal Key) may
// appear multiple times in a list published by an EndpointGroup; each
// occurrence is tracked independently by the Selector.
type Endpoint struct {
	// Authority is host[:port], or any other producer-stable address form.
	Authority string

	// Attributes are additional producer-stable identity components, e.g.
	// a shard or zone label. All entries participate in identity; there is
	// no reserved key namespace.
	Attributes map[string]string

	// TargetWeight is the weight this endpoint should reach once ramp-up
	// (if any) completes. Must be >= 0.
	TargetWeight int

	// CreatedAtNanos, if non-zero, is the upstream-reported creation time
	// of this endpoint, in nanoseconds, per the same clock domain as the
	// Ticker passed to New. See Selector's timestamp-restart rule.
	CreatedAtNanos int64
}

// Key returns the stable identity of the endpoint. Weight and
// CreatedAtNanos never participate in identity.
func (e Endpoint) Key() Key {
	if len(e.Attributes) == 0 {
		return Key{Authority: e.Authority}
	}
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var b strings.Builder
	for i, k := range keys {
		if i != 0 {
			b.WriteByte(0)
		}
		fmt.Fprintf(&b, "%s=%s", k, e.Attributes[k])
	}
	return Key{Authority: e.Authority, attrs: b.String()}
}

// String renders the endpoint for logging and test failure output.
func (e Endpoint) String() string {
	if e.Attributes == nil {
		return e.Authority
	}
	return fmt.Sprintf("%s%v", e.Authority, e.Attributes)
}
