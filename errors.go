package rampselect

import "errors"

// Standard errors returned by this package.
var (
	// ErrInvalidConfig is returned by New when a Config field fails validation.
	ErrInvalidConfig = errors.New("rampselect: invalid config")

	// ErrSelectorClosed is reported to the Selector's logger when an
	// endpoint update cannot be handed to the executor because Close has
	// been called. No Selector method returns it.
	ErrSelectorClosed = errors.New("rampselect: selector is closed")

	// ErrNilEndpointGroup is returned by New when the supplied EndpointGroup
	// is nil.
	ErrNilEndpointGroup = errors.New("rampselect: nil endpoint group")

	// ErrTaskPanicked wraps whatever a Task recovered from, logged via
	// selectorLogger.upstreamFailure rather than propagated - a panicking
	// update handler or hook must never take down the executor or bubble
	// out through SelectNow.
	ErrTaskPanicked = errors.New("rampselect: task panicked")
)
