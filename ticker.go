package rampselect

import "time"

// Ticker is a monotonic nanosecond clock, injected so window-scheduling
// math stays deterministic under test. Only differences between two Now()
// calls are meaningful; the epoch is arbitrary.
type Ticker interface {
	Now() int64
}

// systemTicker is the default Ticker, backed by the process's monotonic
// clock via time.Since (time.Time retains monotonic readings internally,
// so wall-clock adjustments never perturb it).
type systemTicker struct{ start time.Time }

// NewSystemTicker returns a Ticker backed by the process monotonic clock.
func NewSystemTicker() Ticker {
	return &systemTicker{start: time.Now()}
}

func (t *systemTicker) Now() int64 { return int64(time.Since(t.start)) }
