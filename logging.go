package rampselect

import (
	"github.com/joeycumines/logiface"
)

// selectorLogger narrows the ambient logiface.Logger down to exactly the
// events the selector ever reports. Every call site sits off the SelectNow
// hot path - logging never happens inside a pick.
type selectorLogger struct {
	log *logiface.Logger[logiface.Event]
}

// newSelectorLogger wraps log, defaulting to a writer-less (therefore
// silent) logger if log is nil, mirroring the ambient-logging convention of
// defaulting to a disabled sink rather than a nil-checked code path at
// every call site.
func newSelectorLogger(log *logiface.Logger[logiface.Event]) selectorLogger {
	if log == nil {
		log = logiface.L.New().Logger()
	}
	return selectorLogger{log: log}
}

func (l selectorLogger) windowCreated(index int, delayNanos int64) {
	l.log.Debug().Int("window_index", index).Int64("initial_delay_nanos", delayNanos).Log("ramp window created")
}

func (l selectorLogger) memberInserted(key Key, target int) {
	l.log.Debug().Str("endpoint", key.Authority).Int("target_weight", target).Log("endpoint entered ramp-up")
}

func (l selectorLogger) stepAdvanced(key Key, step, weight int) {
	l.log.Trace().Str("endpoint", key.Authority).Int("step", step).Int("weight", weight).Log("ramp-up step advanced")
}

func (l selectorLogger) graduated(key Key, weight int) {
	l.log.Debug().Str("endpoint", key.Authority).Int("weight", weight).Log("endpoint graduated from ramp-up")
}

func (l selectorLogger) downgraded(key Key, weight int) {
	l.log.Debug().Str("endpoint", key.Authority).Int("weight", weight).Log("endpoint downgraded, ramp-up bypassed")
}

func (l selectorLogger) restarted(key Key) {
	l.log.Info().Str("endpoint", key.Authority).Log("endpoint re-added with newer creation time, ramp-up restarted")
}

func (l selectorLogger) windowCancelled(index int) {
	l.log.Debug().Int("window_index", index).Log("ramp window emptied, schedule cancelled")
}

func (l selectorLogger) upstreamFailure(err error) {
	l.log.Err(err).Log("endpoint group listener reported a failure, keeping last known live view")
}

func (l selectorLogger) executorRejected(err error) {
	l.log.Err(err).Log("executor rejected a task before close")
}
