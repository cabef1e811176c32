package rampselect

import "time"

// rampMember is one endpoint occurrence tracked inside a windowEntry -
// spec's EndpointAndStep. Duplicate occurrences of the same key are
// distinct rampMembers, each advancing independently.
type rampMember struct {
	key           Key
	endpoint      Endpoint // TargetWeight is read from here; Authority/Attributes identify it
	step          int
	currentWeight int
}

// graduated reports whether this member has reached totalSteps and should
// leave ramp-up, carrying its target weight directly.
func (m *rampMember) graduated(totalSteps int) bool { return m.step >= totalSteps }

// windowEntry is one bucket in the ramp-up schedule: every member sharing
// it advances on the same periodic tick, grounded on catrate.Limiter's
// per-category map entries, each owning its own cleanup-worthiness.
type windowEntry struct {
	index   int
	members []*rampMember
	handle  Handle
}

func (w *windowEntry) empty() bool { return len(w.members) == 0 }

// removeMember deletes member from the entry's member slice, if present.
func (w *windowEntry) removeMember(member *rampMember) {
	for i, m := range w.members {
		if m == member {
			w.members = append(w.members[:i], w.members[i+1:]...)
			return
		}
	}
}

// windowScheduler owns the time-bucketed ramp-up schedule: it coalesces
// additions that land in the same windowIndex into one windowEntry driven
// by a single periodic Handle, and advances every member's step on each
// fire. All methods run on the owning Selector's executor goroutine; the
// scheduler itself holds no lock, matching the single-writer discipline
// catrate.Limiter.worker() uses for its sweep of categoryData.
type windowScheduler struct {
	interval   time.Duration
	totalSteps int
	taskWindow time.Duration
	ticker     Ticker
	executor   Executor
	transition Transition

	// onTick is invoked, inline, after a fire has advanced every member of
	// the firing window and pruned graduates - the live view rebuild hook.
	onTick func()

	log selectorLogger

	entries map[int]*windowEntry
	byKey   map[Key][]*rampMember
}

func newWindowScheduler(interval, taskWindow time.Duration, totalSteps int, ticker Ticker, executor Executor, transition Transition, log selectorLogger, onTick func()) *windowScheduler {
	return &windowScheduler{
		interval:   interval,
		totalSteps: totalSteps,
		taskWindow: taskWindow,
		ticker:     ticker,
		executor:   executor,
		transition: transition,
		onTick:     onTick,
		log:        log,
		entries:    make(map[int]*windowEntry),
		byKey:      make(map[Key][]*rampMember),
	}
}

// windowIndexAt returns floor((now mod interval) / taskWindow).
func (s *windowScheduler) windowIndexAt(nowNanos int64) int {
	intervalNanos := s.interval.Nanoseconds()
	taskWindowNanos := s.taskWindow.Nanoseconds()
	phase := nowNanos % intervalNanos
	if phase < 0 {
		phase += intervalNanos
	}
	return int(phase / taskWindowNanos)
}

// initialDelayFor returns the delay, from nowNanos, to the next fire of
// window w's periodic schedule: interval - (now mod interval) + w*taskWindow.
func (s *windowScheduler) initialDelayFor(nowNanos int64, w int) time.Duration {
	intervalNanos := s.interval.Nanoseconds()
	phase := nowNanos % intervalNanos
	if phase < 0 {
		phase += intervalNanos
	}
	delay := intervalNanos - phase + int64(w)*s.taskWindow.Nanoseconds()
	return time.Duration(delay)
}

// insert creates, if necessary, the windowEntry for the current time's
// window index, and appends a fresh step=1 member for endpoint. Returns
// the member so the caller (Selector) can track it in the live view.
func (s *windowScheduler) insert(endpoint Endpoint, key Key) *rampMember {
	now := s.ticker.Now()
	w := s.windowIndexAt(now)

	entry, ok := s.entries[w]
	if !ok {
		entry = &windowEntry{index: w}
		s.entries[w] = entry
		delay := s.initialDelayFor(now, w)
		handle, err := s.executor.ScheduleAtFixedRate(func() { s.tick(w) }, delay, s.interval)
		if err != nil {
			// Executor rejected scheduling before close; the caller's
			// rebuild will simply never ramp this entry - surfaced via
			// the member staying at step 1 forever. Escalation of
			// executor-rejection-before-close is the owner's job.
			s.log.executorRejected(err)
			delete(s.entries, w)
		} else {
			entry.handle = handle
			s.log.windowCreated(w, int64(delay))
		}
	}

	member := &rampMember{
		key:           key,
		endpoint:      endpoint,
		step:          1,
		currentWeight: s.transition(1, s.totalSteps, endpoint.TargetWeight),
	}
	entry.members = append(entry.members, member)
	s.byKey[key] = append(s.byKey[key], member)
	s.log.memberInserted(key, endpoint.TargetWeight)
	return member
}

// removeKey deletes every rampMember tracked for key, cancelling and
// dropping any windowEntry left empty by the removal. Returns the removed
// members, if any.
func (s *windowScheduler) removeKey(key Key) []*rampMember {
	members := s.byKey[key]
	if len(members) == 0 {
		return nil
	}
	delete(s.byKey, key)

	touched := make(map[int]*windowEntry)
	for _, member := range members {
		for _, entry := range s.entries {
			entry.removeMember(member)
			touched[entry.index] = entry
		}
	}
	s.pruneEmpty(touched)
	return members
}

// removeMember deletes a single rampMember: used when a trailing duplicate
// occurrence of a key drops out of a snapshot, and when the Selector
// replaces a member's ramp on a timestamp restart or a weight change.
func (s *windowScheduler) removeMember(member *rampMember) {
	siblings := s.byKey[member.key]
	for i, m := range siblings {
		if m == member {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(s.byKey, member.key)
	} else {
		s.byKey[member.key] = siblings
	}

	touched := make(map[int]*windowEntry)
	for _, entry := range s.entries {
		entry.removeMember(member)
		touched[entry.index] = entry
	}
	s.pruneEmpty(touched)
}

func (s *windowScheduler) pruneEmpty(touched map[int]*windowEntry) {
	for idx, entry := range touched {
		if entry.empty() {
			if entry.handle != nil {
				entry.handle.Cancel(false)
			}
			delete(s.entries, idx)
			s.log.windowCancelled(idx)
		}
	}
}

// tick is the scheduled fire handler for window w: advance every member's
// step, prune graduates, rebuild the live view, and retire the entry if it
// is now empty.
func (s *windowScheduler) tick(w int) {
	entry, ok := s.entries[w]
	if !ok {
		return
	}

	remaining := entry.members[:0]
	for _, member := range entry.members {
		member.step++
		member.currentWeight = s.transition(member.step, s.totalSteps, member.endpoint.TargetWeight)
		if member.graduated(s.totalSteps) {
			member.currentWeight = member.endpoint.TargetWeight
			s.dropFromByKey(member)
			s.log.graduated(member.key, member.currentWeight)
			continue
		}
		s.log.stepAdvanced(member.key, member.step, member.currentWeight)
		remaining = append(remaining, member)
	}
	entry.members = remaining

	if entry.empty() {
		if entry.handle != nil {
			entry.handle.Cancel(false)
		}
		delete(s.entries, w)
		s.log.windowCancelled(w)
	}

	if s.onTick != nil {
		s.onTick()
	}
}

func (s *windowScheduler) dropFromByKey(member *rampMember) {
	siblings := s.byKey[member.key]
	for i, m := range siblings {
		if m == member {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(s.byKey, member.key)
	} else {
		s.byKey[member.key] = siblings
	}
}

// close cancels every outstanding handle exactly once and clears the
// schedule, per the group-close cancellation contract.
func (s *windowScheduler) close() {
	for idx, entry := range s.entries {
		if entry.handle != nil {
			entry.handle.Cancel(false)
		}
		delete(s.entries, idx)
	}
	s.byKey = make(map[Key][]*rampMember)
}
