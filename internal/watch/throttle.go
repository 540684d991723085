package watch

import (
	"sync"
	"time"
)

// Decision is the throttle's verdict for one tick.
type Decision int

const (
	NoSend Decision = iota
	SendChange
	SendHeartbeat
)

// Intervals holds the three pacing knobs. ChangeEvery is the minimum
// spacing between change-triggered sends; HeartbeatEvery paces the
// sustained-availability reminder; MinGap keeps a heartbeat from
// landing right on top of a change send.
type Intervals struct {
	ChangeEvery    time.Duration
	HeartbeatEvery time.Duration
	MinGap         time.Duration
}

func (iv Intervals) withDefaults() Intervals {
	if iv.ChangeEvery <= 0 {
		iv.ChangeEvery = 3 * time.Second
	}
	if iv.HeartbeatEvery <= 0 {
		iv.HeartbeatEvery = 9 * time.Second
	}
	if iv.MinGap <= 0 {
		iv.MinGap = 100 * time.Millisecond
	}
	return iv
}

type groupState struct {
	lastSend      time.Time
	lastHeartbeat time.Time
}

// Throttle decides, per group key, whether a tick's observation turns
// into a notification. Two rules, checked in order and mutually
// exclusive per tick:
//
//  1. Change rule: something changed and at least ChangeEvery has
//     passed since the last send (boundary inclusive).
//  2. Heartbeat rule: nothing changed, something is purchasable, at
//     least HeartbeatEvery has passed since the last heartbeat (or since
//     the group was first observed), and at least MinGap since the last
//     send of any kind. A pending-but-throttled change therefore keeps
//     the heartbeat path closed too; it goes out through rule 1 once
//     ChangeEvery elapses.
//
// Every send updates lastSend; only a heartbeat send updates
// lastHeartbeat.
type Throttle struct {
	mu     sync.Mutex
	iv     Intervals
	groups map[string]*groupState
	now    func() time.Time
}

func NewThrottle(iv Intervals) *Throttle {
	return &Throttle{
		iv:     iv.withDefaults(),
		groups: map[string]*groupState{},
		now:    time.Now,
	}
}

// SetIntervals swaps the pacing knobs; existing group timestamps are kept.
func (t *Throttle) SetIntervals(iv Intervals) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.iv = iv.withDefaults()
}

// Decide evaluates the two rules for one group and records the send if
// either fires.
func (t *Throttle) Decide(group string, hasChange, hasAvailable bool) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	st := t.groups[group]
	if st == nil {
		// The heartbeat clock starts at first observation so the rule
		// measures sustained availability, not mere presence.
		st = &groupState{lastHeartbeat: now}
		t.groups[group] = st
	}

	if hasChange && (st.lastSend.IsZero() || now.Sub(st.lastSend) >= t.iv.ChangeEvery) {
		st.lastSend = now
		return SendChange
	}
	if !hasChange && hasAvailable &&
		now.Sub(st.lastHeartbeat) >= t.iv.HeartbeatEvery &&
		(st.lastSend.IsZero() || now.Sub(st.lastSend) >= t.iv.MinGap) {
		st.lastSend = now
		st.lastHeartbeat = now
		return SendHeartbeat
	}
	return NoSend
}
