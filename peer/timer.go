package peer

import (
	"sync"
	"time"
)

// oneShotTimer is the gbt.Timer implementation each Peer owns. On expiry
// it only ever enqueues a timer-expiry event onto the peer's own queue;
// it never touches engine state directly, which is what lets the engine
// stay single-threaded from its own point of view even though the timer
// fires on its own goroutine (grounded on the heartbeat consumer's
// time.AfterFunc pattern).
type oneShotTimer struct {
	mu       sync.Mutex
	d        time.Duration
	enabled  bool
	timer    *time.Timer
	armed    bool
	onExpiry func()
}

func newOneShotTimer(d time.Duration, enabled bool, onExpiry func()) *oneShotTimer {
	return &oneShotTimer{d: d, enabled: enabled, onExpiry: onExpiry}
}

// Start arms the timer if it isn't already armed. A no-op when the timer
// is disabled (the simulator disables the server's timer by default; see
// SPEC_FULL.md section 9).
func (t *oneShotTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || t.armed {
		return
	}
	t.armed = true
	if t.timer == nil {
		t.timer = time.AfterFunc(t.d, t.fire)
		return
	}
	t.timer.Reset(t.d)
}

// Stop cancels any armed timer.
func (t *oneShotTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = false
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *oneShotTimer) fire() {
	t.mu.Lock()
	t.armed = false
	t.mu.Unlock()
	t.onExpiry()
}

// close stops the underlying timer permanently; used on peer teardown so
// no goroutine outlives the peer (see goleak-guarded test in package peer).
func (t *oneShotTimer) close() {
	t.mu.Lock()
	t.enabled = false
	t.mu.Unlock()
	t.Stop()
}
