// Package ptt implements the push-to-talk arbiter: a single mutex-guarded
// holder slot, broadcast to every session on change. This is the one
// piece of process-wide mutable state in the gateway; everywhere else
// state is created once at startup and handed out by reference.
package ptt

import "sync"

// State is the uplink's current holder, or the absence of one.
type State struct {
	Held   bool
	Holder string // SessionId, meaningful only when Held
}

var Free = State{}

// Arbiter serializes acquire/release of the single uplink and fans out
// every resulting State to subscribers of Watch.
type Arbiter struct {
	mu    sync.Mutex
	state State

	subscribers map[chan State]struct{}
}

func New() *Arbiter {
	return &Arbiter{subscribers: make(map[chan State]struct{})}
}

// Acquire grants the uplink to session if free, otherwise reports who
// already holds it. ok is true only on a successful grant.
func (a *Arbiter) Acquire(session string) (state State, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.Held {
		return a.state, false
	}

	a.state = State{Held: true, Holder: session}
	a.publish()
	return a.state, true
}

// Release gives up the uplink if session is the current holder; a
// mismatched or redundant release is a silent no-op, matching session
// teardown calling this unconditionally.
func (a *Arbiter) Release(session string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.state.Held || a.state.Holder != session {
		return
	}

	a.state = Free
	a.publish()
}

// publish must be called with a.mu held.
func (a *Arbiter) publish() {
	for ch := range a.subscribers {
		select {
		case ch <- a.state:
		default:
			// a lagging watcher's unread state is stale: drop it and
			// send the current one, so this feed only ever holds the
			// *current* truth
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- a.state:
			default:
			}
		}
	}
}

// Watch returns a channel of every subsequent State change (buffered by
// one, so a slow reader sees only the latest, never a stale backlog).
// Callers must call Unwatch when done.
func (a *Arbiter) Watch() chan State {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan State, 1)
	a.subscribers[ch] = struct{}{}
	return ch
}

func (a *Arbiter) Unwatch(ch chan State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.subscribers, ch)
}

// Current reports the present state without subscribing.
func (a *Arbiter) Current() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
