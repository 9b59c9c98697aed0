// Package fanout implements the on-demand-upstream, bounded-broadcast
// engine shared by the audio and video pipelines: at most one upstream
// connection, lazily opened on first subscriber and torn down after a
// grace period once the last one leaves, replicating whatever the
// upstream produces to every live subscriber without blocking on slow
// ones.
//
// There is no generic producer/consumer framework anywhere in the pack to
// ground this on directly (go2rtc's pkg/core.Node/Mixer solves a related
// but much larger many-to-many routing problem); this is grounded on the
// state machine and broadcast semantics the gateway's own design calls
// for, expressed with the same sync/atomic-free, single-mutex style the
// pack uses for its other small pieces of shared state (pkg/tcp.Auth,
// internal/app's log level map).
package fanout

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type State int

const (
	Idle State = iota
	Connecting
	Streaming
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	default:
		return "unknown"
	}
}

// Puller opens the upstream connection and calls emit for every frame it
// produces until ctx is cancelled or the upstream ends, at which point it
// returns (nil on a clean end, an error otherwise).
type Puller[T any] func(ctx context.Context, emit func(T)) error

// Engine owns at most one upstream connection of type T and replicates its
// output to every current Subscription.
type Engine[T any] struct {
	mu          sync.Mutex
	state       State
	subscribers map[*Subscription[T]]struct{}
	graceTimer  *time.Timer
	cancel      context.CancelFunc

	puller     Puller[T]
	bufferSize int
	grace      time.Duration
	backoff    time.Duration
	log        zerolog.Logger
}

// New builds an engine around puller, starting Idle. bufferSize bounds
// each subscriber's backlog; grace is how long the upstream is kept alive
// after the last subscriber leaves.
func New[T any](puller Puller[T], bufferSize int, grace time.Duration, log zerolog.Logger) *Engine[T] {
	return &Engine[T]{
		subscribers: make(map[*Subscription[T]]struct{}),
		puller:      puller,
		bufferSize:  bufferSize,
		grace:       grace,
		backoff:     500 * time.Millisecond,
		log:         log,
	}
}

// State reports the engine's current lifecycle state.
func (e *Engine[T]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Subscribe registers a new subscriber, opening the upstream if this is
// the first one and cancelling any pending grace-period teardown.
func (e *Engine[T]) Subscribe() *Subscription[T] {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &Subscription[T]{engine: e, ch: make(chan T, e.bufferSize)}
	e.subscribers[sub] = struct{}{}

	if e.graceTimer != nil {
		e.graceTimer.Stop()
		e.graceTimer = nil
		if e.state == Draining {
			e.state = Streaming
		}
	}

	if e.state == Idle {
		e.start()
	}

	return sub
}

func (e *Engine[T]) start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.state = Connecting
	go e.run(ctx)
}

func (e *Engine[T]) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		e.mu.Lock()
		if len(e.subscribers) == 0 {
			if e.graceTimer != nil {
				e.graceTimer.Stop()
				e.graceTimer = nil
			}
			e.state = Idle
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		e.log.Debug().Msg("fanout: opening upstream")

		first := true
		err := e.puller(ctx, func(frame T) {
			e.mu.Lock()
			if first {
				first = false
				if e.state != Draining {
					e.state = Streaming
				}
			}
			for sub := range e.subscribers {
				sub.deliver(frame)
			}
			e.mu.Unlock()
		})

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			e.log.Warn().Err(err).Msg("fanout: upstream ended")
		}

		e.mu.Lock()
		wanted := len(e.subscribers) > 0
		if !wanted {
			e.state = Idle
			e.mu.Unlock()
			return
		}
		e.state = Connecting
		e.mu.Unlock()

		// back off, jittered by up to half the base delay
		jitter := time.Duration(rand.Int63n(int64(e.backoff)/2 + 1))
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.backoff + jitter):
		}
	}
}

// armGrace must be called with e.mu held.
func (e *Engine[T]) armGrace() {
	e.state = Draining
	e.graceTimer = time.AfterFunc(e.grace, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.state != Draining || len(e.subscribers) != 0 {
			return
		}
		e.state = Idle
		if e.cancel != nil {
			e.cancel()
		}
	})
}

func (e *Engine[T]) unsubscribe(sub *Subscription[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.subscribers[sub]; !ok {
		return
	}
	delete(e.subscribers, sub)
	close(sub.ch)
	if len(e.subscribers) == 0 && e.state != Idle {
		e.armGrace()
	}
}

// Subscription is one consumer's handle on an Engine. Closing it (or
// letting it be garbage collected without closing is not supported —
// callers must call Close) decrements the engine's subscriber count.
type Subscription[T any] struct {
	engine *Engine[T]
	ch     chan T
	gaps   uint64
}

// C returns the channel frames arrive on, in strict produced order,
// subject to bounded drops recorded in Gaps.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Gaps reports how many times this subscriber has fallen behind and had
// the oldest buffered frame dropped to make room for a new one.
func (s *Subscription[T]) Gaps() uint64 {
	return s.gaps
}

func (s *Subscription[T]) deliver(frame T) {
	select {
	case s.ch <- frame:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.gaps++
	select {
	case s.ch <- frame:
	default:
	}
}

// Close releases the subscription and closes the channel returned by C.
// The engine arms its grace timer if this was the last one.
func (s *Subscription[T]) Close() {
	s.engine.unsubscribe(s)
}
