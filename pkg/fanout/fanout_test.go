package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLog() zerolog.Logger {
	return zerolog.Nop()
}

// countingPuller emits n ints then returns nil, tracking how many times it
// was invoked.
func countingPuller(n int, calls *int, mu *sync.Mutex) Puller[int] {
	return func(ctx context.Context, emit func(int)) error {
		mu.Lock()
		*calls++
		mu.Unlock()
		for i := 0; i < n; i++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			emit(i)
		}
		return nil
	}
}

func TestSubscribeStartsUpstreamOnce(t *testing.T) {
	var calls int
	var mu sync.Mutex
	e := New[int](countingPuller(3, &calls, &mu), 8, 50*time.Millisecond, testLog())

	sub := e.Subscribe()
	defer sub.Close()

	received := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		select {
		case v := <-sub.C():
			received = append(received, v)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}
	require.Equal(t, []int{0, 1, 2}, received)

	mu.Lock()
	require.Equal(t, 1, calls)
	mu.Unlock()
}

func TestBroadcastToMultipleSubscribers(t *testing.T) {
	var calls int
	var mu sync.Mutex
	e := New[int](countingPuller(2, &calls, &mu), 8, 50*time.Millisecond, testLog())

	a := e.Subscribe()
	b := e.Subscribe()
	defer a.Close()
	defer b.Close()

	for _, sub := range []*Subscription[int]{a, b} {
		for i := 0; i < 2; i++ {
			select {
			case <-sub.C():
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for frame")
			}
		}
	}
}

func TestGraceTimeoutReleasesUpstream(t *testing.T) {
	blocked := make(chan struct{})
	puller := func(ctx context.Context, emit func(int)) error {
		emit(1)
		<-ctx.Done()
		close(blocked)
		return ctx.Err()
	}

	e := New[int](puller, 8, 20*time.Millisecond, testLog())
	sub := e.Subscribe()

	select {
	case <-sub.C():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}

	sub.Close()
	require.Equal(t, Draining, e.State())

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("upstream was never cancelled after grace period")
	}

	require.Eventually(t, func() bool { return e.State() == Idle }, time.Second, time.Millisecond)
}

func TestResubscribeDuringGraceCancelsTeardown(t *testing.T) {
	puller := func(ctx context.Context, emit func(int)) error {
		emit(7)
		<-ctx.Done()
		return ctx.Err()
	}

	e := New[int](puller, 8, 50*time.Millisecond, testLog())
	a := e.Subscribe()
	<-a.C()

	a.Close()
	require.Equal(t, Draining, e.State())

	b := e.Subscribe()
	defer b.Close()
	require.Equal(t, Streaming, e.State())

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, Streaming, e.State())
}

func TestSubscriberDropsOldestOnOverflow(t *testing.T) {
	release := make(chan struct{})
	puller := func(ctx context.Context, emit func(int)) error {
		for i := 0; i < 5; i++ {
			emit(i)
		}
		<-release
		return nil
	}

	e := New[int](puller, 2, time.Second, testLog())
	sub := e.Subscribe()
	defer func() {
		close(release)
		sub.Close()
	}()

	time.Sleep(50 * time.Millisecond)
	require.Greater(t, sub.Gaps(), uint64(0))
}

// TestUnsubscribeDuringBackoffGoesIdleWithoutReconnecting covers the
// window between a failed puller call and its backoff-delayed retry: the
// last subscriber leaving during that window must retire the engine to
// Idle rather than reconnecting with zero subscribers.
func TestUnsubscribeDuringBackoffGoesIdleWithoutReconnecting(t *testing.T) {
	var calls int
	var mu sync.Mutex
	failErr := errors.New("upstream reset")

	puller := func(ctx context.Context, emit func(int)) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return failErr
	}

	e := New[int](puller, 4, 3*time.Second, testLog())
	e.backoff = 30 * time.Millisecond
	sub := e.Subscribe()

	require.Eventually(t, func() bool { return e.State() == Connecting }, time.Second, time.Millisecond)

	sub.Close()
	require.Equal(t, Draining, e.State())

	require.Eventually(t, func() bool { return e.State() == Idle }, time.Second, time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	require.Equal(t, 1, calls)
	mu.Unlock()
}

func TestReconnectsOnUpstreamError(t *testing.T) {
	var calls int
	var mu sync.Mutex
	failOnce := errors.New("upstream reset")

	puller := func(ctx context.Context, emit func(int)) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		if n == 1 {
			return failOnce
		}
		emit(99)
		<-ctx.Done()
		return ctx.Err()
	}

	e := New[int](puller, 4, time.Second, testLog())
	e.backoff = time.Millisecond
	sub := e.Subscribe()
	defer sub.Close()

	select {
	case v := <-sub.C():
		require.Equal(t, 99, v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame after reconnect")
	}

	mu.Lock()
	require.Equal(t, 2, calls)
	mu.Unlock()
}
