package ptt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireGrantsWhenFree(t *testing.T) {
	a := New()

	state, ok := a.Acquire("session-a")
	require.True(t, ok)
	require.True(t, state.Held)
	require.Equal(t, "session-a", state.Holder)
	require.Equal(t, state, a.Current())
}

func TestAcquireRejectsWhenHeld(t *testing.T) {
	a := New()
	_, _ = a.Acquire("session-a")

	state, ok := a.Acquire("session-b")
	require.False(t, ok)
	require.Equal(t, "session-a", state.Holder)
}

func TestReleaseBySomeoneElseIsNoop(t *testing.T) {
	a := New()
	_, _ = a.Acquire("session-a")

	a.Release("session-b")
	require.True(t, a.Current().Held)
	require.Equal(t, "session-a", a.Current().Holder)
}

func TestReleaseByHolderFreesIt(t *testing.T) {
	a := New()
	_, _ = a.Acquire("session-a")

	a.Release("session-a")
	require.Equal(t, Free, a.Current())
}

func TestWatchReceivesTransitions(t *testing.T) {
	a := New()
	feed := a.Watch()
	defer a.Unwatch(feed)

	_, _ = a.Acquire("session-a")

	select {
	case state := <-feed:
		require.True(t, state.Held)
		require.Equal(t, "session-a", state.Holder)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for acquire notification")
	}

	a.Release("session-a")

	select {
	case state := <-feed:
		require.Equal(t, Free, state)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for release notification")
	}
}

func TestWatchLaggingSubscriberSeesLatestNotStale(t *testing.T) {
	a := New()
	feed := a.Watch()
	defer a.Unwatch(feed)

	_, _ = a.Acquire("session-a")
	a.Release("session-a")
	_, _ = a.Acquire("session-c")

	select {
	case state := <-feed:
		require.True(t, state.Held)
		require.Equal(t, "session-c", state.Holder)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for coalesced notification")
	}
}

func TestUnwatchStopsDelivery(t *testing.T) {
	a := New()
	feed := a.Watch()
	a.Unwatch(feed)

	_, _ = a.Acquire("session-a")

	select {
	case <-feed:
		t.Fatal("unwatched channel should not receive further states")
	case <-time.After(50 * time.Millisecond):
	}
}
