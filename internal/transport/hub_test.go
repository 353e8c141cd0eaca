package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopHandler satisfies Handler for tests that never exercise the chat core.
type nopHandler struct{}

func (nopHandler) HandleConnect(context.Context, string) error { return nil }

func (nopHandler) HandleDisconnect(context.Context, string) {}

func (nopHandler) HandleMessage(context.Context, string, string) error { return nil }

func TestPushToUnknownHandleReportsPeerGone(t *testing.T) {
	hub := NewHub()
	hub.SetHandler(nopHandler{})

	err := hub.Push("no-such-handle", "hello")
	assert.ErrorIs(t, err, ErrPeerGone)
}

func TestPushToClosedClientReportsPeerGone(t *testing.T) {
	hub := NewHub()
	hub.SetHandler(nopHandler{})

	client := NewClient("c1", nil, hub, "127.0.0.1:12345", Limits{})
	hub.clients[client.handle] = client
	client.closed = true

	err := hub.Push("c1", "hello")
	assert.ErrorIs(t, err, ErrPeerGone)
}

func TestPushToFullSendBufferEvictsClient(t *testing.T) {
	hub := NewHub()
	hub.SetHandler(nopHandler{})
	go hub.Run()

	client := NewClient("c1", nil, hub, "127.0.0.1:12345", Limits{})
	hub.mutex.Lock()
	hub.clients[client.handle] = client
	hub.mutex.Unlock()

	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, hub.Push("c1", "fill"))
	}
	assert.ErrorIs(t, hub.Push("c1", "overflow"), ErrPeerGone)

	// A peer that let its buffer fill must also lose its registration, so
	// the transport agrees with the directory cleanup the caller performs.
	assert.Eventually(t, func() bool {
		hub.mutex.RLock()
		defer hub.mutex.RUnlock()
		_, registered := hub.clients["c1"]
		return !registered
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Shutdown(time.Second))
}

// stallingHandler blocks HandleConnect for one designated handle and
// rejects every connection so no pumps are started for the nil test conns.
type stallingHandler struct {
	stallHandle string
	release     chan struct{}
	attempted   chan string
}

func (s *stallingHandler) HandleConnect(_ context.Context, handle string) error {
	s.attempted <- handle
	if handle == s.stallHandle {
		<-s.release
	}
	return context.Canceled
}

func (s *stallingHandler) HandleDisconnect(context.Context, string) {}

func (s *stallingHandler) HandleMessage(context.Context, string, string) error { return nil }

func TestSlowConnectDoesNotStallOtherRegistrations(t *testing.T) {
	handler := &stallingHandler{
		stallHandle: "slow",
		release:     make(chan struct{}),
		attempted:   make(chan string, 2),
	}
	hub := NewHub()
	hub.SetHandler(handler)
	go hub.Run()

	hub.Register(NewClient("slow", nil, hub, "127.0.0.1:1", Limits{}))
	require.Equal(t, "slow", <-handler.attempted)

	// While "slow" is stuck in its connect, the loop must still accept
	// the next registration.
	hub.Register(NewClient("fast", nil, hub, "127.0.0.1:2", Limits{}))
	select {
	case handle := <-handler.attempted:
		assert.Equal(t, "fast", handle)
	case <-time.After(time.Second):
		t.Fatal("second registration was blocked behind a slow connect")
	}

	close(handler.release)
	require.NoError(t, hub.Shutdown(time.Second))
}

func TestHubShutdownCompletes(t *testing.T) {
	hub := NewHub()
	hub.SetHandler(nopHandler{})
	go hub.Run()

	require.NoError(t, hub.Shutdown(time.Second))
}

func TestRunWithoutHandlerPanics(t *testing.T) {
	hub := NewHub()
	assert.Panics(t, func() { hub.Run() })
}

func TestRateLimiterAllowsBurstThenThrottles(t *testing.T) {
	limiter := newRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(), "burst message %d should pass", i)
	}
	assert.False(t, limiter.Allow(), "message beyond burst should be throttled")
}

func TestRateLimiterRefills(t *testing.T) {
	limiter := newRateLimiter(1, 10*time.Millisecond)

	require.True(t, limiter.Allow())
	require.False(t, limiter.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, limiter.Allow(), "tokens should refill over time")
}

func TestRateLimiterFallsBackToSaneDefaults(t *testing.T) {
	limiter := newRateLimiter(0, 0)
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow(), "fallback burst is a single message")
}
