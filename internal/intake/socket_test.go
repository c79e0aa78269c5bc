package intake

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundlink/console/internal/dispatcher"
	"github.com/groundlink/console/internal/telemetry"
)

type fakeSink struct {
	mu       sync.Mutex
	messages []dispatcher.Message
}

func (s *fakeSink) Dispatch(m dispatcher.Message) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil, nil
}

func (s *fakeSink) all() []dispatcher.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]dispatcher.Message, len(s.messages))
	copy(cp, s.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// frameServer upgrades each connection, sends the given frames, then closes
// cleanly.
func frameServer(t *testing.T, frames []string, dials *atomic.Int32) *httptest.Server {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dials != nil {
			dials.Add(1)
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for _, f := range frames {
			if err := c.WriteMessage(ws.TextMessage, []byte(f)); err != nil {
				return
			}
		}

		_ = c.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
		// Wait for the peer's close response or a hangup.
		c.SetReadDeadline(time.Now().Add(time.Second))
		c.ReadMessage()
	}))
}

func TestSocket_RoutesFramesByType(t *testing.T) {
	frames := []string{
		`{"position": {"lat": -1.28, "lon": 36.82}}`,
		`{"type": "ping"}`,
		`{"type": "coordination_event", "event": "coordination_active"}`,
		`{malformed`,
		`{"battery": {"percentage": 80}}`,
	}
	srv := frameServer(t, frames, nil)
	defer srv.Close()

	sink := &fakeSink{}
	s := New(Config{URL: wsURL(srv), Vehicle: telemetry.KindDrone}, sink, nil, nil)
	s.Start()
	defer s.Close()

	require.Eventually(t, func() bool {
		return len(sink.all()) >= 4
	}, 2*time.Second, 10*time.Millisecond)

	msgs := sink.all()
	require.Len(t, msgs, 4, "malformed frame should be dropped")
	assert.Equal(t, MsgTelemetry, msgs[0].Type)
	assert.Equal(t, MsgPing, msgs[1].Type)
	assert.Equal(t, MsgCoordinationEvent, msgs[2].Type)
	assert.Equal(t, MsgTelemetry, msgs[3].Type)

	for _, m := range msgs {
		assert.Equal(t, "drone", m.Vehicle)
	}
}

func TestSocket_NormalClosureStops(t *testing.T) {
	var dials atomic.Int32
	srv := frameServer(t, []string{`{"type": "ping"}`}, &dials)
	defer srv.Close()

	sink := &fakeSink{}
	s := New(Config{
		URL:         wsURL(srv),
		Vehicle:     telemetry.KindCar,
		BackoffBase: 10 * time.Millisecond,
		BackoffMax:  50 * time.Millisecond,
	}, sink, nil, nil)
	s.Start()
	defer s.Close()

	require.Eventually(t, func() bool {
		return len(sink.all()) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// Clean goodbye from the server must not trigger a reconnect.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), dials.Load())
}

func TestSocket_SessionEndHookRunsOnNormalClosure(t *testing.T) {
	srv := frameServer(t, []string{`{"type": "ping"}`}, nil)
	defer srv.Close()

	var ended atomic.Int32
	s := New(Config{
		URL:          wsURL(srv),
		Vehicle:      telemetry.KindDrone,
		OnSessionEnd: func() { ended.Add(1) },
	}, &fakeSink{}, nil, nil)
	s.Start()
	defer s.Close()

	require.Eventually(t, func() bool {
		return ended.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSocket_ReconnectsOnAbnormalClosure(t *testing.T) {
	var dials atomic.Int32
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = c.WriteMessage(ws.TextMessage, []byte(`{"type": "ping"}`))
		// Hard hangup, no close frame.
		c.Close()
	}))
	defer srv.Close()

	sink := &fakeSink{}
	var ended atomic.Int32
	s := New(Config{
		URL:          wsURL(srv),
		Vehicle:      telemetry.KindDrone,
		BackoffBase:  10 * time.Millisecond,
		BackoffMax:   50 * time.Millisecond,
		OnSessionEnd: func() { ended.Add(1) },
	}, sink, nil, nil)
	s.Start()
	defer s.Close()

	require.Eventually(t, func() bool {
		return dials.Load() >= 3
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), ended.Load(), "abnormal closures reconnect, they do not end the session")
}

func TestSocket_AbnormalCloseBacksOff(t *testing.T) {
	var dials atomic.Int32
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	// Accept every dial, then abort at once without a close frame.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c.Close()
	}))
	defer srv.Close()

	s := New(Config{
		URL:         wsURL(srv),
		Vehicle:     telemetry.KindDrone,
		BackoffBase: 60 * time.Millisecond,
		BackoffMax:  500 * time.Millisecond,
	}, &fakeSink{}, nil, nil)
	s.Start()
	defer s.Close()

	// Without a delay on the abort path this window would see dozens of
	// dials; with the schedule applied it sees the first dial and at most
	// the start of the second.
	time.Sleep(40 * time.Millisecond)
	assert.LessOrEqual(t, dials.Load(), int32(2))

	// The doubling schedule bounds the dial count over a longer window too:
	// dials land near 0ms, 60ms, 180ms.
	time.Sleep(180 * time.Millisecond)
	assert.LessOrEqual(t, dials.Load(), int32(4))

	require.Eventually(t, func() bool {
		return dials.Load() >= 3
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSocket_CloseStopsDialing(t *testing.T) {
	var dials atomic.Int32
	// Refuse every connection so the socket stays in its backoff loop.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "no", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(Config{
		URL:         wsURL(srv),
		Vehicle:     telemetry.KindCar,
		BackoffBase: 10 * time.Millisecond,
		BackoffMax:  20 * time.Millisecond,
	}, &fakeSink{}, nil, nil)
	s.Start()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Close())

	settled := dials.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, dials.Load(), "no dials after Close")
}

func TestBackoffDelay_Progression(t *testing.T) {
	base := time.Second
	max := 10 * time.Second

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for attempt, w := range want {
		assert.Equal(t, w, backoffDelay(base, max, attempt), "attempt %d", attempt)
	}
}

func TestBackoffDelay_LargeAttemptClamps(t *testing.T) {
	assert.Equal(t, 10*time.Second, backoffDelay(time.Second, 10*time.Second, 64))
}
