// Package intake maintains one WebSocket per vehicle and feeds decoded
// frames into the dispatcher. Sockets reconnect on abnormal closure with
// exponential backoff; a server-initiated normal closure ends the socket.
package intake

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/groundlink/console/internal/dispatcher"
	"github.com/groundlink/console/internal/notify"
	"github.com/groundlink/console/internal/telemetry"
)

// Frame types used as dispatcher routing keys. Frames with no type field
// are partial telemetry updates.
const (
	MsgTelemetry         = "telemetry"
	MsgPing              = "ping"
	MsgCoordinationEvent = "coordination_event"
)

const writeWait = 10 * time.Second

// Sink is the dispatcher surface the socket feeds.
type Sink interface {
	Dispatch(dispatcher.Message) (any, error)
}

// Config holds per-socket settings.
type Config struct {
	URL         string
	Vehicle     telemetry.Kind
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// OnSessionEnd runs once when the socket ends for good (normal server
	// closure), so callers can reset per-session vehicle state. It does not
	// run on abnormal closures, which reconnect.
	OnSessionEnd func()
}

// Socket manages the WebSocket link for one vehicle.
type Socket struct {
	cfg      Config
	sink     Sink
	notifier notify.Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	conn   *ws.Conn
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a socket. Zero backoff values fall back to 1s base / 10s cap.
func New(cfg Config, sink Sink, notifier notify.Notifier, logger *slog.Logger) *Socket {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Socket{
		cfg:      cfg,
		sink:     sink,
		notifier: notifier,
		logger:   logger.With("vehicle", string(cfg.Vehicle)),
		done:     make(chan struct{}),
	}
}

// Start launches the connect/read loop in the background.
func (s *Socket) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
}

// Close shuts the socket down. No reconnect is attempted afterwards.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		_ = conn.Close()
	}

	s.wg.Wait()
	return nil
}

func (s *Socket) run() {
	attempts := 0
	for {
		select {
		case <-s.done:
			return
		default:
		}

		conn, _, err := ws.DefaultDialer.Dial(s.cfg.URL, nil)
		if err != nil {
			s.logger.Warn("WebSocket dial failed", "attempt", attempts+1, "error", err)
			if !s.waitBackoff(attempts) {
				return
			}
			attempts++
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		s.mu.Unlock()

		s.logger.Info("WebSocket connected", "url", s.cfg.URL)
		s.notifier.Notify(notify.Success, fmt.Sprintf("%s link established", vehicleLabel(s.cfg.Vehicle)))

		opened := time.Now()
		normal := s.readLoop(conn)

		s.mu.Lock()
		closed := s.closed
		s.conn = nil
		s.mu.Unlock()
		_ = conn.Close()

		if closed {
			return
		}

		if normal {
			s.logger.Info("WebSocket closed by server")
			s.notifier.Notify(notify.Info, fmt.Sprintf("%s link closed", vehicleLabel(s.cfg.Vehicle)))
			if s.cfg.OnSessionEnd != nil {
				s.cfg.OnSessionEnd()
			}
			return
		}

		s.notifier.Notify(notify.Warning, fmt.Sprintf("%s link lost, reconnecting", vehicleLabel(s.cfg.Vehicle)))

		// An abnormal close delays the re-dial on the same backoff schedule
		// as a failed dial, so a server that accepts and immediately aborts
		// cannot drive a reconnect storm. Only a session that outlived the
		// cap resets the progression.
		if time.Since(opened) >= s.cfg.BackoffMax {
			attempts = 0
		}
		if !s.waitBackoff(attempts) {
			return
		}
		attempts++
	}
}

// waitBackoff sleeps for the attempt's backoff delay. It reports false when
// the socket was closed while waiting.
func (s *Socket) waitBackoff(attempt int) bool {
	delay := backoffDelay(s.cfg.BackoffBase, s.cfg.BackoffMax, attempt)
	s.logger.Debug("Reconnect scheduled", "attempt", attempt+1, "backoff", delay)
	select {
	case <-s.done:
		return false
	case <-time.After(delay):
		return true
	}
}

// readLoop reads frames until the connection drops. It reports whether the
// closure was a clean server goodbye.
func (s *Socket) readLoop(conn *ws.Conn) bool {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return true
			default:
			}
			if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				return true
			}
			s.logger.Warn("WebSocket read error", "error", err)
			return false
		}
		s.route(message)
	}
}

// route classifies the frame and hands it to the dispatcher. Malformed JSON
// is logged and dropped; it never takes the socket down.
func (s *Socket) route(raw []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		s.logger.Debug("Dropping malformed frame", "error", err, "raw", string(raw))
		return
	}

	typ := head.Type
	if typ == "" {
		typ = MsgTelemetry
	}

	if _, err := s.sink.Dispatch(dispatcher.Message{
		Type:      typ,
		Vehicle:   string(s.cfg.Vehicle),
		Payload:   raw,
		Timestamp: time.Now(),
	}); err != nil {
		s.logger.Debug("Frame not dispatched", "type", typ, "error", err)
	}
}

// backoffDelay doubles the base per attempt up to the cap.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt > 30 {
		return max
	}
	d := base << uint(attempt)
	if d > max || d <= 0 {
		return max
	}
	return d
}

func vehicleLabel(kind telemetry.Kind) string {
	switch kind {
	case telemetry.KindDrone:
		return "Drone"
	case telemetry.KindCar:
		return "Ground vehicle"
	default:
		return string(kind)
	}
}
