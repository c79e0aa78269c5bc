// Package notify delivers one-shot operator notifications, the console's
// equivalent of a toast. Notifications are transient and never blocking;
// the presentation layer subscribes to a hub and renders whatever arrives.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Severity is the display class of a notification.
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Notification is one user-visible message.
type Notification struct {
	Severity Severity
	Text     string
	Time     time.Time
}

// Notifier is the interface subsystems publish through.
type Notifier interface {
	Notify(severity Severity, text string)
}

// Hub fans notifications out to subscriber channels and mirrors them to the
// log. Slow subscribers are skipped rather than blocking the publisher.
type Hub struct {
	mu   sync.Mutex
	subs []chan Notification
	log  *slog.Logger
}

// NewHub creates a hub that mirrors notifications to the given logger.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{log: log}
}

// Notify publishes a notification to all subscribers.
func (h *Hub) Notify(severity Severity, text string) {
	n := Notification{Severity: severity, Text: text, Time: time.Now()}

	h.log.Info("notification", "severity", string(severity), "text", text)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
			// Subscriber is not draining; drop rather than stall intake.
		}
	}
}

// Subscribe registers a new subscriber and returns its channel. The buffer
// absorbs notification bursts during reconnect storms.
func (h *Hub) Subscribe() <-chan Notification {
	ch := make(chan Notification, 64)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

// Close closes all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}

// Discard is a Notifier that drops everything, for tests and optional wiring.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(Severity, string) {}
