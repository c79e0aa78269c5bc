package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Message is an incoming frame from a vehicle socket.
type Message struct {
	Type      string
	Vehicle   string
	Payload   []byte
	Timestamp time.Time
}

// HandlerFunc processes a message and returns a result.
type HandlerFunc func(Message) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered routes the frame type through its vehicle's ordered queue with
// the given capacity, decoupling processing from the socket read loop.
// Queued types for the same vehicle stay in arrival order relative to each
// other.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered frame type block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes messages to registered handlers by frame type. Buffered
// types share one FIFO queue per vehicle so a frame never overtakes an
// earlier frame from the same channel.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	queued   map[string]bool
	blocking map[string]bool
	queueCap int
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// Track per-vehicle queues for routing and the gauge callback
	mu     sync.RWMutex
	queues map[string]chan Message
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
// Register all handlers before the first Dispatch.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		queued:   make(map[string]bool),
		blocking: make(map[string]bool),
		queues:   make(map[string]chan Message),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"intake.queue.size",
		metric.WithDescription("Current number of frames in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for vehicle, q := range d.queues {
				o.ObserveInt64(d.queueSize, int64(len(q)),
					metric.WithAttributes(attribute.String("vehicle", vehicle)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"intake.frames.processed",
		metric.WithDescription("Total frames processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"intake.frames.dropped",
		metric.WithDescription("Total frames dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given frame type with optional configuration.
func (d *Dispatcher) Register(frameType string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h
	if cfg.logged {
		handler = d.withLogging(frameType, handler)
	}
	d.handlers[frameType] = handler

	if cfg.bufferSize > 0 {
		d.queued[frameType] = true
		d.blocking[frameType] = cfg.blocking
		if cfg.bufferSize > d.queueCap {
			d.queueCap = cfg.bufferSize
		}
	}
}

// Dispatch routes a message to its registered handler. Queued frame types
// land in the vehicle's FIFO queue; the rest run on the caller's goroutine.
func (d *Dispatcher) Dispatch(m Message) (any, error) {
	h, ok := d.handlers[m.Type]
	if !ok {
		return nil, fmt.Errorf("unknown frame type: %s", m.Type)
	}
	if !d.queued[m.Type] {
		return h(m)
	}

	q := d.vehicleQueue(m.Vehicle)
	if d.blocking[m.Type] {
		q <- m
		return "queued", nil
	}
	select {
	case q <- m:
		return "queued", nil
	default:
		d.dropped.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("vehicle", m.Vehicle),
			attribute.String("frame_type", m.Type),
		))
		return nil, fmt.Errorf("queue full: %s", m.Vehicle)
	}
}

// HasHandler returns true if a handler is registered for the frame type.
func (d *Dispatcher) HasHandler(frameType string) bool {
	_, ok := d.handlers[frameType]
	return ok
}

// vehicleQueue returns the vehicle's queue, starting its drain goroutine on
// first use.
func (d *Dispatcher) vehicleQueue(vehicle string) chan Message {
	d.mu.RLock()
	q, ok := d.queues[vehicle]
	d.mu.RUnlock()
	if ok {
		return q
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if q, ok := d.queues[vehicle]; ok {
		return q
	}
	q = make(chan Message, d.queueCap)
	d.queues[vehicle] = q
	go d.drain(vehicle, q)
	return q
}

// drain runs the vehicle's queued frames in arrival order, one at a time.
func (d *Dispatcher) drain(vehicle string, q chan Message) {
	attrs := metric.WithAttributes(attribute.String("vehicle", vehicle))
	for m := range q {
		if h, ok := d.handlers[m.Type]; ok {
			h(m)
		}
		d.processed.Add(context.Background(), 1, attrs)
	}
}

func (d *Dispatcher) withLogging(frameType string, h HandlerFunc) HandlerFunc {
	return func(m Message) (any, error) {
		start := time.Now()
		d.logger.Debug("handling frame", "type", frameType, "vehicle", m.Vehicle)

		result, err := h(m)

		if err != nil {
			d.logger.Error("frame failed", "type", frameType, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("frame complete", "type", frameType, "duration", time.Since(start))
		}

		return result, err
	}
}
