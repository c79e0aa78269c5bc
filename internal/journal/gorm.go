package journal

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/groundlink/console/internal/queue"
)

const defaultFlushInterval = 500 * time.Millisecond

// Gorm is a write-behind journal on a gorm database. Records accumulate in
// buffers and a flusher goroutine batches them out, keeping the reconciler's
// event path free of DB latency.
type Gorm struct {
	db  *gorm.DB
	log *slog.Logger

	flushInterval time.Duration

	events      *queue.Buffer[CoordinationEvent]
	transitions *queue.Buffer[ConnectionTransition]
	surveys     *queue.Buffer[CompletedSurvey]

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

// NewGorm wraps an open gorm connection. Init must be called before use.
func NewGorm(db *gorm.DB, log *slog.Logger) *Gorm {
	if log == nil {
		log = slog.Default()
	}
	return &Gorm{
		db:            db,
		log:           log,
		flushInterval: defaultFlushInterval,
		events:        queue.NewBuffer[CoordinationEvent](),
		transitions:   queue.NewBuffer[ConnectionTransition](),
		surveys:       queue.NewBuffer[CompletedSurvey](),
		done:          make(chan struct{}),
	}
}

// Init migrates the schema and starts the flusher.
func (g *Gorm) Init() error {
	if err := g.db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate journal schema: %w", err)
	}

	g.wg.Add(1)
	go g.flushLoop()
	return nil
}

// Close drains the queues and shuts the flusher down.
func (g *Gorm) Close() error {
	g.mu.Lock()
	select {
	case <-g.done:
		g.mu.Unlock()
		return nil
	default:
		close(g.done)
	}
	g.mu.Unlock()

	g.wg.Wait()

	sqlDB, err := g.db.DB()
	if err != nil {
		return nil
	}
	return sqlDB.Close()
}

func (g *Gorm) RecordCoordinationEvent(name string, payload []byte) error {
	g.events.Push(CoordinationEvent{
		Name:       name,
		Payload:    datatypes.JSON(append([]byte(nil), payload...)),
		ReceivedAt: time.Now(),
	})
	return nil
}

func (g *Gorm) RecordConnectionTransition(vehicle string, connected bool) error {
	g.transitions.Push(ConnectionTransition{
		Vehicle:   vehicle,
		Connected: connected,
		At:        time.Now(),
	})
	return nil
}

func (g *Gorm) RecordCompletedSurvey(visited, total int, abandoned bool) error {
	g.surveys.Push(CompletedSurvey{
		WaypointsVisited: visited,
		TotalWaypoints:   total,
		Abandoned:        abandoned,
		CompletedAt:      time.Now(),
	})
	return nil
}

// RecentEvents returns the newest events first. Pending writes are flushed
// so a query right after an event sees it.
func (g *Gorm) RecentEvents(limit int) ([]CoordinationEvent, error) {
	g.flush()

	var out []CoordinationEvent
	err := g.db.
		Order("received_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("querying recent events: %w", err)
	}
	return out, nil
}

func (g *Gorm) flushLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			g.flush()
			return
		case <-ticker.C:
			g.flush()
		}
	}
}

// flush batches every queued record out. Failed batches are logged and
// dropped; the journal never blocks or crashes the live path.
func (g *Gorm) flush() {
	if batch := g.events.Drain(); len(batch) > 0 {
		if err := g.db.Create(&batch).Error; err != nil {
			g.log.Error("journal event flush failed", "count", len(batch), "error", err)
		}
	}
	if batch := g.transitions.Drain(); len(batch) > 0 {
		if err := g.db.Create(&batch).Error; err != nil {
			g.log.Error("journal transition flush failed", "count", len(batch), "error", err)
		}
	}
	if batch := g.surveys.Drain(); len(batch) > 0 {
		if err := g.db.Create(&batch).Error; err != nil {
			g.log.Error("journal survey flush failed", "count", len(batch), "error", err)
		}
	}
}
