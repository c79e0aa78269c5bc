package journal

import (
	"fmt"
	"log/slog"

	"github.com/groundlink/console/internal/config"
	"github.com/groundlink/console/internal/database"
)

// NewBackend creates a journal backend based on configuration. Postgres
// falls back to SQLite when unreachable so a field laptop still journals.
func NewBackend(cfg config.JournalConfig, log *slog.Logger) (Backend, error) {
	if log == nil {
		log = slog.Default()
	}

	switch cfg.Backend {
	case "postgres":
		db, err := database.OpenPostgres()
		if err != nil {
			log.Warn("postgres journal unavailable, falling back to sqlite", "error", err)
			db, err = database.OpenSqlite(cfg.Path)
			if err != nil {
				return nil, fmt.Errorf("sqlite fallback failed: %w", err)
			}
		}
		return NewGorm(db, log), nil
	case "sqlite":
		db, err := database.OpenSqlite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite journal: %w", err)
		}
		return NewGorm(db, log), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown journal backend: %s", cfg.Backend)
	}
}
