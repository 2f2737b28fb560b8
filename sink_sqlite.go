package fileactivity

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteSink is a durable, append-only audit trail Event Sink: every
// committed event is recorded with its EventID as primary key, so a
// downstream consumer can replay what happened after the fact without the
// engine itself ever reading the log back (spec.md's Non-goals exclude
// replay-after-restart for the engine; this is a local audit log, not a
// resume mechanism).
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteSink opens (creating if necessary) a SQLite database at path
// and ensures its events table exists.
func NewSQLiteSink(path string, logger *slog.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("fileactivity: open audit db %s: %w", path, err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	volume TEXT NOT NULL,
	path TEXT NOT NULL,
	dest TEXT NOT NULL DEFAULT '',
	extra TEXT NOT NULL DEFAULT '',
	at_unix_ms INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("fileactivity: init audit schema: %w", err)
	}
	return &SQLiteSink{db: db, logger: logger}, nil
}

// Sink returns the Sink function this audit trail exposes to a Manager or
// Engine.
func (s *SQLiteSink) Sink() Sink {
	return func(e Event) {
		_, err := s.db.Exec(
			`INSERT OR REPLACE INTO events (id, kind, volume, path, dest, extra, at_unix_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID.String(), e.Kind.String(), e.Volume, e.Path, e.Dest, strings.Join(e.Extra, "\x1f"), e.At.UnixMilli(),
		)
		if err != nil {
			s.logger.Error("audit sink insert failed", "error", err, "event", e.String())
		}
	}
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error { return s.db.Close() }
