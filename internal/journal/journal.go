// Package journal keeps an audit trail of publish attempts. It never stores
// dialogue state; drafts live only in memory.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/postbot/core/logger"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Entry is one publish attempt.
type Entry struct {
	ID         string    `db:"id"`
	OperatorID int64     `db:"operator_id"`
	GroupID    int64     `db:"group_id"`
	ThreadID   int       `db:"thread_id"`
	MediaKind  string    `db:"media_kind"`
	Status     string    `db:"status"`
	Error      string    `db:"error"`
	CreatedAt  time.Time `db:"created_at"`
}

// Recorder persists entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Enabled() bool
}

// Noop discards entries; used when no database is configured.
type Noop struct{}

func (Noop) Record(context.Context, Entry) error          { return nil }
func (Noop) Recent(context.Context, int) ([]Entry, error) { return nil, nil }
func (Noop) Enabled() bool                                { return false }

// Store writes entries to the post_journal table.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const insertEntry = `
INSERT INTO post_journal (id, operator_id, group_id, thread_id, media_kind, status, error, created_at)
VALUES (:id, :operator_id, :group_id, :thread_id, :media_kind, :status, :error, :created_at)`

const selectRecent = `
SELECT id, operator_id, group_id, thread_id, media_kind, status, error, created_at
FROM post_journal
ORDER BY created_at DESC
LIMIT $1`

// Record stores e, filling in ID and CreatedAt when empty.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	start := time.Now()
	if _, err := s.db.NamedExecContext(ctx, insertEntry, e); err != nil {
		logger.Journal.Error("journal write failed",
			slog.String("event", "journal.record"),
			slog.String("status", "fail"),
			slog.Int64("group_id", e.GroupID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("journal: insert: %w", err)
	}
	logger.Journal.Debug("journal entry stored",
		slog.String("event", "journal.record"),
		slog.String("status", "ok"),
		slog.String("id", e.ID),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Recent returns up to limit newest entries.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Entry
	if err := s.db.SelectContext(ctx, &out, selectRecent, limit); err != nil {
		return nil, fmt.Errorf("journal: select recent: %w", err)
	}
	return out, nil
}

// Enabled reports that entries are persisted.
func (s *Store) Enabled() bool { return true }
