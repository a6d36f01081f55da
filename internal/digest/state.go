package digest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	// SuggestedWindow is how long a suggested item stays excluded from
	// new digests. The boundary is exclusive: an item suggested exactly
	// seven days ago is eligible again.
	SuggestedWindow = 7 * 24 * time.Hour

	// SlotResendWindow is the minimum gap between two sends for the
	// same slot label.
	SlotResendWindow = time.Hour
)

// StateStore is the durable digest state: which slots fired, which
// items were already suggested, and which became tasks. All time
// comparisons take now explicitly so tests stay deterministic.
type StateStore interface {
	HasBeenSuggestedRecently(ctx context.Context, sourceID string, now time.Time) (bool, error)
	HasTaskCreated(ctx context.Context, sourceID string) (bool, error)
	RecordSuggested(ctx context.Context, sourceID string, now time.Time) error
	RecordTaskCreated(ctx context.Context, sourceID, taskID string, now time.Time) error
	WasSlotFiredRecently(ctx context.Context, slotLabel string, now time.Time) (bool, error)
	RecordSlotFired(ctx context.Context, slotLabel string, now time.Time) error
	PruneSuggested(ctx context.Context, olderThan time.Time) (int, error)
}

// SQLStateStore is the postgres-backed StateStore.
type SQLStateStore struct {
	db *sql.DB
}

func NewStateStore(db *sql.DB) *SQLStateStore {
	return &SQLStateStore{db: db}
}

func (s *SQLStateStore) HasBeenSuggestedRecently(ctx context.Context, sourceID string, now time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("state store unavailable")
	}

	var suggestedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT suggested_at FROM pulse.suggested_messages WHERE source_id = $1`,
		sourceID,
	).Scan(&suggestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query suggested message: %w", err)
	}
	return now.Sub(suggestedAt) < SuggestedWindow, nil
}

func (s *SQLStateStore) HasTaskCreated(ctx context.Context, sourceID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("state store unavailable")
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pulse.created_tasks WHERE source_id = $1)`,
		sourceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query created task: %w", err)
	}
	return exists, nil
}

func (s *SQLStateStore) RecordSuggested(ctx context.Context, sourceID string, now time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("state store unavailable")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pulse.suggested_messages (source_id, suggested_at)
		VALUES ($1, $2)
		ON CONFLICT (source_id) DO UPDATE SET suggested_at = EXCLUDED.suggested_at
	`, sourceID, now)
	if err != nil {
		return fmt.Errorf("record suggested: %w", err)
	}
	return nil
}

func (s *SQLStateStore) RecordTaskCreated(ctx context.Context, sourceID, taskID string, now time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("state store unavailable")
	}
	if sourceID == "" {
		return errors.New("source id is required")
	}
	if taskID == "" {
		return errors.New("task id is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pulse.created_tasks (source_id, task_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_id) DO UPDATE SET task_id = EXCLUDED.task_id
	`, sourceID, taskID, now)
	if err != nil {
		return fmt.Errorf("record task created: %w", err)
	}
	return nil
}

func (s *SQLStateStore) WasSlotFiredRecently(ctx context.Context, slotLabel string, now time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("state store unavailable")
	}

	var sentAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT sent_at FROM pulse.digest_sends WHERE slot_label = $1`,
		slotLabel,
	).Scan(&sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query digest send: %w", err)
	}
	return now.Sub(sentAt) < SlotResendWindow, nil
}

func (s *SQLStateStore) RecordSlotFired(ctx context.Context, slotLabel string, now time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("state store unavailable")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pulse.digest_sends (slot_label, sent_at)
		VALUES ($1, $2)
		ON CONFLICT (slot_label) DO UPDATE SET sent_at = EXCLUDED.sent_at
	`, slotLabel, now)
	if err != nil {
		return fmt.Errorf("record digest send: %w", err)
	}
	return nil
}

// PruneSuggested evicts suggested-message entries older than the cutoff.
// Created tasks are never pruned; their suppression is permanent.
func (s *SQLStateStore) PruneSuggested(ctx context.Context, olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("state store unavailable")
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM pulse.suggested_messages WHERE suggested_at < $1`,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("prune suggested messages: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}
