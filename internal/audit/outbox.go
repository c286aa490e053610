package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxEntry is a pending audit event awaiting publication to the stream.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// FetchUnpublished returns the oldest unpublished outbox rows, locking them
// against concurrent relay instances.
func (s *PostgresStore) FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkPublished stamps outbox rows as delivered. Rows are kept for the
// retention engine to clean up rather than deleted inline.
func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	args := []any{time.Now().UTC()}
	placeholders := ""
	for i, id := range ids {
		if i > 0 {
			placeholders += ", "
		}
		args = append(args, id)
		placeholders += fmt.Sprintf("$%d", len(args))
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET published_at = $1
		WHERE id IN (`+placeholders+`) AND published_at IS NULL`,
		args...)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
