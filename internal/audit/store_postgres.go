package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "consentry/pkg/domain"
	txcontext "consentry/pkg/platform/tx"
)

// PostgresStore persists audit events using the transactional outbox pattern.
// Each Append writes the queryable audit_events row and an outbox row in the
// caller's transaction; the relay worker publishes outbox rows to Kafka and
// marks them published. audit_events has no UPDATE or DELETE path.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// Event so downstream consumers can deserialize directly.
type outboxPayload struct {
	ID             string          `json:"id"`
	Category       string          `json:"category"`
	Timestamp      string          `json:"timestamp"`
	SubjectID      string          `json:"subject_id,omitempty"`
	Actor          string          `json:"actor,omitempty"`
	Type           string          `json:"type"`
	Purpose        string          `json:"purpose,omitempty"`
	Decision       string          `json:"decision,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Details        map[string]any  `json:"details,omitempty"`
	PolicySnapshot json.RawMessage `json:"policy_snapshot,omitempty"`
	RequestID      string          `json:"request_id,omitempty"`
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)

	var subjectID *uuid.UUID
	if !event.SubjectID.IsNil() {
		sid := uuid.UUID(event.SubjectID)
		subjectID = &sid
	}

	var details []byte
	if event.Details != nil {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	_, err := exec.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, occurred_at, subject_id, actor, event_type,
			purpose, decision, reason, details, policy_snapshot, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		event.ID,
		string(event.Category),
		event.Timestamp,
		subjectID,
		event.Actor,
		string(event.Type),
		event.Purpose,
		event.Decision,
		event.Reason,
		nullableJSON(details),
		nullableJSON(event.PolicySnapshot),
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	payload := outboxPayload{
		ID:             event.ID.String(),
		Category:       string(event.Category),
		Timestamp:      event.Timestamp.Format(time.RFC3339Nano),
		Actor:          event.Actor,
		Type:           string(event.Type),
		Purpose:        event.Purpose,
		Decision:       event.Decision,
		Reason:         event.Reason,
		Details:        event.Details,
		PolicySnapshot: event.PolicySnapshot,
		RequestID:      event.RequestID,
	}
	aggregateType, aggregateID := "audit", event.ID.String()
	if subjectID != nil {
		payload.SubjectID = subjectID.String()
		aggregateType, aggregateID = "subject", subjectID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(),
		aggregateType,
		aggregateID,
		string(event.Type),
		payloadBytes,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, q Query) ([]Event, error) {
	query := `
		SELECT id, category, occurred_at, subject_id, actor, event_type,
		       purpose, decision, reason, details, policy_snapshot, request_id
		FROM audit_events
		WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !q.SubjectID.IsNil() {
		query += " AND subject_id = " + arg(uuid.UUID(q.SubjectID))
	}
	if q.Type != "" {
		query += " AND event_type = " + arg(string(q.Type))
	}
	if !q.From.IsZero() {
		query += " AND occurred_at >= " + arg(q.From)
	}
	if !q.To.IsZero() {
		query += " AND occurred_at < " + arg(q.To)
	}
	query += " ORDER BY occurred_at DESC"
	if q.Limit > 0 {
		query += " LIMIT " + arg(q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e         Event
			category  string
			eventType string
			subjectID *uuid.UUID
			details   []byte
			snapshot  []byte
		)
		err := rows.Scan(
			&e.ID, &category, &e.Timestamp, &subjectID, &e.Actor, &eventType,
			&e.Purpose, &e.Decision, &e.Reason, &details, &snapshot, &e.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = EventCategory(category)
		e.Type = EventType(eventType)
		if subjectID != nil {
			e.SubjectID = id.SubjectID(*subjectID)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		if len(snapshot) > 0 {
			e.PolicySnapshot = json.RawMessage(snapshot)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
