package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "consentry/pkg/domain"
	"consentry/pkg/platform/sentinel"
	txcontext "consentry/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, req *SubjectRequest) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO subject_requests (id, subject_id, kind, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(req.ID), uuid.UUID(req.SubjectID), string(req.Kind), string(req.Status),
		nullIfEmpty(req.Reason), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subject request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.SubjectRequestID) (*SubjectRequest, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	row := exec.QueryRowContext(ctx, `
		SELECT id, subject_id, kind, status, reason, created_at, updated_at
		FROM subject_requests WHERE id = $1`,
		uuid.UUID(requestID))

	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subject request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) Update(ctx context.Context, req *SubjectRequest) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE subject_requests
		SET status = $2, reason = $3, updated_at = $4
		WHERE id = $1`,
		uuid.UUID(req.ID), string(req.Status), nullIfEmpty(req.Reason), req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update subject request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subject request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*SubjectRequest, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, subject_id, kind, status, reason, created_at, updated_at
		FROM subject_requests
		WHERE subject_id = $1
		ORDER BY created_at DESC`,
		uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list subject requests: %w", err)
	}
	defer rows.Close()

	var out []*SubjectRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subject request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		DELETE FROM subject_requests
		WHERE status = $1 AND updated_at < $2`,
		string(StatusCompleted), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete completed requests: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc rowScanner) (*SubjectRequest, error) {
	var (
		req       SubjectRequest
		reqID     uuid.UUID
		subjectID uuid.UUID
		kind      string
		status    string
		reason    *string
	)
	err := sc.Scan(&reqID, &subjectID, &kind, &status, &reason, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	req.ID = id.SubjectRequestID(reqID)
	req.SubjectID = id.SubjectID(subjectID)
	req.Kind = Kind(kind)
	req.Status = Status(status)
	if reason != nil {
		req.Reason = *reason
	}
	return &req, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
