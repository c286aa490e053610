package subject

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "consentry/pkg/domain"
	"consentry/pkg/platform/sentinel"
	txcontext "consentry/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists subjects. Identity uniqueness is enforced by partial
// unique indexes over non-deleted rows; violations surface as
// sentinel.ErrConflict.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, sub *Subject) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)

	var externalID *string
	if sub.ExternalID != "" {
		externalID = &sub.ExternalID
	}

	_, err := exec.ExecContext(ctx, `
		INSERT INTO subjects (id, email, external_id, tenant, jurisdiction, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(sub.ID), sub.Email, externalID, string(sub.Tenant),
		string(sub.Region), sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, subjectID id.SubjectID) (*Subject, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	row := exec.QueryRowContext(ctx, `
		SELECT id, email, external_id, tenant, jurisdiction, created_at, updated_at, deleted_at
		FROM subjects WHERE id = $1`,
		uuid.UUID(subjectID))
	return scanSubject(row)
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string, tenant id.Tenant) (*Subject, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	row := exec.QueryRowContext(ctx, `
		SELECT id, email, external_id, tenant, jurisdiction, created_at, updated_at, deleted_at
		FROM subjects
		WHERE external_id = $1 AND tenant = $2 AND deleted_at IS NULL`,
		externalID, string(tenant))
	return scanSubject(row)
}

func (s *PostgresStore) Pseudonymize(ctx context.Context, subjectID id.SubjectID, emailHash, externalHash string, at time.Time) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE subjects
		SET email = $2,
		    external_id = CASE WHEN external_id IS NULL THEN NULL ELSE $3 END,
		    deleted_at = $4,
		    updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL`,
		uuid.UUID(subjectID), emailHash, externalHash, at)
	if err != nil {
		return fmt.Errorf("pseudonymize subject: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pseudonymize subject: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListInactiveBefore(ctx context.Context, cutoff time.Time) ([]*Subject, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT s.id, s.email, s.external_id, s.tenant, s.jurisdiction,
		       s.created_at, s.updated_at, s.deleted_at
		FROM subjects s
		WHERE s.deleted_at IS NULL
		  AND s.updated_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM consent_records c
			WHERE c.subject_id = s.id AND c.created_at >= $1
		  )`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list inactive subjects: %w", err)
	}
	defer rows.Close()

	var out []*Subject
	for rows.Next() {
		sub, err := scanSubjectRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFields(sc rowScanner) (*Subject, error) {
	var (
		sub        Subject
		subID      uuid.UUID
		externalID *string
		tenant     string
		region     string
	)
	err := sc.Scan(&subID, &sub.Email, &externalID, &tenant, &region,
		&sub.CreatedAt, &sub.UpdatedAt, &sub.DeletedAt)
	if err != nil {
		return nil, err
	}
	sub.ID = id.SubjectID(subID)
	if externalID != nil {
		sub.ExternalID = *externalID
	}
	sub.Tenant = id.Tenant(tenant)
	sub.Region = id.Jurisdiction(region)
	return &sub, nil
}

func scanSubject(row *sql.Row) (*Subject, error) {
	sub, err := scanFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subject: %w", err)
	}
	return sub, nil
}

func scanSubjectRows(rows *sql.Rows) (*Subject, error) {
	sub, err := scanFields(rows)
	if err != nil {
		return nil, fmt.Errorf("scan subject: %w", err)
	}
	return sub, nil
}
