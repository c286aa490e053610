package retention

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	id "consentry/pkg/domain"
	"consentry/pkg/platform/sentinel"
	txcontext "consentry/pkg/platform/tx"
)

// PostgresRuleStore persists retention rules.
type PostgresRuleStore struct {
	db *sql.DB
}

func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

func (s *PostgresRuleStore) Create(ctx context.Context, r *Rule) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO retention_rules (id, entity_type, period_days, jurisdiction, legal_basis, active)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(r.ID), string(r.EntityType), r.PeriodDays,
		nullIfEmpty(string(r.Jurisdiction)), nullIfEmpty(string(r.LegalBasis)), r.Active,
	)
	return err
}

func (s *PostgresRuleStore) List(ctx context.Context) ([]*Rule, error) {
	return s.list(ctx, `
		SELECT id, entity_type, period_days, jurisdiction, legal_basis, active
		FROM retention_rules ORDER BY id`)
}

func (s *PostgresRuleStore) ListActive(ctx context.Context) ([]*Rule, error) {
	return s.list(ctx, `
		SELECT id, entity_type, period_days, jurisdiction, legal_basis, active
		FROM retention_rules WHERE active ORDER BY id`)
}

func (s *PostgresRuleStore) list(ctx context.Context, query string) ([]*Rule, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	rows, err := exec.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		var (
			r            Rule
			ruleID       uuid.UUID
			jurisdiction sql.NullString
			basis        sql.NullString
		)
		if err := rows.Scan(&ruleID, &r.EntityType, &r.PeriodDays, &jurisdiction, &basis, &r.Active); err != nil {
			return nil, err
		}
		r.ID = id.RetentionRuleID(ruleID)
		r.Jurisdiction = id.Jurisdiction(jurisdiction.String)
		r.LegalBasis = id.LegalBasis(basis.String)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *PostgresRuleStore) SetActive(ctx context.Context, ruleID id.RetentionRuleID, active bool) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	res, err := exec.ExecContext(ctx,
		`UPDATE retention_rules SET active = $2 WHERE id = $1`,
		uuid.UUID(ruleID), active,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresJobStore persists run records; the structured log travels as
// JSONB.
type PostgresJobStore struct {
	db *sql.DB
}

func NewPostgresJobStore(db *sql.DB) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

func (s *PostgresJobStore) Create(ctx context.Context, j *Job) error {
	logJSON, err := json.Marshal(j.Log)
	if err != nil {
		return err
	}
	exec := txcontext.ExecutorFrom(ctx, s.db)
	_, err = exec.ExecContext(ctx, `
		INSERT INTO retention_jobs (id, started_at, finished_at, status, deleted_count, log, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(j.ID), j.StartedAt, j.FinishedAt, string(j.Status),
		j.DeletedCount, logJSON, nullIfEmpty(j.Error),
	)
	return err
}

func (s *PostgresJobStore) Update(ctx context.Context, j *Job) error {
	logJSON, err := json.Marshal(j.Log)
	if err != nil {
		return err
	}
	exec := txcontext.ExecutorFrom(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE retention_jobs
		SET finished_at = $2, status = $3, deleted_count = $4, log = $5, error = $6
		WHERE id = $1`,
		uuid.UUID(j.ID), j.FinishedAt, string(j.Status), j.DeletedCount, logJSON, nullIfEmpty(j.Error),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresJobStore) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	exec := txcontext.ExecutorFrom(ctx, s.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, deleted_count, log, error
		FROM retention_jobs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		var (
			j        Job
			jobID    uuid.UUID
			finished sql.NullTime
			logJSON  []byte
			jobErr   sql.NullString
		)
		if err := rows.Scan(&jobID, &j.StartedAt, &finished, &j.Status, &j.DeletedCount, &logJSON, &jobErr); err != nil {
			return nil, err
		}
		j.ID = id.RetentionJobID(jobID)
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		if len(logJSON) > 0 {
			if err := json.Unmarshal(logJSON, &j.Log); err != nil {
				return nil, err
			}
		}
		j.Error = jobErr.String
		out = append(out, &j)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
