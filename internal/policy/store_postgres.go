package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "consentry/pkg/domain"
	"consentry/pkg/platform/sentinel"
	txcontext "consentry/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists the policy catalog. The decision matrix is stored
// as the version's JSONB document.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreatePolicy(ctx context.Context, p *Policy) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO policies (id, jurisdiction, tenant, name)
		VALUES ($1, $2, $3, $4)`,
		uuid.UUID(p.ID), p.Jurisdiction.String(), string(p.Tenant), p.Name,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	return err
}

func (s *PostgresStore) FindPolicy(ctx context.Context, jurisdiction id.Jurisdiction, tenant id.Tenant) (*Policy, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	row := exec.QueryRowContext(ctx, `
		SELECT id, jurisdiction, tenant, name
		FROM policies
		WHERE jurisdiction = $1 AND tenant = $2`,
		jurisdiction.String(), string(tenant),
	)
	return scanPolicy(row)
}

func (s *PostgresStore) ListPolicies(ctx context.Context) ([]*Policy, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, jurisdiction, tenant, name
		FROM policies
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddVersion(ctx context.Context, v *Version) error {
	doc, err := json.Marshal(v.Matrix)
	if err != nil {
		return err
	}

	exec := txcontext.ExecutorFrom(ctx, s.db)
	_, err = exec.ExecContext(ctx, `
		INSERT INTO policy_versions (id, policy_id, version, effective_from, effective_to, document, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(v.ID), uuid.UUID(v.PolicyID), v.Number,
		v.EffectiveFrom, v.EffectiveTo, doc, v.CreatedAt, v.CreatedBy,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return sentinel.ErrConflict
		case "23503": // foreign key, unknown policy
			return sentinel.ErrNotFound
		}
	}
	return err
}

func (s *PostgresStore) ListVersions(ctx context.Context, policyID id.PolicyID) ([]*Version, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, policy_id, version, effective_from, effective_to, document, created_at, created_by
		FROM policy_versions
		WHERE policy_id = $1
		ORDER BY version`,
		uuid.UUID(policyID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Version
	for rows.Next() {
		var (
			v           Version
			versionID   uuid.UUID
			pID         uuid.UUID
			effectiveTo sql.NullTime
			doc         []byte
		)
		if err := rows.Scan(&versionID, &pID, &v.Number, &v.EffectiveFrom, &effectiveTo, &doc, &v.CreatedAt, &v.CreatedBy); err != nil {
			return nil, err
		}
		v.ID = id.PolicyVersionID(versionID)
		v.PolicyID = id.PolicyID(pID)
		if effectiveTo.Valid {
			t := effectiveTo.Time
			v.EffectiveTo = &t
		}
		if err := json.Unmarshal(doc, &v.Matrix); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*Policy, error) {
	var (
		p            Policy
		policyID     uuid.UUID
		jurisdiction string
		tenant       string
	)
	err := row.Scan(&policyID, &jurisdiction, &tenant, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ID = id.PolicyID(policyID)
	p.Jurisdiction = id.Jurisdiction(jurisdiction)
	p.Tenant = id.Tenant(tenant)
	return &p, nil
}
