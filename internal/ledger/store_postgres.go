package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "consentry/pkg/domain"
	"consentry/pkg/platform/sentinel"
	txcontext "consentry/pkg/platform/tx"
)

const recordColumns = `
	id, subject_id, purpose, vendor, legal_basis, status, jurisdiction,
	valid_from, valid_until, policy_version_id, policy_snapshot, source, created_at`

// PostgresStore persists ledger entries. Overlap resolution relies on the
// caller running CloseWindow and Insert in one transaction; row locks on the
// key's granted records serialize concurrent writers.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, rec *ConsentRecord) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO consent_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(rec.ID),
		uuid.UUID(rec.SubjectID),
		string(rec.Purpose),
		nullableString(rec.Vendor),
		nullableString(string(rec.LegalBasis)),
		string(rec.Status),
		string(rec.Jurisdiction),
		rec.ValidFrom,
		rec.ValidUntil,
		nullableUUID(uuid.UUID(rec.PolicyVersionID)),
		nullableBytes(rec.PolicySnapshot),
		rec.Source,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert consent record: %w", err)
	}
	return nil
}

func (s *PostgresStore) CloseWindow(ctx context.Context, recordID id.ConsentRecordID, until time.Time, withdraw bool) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)

	query := `UPDATE consent_records SET valid_until = $2 WHERE id = $1`
	if withdraw {
		query = `UPDATE consent_records SET valid_until = $2, status = 'withdrawn' WHERE id = $1`
	}
	res, err := exec.ExecContext(ctx, query, uuid.UUID(recordID), until)
	if err != nil {
		return fmt.Errorf("close consent window: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close consent window: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindOverlappingGrants(ctx context.Context, key Key, from time.Time, until *time.Time) ([]*ConsentRecord, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)

	// FOR UPDATE serializes concurrent overlap resolution on the same key.
	rows, err := exec.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM consent_records
		WHERE subject_id = $1 AND purpose = $2
		  AND vendor IS NOT DISTINCT FROM $3
		  AND legal_basis IS NOT DISTINCT FROM $4
		  AND status = 'granted'
		  AND (valid_until IS NULL OR valid_until > $5)
		  AND ($6::timestamptz IS NULL OR valid_from < $6)
		ORDER BY valid_from
		FOR UPDATE`,
		uuid.UUID(key.SubjectID),
		string(key.Purpose),
		nullableString(key.Vendor),
		nullableString(string(key.LegalBasis)),
		from,
		until,
	)
	if err != nil {
		return nil, fmt.Errorf("find overlapping grants: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) FindActiveGrant(ctx context.Context, subjectID id.SubjectID, purpose id.Purpose, vendor string, at time.Time) (*ConsentRecord, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)

	rows, err := exec.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM consent_records
		WHERE subject_id = $1 AND purpose = $2
		  AND vendor IS NOT DISTINCT FROM $3
		  AND status = 'granted'
		  AND valid_from <= $4
		  AND (valid_until IS NULL OR valid_until > $4)
		ORDER BY created_at DESC
		LIMIT 1`,
		uuid.UUID(subjectID), string(purpose), nullableString(vendor), at,
	)
	if err != nil {
		return nil, fmt.Errorf("find active grant: %w", err)
	}
	defer rows.Close()
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return recs[0], nil
}

func (s *PostgresStore) Newest(ctx context.Context, subjectID id.SubjectID, purpose id.Purpose) (*ConsentRecord, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)

	rows, err := exec.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM consent_records
		WHERE subject_id = $1 AND purpose = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		uuid.UUID(subjectID), string(purpose),
	)
	if err != nil {
		return nil, fmt.Errorf("newest consent record: %w", err)
	}
	defer rows.Close()
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return recs[0], nil
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]*ConsentRecord, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)

	query := `SELECT ` + recordColumns + ` FROM consent_records WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !q.SubjectID.IsNil() {
		query += " AND subject_id = " + arg(uuid.UUID(q.SubjectID))
	}
	if q.Purpose != "" {
		query += " AND purpose = " + arg(string(q.Purpose))
	}
	if q.Vendor != "" {
		query += " AND vendor = " + arg(q.Vendor)
	}
	if q.Status != "" {
		query += " AND status = " + arg(string(q.Status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query consent records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) ExpireLapsed(ctx context.Context, now time.Time) ([]*ConsentRecord, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)

	rows, err := exec.QueryContext(ctx, `
		UPDATE consent_records
		SET status = 'expired'
		WHERE status = 'granted' AND valid_until IS NOT NULL AND valid_until <= $1
		RETURNING `+recordColumns, now)
	if err != nil {
		return nil, fmt.Errorf("expire lapsed grants: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, jurisdiction id.Jurisdiction, basis id.LegalBasis) (int64, error) {
	exec := txcontext.ExecutorFrom(ctx, s.db)

	query := `DELETE FROM consent_records WHERE created_at < $1`
	args := []any{cutoff}
	if jurisdiction != "" {
		args = append(args, string(jurisdiction))
		query += fmt.Sprintf(" AND jurisdiction = $%d", len(args))
	}
	if basis != "" {
		args = append(args, string(basis))
		query += fmt.Sprintf(" AND legal_basis = $%d", len(args))
	}

	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete old consent records: %w", err)
	}
	return res.RowsAffected()
}

func scanRecords(rows *sql.Rows) ([]*ConsentRecord, error) {
	var out []*ConsentRecord
	for rows.Next() {
		var (
			rec             ConsentRecord
			recID           uuid.UUID
			subID           uuid.UUID
			purpose         string
			vendor          *string
			basis           *string
			status          string
			jurisdiction    string
			policyVersionID *uuid.UUID
			snapshot        []byte
		)
		err := rows.Scan(
			&recID, &subID, &purpose, &vendor, &basis, &status, &jurisdiction,
			&rec.ValidFrom, &rec.ValidUntil, &policyVersionID, &snapshot,
			&rec.Source, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		rec.ID = id.ConsentRecordID(recID)
		rec.SubjectID = id.SubjectID(subID)
		rec.Purpose = id.Purpose(purpose)
		if vendor != nil {
			rec.Vendor = *vendor
		}
		if basis != nil {
			rec.LegalBasis = id.LegalBasis(*basis)
		}
		rec.Status = id.ConsentStatus(status)
		rec.Jurisdiction = id.Jurisdiction(jurisdiction)
		if policyVersionID != nil {
			rec.PolicyVersionID = id.PolicyVersionID(*policyVersionID)
		}
		if len(snapshot) > 0 {
			rec.PolicySnapshot = snapshot
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
