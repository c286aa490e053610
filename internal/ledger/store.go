package ledger

import (
	"context"
	"time"

	id "consentry/pkg/domain"
)

// Store persists ledger entries. Insert appends; CloseWindow is the single
// permitted edit during overlap resolution; ExpireLapsed and DeleteOlderThan
// exist solely for the retention engine.
type Store interface {
	Insert(ctx context.Context, rec *ConsentRecord) error

	// CloseWindow sets valid_until on an existing record and, when withdraw
	// is true, flips its status to withdrawn. Callers must invoke this only
	// inside the same transaction as the superseding Insert.
	CloseWindow(ctx context.Context, recordID id.ConsentRecordID, until time.Time, withdraw bool) error

	// FindOverlappingGrants returns granted records sharing the key whose
	// validity window intersects [from, until).
	FindOverlappingGrants(ctx context.Context, key Key, from time.Time, until *time.Time) ([]*ConsentRecord, error)

	// FindActiveGrant returns the granted record for (subject, purpose,
	// vendor) whose window contains at. Vendor "" addresses the
	// purpose-level record. Returns sentinel.ErrNotFound when none.
	FindActiveGrant(ctx context.Context, subjectID id.SubjectID, purpose id.Purpose, vendor string, at time.Time) (*ConsentRecord, error)

	// Newest returns the most recently written record for (subject, purpose),
	// or sentinel.ErrNotFound.
	Newest(ctx context.Context, subjectID id.SubjectID, purpose id.Purpose) (*ConsentRecord, error)

	Query(ctx context.Context, q Query) ([]*ConsentRecord, error)

	// ExpireLapsed flips granted records whose valid_until has passed to
	// expired and returns them. Restricted to rows whose window is already
	// closed; see the retention engine for why this is not an append.
	ExpireLapsed(ctx context.Context, now time.Time) ([]*ConsentRecord, error)

	// DeleteOlderThan hard-deletes records written before cutoff, optionally
	// filtered by jurisdiction and legal basis. Returns the rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, jurisdiction id.Jurisdiction, basis id.LegalBasis) (int64, error)
}
