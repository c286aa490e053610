package subject

import (
	"context"
	"time"

	id "consentry/pkg/domain"
)

// Store persists subjects. Implementations return sentinel.ErrNotFound for
// missing subjects and sentinel.ErrConflict when an active identity (email or
// external_id+tenant) is already taken.
type Store interface {
	Create(ctx context.Context, s *Subject) error
	FindByID(ctx context.Context, subjectID id.SubjectID) (*Subject, error)
	FindByExternalID(ctx context.Context, externalID string, tenant id.Tenant) (*Subject, error)
	// Pseudonymize replaces the subject's identifiers and stamps DeletedAt.
	// The only permitted update besides it is none: subjects are otherwise
	// written once.
	Pseudonymize(ctx context.Context, subjectID id.SubjectID, emailHash, externalHash string, at time.Time) error
	// ListInactiveBefore returns active subjects last touched before the
	// cutoff and with no newer ledger writes, candidates for pseudonymization.
	ListInactiveBefore(ctx context.Context, cutoff time.Time) ([]*Subject, error)
}
