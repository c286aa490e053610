// Package preference projects the append-only consent ledger into the flat
// per-purpose view that preference centers render. The projection never
// stores its own state; the ledger stays the single source of truth.
package preference

import (
	"context"
	"log/slog"

	"consentry/internal/ledger"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
)

// Preferences is the snapshot handed to clients: one effective status per
// purpose. Purposes the subject never touched read as revoked, the
// no-consent default.
type Preferences struct {
	SubjectID id.SubjectID                    `json:"subject_id"`
	Statuses  map[id.Purpose]id.ConsentStatus `json:"statuses"`
}

type Service struct {
	ledger *ledger.Service
	logger *slog.Logger
}

func NewService(ledgerSvc *ledger.Service, logger *slog.Logger) *Service {
	return &Service{ledger: ledgerSvc, logger: logger}
}

// Get projects the subject's current per-purpose statuses, read-time expiry
// included.
func (s *Service) Get(ctx context.Context, subjectID id.SubjectID) (*Preferences, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}

	out := &Preferences{
		SubjectID: subjectID,
		Statuses:  make(map[id.Purpose]id.ConsentStatus, len(id.Purposes())),
	}
	for _, purpose := range id.Purposes() {
		status, err := s.ledger.CurrentStatus(ctx, subjectID, purpose)
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			out.Statuses[purpose] = id.StatusRevoked
			continue
		}
		if err != nil {
			return nil, err
		}
		out.Statuses[purpose] = status
	}
	return out, nil
}

// Update applies a batch of per-purpose changes as ledger appends, all in
// one transaction with a single preferences_updated audit entry.
func (s *Service) Update(ctx context.Context, subjectID id.SubjectID, jurisdiction id.Jurisdiction, changes map[id.Purpose]id.ConsentStatus, source string) (*Preferences, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}
	if !jurisdiction.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid jurisdiction %q", jurisdiction)
	}

	if _, err := s.ledger.RecordBatch(ctx, subjectID, jurisdiction, changes, source); err != nil {
		return nil, err
	}
	return s.Get(ctx, subjectID)
}
