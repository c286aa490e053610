package ports

import (
	"context"
	"time"

	"consentry/internal/ledger"
	id "consentry/pkg/domain"
)

// Ledger gives the engine read access to consent history. ActiveGrant
// already implements the vendor-then-purpose key fallback.
type Ledger interface {
	ActiveGrant(ctx context.Context, subjectID id.SubjectID, purpose id.Purpose, vendor string, at time.Time) (*ledger.ConsentRecord, error)
	CurrentStatus(ctx context.Context, subjectID id.SubjectID, purpose id.Purpose) (id.ConsentStatus, error)
}
