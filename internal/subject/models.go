package subject

import (
	"time"

	id "consentry/pkg/domain"
)

// Subject is the individual whose consent is tracked. Email and ExternalID
// are unique among non-deleted subjects; DeletedAt marks pseudonymization
// rather than physical removal.
type Subject struct {
	ID         id.SubjectID
	Email      string
	ExternalID string
	Tenant     id.Tenant
	Region     id.Jurisdiction
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// Active reports whether the subject is live (not pseudonymized).
func (s Subject) Active() bool {
	return s.DeletedAt == nil
}
