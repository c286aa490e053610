package ports

import (
	"context"
	"time"

	"consentry/internal/policy"
	id "consentry/pkg/domain"
)

// Catalog serves the policy version in force for a jurisdiction at an
// instant. A CodeNotFound error is an expected state, not a failure; the
// engine falls back to jurisdiction defaults.
type Catalog interface {
	ApplicableVersion(ctx context.Context, jurisdiction id.Jurisdiction, tenant id.Tenant, at time.Time) (*policy.Version, error)
}
