package policy

import (
	"context"

	id "consentry/pkg/domain"
)

// Store persists the policy catalog. Implementations return sentinel errors;
// the service layer translates them into coded errors.
type Store interface {
	CreatePolicy(ctx context.Context, p *Policy) error
	FindPolicy(ctx context.Context, jurisdiction id.Jurisdiction, tenant id.Tenant) (*Policy, error)
	ListPolicies(ctx context.Context) ([]*Policy, error)
	AddVersion(ctx context.Context, v *Version) error
	ListVersions(ctx context.Context, policyID id.PolicyID) ([]*Version, error)
}
