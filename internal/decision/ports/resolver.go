package ports

import (
	"context"

	id "consentry/pkg/domain"
)

// JurisdictionResolver maps a client IP to a jurisdiction. Used last in the
// resolution chain, after the request override and the subject's registered
// region.
type JurisdictionResolver interface {
	FromIP(ctx context.Context, ip string) (id.Jurisdiction, error)
}
