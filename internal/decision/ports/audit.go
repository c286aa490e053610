package ports

import (
	"context"

	"consentry/internal/audit"
)

// AuditPublisher records the mandatory audit entry for every evaluation.
// Failure to audit fails the evaluation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
