package request

import (
	"context"
	"time"

	id "consentry/pkg/domain"
)

type Store interface {
	Create(ctx context.Context, req *SubjectRequest) error
	FindByID(ctx context.Context, requestID id.SubjectRequestID) (*SubjectRequest, error)

	// Update persists status and updated_at changes.
	Update(ctx context.Context, req *SubjectRequest) error

	// ListBySubject returns a subject's requests, newest first.
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*SubjectRequest, error)

	// DeleteCompletedBefore removes completed requests last touched before
	// cutoff. Pending requests are never removed.
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
