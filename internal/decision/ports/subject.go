package ports

import (
	"context"

	"consentry/internal/subject"
)

// SubjectDirectory resolves the subject reference on an evaluation request.
// Defined here rather than importing the subject service directly so the
// engine stays mockable.
type SubjectDirectory interface {
	Resolve(ctx context.Context, ref subject.Ref) (*subject.Subject, error)
}
