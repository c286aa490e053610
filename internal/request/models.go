// Package request tracks data subject requests (export, deletion) from
// filing to completion. The records themselves are thin; the heavy lifting
// (assembling exports, pseudonymizing subjects) happens elsewhere.
package request

import (
	"time"

	id "consentry/pkg/domain"
)

type Kind string

const (
	KindExport   Kind = "export"
	KindDeletion Kind = "deletion"
)

func (k Kind) IsValid() bool {
	return k == KindExport || k == KindDeletion
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// SubjectRequest is one filed request. Completed requests are terminal.
type SubjectRequest struct {
	ID        id.SubjectRequestID
	SubjectID id.SubjectID
	Kind      Kind
	Status    Status
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
