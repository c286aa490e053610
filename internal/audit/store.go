package audit

import (
	"context"
	"time"

	id "consentry/pkg/domain"
)

// Query filters audit reads. Zero values mean "no filter".
type Query struct {
	SubjectID id.SubjectID
	Type      EventType
	From      time.Time
	To        time.Time
	Limit     int
}

// Store persists audit events. Append is the only write; admin and export
// flows read exclusively through List.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, q Query) ([]Event, error)
}
