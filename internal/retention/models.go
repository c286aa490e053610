// Package retention runs the data lifecycle: expiring lapsed grants in
// place and erasing or pseudonymizing records whose retention period ran
// out. Expiry only flips already-closed windows, so a pass never changes a
// decision outcome; reads apply the same override on the fly.
package retention

import (
	"time"

	id "consentry/pkg/domain"
)

// EntityType names what a rule applies to.
type EntityType string

const (
	EntityConsentRecord  EntityType = "consent_record"
	EntitySubject        EntityType = "subject"
	EntitySubjectRequest EntityType = "subject_request"
)

func (e EntityType) IsValid() bool {
	switch e {
	case EntityConsentRecord, EntitySubject, EntitySubjectRequest:
		return true
	}
	return false
}

// Rule bounds how long an entity may be kept. Jurisdiction and LegalBasis
// narrow the rule; empty means any.
type Rule struct {
	ID           id.RetentionRuleID
	EntityType   EntityType
	PeriodDays   int
	Jurisdiction id.Jurisdiction
	LegalBasis   id.LegalBasis
	Active       bool
}

// Cutoff computes the deletion horizon for a run starting at now.
func (r Rule) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -r.PeriodDays)
}

// JobStatus tracks a run's lifecycle.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is the persisted record of one retention run. A failed rule marks the
// job failed but never rolls back what earlier rules already deleted.
type Job struct {
	ID           id.RetentionJobID
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       JobStatus
	DeletedCount int64
	Log          []LogEntry
	Error        string
}

// LogEntry is one structured line in the job's log.
type LogEntry struct {
	RuleID  string `json:"rule_id,omitempty"`
	Entity  string `json:"entity,omitempty"`
	Action  string `json:"action"`
	Count   int64  `json:"count"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`
}
