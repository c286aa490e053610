package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	id "consentry/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. Shorter retention, may be sampled downstream.
	CategoryOperations EventCategory = "operations"
)

// Event is the immutable audit trail entry. Keep it transport-agnostic so
// stores and sinks can fan out. The platform enforces append-only semantics:
// there is no update or delete path anywhere in this package.
type Event struct {
	ID             uuid.UUID
	Category       EventCategory
	Timestamp      time.Time
	SubjectID      id.SubjectID
	Actor          string
	Type           EventType
	Purpose        string
	Decision       string
	Reason         string
	Details        map[string]any
	PolicySnapshot json.RawMessage
	RequestID      string
}

// EventType names the audited action.
type EventType string

const (
	EventConsentRecorded      EventType = "consent_recorded"
	EventConsentRevoked       EventType = "consent_revoked"
	EventConsentExpired       EventType = "consent_expired"
	EventPreferencesUpdated   EventType = "preferences_updated"
	EventDecisionMade         EventType = "decision_made"
	EventSubjectCreated       EventType = "subject_created"
	EventSubjectPseudonymized EventType = "subject_pseudonymized"
	EventRequestFiled         EventType = "request_filed"
	EventRequestCompleted     EventType = "request_completed"
	EventPolicyPublished      EventType = "policy_published"
	EventRetentionRuleApplied EventType = "retention_rule_applied"
	EventRetentionCompleted   EventType = "retention_completed"
	EventRetentionFailed      EventType = "retention_failed"
)

// eventCategories maps each audit event to its category. Compliance events
// require guaranteed persistence; operations events are visibility only.
var eventCategories = map[EventType]EventCategory{
	EventConsentRecorded:      CategoryCompliance,
	EventConsentRevoked:       CategoryCompliance,
	EventConsentExpired:       CategoryCompliance,
	EventPreferencesUpdated:   CategoryCompliance,
	EventDecisionMade:         CategoryCompliance,
	EventSubjectCreated:       CategoryCompliance,
	EventSubjectPseudonymized: CategoryCompliance,
	EventRequestFiled:         CategoryCompliance,
	EventRequestCompleted:     CategoryCompliance,
	EventPolicyPublished:      CategoryCompliance,
	EventRetentionRuleApplied: CategoryOperations,
	EventRetentionCompleted:   CategoryOperations,
	EventRetentionFailed:      CategoryOperations,
}

// Category returns the EventCategory for this event type. Unknown types
// default to CategoryOperations.
func (t EventType) Category() EventCategory {
	if cat, ok := eventCategories[t]; ok {
		return cat
	}
	return CategoryOperations
}
