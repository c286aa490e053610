// Package domain holds shared domain value types: typed identifiers and the
// controlled vocabularies (purpose, jurisdiction, legal basis, consent status)
// used across the ledger, catalog, and decision packages.
package domain

import (
	"github.com/google/uuid"

	dErrors "consentry/pkg/domain-errors"
)

// Typed UUID wrappers prevent accidental cross-assignment between entity IDs.
// Construct via the Parse helpers at trust boundaries; direct casting bypasses
// validation.
type (
	SubjectID        uuid.UUID
	ConsentRecordID  uuid.UUID
	PolicyID         uuid.UUID
	PolicyVersionID  uuid.UUID
	RetentionRuleID  uuid.UUID
	RetentionJobID   uuid.UUID
	SubjectRequestID uuid.UUID
)

// Tenant identifies the owning organization in multi-tenant deployments.
// It is an external code, not a UUID; empty means the default tenant.
type Tenant string

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

func ParseSubjectID(s string) (SubjectID, error) {
	u, err := parseUUID(s)
	return SubjectID(u), err
}

func ParseConsentRecordID(s string) (ConsentRecordID, error) {
	u, err := parseUUID(s)
	return ConsentRecordID(u), err
}

func ParsePolicyID(s string) (PolicyID, error) {
	u, err := parseUUID(s)
	return PolicyID(u), err
}

func ParsePolicyVersionID(s string) (PolicyVersionID, error) {
	u, err := parseUUID(s)
	return PolicyVersionID(u), err
}

func ParseSubjectRequestID(s string) (SubjectRequestID, error) {
	u, err := parseUUID(s)
	return SubjectRequestID(u), err
}

func (id SubjectID) IsNil() bool           { return uuid.UUID(id) == uuid.Nil }
func (id SubjectID) String() string        { return uuid.UUID(id).String() }
func (id ConsentRecordID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ConsentRecordID) String() string  { return uuid.UUID(id).String() }
func (id PolicyID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) String() string         { return uuid.UUID(id).String() }
func (id PolicyVersionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PolicyVersionID) String() string  { return uuid.UUID(id).String() }
func (id RetentionRuleID) String() string  { return uuid.UUID(id).String() }
func (id RetentionJobID) String() string   { return uuid.UUID(id).String() }
func (id SubjectRequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SubjectRequestID) String() string { return uuid.UUID(id).String() }

// NewSubjectID and friends mint fresh identifiers. Kept here so callers do not
// reach for uuid.New directly and lose the typed wrapper.
func NewSubjectID() SubjectID               { return SubjectID(uuid.New()) }
func NewConsentRecordID() ConsentRecordID   { return ConsentRecordID(uuid.New()) }
func NewPolicyID() PolicyID                 { return PolicyID(uuid.New()) }
func NewPolicyVersionID() PolicyVersionID   { return PolicyVersionID(uuid.New()) }
func NewRetentionRuleID() RetentionRuleID   { return RetentionRuleID(uuid.New()) }
func NewRetentionJobID() RetentionJobID     { return RetentionJobID(uuid.New()) }
func NewSubjectRequestID() SubjectRequestID { return SubjectRequestID(uuid.New()) }
