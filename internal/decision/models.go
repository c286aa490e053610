package decision

import (
	"time"

	"consentry/internal/ledger"
	"consentry/internal/policy"
	"consentry/internal/subject"
	id "consentry/pkg/domain"
)

// Source names which layer produced the outcome.
type Source string

const (
	// SourceConsent means an explicit ledger grant carried the decision.
	SourceConsent Source = "consent"
	// SourcePolicyDefault means a policy rule permitted processing without
	// an explicit grant.
	SourcePolicyDefault Source = "policy_default"
	// SourcePolicyRequiresConsent means the policy demands a grant that
	// does not exist.
	SourcePolicyRequiresConsent Source = "policy_requires_consent"
)

// Reasoning chain entries. Every decision carries the ordered trail of
// steps that produced it.
const (
	ReasonRequiresGrant       = "requires_grant"
	ReasonNoPolicy            = "no_policy"
	ReasonJurisdictionDefault = "jurisdiction_default"
	ReasonMatrixDefault       = "matrix_default"
	ReasonConsentGrant        = "consent_grant"
	ReasonLedgerHistory       = "ledger_history"
)

// EvaluateRequest asks whether processing may happen for a subject, purpose
// and optional vendor. Jurisdiction overrides the resolution chain; At
// evaluates against historical state and defaults to now.
type EvaluateRequest struct {
	Subject      subject.Ref
	Purpose      id.Purpose
	Vendor       string
	Jurisdiction id.Jurisdiction
	At           time.Time
}

// Decision is the evaluation outcome. A deny is a fully formed decision,
// never an error; errors mean the engine could not decide at all.
type Decision struct {
	Allowed         bool
	Source          Source
	LegalBasis      id.LegalBasis
	ConsentRecordID id.ConsentRecordID
	PolicyVersion   int
	Jurisdiction    id.Jurisdiction
	Reasoning       []string
	EvaluatedAt     time.Time
}

// Evidence is everything gathered before the rules run. Missing policy or
// grant is represented by nil, not an error; both are legitimate states.
type Evidence struct {
	Subject       *subject.Subject
	PolicyVersion *policy.Version
	Grant         *ledger.ConsentRecord
	LedgerStatus  id.ConsentStatus
	HasHistory    bool
	FetchedAt     time.Time
}
