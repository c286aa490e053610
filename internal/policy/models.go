package policy

import (
	"time"

	id "consentry/pkg/domain"
)

// Policy is a named rule catalog for one jurisdiction. Tenant-scoped
// policies override the shared catalog (empty tenant) for the same
// jurisdiction.
type Policy struct {
	ID           id.PolicyID
	Jurisdiction id.Jurisdiction
	Tenant       id.Tenant
	Name         string
}

// Version is an immutable snapshot of a policy's decision matrix with an
// effectiveness window. Windows of sibling versions never overlap; at most
// one version applies at any instant.
type Version struct {
	ID            id.PolicyVersionID
	PolicyID      id.PolicyID
	Number        int
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Matrix        Matrix
	CreatedAt     time.Time
	CreatedBy     string
}

// AppliesAt reports whether the version's effectiveness window contains t.
// The window is half-open: [EffectiveFrom, EffectiveTo).
func (v *Version) AppliesAt(t time.Time) bool {
	if t.Before(v.EffectiveFrom) {
		return false
	}
	return v.EffectiveTo == nil || t.Before(*v.EffectiveTo)
}

// OverlapsWindow reports whether the version's window intersects
// [from, to). Nil to means open-ended.
func (v *Version) OverlapsWindow(from time.Time, to *time.Time) bool {
	if v.EffectiveTo != nil && !from.Before(*v.EffectiveTo) {
		return false
	}
	if to != nil && !v.EffectiveFrom.Before(*to) {
		return false
	}
	return true
}

// Rule is a single row of the decision matrix. Exactly one of Purpose or
// Group is set; Vendor narrows a purpose rule to one vendor.
type Rule struct {
	Purpose               id.Purpose      `json:"purpose,omitempty"`
	Vendor                string          `json:"vendor,omitempty"`
	Group                 id.PurposeGroup `json:"group,omitempty"`
	AllowedWithoutConsent bool            `json:"allowed_without_consent"`
	RequiredBasis         id.LegalBasis   `json:"required_basis,omitempty"`
	MaxRetentionDays      int             `json:"max_retention_days,omitempty"`
}

// Matrix holds the ordered rule set plus the outcome used when no rule
// matches at all.
type Matrix struct {
	Rules        []Rule `json:"rules"`
	DefaultAllow bool   `json:"default_allow"`
}
