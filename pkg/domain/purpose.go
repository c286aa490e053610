package domain

import dErrors "consentry/pkg/domain-errors"

// Purpose is a domain value that identifies why data is processed. Purpose
// binding allows selective grants and revocations without affecting other
// flows.
//
// Usage: construct via ParsePurpose at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Purpose string

// Supported processing purposes.
const (
	PurposeEssential       Purpose = "essential"
	PurposeFunctional      Purpose = "functional"
	PurposeAnalytics       Purpose = "analytics"
	PurposeMarketing       Purpose = "marketing"
	PurposeAdvertising     Purpose = "advertising"
	PurposePersonalization Purpose = "personalization"
)

// validPurposes is the single source of truth for supported purposes.
var validPurposes = map[Purpose]bool{
	PurposeEssential:       true,
	PurposeFunctional:      true,
	PurposeAnalytics:       true,
	PurposeMarketing:       true,
	PurposeAdvertising:     true,
	PurposePersonalization: true,
}

// PurposeGroup names a family of related purposes a policy rule may target as
// a whole instead of enumerating each member.
type PurposeGroup string

const (
	GroupAdvertising PurposeGroup = "advertising"
	GroupTracking    PurposeGroup = "tracking"
	GroupNecessary   PurposeGroup = "necessary"
)

// purposeGroups maps each group to its member purposes.
var purposeGroups = map[PurposeGroup][]Purpose{
	GroupAdvertising: {PurposeMarketing, PurposeAdvertising},
	GroupTracking:    {PurposeAnalytics, PurposePersonalization},
	GroupNecessary:   {PurposeEssential, PurposeFunctional},
}

// ParsePurpose constructs a Purpose from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParsePurpose(s string) (Purpose, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "purpose cannot be empty")
	}
	p := Purpose(s)
	if !validPurposes[p] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid purpose %q", s)
	}
	return p, nil
}

// Purposes lists every supported purpose in a stable order. The preference
// projection iterates this to produce a complete purpose->status map.
func Purposes() []Purpose {
	return []Purpose{
		PurposeEssential,
		PurposeFunctional,
		PurposeAnalytics,
		PurposeMarketing,
		PurposeAdvertising,
		PurposePersonalization,
	}
}

func (p Purpose) IsValid() bool  { return validPurposes[p] }
func (p Purpose) String() string { return string(p) }

// InGroup reports whether the purpose belongs to the named group.
func (p Purpose) InGroup(g PurposeGroup) bool {
	for _, member := range purposeGroups[g] {
		if member == p {
			return true
		}
	}
	return false
}

// ParsePurposeGroup validates a group name from a policy document.
func ParsePurposeGroup(s string) (PurposeGroup, error) {
	g := PurposeGroup(s)
	if _, ok := purposeGroups[g]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid purpose group %q", s)
	}
	return g, nil
}

// RequiresOptIn reports whether the purpose needs an explicit grant under
// opt-in regimes. Strictly necessary purposes are exempt.
func (p Purpose) RequiresOptIn() bool {
	return !p.InGroup(GroupNecessary)
}
