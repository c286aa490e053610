package domain

import (
	"strings"

	dErrors "consentry/pkg/domain-errors"
)

// Jurisdiction identifies the regulatory regime governing a decision.
type Jurisdiction string

// Supported jurisdiction codes. JurisdictionRestOfWorld is the catch-all used
// when nothing more specific can be resolved.
const (
	JurisdictionEU          Jurisdiction = "eu"
	JurisdictionEEA         Jurisdiction = "eea"
	JurisdictionUK          Jurisdiction = "uk"
	JurisdictionBrazil      Jurisdiction = "br"
	JurisdictionCalifornia  Jurisdiction = "us-ca"
	JurisdictionVirginia    Jurisdiction = "us-va"
	JurisdictionColorado    Jurisdiction = "us-co"
	JurisdictionCanada      Jurisdiction = "ca"
	JurisdictionRestOfWorld Jurisdiction = "row"
)

// Regime groups jurisdictions by their consent model. The fallback evaluator
// keys off this when no policy document and no ledger history exist.
type Regime string

const (
	// RegimeOptIn requires an explicit grant before processing non-essential
	// purposes (GDPR-like).
	RegimeOptIn Regime = "opt_in"
	// RegimeOptOut allows processing until the subject objects (CCPA-like).
	RegimeOptOut Regime = "opt_out"
	// RegimeDefault is the rest-of-world model: allow unless explicitly
	// revoked or denied.
	RegimeDefault Regime = "default"
)

var jurisdictionRegimes = map[Jurisdiction]Regime{
	JurisdictionEU:          RegimeOptIn,
	JurisdictionEEA:         RegimeOptIn,
	JurisdictionUK:          RegimeOptIn,
	JurisdictionBrazil:      RegimeOptIn,
	JurisdictionCalifornia:  RegimeOptOut,
	JurisdictionVirginia:    RegimeOptOut,
	JurisdictionColorado:    RegimeOptOut,
	JurisdictionCanada:      RegimeDefault,
	JurisdictionRestOfWorld: RegimeDefault,
}

// ParseJurisdiction constructs a Jurisdiction from external input. Codes are
// matched case-insensitively.
//
// Errors: returns CodeInvalidInput when the value is unsupported. Empty input
// is invalid here; callers wanting a fallback should use
// JurisdictionRestOfWorld explicitly.
func ParseJurisdiction(s string) (Jurisdiction, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "jurisdiction cannot be empty")
	}
	j := Jurisdiction(strings.ToLower(s))
	if _, ok := jurisdictionRegimes[j]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid jurisdiction %q", s)
	}
	return j, nil
}

func (j Jurisdiction) IsValid() bool {
	_, ok := jurisdictionRegimes[j]
	return ok
}

func (j Jurisdiction) String() string { return string(j) }

// Regime returns the consent model for the jurisdiction. Unknown codes fall
// back to the rest-of-world model.
func (j Jurisdiction) Regime() Regime {
	if r, ok := jurisdictionRegimes[j]; ok {
		return r
	}
	return RegimeDefault
}
