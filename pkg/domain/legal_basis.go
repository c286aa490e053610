package domain

import dErrors "consentry/pkg/domain-errors"

// LegalBasis is the justification for processing personal data.
type LegalBasis string

const (
	BasisConsent            LegalBasis = "consent"
	BasisContract           LegalBasis = "contract"
	BasisLegalObligation    LegalBasis = "legal_obligation"
	BasisVitalInterest      LegalBasis = "vital_interest"
	BasisPublicTask         LegalBasis = "public_task"
	BasisLegitimateInterest LegalBasis = "legitimate_interest"
)

var validBases = map[LegalBasis]bool{
	BasisConsent:            true,
	BasisContract:           true,
	BasisLegalObligation:    true,
	BasisVitalInterest:      true,
	BasisPublicTask:         true,
	BasisLegitimateInterest: true,
}

// ParseLegalBasis constructs a LegalBasis from external input.
func ParseLegalBasis(s string) (LegalBasis, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "legal basis cannot be empty")
	}
	b := LegalBasis(s)
	if !validBases[b] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid legal basis %q", s)
	}
	return b, nil
}

func (b LegalBasis) IsValid() bool  { return validBases[b] }
func (b LegalBasis) String() string { return string(b) }
