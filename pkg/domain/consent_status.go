package domain

import dErrors "consentry/pkg/domain-errors"

// ConsentStatus is the state a ledger entry records for its key. Only
// StatusGranted can confer an allow; every other status is blocking.
type ConsentStatus string

const (
	StatusGranted   ConsentStatus = "granted"
	StatusDenied    ConsentStatus = "denied"
	StatusRevoked   ConsentStatus = "revoked"
	StatusWithdrawn ConsentStatus = "withdrawn"
	StatusExpired   ConsentStatus = "expired"
)

var validStatuses = map[ConsentStatus]bool{
	StatusGranted:   true,
	StatusDenied:    true,
	StatusRevoked:   true,
	StatusWithdrawn: true,
	StatusExpired:   true,
}

// ParseConsentStatus constructs a ConsentStatus from external input.
func ParseConsentStatus(s string) (ConsentStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := ConsentStatus(s)
	if !validStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid consent status %q", s)
	}
	return st, nil
}

func (s ConsentStatus) IsValid() bool  { return validStatuses[s] }
func (s ConsentStatus) String() string { return string(s) }

// Blocks reports whether the status represents an explicit objection or a
// lapsed grant. Any non-granted status blocks processing under every regime.
func (s ConsentStatus) Blocks() bool {
	return s != StatusGranted
}
