package retention

import (
	"encoding/json"

	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
)

// legacySchedule is the retention configuration format used before rules
// moved into the database. Deployments still ship these files; the adapter
// converts them so old configs keep working.
type legacySchedule struct {
	Schedules []legacyEntry `json:"schedules"`
}

type legacyEntry struct {
	Entity   string `json:"entity"`
	KeepDays int    `json:"keep_days"`
	Region   string `json:"region,omitempty"`
	Basis    string `json:"basis,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

var legacyEntities = map[string]EntityType{
	"consents":         EntityConsentRecord,
	"consent_records":  EntityConsentRecord,
	"subjects":         EntitySubject,
	"users":            EntitySubject,
	"requests":         EntitySubjectRequest,
	"subject_requests": EntitySubjectRequest,
}

// ParseLegacySchedule converts a legacy schedule file into retention rules.
// Entries default to enabled, matching the old scheduler's behavior.
func ParseLegacySchedule(data []byte) ([]*Rule, error) {
	var doc legacySchedule
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed retention schedule")
	}
	if len(doc.Schedules) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "retention schedule declares no entries")
	}

	out := make([]*Rule, 0, len(doc.Schedules))
	for _, entry := range doc.Schedules {
		entity, ok := legacyEntities[entry.Entity]
		if !ok {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown retention entity %q", entry.Entity)
		}
		if entry.KeepDays <= 0 {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "keep_days must be positive for %q", entry.Entity)
		}

		rule := &Rule{
			ID:         id.NewRetentionRuleID(),
			EntityType: entity,
			PeriodDays: entry.KeepDays,
			Active:     entry.Enabled == nil || *entry.Enabled,
		}
		if entry.Region != "" {
			jurisdiction, err := id.ParseJurisdiction(entry.Region)
			if err != nil {
				return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown region %q", entry.Region)
			}
			rule.Jurisdiction = jurisdiction
		}
		if entry.Basis != "" {
			basis, err := id.ParseLegalBasis(entry.Basis)
			if err != nil {
				return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown legal basis %q", entry.Basis)
			}
			rule.LegalBasis = basis
		}
		out = append(out, rule)
	}
	return out, nil
}
