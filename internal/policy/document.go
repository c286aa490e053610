package policy

import (
	"encoding/json"
	"time"

	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
)

// Document is the JSON catalog format used to seed or update the policy
// store. Validation happens at load time; a document that parses is safe to
// materialize.
type Document struct {
	Policies []DocumentPolicy `json:"policies"`
}

type DocumentPolicy struct {
	Jurisdiction string            `json:"jurisdiction"`
	Tenant       string            `json:"tenant,omitempty"`
	Name         string            `json:"name"`
	Versions     []DocumentVersion `json:"versions"`
}

type DocumentVersion struct {
	Version       int        `json:"version"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	DefaultAllow  bool       `json:"default_allow"`
	Rules         []Rule     `json:"rules"`
}

// ParseDocument decodes and validates a policy catalog.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed policy document")
	}
	if len(doc.Policies) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "policy document declares no policies")
	}
	for _, p := range doc.Policies {
		if err := p.validate(); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

func (p DocumentPolicy) validate() error {
	if _, err := id.ParseJurisdiction(p.Jurisdiction); err != nil {
		return dErrors.Newf(dErrors.CodeInvalidInput, "policy %q: unknown jurisdiction %q", p.Name, p.Jurisdiction)
	}
	if p.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "policy without a name")
	}
	if len(p.Versions) == 0 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "policy %q declares no versions", p.Name)
	}

	seen := make(map[int]bool, len(p.Versions))
	for i, v := range p.Versions {
		if v.Version <= 0 {
			return dErrors.Newf(dErrors.CodeInvalidInput, "policy %q: version numbers start at 1", p.Name)
		}
		if seen[v.Version] {
			return dErrors.Newf(dErrors.CodeInvalidInput, "policy %q: duplicate version %d", p.Name, v.Version)
		}
		seen[v.Version] = true

		if v.EffectiveFrom.IsZero() {
			return dErrors.Newf(dErrors.CodeInvalidInput, "policy %q v%d: effective_from is required", p.Name, v.Version)
		}
		if v.EffectiveTo != nil && !v.EffectiveFrom.Before(*v.EffectiveTo) {
			return dErrors.Newf(dErrors.CodeInvalidInput, "policy %q v%d: effective_to must be after effective_from", p.Name, v.Version)
		}
		if err := validateRules(v.Rules); err != nil {
			return dErrors.Newf(dErrors.CodeInvalidInput, "policy %q v%d: %s", p.Name, v.Version, err.Error())
		}

		for _, other := range p.Versions[:i] {
			mock := Version{EffectiveFrom: other.EffectiveFrom, EffectiveTo: other.EffectiveTo}
			if mock.OverlapsWindow(v.EffectiveFrom, v.EffectiveTo) {
				return dErrors.Newf(dErrors.CodeInvalidInput,
					"policy %q: versions %d and %d have overlapping effectiveness windows", p.Name, other.Version, v.Version)
			}
		}
	}
	return nil
}

func validateRules(rules []Rule) error {
	type ruleKey struct {
		purpose id.Purpose
		vendor  string
		group   id.PurposeGroup
	}
	seen := make(map[ruleKey]bool, len(rules))
	for _, r := range rules {
		switch {
		case r.Purpose != "" && r.Group != "":
			return dErrors.New(dErrors.CodeInvalidInput, "rule targets both a purpose and a group")
		case r.Purpose == "" && r.Group == "":
			return dErrors.New(dErrors.CodeInvalidInput, "rule targets neither a purpose nor a group")
		case r.Purpose != "" && !r.Purpose.IsValid():
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown purpose %q", r.Purpose)
		case r.Group != "":
			if _, err := id.ParsePurposeGroup(string(r.Group)); err != nil {
				return dErrors.Newf(dErrors.CodeInvalidInput, "unknown purpose group %q", r.Group)
			}
			if r.Vendor != "" {
				return dErrors.New(dErrors.CodeInvalidInput, "group rules cannot name a vendor")
			}
		}
		if r.RequiredBasis != "" && !r.RequiredBasis.IsValid() {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown legal basis %q", r.RequiredBasis)
		}
		if r.MaxRetentionDays < 0 {
			return dErrors.New(dErrors.CodeInvalidInput, "max_retention_days cannot be negative")
		}

		key := ruleKey{purpose: r.Purpose, vendor: r.Vendor, group: r.Group}
		if seen[key] {
			return dErrors.New(dErrors.CodeInvalidInput, "two rules share the same target")
		}
		seen[key] = true
	}
	return nil
}
