package decision

import (
	"consentry/internal/policy"
	id "consentry/pkg/domain"
)

// matchRule selects the most specific matrix rule for (purpose, vendor):
// a vendor-specific purpose rule beats the purpose-wide rule, which beats a
// rule for the purpose's group. Returns nil when only the matrix default
// applies. The second return names the matched tier for the reasoning chain.
func matchRule(m policy.Matrix, purpose id.Purpose, vendor string) (*policy.Rule, string) {
	var purposeRule, groupRule *policy.Rule
	for i := range m.Rules {
		r := &m.Rules[i]
		switch {
		case r.Purpose == purpose && r.Vendor != "" && r.Vendor == vendor:
			return r, "vendor_rule"
		case r.Purpose == purpose && r.Vendor == "":
			purposeRule = r
		case r.Group != "" && purpose.InGroup(r.Group):
			groupRule = r
		}
	}
	if purposeRule != nil {
		return purposeRule, "purpose_rule"
	}
	if groupRule != nil {
		return groupRule, "group_rule"
	}
	return nil, ReasonMatrixDefault
}

// basisOrDefault fills the legal basis for policy-sourced allows.
func basisOrDefault(b id.LegalBasis) id.LegalBasis {
	if b != "" {
		return b
	}
	return id.BasisLegitimateInterest
}
