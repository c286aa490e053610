package decision

import (
	"fmt"
	"time"

	id "consentry/pkg/domain"
)

// evaluate turns gathered evidence into a decision. Pure so the rule set
// stays centralized and testable without stores or transports.
//
// Precedence: an active ledger grant always wins; then the policy matrix
// decides; with no policy at all the jurisdiction's regime does.
func evaluate(purpose id.Purpose, vendor string, jurisdiction id.Jurisdiction, at time.Time, ev Evidence) Decision {
	d := Decision{
		Jurisdiction: jurisdiction,
		EvaluatedAt:  at,
		Reasoning:    []string{"jurisdiction:" + jurisdiction.String()},
	}

	if ev.Grant != nil {
		d.Allowed = true
		d.Source = SourceConsent
		d.LegalBasis = ev.Grant.LegalBasis
		if d.LegalBasis == "" {
			d.LegalBasis = id.BasisConsent
		}
		d.ConsentRecordID = ev.Grant.ID
		if ev.PolicyVersion != nil {
			d.PolicyVersion = ev.PolicyVersion.Number
		}
		d.Reasoning = append(d.Reasoning, ReasonConsentGrant)
		return d
	}

	if ev.PolicyVersion == nil {
		return evaluateFallback(d, purpose, jurisdiction, ev)
	}

	d.PolicyVersion = ev.PolicyVersion.Number
	d.Reasoning = append(d.Reasoning, fmt.Sprintf("policy_version:%d", ev.PolicyVersion.Number))

	rule, tier := matchRule(ev.PolicyVersion.Matrix, purpose, vendor)
	d.Reasoning = append(d.Reasoning, tier)

	if rule == nil {
		if ev.PolicyVersion.Matrix.DefaultAllow {
			d.Allowed = true
			d.Source = SourcePolicyDefault
			d.LegalBasis = id.BasisLegitimateInterest
		} else {
			d.Source = SourcePolicyRequiresConsent
			d.Reasoning = append(d.Reasoning, ReasonRequiresGrant)
		}
		return d
	}

	if rule.AllowedWithoutConsent {
		d.Allowed = true
		d.Source = SourcePolicyDefault
		d.LegalBasis = basisOrDefault(rule.RequiredBasis)
		return d
	}

	d.Source = SourcePolicyRequiresConsent
	d.Reasoning = append(d.Reasoning, ReasonRequiresGrant)
	return d
}
