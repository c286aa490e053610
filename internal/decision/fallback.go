package decision

import (
	id "consentry/pkg/domain"
)

// evaluateFallback decides without a policy catalog, from the jurisdiction's
// regime alone. Explicit ledger history still governs when it exists;
// regimes only fill the silence.
func evaluateFallback(d Decision, purpose id.Purpose, jurisdiction id.Jurisdiction, ev Evidence) Decision {
	d.Reasoning = append(d.Reasoning, ReasonNoPolicy)

	if ev.HasHistory {
		// Reaching this point means no active grant, so any recorded
		// history blocks: the newest entry is a denial, a withdrawal, or a
		// grant whose window has closed.
		d.Source = SourcePolicyRequiresConsent
		d.Reasoning = append(d.Reasoning, ReasonLedgerHistory, ReasonRequiresGrant)
		return d
	}

	if !purpose.RequiresOptIn() {
		d.Allowed = true
		d.Source = SourcePolicyDefault
		d.LegalBasis = id.BasisLegitimateInterest
		d.Reasoning = append(d.Reasoning, ReasonJurisdictionDefault)
		return d
	}

	switch jurisdiction.Regime() {
	case id.RegimeOptIn:
		d.Source = SourcePolicyRequiresConsent
		d.Reasoning = append(d.Reasoning, ReasonRequiresGrant)
	default:
		// Opt-out and unregulated regimes permit processing until the
		// subject objects.
		d.Allowed = true
		d.Source = SourcePolicyDefault
		d.LegalBasis = id.BasisLegitimateInterest
		d.Reasoning = append(d.Reasoning, ReasonJurisdictionDefault)
	}
	return d
}
