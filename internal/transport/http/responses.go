package httptransport

import (
	"time"

	"consentry/internal/ledger"
	"consentry/internal/policy"
	"consentry/internal/request"
	"consentry/internal/subject"
)

type subjectResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	ExternalID string    `json:"external_id,omitempty"`
	Tenant     string    `json:"tenant,omitempty"`
	Region     string    `json:"region,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toSubjectResponse(sub *subject.Subject) subjectResponse {
	return subjectResponse{
		ID:         sub.ID.String(),
		Email:      sub.Email,
		ExternalID: sub.ExternalID,
		Tenant:     string(sub.Tenant),
		Region:     string(sub.Region),
		CreatedAt:  sub.CreatedAt,
	}
}

type consentResponse struct {
	ID            string     `json:"id"`
	SubjectID     string     `json:"subject_id"`
	Purpose       string     `json:"purpose"`
	Vendor        string     `json:"vendor,omitempty"`
	LegalBasis    string     `json:"legal_basis"`
	Status        string     `json:"status"`
	Jurisdiction  string     `json:"jurisdiction"`
	ValidFrom     time.Time  `json:"valid_from"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	PolicyVersion string     `json:"policy_version_id,omitempty"`
	Source        string     `json:"source,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toConsentResponse(rec *ledger.ConsentRecord) consentResponse {
	resp := consentResponse{
		ID:           rec.ID.String(),
		SubjectID:    rec.SubjectID.String(),
		Purpose:      string(rec.Purpose),
		Vendor:       rec.Vendor,
		LegalBasis:   string(rec.LegalBasis),
		Status:       string(rec.Status),
		Jurisdiction: string(rec.Jurisdiction),
		ValidFrom:    rec.ValidFrom,
		ValidUntil:   rec.ValidUntil,
		Source:       rec.Source,
		CreatedAt:    rec.CreatedAt,
	}
	if !rec.PolicyVersionID.IsNil() {
		resp.PolicyVersion = rec.PolicyVersionID.String()
	}
	return resp
}

func toConsentResponses(recs []*ledger.ConsentRecord) []consentResponse {
	out := make([]consentResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toConsentResponse(rec))
	}
	return out
}

type policyResponse struct {
	ID           string `json:"id"`
	Jurisdiction string `json:"jurisdiction"`
	Tenant       string `json:"tenant,omitempty"`
	Name         string `json:"name"`
}

func toPolicyResponse(p *policy.Policy) policyResponse {
	return policyResponse{
		ID:           p.ID.String(),
		Jurisdiction: string(p.Jurisdiction),
		Tenant:       string(p.Tenant),
		Name:         p.Name,
	}
}

type versionResponse struct {
	ID            string        `json:"id"`
	PolicyID      string        `json:"policy_id"`
	Number        int           `json:"number"`
	EffectiveFrom time.Time     `json:"effective_from"`
	EffectiveTo   *time.Time    `json:"effective_to,omitempty"`
	Matrix        policy.Matrix `json:"matrix"`
	CreatedAt     time.Time     `json:"created_at"`
	CreatedBy     string        `json:"created_by,omitempty"`
}

func toVersionResponse(v *policy.Version) versionResponse {
	return versionResponse{
		ID:            v.ID.String(),
		PolicyID:      v.PolicyID.String(),
		Number:        v.Number,
		EffectiveFrom: v.EffectiveFrom,
		EffectiveTo:   v.EffectiveTo,
		Matrix:        v.Matrix,
		CreatedAt:     v.CreatedAt,
		CreatedBy:     v.CreatedBy,
	}
}

type requestResponse struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRequestResponse(req *request.SubjectRequest) requestResponse {
	return requestResponse{
		ID:        req.ID.String(),
		SubjectID: req.SubjectID.String(),
		Kind:      string(req.Kind),
		Status:    string(req.Status),
		Reason:    req.Reason,
		CreatedAt: req.CreatedAt,
		UpdatedAt: req.UpdatedAt,
	}
}
