package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consentry/internal/decision"
	"consentry/internal/subject"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/requestcontext"
)

// DecisionService evaluates processing decisions.
type DecisionService interface {
	Evaluate(ctx context.Context, req decision.EvaluateRequest) (*decision.Decision, error)
}

type DecisionHandler struct {
	decisions DecisionService
	logger    *slog.Logger
}

func NewDecisionHandler(decisions DecisionService, logger *slog.Logger) *DecisionHandler {
	return &DecisionHandler{decisions: decisions, logger: logger}
}

func (h *DecisionHandler) Register(r chi.Router) {
	r.Post("/decisions/evaluate", h.handleEvaluate)
}

type evaluateRequest struct {
	SubjectID    string     `json:"subject_id"`
	ExternalID   string     `json:"external_id"`
	Tenant       string     `json:"tenant"`
	Purpose      string     `json:"purpose"`
	Vendor       string     `json:"vendor"`
	Jurisdiction string     `json:"jurisdiction"`
	At           *time.Time `json:"at"`
}

type decisionResponse struct {
	Allowed         bool      `json:"allowed"`
	Source          string    `json:"source"`
	LegalBasis      string    `json:"legal_basis,omitempty"`
	ConsentRecordID string    `json:"consent_record_id,omitempty"`
	PolicyVersion   int       `json:"policy_version,omitempty"`
	Jurisdiction    string    `json:"jurisdiction"`
	Reasoning       []string  `json:"reasoning"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
}

func toDecisionResponse(d *decision.Decision) decisionResponse {
	resp := decisionResponse{
		Allowed:       d.Allowed,
		Source:        string(d.Source),
		LegalBasis:    string(d.LegalBasis),
		PolicyVersion: d.PolicyVersion,
		Jurisdiction:  string(d.Jurisdiction),
		Reasoning:     d.Reasoning,
		EvaluatedAt:   d.EvaluatedAt,
	}
	if !d.ConsentRecordID.IsNil() {
		resp.ConsentRecordID = d.ConsentRecordID.String()
	}
	return resp
}

func (h *DecisionHandler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[evaluateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	ref := subject.Ref{ExternalID: req.ExternalID, Tenant: id.Tenant(req.Tenant)}
	if req.SubjectID != "" {
		subjectID, err := id.ParseSubjectID(req.SubjectID)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed subject id"))
			return
		}
		ref.SubjectID = subjectID
	}

	in := decision.EvaluateRequest{
		Subject:      ref,
		Purpose:      id.Purpose(req.Purpose),
		Vendor:       req.Vendor,
		Jurisdiction: id.Jurisdiction(req.Jurisdiction),
	}
	if req.At != nil {
		in.At = *req.At
	}

	d, err := h.decisions.Evaluate(ctx, in)
	if err != nil {
		h.logger.WarnContext(ctx, "evaluation failed",
			"request_id", requestcontext.RequestID(ctx),
			"purpose", req.Purpose,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDecisionResponse(d))
}
