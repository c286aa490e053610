package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consentry/internal/ledger"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/platform/middleware/metadata"
	"consentry/pkg/requestcontext"
)

// ConsentService is the slice of the ledger service the handler needs.
type ConsentService interface {
	Record(ctx context.Context, in ledger.RecordInput) (*ledger.ConsentRecord, error)
	Revoke(ctx context.Context, subjectID id.SubjectID, purpose id.Purpose, vendor, reason, source string) (*ledger.ConsentRecord, error)
	Query(ctx context.Context, q ledger.Query) ([]*ledger.ConsentRecord, error)
	CurrentStatus(ctx context.Context, subjectID id.SubjectID, purpose id.Purpose) (id.ConsentStatus, error)
}

type ConsentHandler struct {
	ledger ConsentService
	logger *slog.Logger
}

func NewConsentHandler(ledgerSvc ConsentService, logger *slog.Logger) *ConsentHandler {
	return &ConsentHandler{ledger: ledgerSvc, logger: logger}
}

func (h *ConsentHandler) Register(r chi.Router) {
	r.Route("/subjects/{subjectID}/consents", func(r chi.Router) {
		r.Post("/", h.handleRecord)
		r.Post("/revoke", h.handleRevoke)
		r.Get("/", h.handleHistory)
		r.Get("/{purpose}/status", h.handleStatus)
	})
}

type recordConsentRequest struct {
	Purpose      string     `json:"purpose"`
	Vendor       string     `json:"vendor"`
	LegalBasis   string     `json:"legal_basis"`
	Status       string     `json:"status"`
	Jurisdiction string     `json:"jurisdiction"`
	ValidFrom    *time.Time `json:"valid_from"`
	ValidUntil   *time.Time `json:"valid_until"`
	Source       string     `json:"source"`
	Reason       string     `json:"reason"`
}

func (h *ConsentHandler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := subjectIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[recordConsentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	validFrom := requestcontext.Now(ctx)
	if req.ValidFrom != nil {
		validFrom = *req.ValidFrom
	}
	source := req.Source
	if source == "" {
		source = metadata.DeriveSource(requestcontext.UserAgent(ctx))
	}

	rec, err := h.ledger.Record(ctx, ledger.RecordInput{
		SubjectID:    subjectID,
		Purpose:      id.Purpose(req.Purpose),
		Vendor:       req.Vendor,
		LegalBasis:   id.LegalBasis(req.LegalBasis),
		Status:       id.ConsentStatus(req.Status),
		Jurisdiction: id.Jurisdiction(req.Jurisdiction),
		ValidFrom:    validFrom,
		ValidUntil:   req.ValidUntil,
		Source:       source,
		Reason:       req.Reason,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "consent record rejected",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toConsentResponse(rec))
}

type revokeConsentRequest struct {
	Purpose string `json:"purpose"`
	Vendor  string `json:"vendor"`
	Reason  string `json:"reason"`
}

func (h *ConsentHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := subjectIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[revokeConsentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	source := metadata.DeriveSource(requestcontext.UserAgent(ctx))
	rec, err := h.ledger.Revoke(ctx, subjectID, id.Purpose(req.Purpose), req.Vendor, req.Reason, source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(rec))
}

func (h *ConsentHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := subjectIDParam(w, r)
	if !ok {
		return
	}

	q := ledger.Query{
		SubjectID: subjectID,
		Purpose:   id.Purpose(r.URL.Query().Get("purpose")),
		Vendor:    r.URL.Query().Get("vendor"),
		Status:    id.ConsentStatus(r.URL.Query().Get("status")),
	}
	recs, err := h.ledger.Query(ctx, q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"consents": toConsentResponses(recs)})
}

func (h *ConsentHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := subjectIDParam(w, r)
	if !ok {
		return
	}

	purpose, err := id.ParsePurpose(chi.URLParam(r, "purpose"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unknown purpose"))
		return
	}

	status, err := h.ledger.CurrentStatus(ctx, subjectID, purpose)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"purpose": string(purpose),
		"status":  string(status),
	})
}

func subjectIDParam(w http.ResponseWriter, r *http.Request) (id.SubjectID, bool) {
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed subject id"))
		return id.SubjectID{}, false
	}
	return subjectID, true
}
