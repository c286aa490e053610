package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentry/internal/subject"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/requestcontext"
)

// SubjectService is the slice of the subject service the handler needs.
type SubjectService interface {
	Create(ctx context.Context, email, externalID string, tenant id.Tenant, region id.Jurisdiction) (*subject.Subject, error)
	Resolve(ctx context.Context, ref subject.Ref) (*subject.Subject, error)
}

type SubjectHandler struct {
	subjects SubjectService
	logger   *slog.Logger
}

func NewSubjectHandler(subjects SubjectService, logger *slog.Logger) *SubjectHandler {
	return &SubjectHandler{subjects: subjects, logger: logger}
}

func (h *SubjectHandler) Register(r chi.Router) {
	r.Post("/subjects", h.handleCreate)
	r.Get("/subjects/{subjectID}", h.handleGet)
}

type createSubjectRequest struct {
	Email      string `json:"email"`
	ExternalID string `json:"external_id"`
	Tenant     string `json:"tenant"`
	Region     string `json:"region"`
}

func (h *SubjectHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createSubjectRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	sub, err := h.subjects.Create(ctx, req.Email, req.ExternalID, id.Tenant(req.Tenant), id.Jurisdiction(req.Region))
	if err != nil {
		h.logger.WarnContext(ctx, "subject creation rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSubjectResponse(sub))
}

func (h *SubjectHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed subject id"))
		return
	}

	sub, err := h.subjects.Resolve(ctx, subject.Ref{SubjectID: subjectID})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSubjectResponse(sub))
}
