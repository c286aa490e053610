package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentry/internal/request"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/requestcontext"
)

// RequestService files and completes subject requests.
type RequestService interface {
	File(ctx context.Context, subjectID id.SubjectID, kind request.Kind, reason string) (*request.SubjectRequest, error)
	Complete(ctx context.Context, requestID id.SubjectRequestID) (*request.SubjectRequest, error)
	List(ctx context.Context, subjectID id.SubjectID) ([]*request.SubjectRequest, error)
}

type RequestHandler struct {
	requests RequestService
	logger   *slog.Logger
}

func NewRequestHandler(requests RequestService, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{requests: requests, logger: logger}
}

// Register wires filing and listing; completion is an operator action and
// registers under the admin guard.
func (h *RequestHandler) Register(r chi.Router) {
	r.Post("/subjects/{subjectID}/requests", h.handleFile)
	r.Get("/subjects/{subjectID}/requests", h.handleList)
}

func (h *RequestHandler) RegisterAdmin(r chi.Router) {
	r.Post("/requests/{requestID}/complete", h.handleComplete)
}

type fileRequestRequest struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func (h *RequestHandler) handleFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := subjectIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[fileRequestRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	filed, err := h.requests.File(ctx, subjectID, request.Kind(req.Kind), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(filed))
}

func (h *RequestHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := subjectIDParam(w, r)
	if !ok {
		return
	}

	listed, err := h.requests.List(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(listed))
	for _, req := range listed {
		out = append(out, toRequestResponse(req))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": out})
}

func (h *RequestHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseSubjectRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed request id"))
		return
	}

	done, err := h.requests.Complete(ctx, requestID)
	if err != nil {
		h.logger.WarnContext(ctx, "request completion rejected",
			"request_id", requestcontext.RequestID(ctx),
			"actor", requestcontext.ActorID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(done))
}
