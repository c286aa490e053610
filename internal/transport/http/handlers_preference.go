package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentry/internal/preference"
	id "consentry/pkg/domain"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/platform/middleware/metadata"
	"consentry/pkg/requestcontext"
)

// PreferenceService projects and updates the per-subject preference view.
type PreferenceService interface {
	Get(ctx context.Context, subjectID id.SubjectID) (*preference.Preferences, error)
	Update(ctx context.Context, subjectID id.SubjectID, jurisdiction id.Jurisdiction, changes map[id.Purpose]id.ConsentStatus, source string) (*preference.Preferences, error)
}

type PreferenceHandler struct {
	preferences PreferenceService
	logger      *slog.Logger
}

func NewPreferenceHandler(preferences PreferenceService, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{preferences: preferences, logger: logger}
}

func (h *PreferenceHandler) Register(r chi.Router) {
	r.Get("/subjects/{subjectID}/preferences", h.handleGet)
	r.Put("/subjects/{subjectID}/preferences", h.handleUpdate)
}

type preferencesResponse struct {
	SubjectID string            `json:"subject_id"`
	Purposes  map[string]string `json:"purposes"`
}

func toPreferencesResponse(p *preference.Preferences) preferencesResponse {
	purposes := make(map[string]string, len(p.Statuses))
	for purpose, status := range p.Statuses {
		purposes[string(purpose)] = string(status)
	}
	return preferencesResponse{SubjectID: p.SubjectID.String(), Purposes: purposes}
}

func (h *PreferenceHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := subjectIDParam(w, r)
	if !ok {
		return
	}

	prefs, err := h.preferences.Get(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPreferencesResponse(prefs))
}

type updatePreferencesRequest struct {
	Jurisdiction string            `json:"jurisdiction"`
	Purposes     map[string]string `json:"purposes"`
	Source       string            `json:"source"`
}

func (h *PreferenceHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := subjectIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[updatePreferencesRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	changes := make(map[id.Purpose]id.ConsentStatus, len(req.Purposes))
	for purpose, status := range req.Purposes {
		changes[id.Purpose(purpose)] = id.ConsentStatus(status)
	}
	source := req.Source
	if source == "" {
		source = metadata.DeriveSource(requestcontext.UserAgent(ctx))
	}

	prefs, err := h.preferences.Update(ctx, subjectID, id.Jurisdiction(req.Jurisdiction), changes, source)
	if err != nil {
		h.logger.WarnContext(ctx, "preference update rejected",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPreferencesResponse(prefs))
}
