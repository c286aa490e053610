package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consentry/internal/policy"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/requestcontext"
)

// PolicyService manages the versioned policy catalog.
type PolicyService interface {
	CreatePolicy(ctx context.Context, jurisdiction id.Jurisdiction, tenant id.Tenant, name string) (*policy.Policy, error)
	PublishVersion(ctx context.Context, in policy.VersionInput) (*policy.Version, error)
	Policies(ctx context.Context) ([]*policy.Policy, error)
	Versions(ctx context.Context, policyID id.PolicyID) ([]*policy.Version, error)
	ApplicableVersion(ctx context.Context, jurisdiction id.Jurisdiction, tenant id.Tenant, at time.Time) (*policy.Version, error)
}

type PolicyHandler struct {
	policies PolicyService
	logger   *slog.Logger
}

func NewPolicyHandler(policies PolicyService, logger *slog.Logger) *PolicyHandler {
	return &PolicyHandler{policies: policies, logger: logger}
}

// Register wires the read-only catalog lookup; RegisterAdmin wires the
// mutating routes, mounted behind the admin guard.
func (h *PolicyHandler) Register(r chi.Router) {
	r.Get("/policies/applicable", h.handleApplicable)
}

func (h *PolicyHandler) RegisterAdmin(r chi.Router) {
	r.Post("/policies", h.handleCreate)
	r.Get("/policies", h.handleList)
	r.Post("/policies/{policyID}/versions", h.handlePublish)
	r.Get("/policies/{policyID}/versions", h.handleVersions)
}

func (h *PolicyHandler) handleApplicable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	jurisdiction, err := id.ParseJurisdiction(q.Get("jurisdiction"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unknown jurisdiction"))
		return
	}
	at := requestcontext.Now(ctx)
	if raw := q.Get("at"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "at must be RFC 3339"))
			return
		}
	}

	version, err := h.policies.ApplicableVersion(ctx, jurisdiction, id.Tenant(q.Get("tenant")), at)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVersionResponse(version))
}

type createPolicyRequest struct {
	Jurisdiction string `json:"jurisdiction"`
	Tenant       string `json:"tenant"`
	Name         string `json:"name"`
}

func (h *PolicyHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createPolicyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	created, err := h.policies.CreatePolicy(ctx, id.Jurisdiction(req.Jurisdiction), id.Tenant(req.Tenant), req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPolicyResponse(created))
}

func (h *PolicyHandler) handleList(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policies.Policies(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]policyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, toPolicyResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"policies": out})
}

type publishVersionRequest struct {
	EffectiveFrom time.Time     `json:"effective_from"`
	EffectiveTo   *time.Time    `json:"effective_to"`
	Matrix        policy.Matrix `json:"matrix"`
}

func (h *PolicyHandler) handlePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed policy id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[publishVersionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	version, err := h.policies.PublishVersion(ctx, policy.VersionInput{
		PolicyID:      policyID,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
		Matrix:        req.Matrix,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "version publish rejected",
			"request_id", requestcontext.RequestID(ctx),
			"policy_id", policyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toVersionResponse(version))
}

func (h *PolicyHandler) handleVersions(w http.ResponseWriter, r *http.Request) {
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed policy id"))
		return
	}

	versions, err := h.policies.Versions(r.Context(), policyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]versionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, toVersionResponse(v))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"versions": out})
}
