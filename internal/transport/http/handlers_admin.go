package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"consentry/internal/audit"
	"consentry/internal/retention"
	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/requestcontext"
)

// RetentionService triggers runs and manages rules.
type RetentionService interface {
	Run(ctx context.Context) (*retention.Job, error)
	AddRule(ctx context.Context, r retention.Rule) (*retention.Rule, error)
	Rules(ctx context.Context) ([]*retention.Rule, error)
	Jobs(ctx context.Context, limit int) ([]*retention.Job, error)
}

// AuditReader is the read side of the audit trail.
type AuditReader interface {
	List(ctx context.Context, q audit.Query) ([]audit.Event, error)
}

// AdminHandler serves the operator surface: retention control and audit
// queries. All routes are mounted behind the admin token guard.
type AdminHandler struct {
	retention RetentionService
	audits    AuditReader
	logger    *slog.Logger
}

func NewAdminHandler(retentionSvc RetentionService, audits AuditReader, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{retention: retentionSvc, audits: audits, logger: logger}
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Post("/retention/run", h.handleRun)
	r.Post("/retention/rules", h.handleAddRule)
	r.Get("/retention/rules", h.handleListRules)
	r.Get("/retention/jobs", h.handleListJobs)
	r.Get("/audit/events", h.handleListEvents)
}

type jobResponse struct {
	ID           string               `json:"id"`
	Status       string               `json:"status"`
	StartedAt    time.Time            `json:"started_at"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty"`
	DeletedCount int64                `json:"deleted_count"`
	Log          []retention.LogEntry `json:"log"`
	Error        string               `json:"error,omitempty"`
}

func toJobResponse(j *retention.Job) jobResponse {
	return jobResponse{
		ID:           j.ID.String(),
		Status:       string(j.Status),
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
		DeletedCount: j.DeletedCount,
		Log:          j.Log,
		Error:        j.Error,
	}
}

func (h *AdminHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	job, err := h.retention.Run(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "retention run failed to start",
			"request_id", requestcontext.RequestID(ctx),
			"actor", requestcontext.ActorID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toJobResponse(job))
}

type ruleRequest struct {
	EntityType   string `json:"entity_type"`
	PeriodDays   int    `json:"period_days"`
	Jurisdiction string `json:"jurisdiction"`
	LegalBasis   string `json:"legal_basis"`
	Active       bool   `json:"active"`
}

type ruleResponse struct {
	ID           string `json:"id"`
	EntityType   string `json:"entity_type"`
	PeriodDays   int    `json:"period_days"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	LegalBasis   string `json:"legal_basis,omitempty"`
	Active       bool   `json:"active"`
}

func toRuleResponse(rule *retention.Rule) ruleResponse {
	return ruleResponse{
		ID:           rule.ID.String(),
		EntityType:   string(rule.EntityType),
		PeriodDays:   rule.PeriodDays,
		Jurisdiction: string(rule.Jurisdiction),
		LegalBasis:   string(rule.LegalBasis),
		Active:       rule.Active,
	}
}

func (h *AdminHandler) handleAddRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ruleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	created, err := h.retention.AddRule(ctx, retention.Rule{
		EntityType:   retention.EntityType(req.EntityType),
		PeriodDays:   req.PeriodDays,
		Jurisdiction: id.Jurisdiction(req.Jurisdiction),
		LegalBasis:   id.LegalBasis(req.LegalBasis),
		Active:       req.Active,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRuleResponse(created))
}

func (h *AdminHandler) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.retention.Rules(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"rules": out})
}

func (h *AdminHandler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	jobs, err := h.retention.Jobs(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toJobResponse(job))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

type eventResponse struct {
	ID             string          `json:"id"`
	Category       string          `json:"category"`
	Timestamp      time.Time       `json:"timestamp"`
	SubjectID      string          `json:"subject_id,omitempty"`
	Actor          string          `json:"actor,omitempty"`
	Type           string          `json:"type"`
	Purpose        string          `json:"purpose,omitempty"`
	Decision       string          `json:"decision,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Details        map[string]any  `json:"details,omitempty"`
	PolicySnapshot json.RawMessage `json:"policy_snapshot,omitempty"`
	RequestID      string          `json:"request_id,omitempty"`
}

func toEventResponse(ev audit.Event) eventResponse {
	resp := eventResponse{
		ID:             ev.ID.String(),
		Category:       string(ev.Category),
		Timestamp:      ev.Timestamp,
		Actor:          ev.Actor,
		Type:           string(ev.Type),
		Purpose:        ev.Purpose,
		Decision:       ev.Decision,
		Reason:         ev.Reason,
		Details:        ev.Details,
		PolicySnapshot: ev.PolicySnapshot,
		RequestID:      ev.RequestID,
	}
	if !ev.SubjectID.IsNil() {
		resp.SubjectID = ev.SubjectID.String()
	}
	return resp
}

func (h *AdminHandler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := audit.Query{Type: audit.EventType(r.URL.Query().Get("type"))}

	if raw := r.URL.Query().Get("subject_id"); raw != "" {
		subjectID, err := id.ParseSubjectID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed subject id"))
			return
		}
		q.SubjectID = subjectID
	}
	for param, dst := range map[string]*time.Time{"from": &q.From, "to": &q.To} {
		if raw := r.URL.Query().Get(param); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be RFC 3339", param))
				return
			}
			*dst = t
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer"))
			return
		}
		q.Limit = n
	}

	events, err := h.audits.List(ctx, q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventResponse(ev))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}
