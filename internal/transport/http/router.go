// Package httptransport assembles the HTTP surface. Handlers stay thin:
// they decode, delegate to a domain service and encode; every business
// decision lives below this layer.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consentry/pkg/platform/middleware/admin"
	"consentry/pkg/platform/middleware/metadata"
	"consentry/pkg/platform/middleware/requesttime"
)

// Handlers bundles the feature handlers the router mounts.
type Handlers struct {
	Subjects    *SubjectHandler
	Consents    *ConsentHandler
	Preferences *PreferenceHandler
	Decisions   *DecisionHandler
	Policies    *PolicyHandler
	Requests    *RequestHandler
	Admin       *AdminHandler
}

// NewRouter assembles the public and admin surfaces. Admin routes verify an
// HMAC-signed bearer token with an admin role claim.
func NewRouter(h Handlers, adminJWTKey []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requesttime.RequestTime)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		h.Subjects.Register(r)
		h.Consents.Register(r)
		h.Preferences.Register(r)
		h.Decisions.Register(r)
		h.Policies.Register(r)
		h.Requests.Register(r)

		r.Route("/admin", func(r chi.Router) {
			r.Use(admin.RequireAdmin(adminJWTKey))
			h.Policies.RegisterAdmin(r)
			h.Requests.RegisterAdmin(r)
			h.Admin.Register(r)
		})
	})
	return r
}
