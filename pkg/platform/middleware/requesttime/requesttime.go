// Package requesttime pins one timestamp and one correlation ID per request.
// Every read of requestcontext.Now within the request observes the same
// instant, which keeps overlap resolution and audit entries consistent.
package requesttime

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"consentry/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestTime stores the request arrival time and a correlation ID on the
// context. An inbound X-Request-ID is honored; otherwise one is minted.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		ctx = requestcontext.WithRequestID(ctx, requestID)

		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
