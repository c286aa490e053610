// Package metadata extracts client metadata (IP, User-Agent) early in the
// middleware chain and derives the consent source channel from the observed
// User-Agent.
package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"consentry/pkg/requestcontext"
)

// ClientMetadata puts client IP and User-Agent on the request context so
// services can record where a consent change originated without seeing the
// HTTP request.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(
			r.Context(),
			ClientIPFromRequest(r),
			r.Header.Get("User-Agent"),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest extracts the real client IP, handling proxies and load
// balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...);
	// the first is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}

// DeriveSource classifies a raw User-Agent into the coarse-grained consent
// source recorded on ledger entries. An absent User-Agent means a direct API
// caller.
func DeriveSource(rawUA string) string {
	if rawUA == "" {
		return "api"
	}
	ua := useragent.New(rawUA)
	switch {
	case ua.Bot():
		return "bot"
	case ua.Mobile():
		return "mobile_web"
	default:
		if name, _ := ua.Browser(); name != "" {
			return "web"
		}
		return "api"
	}
}
