// Package admin guards administrative endpoints (retention trigger, audit
// queries) with a bearer token. Full authentication lives outside this
// service; this middleware only verifies the signed admin token it is handed.
package admin

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/requestcontext"
)

// RequireAdmin verifies an HMAC-signed bearer token carrying role=admin and
// puts the token subject on the context as the acting principal.
func RequireAdmin(signingKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return signingKey, nil
			})
			if err != nil || !token.Valid {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
				return
			}
			if role, _ := claims["role"].(string); role != "admin" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin role required"))
				return
			}

			actor, _ := claims["sub"].(string)
			ctx := requestcontext.WithActorID(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
