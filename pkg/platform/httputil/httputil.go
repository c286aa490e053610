// Package httputil centralizes JSON encoding and domain error translation for
// HTTP handlers.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "consentry/pkg/domain-errors"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:   http.StatusBadRequest,
	dErrors.CodeInvalidInput: http.StatusBadRequest,
	dErrors.CodeNotFound:     http.StatusNotFound,
	dErrors.CodeConflict:     http.StatusConflict,
	dErrors.CodeInvalidState: http.StatusConflict,
	dErrors.CodeUnauthorized: http.StatusUnauthorized,
	dErrors.CodeTimeout:      http.StatusGatewayTimeout,
	dErrors.CodeInternal:     http.StatusInternalServerError,
}

// WriteError translates a coded domain error into a JSON error response.
// Internal errors omit the description so infrastructure detail never leaks
// to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		var derr *dErrors.Error
		if asDomainError(err, &derr) {
			body["error_description"] = derr.Message
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func asDomainError(err error, target **dErrors.Error) bool {
	for err != nil {
		if derr, ok := err.(*dErrors.Error); ok {
			*target = derr
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// WriteJSON encodes a success payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// DecodeAndPrepare decodes the request body into T and writes a bad_request
// response on malformed input. The bool result tells the handler whether to
// continue.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "malformed request body",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		var zero T
		return zero, false
	}
	return req, true
}
