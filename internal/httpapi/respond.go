package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/logging"
)

// withTraceID attaches the inbound X-Trace-ID header (or a freshly
// generated ID) to the request's context, per spec §4.11.
func withTraceID(r *http.Request) context.Context {
	return logging.WithTraceID(r.Context(), r.Header.Get("X-Trace-ID"))
}

// respondJSON writes payload as a JSON response with status.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError writes err as the `{detail: string}` body spec §4.1
// requires, mapping its apperr.Kind to an HTTP status (defaulting to 500
// for errors with no recognized kind).
func respondError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	respondJSON(w, status, map[string]string{"detail": err.Error()})
}

// decodeJSON decodes r's body into v, returning an invalid-input error on
// failure (spec §7).
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.InvalidInput, "decode request body", err)
	}
	return nil
}
