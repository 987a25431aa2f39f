// Package errors provides JSON error responses that log server-side detail
// without leaking it to clients.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code})
}

// Internal logs err with request context and returns a generic 500.
func Internal(w http.ResponseWriter, r *http.Request, err error, message string) {
	log.Ctx(r.Context()).Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg(message)
	writeJSON(w, http.StatusInternalServerError, "internal_error")
}

// BadRequest logs err and returns a 400 with the given client-facing code.
func BadRequest(w http.ResponseWriter, r *http.Request, err error, code string) {
	log.Ctx(r.Context()).Warn().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("bad request")
	writeJSON(w, http.StatusBadRequest, code)
}

// NotFound returns the API's standard 404 body.
func NotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, "not_found")
}
