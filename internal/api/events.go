// Package api exposes the JSON CRUD surface for calendar events.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	httperrors "github.com/possiblenow/calfeed/internal/http/errors"
	"github.com/possiblenow/calfeed/internal/store"
)

// listLimit caps the JSON list endpoint; the ICS feed has its own,
// larger cap.
const listLimit = 200

type Handler struct {
	store *store.Store
}

func NewHandler(st *store.Store) *Handler {
	return &Handler{store: st}
}

// Health reports database connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(r.Context()); err != nil {
		httperrors.Internal(w, r, err, "database health check failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListEvents returns upcoming events, soonest first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.Events.List(r.Context(), listLimit)
	if err != nil {
		httperrors.Internal(w, r, err, "listing events failed")
		return
	}
	if events == nil {
		events = []store.CalendarEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}

// CreateEvent stores a new event from a JSON payload.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	p, ok := decodePatch(w, r)
	if !ok {
		return
	}

	event := &store.CalendarEvent{ID: uuid.New()}
	issues, err := applyPatch(event, p)
	if err != nil {
		httperrors.BadRequest(w, r, err, "invalid_payload")
		return
	}
	logIssues(r, issues)

	created, err := h.store.Events.Create(r.Context(), event)
	if err != nil {
		httperrors.Internal(w, r, err, "creating event failed")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// GetEvent returns a single event by id.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	event, err := h.store.Events.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperrors.NotFound(w)
			return
		}
		httperrors.Internal(w, r, err, "loading event failed")
		return
	}
	respondJSON(w, http.StatusOK, event)
}

// PatchEvent applies a partial update.
func (h *Handler) PatchEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(w, r)
	if !ok {
		return
	}
	p, ok := decodePatch(w, r)
	if !ok {
		return
	}

	event, err := h.store.Events.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperrors.NotFound(w)
			return
		}
		httperrors.Internal(w, r, err, "loading event failed")
		return
	}

	issues, err := applyPatch(event, p)
	if err != nil {
		httperrors.BadRequest(w, r, err, "invalid_payload")
		return
	}
	logIssues(r, issues)

	updated, err := h.store.Events.Update(r.Context(), event)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperrors.NotFound(w)
			return
		}
		httperrors.Internal(w, r, err, "updating event failed")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteEvent removes an event.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	if err := h.store.Events.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperrors.NotFound(w)
			return
		}
		httperrors.Internal(w, r, err, "deleting event failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// eventID parses the id path parameter; a malformed id is indistinguishable
// from a missing record to clients.
func eventID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.NotFound(w)
		return uuid.Nil, false
	}
	return id, true
}

func decodePatch(w http.ResponseWriter, r *http.Request) (patch, bool) {
	var p patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httperrors.BadRequest(w, r, err, "invalid_json")
		return nil, false
	}
	return p, true
}

func logIssues(r *http.Request, issues []FieldIssue) {
	for _, issue := range issues {
		log.Ctx(r.Context()).Warn().
			Str("field", issue.Field).
			Str("reason", issue.Reason).
			Msg("patch field ignored")
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding response failed")
	}
}
