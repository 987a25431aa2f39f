// Package feed serves the public iCalendar feed with conditional-request
// and cache-busting semantics.
package feed

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/possiblenow/calfeed/internal/config"
	httperrors "github.com/possiblenow/calfeed/internal/http/errors"
	"github.com/possiblenow/calfeed/internal/ics"
	"github.com/possiblenow/calfeed/internal/metrics"
	"github.com/possiblenow/calfeed/internal/store"
)

const (
	defaultLimit = 2000
	maxLimit     = 10000
)

// Handler serves GET /calendar.ics and GET /calendar/{slug}.ics.
type Handler struct {
	events  store.EventRepository
	name    string
	prodID  string
	nowFunc func() time.Time
}

func NewHandler(cfg *config.Config, st *store.Store) *Handler {
	return &Handler{
		events:  st.Events,
		name:    cfg.Calendar.Name,
		prodID:  cfg.Calendar.ProdID,
		nowFunc: time.Now,
	}
}

// Canonical serves the stable feed URL. Clients without a current `v`
// cache-busting parameter are redirected to the fingerprinted URL first;
// the If-None-Match check deliberately runs after the redirect branch, so a
// stale `v` always produces a redirect even when the validator matches.
func (h *Handler) Canonical(w http.ResponseWriter, r *http.Request) {
	rows, err := h.events.List(r.Context(), parseLimit(r))
	if err != nil {
		httperrors.Internal(w, r, err, "listing events for feed failed")
		return
	}

	etag, lastMod := h.fingerprint(rows)

	if r.URL.Query().Get("v") != etag {
		q := r.URL.Query()
		q.Set("v", etag)
		// The redirect itself must never be cached, or clients would pin
		// a stale fingerprint.
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, r.URL.Path+"?"+q.Encode(), http.StatusFound)
		metrics.CountFeedResponse("redirect")
		return
	}

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		metrics.CountFeedResponse("not_modified")
		return
	}

	h.render(w, rows, etag, lastMod)
}

// Slug serves versioned feed paths like /calendar/v1.ics. The path segment
// is a client-chosen cache key; every slug serves the same calendar, with
// plain conditional GET and no redirect dance.
func (h *Handler) Slug(w http.ResponseWriter, r *http.Request) {
	rows, err := h.events.List(r.Context(), parseLimit(r))
	if err != nil {
		httperrors.Internal(w, r, err, "listing events for feed failed")
		return
	}

	etag, lastMod := h.fingerprint(rows)

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		metrics.CountFeedResponse("not_modified")
		return
	}

	h.render(w, rows, etag, lastMod)
}

func (h *Handler) render(w http.ResponseWriter, rows []store.CalendarEvent, etag string, lastMod time.Time) {
	now := h.nowFunc().UTC()

	events := make([]ics.Event, 0, len(rows))
	for i := range rows {
		events = append(events, ics.FromRecord(&rows[i], now))
	}
	doc := ics.Render(events, h.prodID, h.name)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("ETag", fmt.Sprintf("%q", etag))
	w.Header().Set("Last-Modified", lastMod.UTC().Format(http.TimeFormat))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", h.name+".ics"))
	// Calendar clients need near-real-time updates; force revalidation
	// instead of long-lived caching.
	w.Header().Set("Cache-Control", "no-store, max-age=0, must-revalidate")
	_, _ = w.Write([]byte(doc))
	metrics.CountFeedResponse("rendered")
}

// fingerprint derives the feed validator from the fetched snapshot: a
// SHA-256 of row count and newest update time. Any row mutation bumps
// updated_at, so this detects content changes without hashing the rendered
// document.
func (h *Handler) fingerprint(rows []store.CalendarEvent) (etag string, lastMod time.Time) {
	var newest time.Time
	for i := range rows {
		if rows[i].UpdatedAt.After(newest) {
			newest = rows[i].UpdatedAt
		}
	}
	if newest.IsZero() {
		newest = h.nowFunc().UTC()
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", len(rows), newest.UTC().Format(time.RFC3339Nano))))
	return fmt.Sprintf("%x", sum), newest
}

// parseLimit clamps the limit query parameter to [1, 10000]; out-of-range
// and unparseable values are clamped or defaulted, never rejected.
func parseLimit(r *http.Request) int {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

// etagMatches compares an If-None-Match header against the current
// fingerprint, tolerating quoted and weak forms.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if strings.Trim(candidate, `"`) == etag && etag != "" {
			return true
		}
	}
	return false
}
