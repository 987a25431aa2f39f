package feed

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/possiblenow/calfeed/internal/store"
)

// fakeEventRepo returns canned rows and records the limit it was asked for.
type fakeEventRepo struct {
	rows      []store.CalendarEvent
	err       error
	lastLimit int
}

func (f *fakeEventRepo) List(ctx context.Context, limit int) ([]store.CalendarEvent, error) {
	f.lastLimit = limit
	return f.rows, f.err
}

func (f *fakeEventRepo) Create(ctx context.Context, e *store.CalendarEvent) (*store.CalendarEvent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.CalendarEvent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEventRepo) Update(ctx context.Context, e *store.CalendarEvent) (*store.CalendarEvent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}

var fixedNow = time.Date(2025, 12, 20, 12, 0, 0, 0, time.UTC)

func newTestHandler(repo *fakeEventRepo) *Handler {
	return &Handler{
		events:  repo,
		name:    "PossibleNow Events",
		prodID:  "-//HelpSellPossibleNow//Calendar//EN",
		nowFunc: func() time.Time { return fixedNow },
	}
}

func sampleRows() []store.CalendarEvent {
	title := "Standup"
	start := time.Date(2025, 12, 15, 15, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 15, 15, 30, 0, 0, time.UTC)
	return []store.CalendarEvent{{
		ID:        uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479"),
		Title:     &title,
		StartAt:   &start,
		EndAt:     &end,
		CreatedAt: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC),
	}}
}

func currentETag(h *Handler, repo *fakeEventRepo) string {
	etag, _ := h.fingerprint(repo.rows)
	return etag
}

func TestFingerprintStability(t *testing.T) {
	repo := &fakeEventRepo{rows: sampleRows()}
	h := newTestHandler(repo)

	first, _ := h.fingerprint(repo.rows)
	second, _ := h.fingerprint(repo.rows)
	if first != second {
		t.Error("identical snapshots must produce identical fingerprints")
	}

	// changing the newest updated_at changes the fingerprint
	bumped := sampleRows()
	bumped[0].UpdatedAt = bumped[0].UpdatedAt.Add(time.Minute)
	changed, _ := h.fingerprint(bumped)
	if changed == first {
		t.Error("newer updated_at must change the fingerprint")
	}

	// changing the row count changes the fingerprint
	grown := append(sampleRows(), sampleRows()[0])
	counted, _ := h.fingerprint(grown)
	if counted == first {
		t.Error("different row count must change the fingerprint")
	}

	if len(first) != 64 {
		t.Errorf("fingerprint should be 64 hex chars (SHA-256), got %d", len(first))
	}
}

func TestFingerprintEmptySnapshotUsesNow(t *testing.T) {
	repo := &fakeEventRepo{}
	h := newTestHandler(repo)

	etag, lastMod := h.fingerprint(nil)
	if etag == "" {
		t.Fatal("empty snapshot must still produce a fingerprint")
	}
	if !lastMod.Equal(fixedNow) {
		t.Errorf("lastMod = %v, want fixed now", lastMod)
	}
}

func TestCanonicalRedirectsWithoutVersion(t *testing.T) {
	repo := &fakeEventRepo{rows: sampleRows()}
	h := newTestHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/calendar.ics", nil)
	rec := httptest.NewRecorder()
	h.Canonical(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	want := "/calendar.ics?v=" + currentETag(h, repo)
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("redirect must not be cacheable, got Cache-Control %q", cc)
	}
}

func TestCanonicalRedirectPreservesQuery(t *testing.T) {
	repo := &fakeEventRepo{rows: sampleRows()}
	h := newTestHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/calendar.ics?limit=5&v=stale", nil)
	rec := httptest.NewRecorder()
	h.Canonical(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if got := loc.Query().Get("limit"); got != "5" {
		t.Errorf("limit query param dropped, got %q", got)
	}
	if got := loc.Query().Get("v"); got != currentETag(h, repo) {
		t.Errorf("v = %q, want current fingerprint", got)
	}
}

func TestCanonicalServesWithFreshVersion(t *testing.T) {
	repo := &fakeEventRepo{rows: sampleRows()}
	h := newTestHandler(repo)
	etag := currentETag(h, repo)

	req := httptest.NewRequest(http.MethodGet, "/calendar.ics?v="+etag, nil)
	rec := httptest.NewRecorder()
	h.Canonical(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/calendar; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := rec.Header().Get("ETag"); got != `"`+etag+`"` {
		t.Errorf("ETag = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `inline; filename="PossibleNow Events.ics"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store, max-age=0, must-revalidate" {
		t.Errorf("Cache-Control = %q", got)
	}
	if lm := rec.Header().Get("Last-Modified"); lm != "Wed, 10 Dec 2025 00:00:00 GMT" {
		t.Errorf("Last-Modified = %q", lm)
	}

	body, _ := io.ReadAll(rec.Body)
	doc := string(body)
	if !strings.Contains(doc, "DTSTART:20251215T150000Z\r\n") || !strings.Contains(doc, "DTEND:20251215T153000Z\r\n") {
		t.Errorf("rendered document missing expected times:\n%s", doc)
	}
	if !strings.Contains(doc, "SUMMARY:Standup\r\n") {
		t.Errorf("rendered document missing summary:\n%s", doc)
	}
}

// The redirect branch runs before the validator check on the canonical
// path: a stale v always redirects, even when If-None-Match matches.
func TestCanonicalRedirectBeatsValidator(t *testing.T) {
	repo := &fakeEventRepo{rows: sampleRows()}
	h := newTestHandler(repo)
	etag := currentETag(h, repo)

	req := httptest.NewRequest(http.MethodGet, "/calendar.ics", nil)
	req.Header.Set("If-None-Match", `"`+etag+`"`)
	rec := httptest.NewRecorder()
	h.Canonical(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 (redirect checked before validator)", rec.Code)
	}
}

func TestCanonicalNotModifiedWithFreshVersion(t *testing.T) {
	repo := &fakeEventRepo{rows: sampleRows()}
	h := newTestHandler(repo)
	etag := currentETag(h, repo)

	req := httptest.NewRequest(http.MethodGet, "/calendar.ics?v="+etag, nil)
	req.Header.Set("If-None-Match", `"`+etag+`"`)
	rec := httptest.NewRecorder()
	h.Canonical(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Error("304 body must be empty")
	}
}

func TestSlugNotModified(t *testing.T) {
	repo := &fakeEventRepo{rows: sampleRows()}
	h := newTestHandler(repo)
	etag := currentETag(h, repo)

	req := httptest.NewRequest(http.MethodGet, "/calendar/v1.ics", nil)
	req.Header.Set("If-None-Match", etag) // bare form accepted too
	rec := httptest.NewRecorder()
	h.Slug(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Error("304 body must be empty")
	}
}

func TestSlugNeverRedirects(t *testing.T) {
	repo := &fakeEventRepo{rows: sampleRows()}
	h := newTestHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/calendar/v1.ics", nil)
	rec := httptest.NewRecorder()
	h.Slug(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (slug paths never redirect)", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "BEGIN:VCALENDAR\r\n") {
		t.Error("slug path must serve the rendered document")
	}
}

func TestLimitClamping(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 2000},
		{"?limit=50", 50},
		{"?limit=0", 1},
		{"?limit=-3", 1},
		{"?limit=999999", 10000},
		{"?limit=abc", 2000},
	}
	for _, tt := range tests {
		repo := &fakeEventRepo{rows: sampleRows()}
		h := newTestHandler(repo)

		req := httptest.NewRequest(http.MethodGet, "/calendar/v1.ics"+tt.query, nil)
		h.Slug(httptest.NewRecorder(), req)

		if repo.lastLimit != tt.want {
			t.Errorf("query %q: limit = %d, want %d", tt.query, repo.lastLimit, tt.want)
		}
	}
}

func TestFeedStoreErrorIs500(t *testing.T) {
	repo := &fakeEventRepo{err: errors.New("connection refused")}
	h := newTestHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/calendar.ics", nil)
	rec := httptest.NewRecorder()
	h.Canonical(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestEmptyFeedStillRenders(t *testing.T) {
	repo := &fakeEventRepo{}
	h := newTestHandler(repo)
	etag := currentETag(h, repo)

	req := httptest.NewRequest(http.MethodGet, "/calendar.ics?v="+etag, nil)
	rec := httptest.NewRecorder()
	h.Canonical(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	doc := rec.Body.String()
	if !strings.HasPrefix(doc, "BEGIN:VCALENDAR\r\n") || !strings.HasSuffix(doc, "END:VCALENDAR\r\n") {
		t.Errorf("empty feed must still be a valid calendar:\n%s", doc)
	}
	if strings.Contains(doc, "BEGIN:VEVENT") {
		t.Error("empty feed must not contain events")
	}
}
