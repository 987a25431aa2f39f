package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/possiblenow/calfeed/internal/store"
)

// memEventRepo is an in-memory EventRepository for handler tests.
type memEventRepo struct {
	events map[uuid.UUID]*store.CalendarEvent
	err    error
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: map[uuid.UUID]*store.CalendarEvent{}}
}

func (m *memEventRepo) List(ctx context.Context, limit int) ([]store.CalendarEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]store.CalendarEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e)
	}
	return out, nil
}

func (m *memEventRepo) Create(ctx context.Context, e *store.CalendarEvent) (*store.CalendarEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	now := time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC)
	e.CreatedAt, e.UpdatedAt = now, now
	m.events[e.ID] = e
	return e, nil
}

func (m *memEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.CalendarEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	e, ok := m.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *memEventRepo) Update(ctx context.Context, e *store.CalendarEvent) (*store.CalendarEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.events[e.ID]; !ok {
		return nil, store.ErrNotFound
	}
	e.UpdatedAt = e.UpdatedAt.Add(time.Minute)
	m.events[e.ID] = e
	return e, nil
}

func (m *memEventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func newTestRouter(repo store.EventRepository) chi.Router {
	h := NewHandler(&store.Store{Events: repo})
	r := chi.NewRouter()
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Post("/", h.CreateEvent)
		r.Get("/{id}", h.GetEvent)
		r.Patch("/{id}", h.PatchEvent)
		r.Delete("/{id}", h.DeleteEvent)
	})
	return r
}

func doRequest(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateEvent(t *testing.T) {
	repo := newMemEventRepo()
	r := newTestRouter(repo)

	rec := doRequest(t, r, http.MethodPost, "/events", `{
		"title": "Quarterly planning",
		"start_at": "2025-12-15T15:00:00Z",
		"end_at": "2025-12-15T16:00:00Z"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var got store.CalendarEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEqual(t, uuid.Nil, got.ID)
	require.NotNil(t, got.Title)
	assert.Equal(t, "Quarterly planning", *got.Title)
	assert.False(t, got.CreatedAt.IsZero())

	assert.Len(t, repo.events, 1)
}

func TestCreateEventInvalidJSON(t *testing.T) {
	r := newTestRouter(newMemEventRepo())

	rec := doRequest(t, r, http.MethodPost, "/events", `{"title":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_json", body["error"])
}

func TestCreateEventWrongFieldType(t *testing.T) {
	r := newTestRouter(newMemEventRepo())

	rec := doRequest(t, r, http.MethodPost, "/events", `{"title":123}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_payload", body["error"])
}

func TestGetEvent(t *testing.T) {
	repo := newMemEventRepo()
	title := "Standup"
	id := uuid.New()
	repo.events[id] = &store.CalendarEvent{ID: id, Title: &title}
	r := newTestRouter(repo)

	rec := doRequest(t, r, http.MethodGet, "/events/"+id.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got store.CalendarEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
}

func TestGetEventNotFound(t *testing.T) {
	r := newTestRouter(newMemEventRepo())

	rec := doRequest(t, r, http.MethodGet, "/events/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEventMalformedID(t *testing.T) {
	r := newTestRouter(newMemEventRepo())

	// a malformed id reads the same as a missing record
	rec := doRequest(t, r, http.MethodGet, "/events/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchEvent(t *testing.T) {
	repo := newMemEventRepo()
	title := "Old"
	location := "Room 4"
	id := uuid.New()
	repo.events[id] = &store.CalendarEvent{ID: id, Title: &title, Location: &location}
	r := newTestRouter(repo)

	rec := doRequest(t, r, http.MethodPatch, "/events/"+id.String(), `{"title":"New","location":null}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got store.CalendarEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Title)
	assert.Equal(t, "New", *got.Title)
	assert.Nil(t, got.Location)

	stored := repo.events[id]
	require.NotNil(t, stored.Title)
	assert.Equal(t, "New", *stored.Title)
}

func TestPatchEventNotFound(t *testing.T) {
	r := newTestRouter(newMemEventRepo())

	rec := doRequest(t, r, http.MethodPatch, "/events/"+uuid.NewString(), `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchEventBadLocalTimeStillSucceeds(t *testing.T) {
	repo := newMemEventRepo()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	repo.events[id] = &store.CalendarEvent{ID: id, StartAt: &start}
	r := newTestRouter(repo)

	rec := doRequest(t, r, http.MethodPatch, "/events/"+id.String(), `{
		"title": "still applied",
		"start_local": "2025-12-15T10:00:00",
		"start_timezone": "Nowhere/Countyshire"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got store.CalendarEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Title)
	assert.Equal(t, "still applied", *got.Title)
	require.NotNil(t, got.StartAt)
	assert.True(t, start.Equal(*got.StartAt))
}

func TestDeleteEvent(t *testing.T) {
	repo := newMemEventRepo()
	id := uuid.New()
	repo.events[id] = &store.CalendarEvent{ID: id}
	r := newTestRouter(repo)

	rec := doRequest(t, r, http.MethodDelete, "/events/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.events)

	rec = doRequest(t, r, http.MethodDelete, "/events/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEvents(t *testing.T) {
	repo := newMemEventRepo()
	id := uuid.New()
	repo.events[id] = &store.CalendarEvent{ID: id}
	r := newTestRouter(repo)

	rec := doRequest(t, r, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []store.CalendarEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 1)
}

func TestListEventsEmptyIsArray(t *testing.T) {
	r := newTestRouter(newMemEventRepo())

	rec := doRequest(t, r, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestListEventsStoreError(t *testing.T) {
	repo := newMemEventRepo()
	repo.err = errors.New("boom")
	r := newTestRouter(repo)

	rec := doRequest(t, r, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body["error"])
}
