package store

import (
	"context"

	"github.com/google/uuid"
)

// EventRepository defines persistence operations for calendar events.
//
// List applies the feed ordering contract: start time ascending with nulls
// last, then newest-created first. Callers pass the (already clamped) limit.
type EventRepository interface {
	Create(ctx context.Context, event *CalendarEvent) (*CalendarEvent, error)
	GetByID(ctx context.Context, id uuid.UUID) (*CalendarEvent, error)
	Update(ctx context.Context, event *CalendarEvent) (*CalendarEvent, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit int) ([]CalendarEvent, error)
}
