package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// eventColumns lists calendar_events columns in scan order. The insert and
// update statements are derived from this list so the three stay in sync.
var eventColumns = []string{
	"id",
	"provider",
	"external_id",
	"ical_uid",
	"etag",
	"change_key",
	"title",
	"description",
	"description_content_type",
	"location",
	"location_details",
	"start_at",
	"end_at",
	"start_timezone",
	"end_timezone",
	"is_all_day",
	"original_start_at",
	"status",
	"show_as",
	"transparency",
	"visibility",
	"sensitivity",
	"importance",
	"is_cancelled",
	"is_draft",
	"is_online_meeting",
	"organizer",
	"creator",
	"attendees",
	"recurrence_rules",
	"recurrence",
	"series_master_id",
	"reminders_use_default",
	"reminder_minutes_before_start",
	"is_reminder_on",
	"reminders",
	"online_meeting_url",
	"hangout_link",
	"conference_data",
	"html_link",
	"web_link",
	"source",
	"color_id",
	"categories",
	"attachments",
	"google",
	"microsoft",
	"extended_properties",
	"created_at",
	"updated_at",
	"provider_created_at",
	"provider_updated_at",
}

var (
	selectEventSQL = "SELECT " + strings.Join(eventColumns, ", ") + " FROM calendar_events"
	insertEventSQL = buildInsertSQL()
	updateEventSQL = buildUpdateSQL()
)

// writableColumns excludes the audit timestamps, which the database owns.
func writableColumns() []string {
	cols := make([]string, 0, len(eventColumns))
	for _, c := range eventColumns {
		if c == "created_at" || c == "updated_at" {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

func buildInsertSQL() string {
	cols := writableColumns()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO calendar_events (%s) VALUES (%s) RETURNING created_at, updated_at",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}

func buildUpdateSQL() string {
	cols := writableColumns()[1:] // skip id
	assignments := make([]string, len(cols))
	for i, c := range cols {
		assignments[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	return fmt.Sprintf(
		"UPDATE calendar_events SET %s, updated_at = NOW() WHERE id = $%d RETURNING updated_at",
		strings.Join(assignments, ", "), len(cols)+1)
}

// scanTargets returns field pointers matching eventColumns order.
func scanTargets(e *CalendarEvent) []any {
	return []any{
		&e.ID,
		&e.Provider,
		&e.ExternalID,
		&e.ICalUID,
		&e.ETag,
		&e.ChangeKey,
		&e.Title,
		&e.Description,
		&e.DescriptionContentType,
		&e.Location,
		&e.LocationDetails,
		&e.StartAt,
		&e.EndAt,
		&e.StartTimezone,
		&e.EndTimezone,
		&e.IsAllDay,
		&e.OriginalStartAt,
		&e.Status,
		&e.ShowAs,
		&e.Transparency,
		&e.Visibility,
		&e.Sensitivity,
		&e.Importance,
		&e.IsCancelled,
		&e.IsDraft,
		&e.IsOnlineMeeting,
		&e.Organizer,
		&e.Creator,
		&e.Attendees,
		&e.RecurrenceRules,
		&e.Recurrence,
		&e.SeriesMasterID,
		&e.RemindersUseDefault,
		&e.ReminderMinutesBeforeStart,
		&e.IsReminderOn,
		&e.Reminders,
		&e.OnlineMeetingURL,
		&e.HangoutLink,
		&e.ConferenceData,
		&e.HTMLLink,
		&e.WebLink,
		&e.Source,
		&e.ColorID,
		&e.Categories,
		&e.Attachments,
		&e.Google,
		&e.Microsoft,
		&e.ExtendedProperties,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.ProviderCreatedAt,
		&e.ProviderUpdatedAt,
	}
}

// writeValues returns field values matching writableColumns order.
func writeValues(e *CalendarEvent) []any {
	return []any{
		e.ID,
		e.Provider,
		e.ExternalID,
		e.ICalUID,
		e.ETag,
		e.ChangeKey,
		e.Title,
		e.Description,
		e.DescriptionContentType,
		e.Location,
		e.LocationDetails,
		e.StartAt,
		e.EndAt,
		e.StartTimezone,
		e.EndTimezone,
		e.IsAllDay,
		e.OriginalStartAt,
		e.Status,
		e.ShowAs,
		e.Transparency,
		e.Visibility,
		e.Sensitivity,
		e.Importance,
		e.IsCancelled,
		e.IsDraft,
		e.IsOnlineMeeting,
		e.Organizer,
		e.Creator,
		e.Attendees,
		e.RecurrenceRules,
		e.Recurrence,
		e.SeriesMasterID,
		e.RemindersUseDefault,
		e.ReminderMinutesBeforeStart,
		e.IsReminderOn,
		e.Reminders,
		e.OnlineMeetingURL,
		e.HangoutLink,
		e.ConferenceData,
		e.HTMLLink,
		e.WebLink,
		e.Source,
		e.ColorID,
		e.Categories,
		e.Attachments,
		e.Google,
		e.Microsoft,
		e.ExtendedProperties,
		e.ProviderCreatedAt,
		e.ProviderUpdatedAt,
	}
}

// eventRepo implements EventRepository.
type eventRepo struct {
	db DB
}

func (r *eventRepo) Create(ctx context.Context, event *CalendarEvent) (*CalendarEvent, error) {
	defer observeDB(ctx, "db.events.create")()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx, insertEventSQL, writeValues(event)...)
	if err := row.Scan(&event.CreatedAt, &event.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

func (r *eventRepo) GetByID(ctx context.Context, id uuid.UUID) (*CalendarEvent, error) {
	defer observeDB(ctx, "db.events.get")()

	var e CalendarEvent
	row := r.db.QueryRow(ctx, selectEventSQL+" WHERE id = $1", id)
	if err := row.Scan(scanTargets(&e)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return &e, nil
}

func (r *eventRepo) Update(ctx context.Context, event *CalendarEvent) (*CalendarEvent, error) {
	defer observeDB(ctx, "db.events.update")()

	args := append(writeValues(event)[1:], event.ID)
	row := r.db.QueryRow(ctx, updateEventSQL, args...)
	if err := row.Scan(&event.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update event %s: %w", event.ID, err)
	}
	return event, nil
}

func (r *eventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "db.events.delete")()

	tag, err := r.db.Exec(ctx, "DELETE FROM calendar_events WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepo) List(ctx context.Context, limit int) ([]CalendarEvent, error) {
	defer observeDB(ctx, "db.events.list")()

	rows, err := r.db.Query(ctx,
		selectEventSQL+" ORDER BY start_at ASC NULLS LAST, created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []CalendarEvent
	for rows.Next() {
		var e CalendarEvent
		if err := rows.Scan(scanTargets(&e)...); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
