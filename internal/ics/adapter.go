package ics

import (
	"strings"
	"time"

	"github.com/possiblenow/calfeed/internal/store"
)

// FromRecord maps a stored calendar event to its ICS form.
//
// All-day events become date-only values with an exclusive end date (end
// date when present, otherwise start + 1 day). Timed events pass their
// instants through; an event missing its start still renders a minimally
// valid block by falling back to DTSTAMP, so one bad row cannot break the
// whole feed. now is used only when both audit timestamps are absent, which
// keeps rendering deterministic under a fixed clock.
func FromRecord(e *store.CalendarEvent, now time.Time) Event {
	uid := e.ID.String()
	if e.ICalUID != nil && *e.ICalUID != "" {
		uid = *e.ICalUID
	}

	dtstamp := e.UpdatedAt
	if dtstamp.IsZero() {
		dtstamp = e.CreatedAt
	}
	if dtstamp.IsZero() {
		dtstamp = now
	}

	ev := Event{
		UID:         uid,
		DTStamp:     dtstamp,
		Summary:     deref(e.Title),
		Description: deref(e.Description),
		Location:    deref(e.Location),
		Status:      deref(e.Status),
		Transp:      deref(e.Transparency),
		URL:         eventURL(e),
	}

	if len(e.RecurrenceRules) > 0 {
		ev.RRule = strings.TrimPrefix(e.RecurrenceRules[0], "RRULE:")
	}

	if e.IsAllDay && e.StartAt != nil {
		ev.DTStart = Date(*e.StartAt)
		end := e.StartAt.AddDate(0, 0, 1) // exclusive end, per date-only convention
		if e.EndAt != nil {
			end = *e.EndAt
		}
		endDate := Date(end)
		ev.DTEnd = &endDate
		return ev
	}

	if e.StartAt != nil {
		ev.DTStart = Instant(*e.StartAt)
	} else {
		ev.DTStart = Instant(dtstamp)
	}
	if e.EndAt != nil {
		end := Instant(*e.EndAt)
		ev.DTEnd = &end
	}
	return ev
}

func eventURL(e *store.CalendarEvent) string {
	if e.HTMLLink != nil && *e.HTMLLink != "" {
		return *e.HTMLLink
	}
	return deref(e.WebLink)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
