// Package ics renders stored calendar events as an RFC 5545 iCalendar
// document. Rendering is pure: no I/O, no clock reads, deterministic for
// identical input.
package ics

import (
	"strings"
	"time"
)

const foldLimit = 75

// DateTime is either a point in time or a calendar date, depending on how
// the source event is stored. Date-only values render as VALUE=DATE
// properties; instants render as UTC date-times.
type DateTime struct {
	t        time.Time
	dateOnly bool
}

// Instant wraps a point in time.
func Instant(t time.Time) DateTime {
	return DateTime{t: t}
}

// Date wraps the calendar date of t (its UTC date portion).
func Date(t time.Time) DateTime {
	return DateTime{t: t, dateOnly: true}
}

// DateOnly reports whether the value is a calendar date.
func (d DateTime) DateOnly() bool { return d.dateOnly }

// Time returns the underlying instant.
func (d DateTime) Time() time.Time { return d.t }

// Event is the renderer's canonical input unit: one VEVENT worth of data,
// already normalized by the record adapter. Empty optional fields are
// omitted from the output entirely.
type Event struct {
	UID     string
	DTStamp time.Time
	DTStart DateTime
	DTEnd   *DateTime

	Summary     string
	Description string
	Location    string
	Status      string
	Transp      string
	URL         string
	RRule       string // "FREQ=..." form, no "RRULE:" prefix
}

// Render produces a complete VCALENDAR document for the given events, in the
// order supplied. Every logical line is CRLF-terminated and folded to the
// 75-character limit; the document ends with a trailing CRLF.
func Render(events []Event, prodID, calName string) string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + prodID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		// Apple Calendar, Google Calendar import, and friends read
		// X-WR-CALNAME; NAME is the RFC 7986 equivalent.
		"X-WR-CALNAME:" + EscapeText(calName),
		"NAME:" + EscapeText(calName),
	}

	for i := range events {
		lines = appendEvent(lines, &events[i])
	}
	lines = append(lines, "END:VCALENDAR")

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(foldLine(line))
		sb.WriteString("\r\n")
	}
	return sb.String()
}

func appendEvent(lines []string, e *Event) []string {
	lines = append(lines,
		"BEGIN:VEVENT",
		"UID:"+EscapeText(e.UID),
		"DTSTAMP:"+formatUTC(e.DTStamp),
		formatDateTimeProp("DTSTART", e.DTStart),
	)

	if e.DTEnd != nil {
		lines = append(lines, formatDateTimeProp("DTEND", *e.DTEnd))
	}
	if e.Summary != "" {
		lines = append(lines, "SUMMARY:"+EscapeText(e.Summary))
	}
	if e.Description != "" {
		lines = append(lines, "DESCRIPTION:"+EscapeText(e.Description))
	}
	if e.Location != "" {
		lines = append(lines, "LOCATION:"+EscapeText(e.Location))
	}
	if e.Status != "" {
		lines = append(lines, "STATUS:"+strings.ToUpper(EscapeText(e.Status)))
	}
	if e.Transp != "" {
		lines = append(lines, "TRANSP:"+strings.ToUpper(EscapeText(e.Transp)))
	}
	if e.URL != "" {
		lines = append(lines, "URL:"+EscapeText(e.URL))
	}
	if e.RRule != "" {
		// Passed through verbatim; rule grammar is not validated here.
		lines = append(lines, "RRULE:"+e.RRule)
	}

	return append(lines, "END:VEVENT")
}

func formatDateTimeProp(prop string, d DateTime) string {
	if d.dateOnly {
		return prop + ";VALUE=DATE:" + d.t.UTC().Format("20060102")
	}
	return prop + ":" + formatUTC(d.t)
}

func formatUTC(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// EscapeText escapes a free-text property value per RFC 5545 §3.3.11.
// Backslashes are escaped first so the escape characters inserted by the
// later replacements are not themselves re-escaped.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\r\n", `\n`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\n`)
	return s
}

// foldLine splits a logical line longer than 75 characters into physical
// lines joined by CRLF plus a single leading space, per RFC 5545 §3.1.
// The limit is measured in characters rather than octets, a deliberate
// approximation that holds for ASCII output.
func foldLine(line string) string {
	runes := []rune(line)
	if len(runes) <= foldLimit {
		return line
	}

	var sb strings.Builder
	for len(runes) > foldLimit {
		sb.WriteString(string(runes[:foldLimit]))
		sb.WriteString("\r\n")
		runes = append([]rune{' '}, runes[foldLimit:]...)
	}
	sb.WriteString(string(runes))
	return sb.String()
}
