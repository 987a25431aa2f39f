package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/possiblenow/calfeed/internal/store"
)

// patch preserves JSON key presence: a key that is absent leaves the field
// untouched, while an explicit null clears it.
type patch map[string]json.RawMessage

// FieldIssue reports a patch field that was ignored and why, so callers can
// tell "ignored due to bad input" apart from "applied".
type FieldIssue struct {
	Field  string
	Reason string
}

// applyPatch copies recognized payload keys onto the event. Returns issues
// for local-time conversions that could not be applied (the prior values
// stay intact; clients can resubmit with absolute start_at/end_at instead)
// and an error for structurally invalid field values.
func applyPatch(e *store.CalendarEvent, p patch) ([]FieldIssue, error) {
	stringFields := map[string]**string{
		"provider":                 &e.Provider,
		"external_id":              &e.ExternalID,
		"ical_uid":                 &e.ICalUID,
		"etag":                     &e.ETag,
		"change_key":               &e.ChangeKey,
		"title":                    &e.Title,
		"description":              &e.Description,
		"description_content_type": &e.DescriptionContentType,
		"location":                 &e.Location,
		"start_timezone":           &e.StartTimezone,
		"end_timezone":             &e.EndTimezone,
		"status":                   &e.Status,
		"show_as":                  &e.ShowAs,
		"transparency":             &e.Transparency,
		"visibility":               &e.Visibility,
		"sensitivity":              &e.Sensitivity,
		"importance":               &e.Importance,
		"online_meeting_url":       &e.OnlineMeetingURL,
		"hangout_link":             &e.HangoutLink,
		"html_link":                &e.HTMLLink,
		"web_link":                 &e.WebLink,
		"series_master_id":         &e.SeriesMasterID,
		"color_id":                 &e.ColorID,
	}
	for key, dst := range stringFields {
		if err := p.setString(key, dst); err != nil {
			return nil, err
		}
	}

	rawFields := map[string]*json.RawMessage{
		"location_details":    &e.LocationDetails,
		"organizer":           &e.Organizer,
		"creator":             &e.Creator,
		"attendees":           &e.Attendees,
		"recurrence":          &e.Recurrence,
		"reminders":           &e.Reminders,
		"conference_data":     &e.ConferenceData,
		"source":              &e.Source,
		"attachments":         &e.Attachments,
		"google":              &e.Google,
		"microsoft":           &e.Microsoft,
		"extended_properties": &e.ExtendedProperties,
	}
	for key, dst := range rawFields {
		p.setRaw(key, dst)
	}

	if err := p.setStringSlice("recurrence_rules", &e.RecurrenceRules); err != nil {
		return nil, err
	}
	if err := p.setStringSlice("categories", &e.Categories); err != nil {
		return nil, err
	}
	if err := p.setBoolPtr("reminders_use_default", &e.RemindersUseDefault); err != nil {
		return nil, err
	}
	if err := p.setBoolPtr("is_reminder_on", &e.IsReminderOn); err != nil {
		return nil, err
	}
	if err := p.setInt32Ptr("reminder_minutes_before_start", &e.ReminderMinutesBeforeStart); err != nil {
		return nil, err
	}

	// Local wall-clock time plus IANA zone converts to a stored UTC instant.
	// Conversion failures are reported, not applied.
	var issues []FieldIssue
	issues = p.applyLocalTime("start_local", "start_timezone", &e.StartAt, issues)
	issues = p.applyLocalTime("end_local", "end_timezone", &e.EndAt, issues)

	boolFields := map[string]*bool{
		"is_all_day":        &e.IsAllDay,
		"is_cancelled":      &e.IsCancelled,
		"is_draft":          &e.IsDraft,
		"is_online_meeting": &e.IsOnlineMeeting,
	}
	for key, dst := range boolFields {
		if err := p.setBool(key, dst); err != nil {
			return nil, err
		}
	}

	// Absolute instants win over derived local-time values.
	timeFields := map[string]**time.Time{
		"start_at":            &e.StartAt,
		"end_at":              &e.EndAt,
		"original_start_at":   &e.OriginalStartAt,
		"provider_created_at": &e.ProviderCreatedAt,
		"provider_updated_at": &e.ProviderUpdatedAt,
	}
	for key, dst := range timeFields {
		if err := p.setTime(key, dst); err != nil {
			return nil, err
		}
	}

	return issues, nil
}

func (p patch) isNull(key string) bool {
	return string(p[key]) == "null"
}

func (p patch) setString(key string, dst **string) error {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	if p.isNull(key) {
		*dst = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	*dst = &s
	return nil
}

func (p patch) setRaw(key string, dst *json.RawMessage) {
	raw, ok := p[key]
	if !ok {
		return
	}
	if p.isNull(key) {
		*dst = nil
		return
	}
	*dst = raw
}

func (p patch) setStringSlice(key string, dst *[]string) error {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	if p.isNull(key) {
		*dst = nil
		return nil
	}
	var s []string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	*dst = s
	return nil
}

func (p patch) setBool(key string, dst *bool) error {
	raw, ok := p[key]
	if !ok || p.isNull(key) {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	*dst = b
	return nil
}

func (p patch) setBoolPtr(key string, dst **bool) error {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	if p.isNull(key) {
		*dst = nil
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	*dst = &b
	return nil
}

func (p patch) setInt32Ptr(key string, dst **int32) error {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	if p.isNull(key) {
		*dst = nil
		return nil
	}
	var n int32
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	*dst = &n
	return nil
}

func (p patch) setTime(key string, dst **time.Time) error {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	if p.isNull(key) {
		*dst = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	t, err := parseInstant(s)
	if err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	*dst = &t
	return nil
}

func (p patch) applyLocalTime(localKey, tzKey string, dst **time.Time, issues []FieldIssue) []FieldIssue {
	local := p.stringValue(localKey)
	tz := p.stringValue(tzKey)
	if local == "" || tz == "" {
		return issues
	}
	t, err := localToUTC(local, tz)
	if err != nil {
		return append(issues, FieldIssue{Field: localKey, Reason: err.Error()})
	}
	*dst = &t
	return issues
}

// stringValue extracts a string payload value, or "" when absent/non-string.
func (p patch) stringValue(key string) string {
	raw, ok := p[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func localToUTC(localValue, tzName string) (time.Time, error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return time.Time{}, fmt.Errorf("unknown timezone %q: %w", tzName, err)
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, localValue, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid local datetime %q", localValue)
}

// parseInstant accepts RFC 3339 instants and naive datetimes, which are
// interpreted as UTC.
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}
