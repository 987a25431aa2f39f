package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CalendarEvent is a superset of the Google Calendar and Microsoft Graph
// event shapes. Fields used for querying and sorting get typed columns;
// nested provider payloads stay raw JSONB so nothing is lost on ingest.
type CalendarEvent struct {
	// Identity
	ID         uuid.UUID `json:"id"`
	Provider   *string   `json:"provider"`    // "google" | "microsoft" | null
	ExternalID *string   `json:"external_id"` // provider event id
	ICalUID    *string   `json:"ical_uid"`    // iCalUID / iCalUId
	ETag       *string   `json:"etag"`        // Google etag
	ChangeKey  *string   `json:"change_key"`  // Outlook changeKey

	// Core semantics
	Title                  *string         `json:"title"` // summary/subject
	Description            *string         `json:"description"`
	DescriptionContentType *string         `json:"description_content_type"` // "text" | "html"
	Location               *string         `json:"location"`
	LocationDetails        json.RawMessage `json:"location_details"` // address/coords, MS locations[]

	// Time
	StartAt         *time.Time `json:"start_at"`
	EndAt           *time.Time `json:"end_at"`
	StartTimezone   *string    `json:"start_timezone"`
	EndTimezone     *string    `json:"end_timezone"`
	IsAllDay        bool       `json:"is_all_day"`
	OriginalStartAt *time.Time `json:"original_start_at"` // Google originalStartTime

	// Status / visibility / availability
	Status       *string `json:"status"`       // confirmed/cancelled/tentative
	ShowAs       *string `json:"show_as"`      // MS showAs
	Transparency *string `json:"transparency"` // Google transparency: opaque/transparent
	Visibility   *string `json:"visibility"`   // Google visibility
	Sensitivity  *string `json:"sensitivity"`  // MS sensitivity

	// Importance & flags
	Importance      *string `json:"importance"` // MS importance: low/normal/high
	IsCancelled     bool    `json:"is_cancelled"`
	IsDraft         bool    `json:"is_draft"`
	IsOnlineMeeting bool    `json:"is_online_meeting"`

	// People
	Organizer json.RawMessage `json:"organizer"`
	Creator   json.RawMessage `json:"creator"`
	Attendees json.RawMessage `json:"attendees"`

	// Recurrence
	RecurrenceRules []string        `json:"recurrence_rules"` // RRULE-like strings
	Recurrence      json.RawMessage `json:"recurrence"`       // MS recurrence object / Google details
	SeriesMasterID  *string         `json:"series_master_id"` // MS seriesMasterId

	// Reminders / notifications
	RemindersUseDefault        *bool           `json:"reminders_use_default"`
	ReminderMinutesBeforeStart *int32          `json:"reminder_minutes_before_start"` // MS reminderMinutesBeforeStart
	IsReminderOn               *bool           `json:"is_reminder_on"`
	Reminders                  json.RawMessage `json:"reminders"` // Google reminder overrides

	// Conferencing / meeting links
	OnlineMeetingURL *string         `json:"online_meeting_url"` // MS onlineMeeting.joinUrl
	HangoutLink      *string         `json:"hangout_link"`       // Google hangoutLink
	ConferenceData   json.RawMessage `json:"conference_data"`    // Google conferenceData / MS onlineMeeting

	// Links / source
	HTMLLink *string         `json:"html_link"` // Google htmlLink
	WebLink  *string         `json:"web_link"`  // MS webLink
	Source   json.RawMessage `json:"source"`    // Google source

	// Classification / appearance
	ColorID    *string  `json:"color_id"` // Google colorId
	Categories []string `json:"categories"`

	// Attachments
	Attachments json.RawMessage `json:"attachments"`

	// Extended/provider-specific raw payloads
	Google             json.RawMessage `json:"google"`
	Microsoft          json.RawMessage `json:"microsoft"`
	ExtendedProperties json.RawMessage `json:"extended_properties"` // Google extendedProperties

	// Audit
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ProviderCreatedAt *time.Time `json:"provider_created_at"`
	ProviderUpdatedAt *time.Time `json:"provider_updated_at"`
}
