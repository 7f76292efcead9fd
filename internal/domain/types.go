// Package domain holds the entities shared across PulseArc's capture,
// classification and storage layers. Keeping them in one package avoids
// import cycles between internal/activity, internal/classification,
// internal/storage and internal/scheduler.
package domain

import "time"

// ActivityContext identifies the foreground application/window a snapshot
// was captured from.
type ActivityContext struct {
	AppName     string `json:"app_name"`
	WindowTitle string `json:"window_title"`
	BundleID    string `json:"bundle_id,omitempty"`
	URL         string `json:"url,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
}

// ActivitySnapshot is a single point-in-time observation produced by an
// OsEventListener or PollingListener.
type ActivitySnapshot struct {
	ID           string    `json:"id" db:"id"`
	CapturedAt   time.Time `json:"captured_at" db:"captured_at"`
	Context      ActivityContext
	IdleSeconds  int64  `json:"idle_seconds" db:"idle_seconds"`
	KeywordsRaw  string `json:"keywords_raw,omitempty" db:"keywords_raw"`
}

// TimeRange is an inclusive [StartTS, EndTS) window expressed as Unix seconds.
type TimeRange struct {
	StartTS  int64 `json:"start_ts"`
	EndTS    int64 `json:"end_ts"`
	IsAllDay bool  `json:"is_all_day"`
}

// ActivityBreakdown is one app's share of a ProposedBlock's duration.
type ActivityBreakdown struct {
	Name         string  `json:"name"`
	DurationSecs int64   `json:"duration_secs"`
	Percentage   float64 `json:"percentage"`
}

// ProposedBlock is a contiguous span of activity awaiting classification
// into a WBS element.
type ProposedBlock struct {
	ID          string              `json:"id" db:"id"`
	When        TimeRange           `json:"when"`
	SnapshotIDs []string            `json:"snapshot_ids"`
	Activities  []ActivityBreakdown `json:"activities"`
	Status      string              `json:"status" db:"status"` // pending, classified, discarded
}

// BlockEvidence is the deduplicated signal set extracted from a
// ProposedBlock's snapshots plus overlapping calendar events, handed to the
// LLM classifier as grounding context.
type BlockEvidence struct {
	BlockID             string              `json:"block_id"`
	StartTS             int64               `json:"start_ts"`
	EndTS               int64               `json:"end_ts"`
	DurationSecs        int64               `json:"duration_secs"`
	Activities          []ActivityBreakdown `json:"activities"`
	Apps                []string            `json:"apps"`
	WindowTitles        []string            `json:"window_titles"`
	Keywords            []string            `json:"keywords"`
	URLDomains          []string            `json:"url_domains"`
	FilePaths           []string            `json:"file_paths"`
	CalendarEventTitles []string            `json:"calendar_event_titles"`
	AttendeeDomains     []string            `json:"attendee_domains"`
	VDRProviders        []string            `json:"vdr_providers"`
	MeetingPlatforms    []string            `json:"meeting_platforms"`
	HasRecurringMeeting bool                `json:"has_recurring_meeting"`
	HasOnlineMeeting    bool                `json:"has_online_meeting"`
}

// ParsedFields holds best-effort heuristic extraction results for a
// calendar event (project/workstream/task guesses, confidence score).
type ParsedFields struct {
	Project         *string  `json:"project,omitempty"`
	Workstream      *string  `json:"workstream,omitempty"`
	Task            *string  `json:"task,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
}

// CalendarEvent is a synced Google Calendar event.
type CalendarEvent struct {
	ID                    string       `db:"id"`
	GoogleEventID         string       `db:"google_event_id"`
	UserEmail             string       `db:"user_email"`
	Summary               string       `db:"summary"`
	Description           *string      `db:"description"`
	When                  TimeRange
	RecurringEventID      *string `db:"recurring_event_id"`
	Parsed                ParsedFields
	MeetingPlatform       *string `db:"meeting_platform"`
	IsRecurringSeries     bool    `db:"is_recurring_series"`
	IsOnlineMeeting       bool    `db:"is_online_meeting"`
	HasExternalAttendees  *bool   `db:"has_external_attendees"`
	OrganizerEmail        *string `db:"organizer_email"`
	OrganizerDomain       *string `db:"organizer_domain"`
	MeetingID             *string `db:"meeting_id"`
	AttendeeCount         *int32  `db:"attendee_count"`
	ExternalAttendeeCount *int32  `db:"external_attendee_count"`
}

// WbsElement is a single work-breakdown-structure leaf synced from the SAP
// project system, cached locally for classification lookups.
type WbsElement struct {
	Code        string `db:"code" json:"code"`
	Description string `db:"description" json:"description"`
	ProjectCode string `db:"project_code" json:"project_code"`
	Active      bool   `db:"active" json:"active"`
}

// TokenSet is an OAuth2 access/refresh token pair persisted per user email.
type TokenSet struct {
	UserEmail    string    `db:"user_email"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	IDToken      string    `db:"id_token"`
	ExpiresAt    time.Time `db:"expires_at"`
	Scope        string    `db:"scope"`
}

// TimeEntryOutbox is a locally-queued time entry awaiting delivery to the
// downstream timesheet system, using the transactional outbox pattern.
type TimeEntryOutbox struct {
	ID          string    `db:"id"`
	BlockID     string    `db:"block_id"`
	WbsCode     string    `db:"wbs_code"`
	Minutes     int64     `db:"minutes"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	Attempts    int       `db:"attempts"`
	LastError   *string   `db:"last_error"`
	DeliveredAt *time.Time `db:"delivered_at"`
}

// CommandMetric records the outcome of a single scheduler job run or
// user-facing command invocation, used for legacy-vs-new A/B comparisons
// during migrations.
type CommandMetric struct {
	ID             string `db:"id"`
	Command        string `db:"command"`
	Implementation string `db:"implementation"`
	Timestamp      int64  `db:"timestamp"`
	DurationMs     uint64 `db:"duration_ms"`
	Success        bool   `db:"success"`
	ErrorType      *string `db:"error_type"`
}

// CommandStats aggregates CommandMetric rows over a time window.
type CommandStats struct {
	Command        string
	Implementation string
	TotalCount     uint64
	SuccessCount   uint64
	ErrorCount     uint64
	ErrorRate      float64
	P50LatencyMs   uint64
	P95LatencyMs   uint64
	P99LatencyMs   uint64
	AvgLatencyMs   float64
}
