// Package calendar parses Google Calendar API event payloads into the
// domain.CalendarEvent rows the classification and scheduling layers
// consume.
package calendar

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/internal/domain"
)

// ParseEvent converts a single Google Calendar API "event" JSON object
// (as found in the items[] array of events.list) into a domain.CalendarEvent
// scoped to userEmail. Mirrors the upstream API's own field nullability:
// missing summary falls back to "(No title)", missing recurringEventId
// means a non-recurring event, etc.
func ParseEvent(userEmail string, item []byte) (domain.CalendarEvent, error) {
	root := gjson.ParseBytes(item)

	googleEventID := root.Get("id").String()
	if googleEventID == "" {
		return domain.CalendarEvent{}, apperrors.Internal("calendar event missing id", nil)
	}

	summary := root.Get("summary").String()
	if summary == "" {
		summary = "(No title)"
	}

	var description *string
	if d := root.Get("description"); d.Exists() {
		v := d.String()
		description = &v
	}

	startStr := root.Get("start.dateTime").String()
	isAllDay := false
	if startStr == "" {
		startStr = root.Get("start.date").String()
		isAllDay = startStr != ""
	}
	if startStr == "" {
		return domain.CalendarEvent{}, apperrors.Internal("calendar event missing start time", nil)
	}

	endStr := root.Get("end.dateTime").String()
	if endStr == "" {
		endStr = root.Get("end.date").String()
	}
	if endStr == "" {
		return domain.CalendarEvent{}, apperrors.Internal("calendar event missing end time", nil)
	}

	startTS, err := parseRFC3339OrDate(startStr)
	if err != nil {
		return domain.CalendarEvent{}, apperrors.Internal(fmt.Sprintf("invalid start time %q", startStr), err)
	}
	endTS, err := parseRFC3339OrDate(endStr)
	if err != nil {
		return domain.CalendarEvent{}, apperrors.Internal(fmt.Sprintf("invalid end time %q", endStr), err)
	}

	var recurringEventID *string
	if r := root.Get("recurringEventId"); r.Exists() {
		v := r.String()
		recurringEventID = &v
	}

	var organizerEmail *string
	if e := root.Get("organizer.email"); e.Exists() {
		v := e.String()
		organizerEmail = &v
	}

	var attendeeCount *int32
	if attendees := root.Get("attendees"); attendees.IsArray() {
		n := int32(len(attendees.Array()))
		attendeeCount = &n
	}

	return domain.CalendarEvent{
		ID:            uuid.NewString(),
		GoogleEventID: googleEventID,
		UserEmail:     userEmail,
		Summary:       summary,
		Description:   description,
		When: domain.TimeRange{
			StartTS:  startTS,
			EndTS:    endTS,
			IsAllDay: isAllDay,
		},
		RecurringEventID:  recurringEventID,
		IsRecurringSeries: recurringEventID != nil,
		IsOnlineMeeting:   root.Get("hangoutLink").Exists() || root.Get("conferenceData").IsObject(),
		OrganizerEmail:    organizerEmail,
		AttendeeCount:     attendeeCount,
	}, nil
}

// parseRFC3339OrDate parses a Google Calendar dateTime (RFC3339) or, for
// all-day events, a bare date (YYYY-MM-DD) and returns a Unix timestamp.
func parseRFC3339OrDate(s string) (int64, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
