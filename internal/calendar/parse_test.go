package calendar

import "testing"

func TestParseEventTimedMeeting(t *testing.T) {
	item := []byte(`{
		"id": "evt-123",
		"summary": "Deal Review",
		"description": "Weekly sync",
		"start": {"dateTime": "2024-01-15T09:00:00Z"},
		"end": {"dateTime": "2024-01-15T10:00:00Z"},
		"recurringEventId": "series-1",
		"hangoutLink": "https://meet.google.com/abc-defg-hij",
		"organizer": {"email": "organizer@example.com"},
		"attendees": [{"email": "a@example.com"}, {"email": "b@example.com"}]
	}`)

	event, err := ParseEvent("user@example.com", item)
	if err != nil {
		t.Fatalf("ParseEvent() err = %v", err)
	}

	if event.GoogleEventID != "evt-123" {
		t.Errorf("GoogleEventID = %q, want evt-123", event.GoogleEventID)
	}
	if event.Summary != "Deal Review" {
		t.Errorf("Summary = %q, want \"Deal Review\"", event.Summary)
	}
	if event.When.IsAllDay {
		t.Error("expected IsAllDay = false for a dateTime event")
	}
	if event.When.StartTS != 1705309200 || event.When.EndTS != 1705312800 {
		t.Errorf("When = %+v, want StartTS=1705309200 EndTS=1705312800", event.When)
	}
	if !event.IsRecurringSeries {
		t.Error("expected IsRecurringSeries = true when recurringEventId is present")
	}
	if !event.IsOnlineMeeting {
		t.Error("expected IsOnlineMeeting = true when hangoutLink is present")
	}
	if event.OrganizerEmail == nil || *event.OrganizerEmail != "organizer@example.com" {
		t.Errorf("OrganizerEmail = %v, want organizer@example.com", event.OrganizerEmail)
	}
	if event.AttendeeCount == nil || *event.AttendeeCount != 2 {
		t.Errorf("AttendeeCount = %v, want 2", event.AttendeeCount)
	}
}

func TestParseEventAllDayEventDefaultsTitle(t *testing.T) {
	item := []byte(`{
		"id": "evt-456",
		"start": {"date": "2024-03-01"},
		"end": {"date": "2024-03-02"}
	}`)

	event, err := ParseEvent("user@example.com", item)
	if err != nil {
		t.Fatalf("ParseEvent() err = %v", err)
	}
	if event.Summary != "(No title)" {
		t.Errorf("Summary = %q, want \"(No title)\"", event.Summary)
	}
	if !event.When.IsAllDay {
		t.Error("expected IsAllDay = true for a date-only event")
	}
	if event.IsRecurringSeries {
		t.Error("expected IsRecurringSeries = false without a recurringEventId")
	}
	if event.IsOnlineMeeting {
		t.Error("expected IsOnlineMeeting = false without hangoutLink/conferenceData")
	}
}

func TestParseEventMissingIDErrors(t *testing.T) {
	item := []byte(`{"summary": "No id event", "start": {"dateTime": "2024-01-15T09:00:00Z"}, "end": {"dateTime": "2024-01-15T10:00:00Z"}}`)
	if _, err := ParseEvent("user@example.com", item); err == nil {
		t.Fatal("expected an error when the event is missing an id")
	}
}

func TestParseEventMissingStartErrors(t *testing.T) {
	item := []byte(`{"id": "evt-789", "end": {"dateTime": "2024-01-15T10:00:00Z"}}`)
	if _, err := ParseEvent("user@example.com", item); err == nil {
		t.Fatal("expected an error when the event is missing start time")
	}
}
