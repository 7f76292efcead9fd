package storage

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/internal/domain"
	"github.com/pulsearc/agent-core/internal/storage/blocking"
)

// CalendarEventRepository persists synced Google Calendar events, enforcing
// the (user_email, google_event_id) uniqueness constraint via upsert.
type CalendarEventRepository struct {
	pool *Pool
	jobs *blocking.Pool
}

// NewCalendarEventRepository wires a repository to pool, running its queries
// through jobs so callers never block directly on cgo SQLite I/O.
func NewCalendarEventRepository(pool *Pool, jobs *blocking.Pool) *CalendarEventRepository {
	return &CalendarEventRepository{pool: pool, jobs: jobs}
}

type calendarEventRow struct {
	ID                    string         `db:"id"`
	GoogleEventID         string         `db:"google_event_id"`
	UserEmail             string         `db:"user_email"`
	Summary               string         `db:"summary"`
	Description           sql.NullString `db:"description"`
	StartTS               int64          `db:"start_ts"`
	EndTS                 int64          `db:"end_ts"`
	IsAllDay              bool           `db:"is_all_day"`
	RecurringEventID      sql.NullString `db:"recurring_event_id"`
	Project               sql.NullString `db:"project"`
	Workstream            sql.NullString `db:"workstream"`
	Task                  sql.NullString `db:"task"`
	ConfidenceScore       sql.NullFloat64 `db:"confidence_score"`
	MeetingPlatform       sql.NullString `db:"meeting_platform"`
	IsRecurringSeries     bool           `db:"is_recurring_series"`
	IsOnlineMeeting       bool           `db:"is_online_meeting"`
	HasExternalAttendees  sql.NullBool   `db:"has_external_attendees"`
	OrganizerEmail        sql.NullString `db:"organizer_email"`
	OrganizerDomain       sql.NullString `db:"organizer_domain"`
	MeetingID             sql.NullString `db:"meeting_id"`
	AttendeeCount         sql.NullInt32  `db:"attendee_count"`
	ExternalAttendeeCount sql.NullInt32  `db:"external_attendee_count"`
}

// Upsert inserts the event or, when (user_email, google_event_id) already
// exists, replaces its mutable fields in place.
func (r *CalendarEventRepository) Upsert(ctx context.Context, event domain.CalendarEvent) error {
	row := toCalendarEventRow(event)
	_, err := blocking.Run(ctx, r.jobs, func() (struct{}, error) {
		return struct{}{}, r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			_, err := db.NamedExecContext(ctx, `
				INSERT INTO calendar_events (
					id, google_event_id, user_email, summary, description, start_ts, end_ts,
					is_all_day, recurring_event_id, project, workstream, task, confidence_score,
					meeting_platform, is_recurring_series, is_online_meeting, has_external_attendees,
					organizer_email, organizer_domain, meeting_id, attendee_count, external_attendee_count
				) VALUES (
					:id, :google_event_id, :user_email, :summary, :description, :start_ts, :end_ts,
					:is_all_day, :recurring_event_id, :project, :workstream, :task, :confidence_score,
					:meeting_platform, :is_recurring_series, :is_online_meeting, :has_external_attendees,
					:organizer_email, :organizer_domain, :meeting_id, :attendee_count, :external_attendee_count
				)
				ON CONFLICT(user_email, google_event_id) DO UPDATE SET
					summary = excluded.summary,
					description = excluded.description,
					start_ts = excluded.start_ts,
					end_ts = excluded.end_ts,
					is_all_day = excluded.is_all_day,
					recurring_event_id = excluded.recurring_event_id,
					project = excluded.project,
					workstream = excluded.workstream,
					task = excluded.task,
					confidence_score = excluded.confidence_score,
					meeting_platform = excluded.meeting_platform,
					is_recurring_series = excluded.is_recurring_series,
					is_online_meeting = excluded.is_online_meeting,
					has_external_attendees = excluded.has_external_attendees,
					organizer_email = excluded.organizer_email,
					organizer_domain = excluded.organizer_domain,
					meeting_id = excluded.meeting_id,
					attendee_count = excluded.attendee_count,
					external_attendee_count = excluded.external_attendee_count
			`, row)
			if err != nil {
				return apperrors.DatabaseError("calendar_event_upsert", err)
			}
			return nil
		})
	})
	return err
}

// FindByGoogleEventID looks up a single event for a user.
func (r *CalendarEventRepository) FindByGoogleEventID(ctx context.Context, userEmail, googleEventID string) Result[domain.CalendarEvent] {
	res, _ := blocking.Run(ctx, r.jobs, func() (Result[domain.CalendarEvent], error) {
		var row calendarEventRow
		var result Result[domain.CalendarEvent]
		err := r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			err := db.GetContext(ctx, &row, `
				SELECT id, google_event_id, user_email, summary, description, start_ts, end_ts,
					is_all_day, recurring_event_id, project, workstream, task, confidence_score,
					meeting_platform, is_recurring_series, is_online_meeting, has_external_attendees,
					organizer_email, organizer_domain, meeting_id, attendee_count, external_attendee_count
				FROM calendar_events WHERE user_email = ? AND google_event_id = ?`, userEmail, googleEventID)
			if err == sql.ErrNoRows {
				result = None[domain.CalendarEvent]()
				return nil
			}
			if err != nil {
				result = Err[domain.CalendarEvent](apperrors.DatabaseError("calendar_event_find", err))
				return nil
			}
			result = Ok(fromCalendarEventRow(row))
			return nil
		})
		if err != nil {
			return Err[domain.CalendarEvent](err), nil
		}
		return result, nil
	})
	return res
}

// ListInWindow returns events for a user overlapping [startTS, endTS).
func (r *CalendarEventRepository) ListInWindow(ctx context.Context, userEmail string, startTS, endTS int64) ([]domain.CalendarEvent, error) {
	rows, err := blocking.Run(ctx, r.jobs, func() ([]calendarEventRow, error) {
		var out []calendarEventRow
		err := r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			return db.SelectContext(ctx, &out, `
				SELECT id, google_event_id, user_email, summary, description, start_ts, end_ts,
					is_all_day, recurring_event_id, project, workstream, task, confidence_score,
					meeting_platform, is_recurring_series, is_online_meeting, has_external_attendees,
					organizer_email, organizer_domain, meeting_id, attendee_count, external_attendee_count
				FROM calendar_events
				WHERE user_email = ? AND start_ts < ? AND end_ts > ?
				ORDER BY start_ts`, userEmail, endTS, startTS)
		})
		return out, err
	})
	if err != nil {
		return nil, apperrors.DatabaseError("calendar_event_list_window", err)
	}

	events := make([]domain.CalendarEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, fromCalendarEventRow(row))
	}
	return events, nil
}

// FindNearTimestamp returns the first event whose window overlaps
// [ts-windowSeconds, ts+windowSeconds], used by evidence extraction's
// stride sampling across a block's duration.
func (r *CalendarEventRepository) FindNearTimestamp(ctx context.Context, ts, windowSeconds int64) Result[domain.CalendarEvent] {
	res, _ := blocking.Run(ctx, r.jobs, func() (Result[domain.CalendarEvent], error) {
		var row calendarEventRow
		var result Result[domain.CalendarEvent]
		err := r.pool.WithConn(ctx, func(ctx context.Context, db *sqlx.DB) error {
			err := db.GetContext(ctx, &row, `
				SELECT id, google_event_id, user_email, summary, description, start_ts, end_ts,
					is_all_day, recurring_event_id, project, workstream, task, confidence_score,
					meeting_platform, is_recurring_series, is_online_meeting, has_external_attendees,
					organizer_email, organizer_domain, meeting_id, attendee_count, external_attendee_count
				FROM calendar_events
				WHERE start_ts <= ? AND end_ts >= ?
				ORDER BY start_ts LIMIT 1`, ts+windowSeconds, ts-windowSeconds)
			if err == sql.ErrNoRows {
				result = None[domain.CalendarEvent]()
				return nil
			}
			if err != nil {
				result = Err[domain.CalendarEvent](apperrors.DatabaseError("calendar_event_find_near_ts", err))
				return nil
			}
			result = Ok(fromCalendarEventRow(row))
			return nil
		})
		if err != nil {
			return Err[domain.CalendarEvent](err), nil
		}
		return result, nil
	})
	return res
}

func toCalendarEventRow(e domain.CalendarEvent) calendarEventRow {
	row := calendarEventRow{
		ID:                e.ID,
		GoogleEventID:     e.GoogleEventID,
		UserEmail:         e.UserEmail,
		Summary:           e.Summary,
		StartTS:           e.When.StartTS,
		EndTS:             e.When.EndTS,
		IsAllDay:          e.When.IsAllDay,
		IsRecurringSeries: e.IsRecurringSeries,
		IsOnlineMeeting:   e.IsOnlineMeeting,
	}
	if e.Description != nil {
		row.Description = sql.NullString{String: *e.Description, Valid: true}
	}
	if e.RecurringEventID != nil {
		row.RecurringEventID = sql.NullString{String: *e.RecurringEventID, Valid: true}
	}
	if e.Parsed.Project != nil {
		row.Project = sql.NullString{String: *e.Parsed.Project, Valid: true}
	}
	if e.Parsed.Workstream != nil {
		row.Workstream = sql.NullString{String: *e.Parsed.Workstream, Valid: true}
	}
	if e.Parsed.Task != nil {
		row.Task = sql.NullString{String: *e.Parsed.Task, Valid: true}
	}
	if e.Parsed.ConfidenceScore != nil {
		row.ConfidenceScore = sql.NullFloat64{Float64: *e.Parsed.ConfidenceScore, Valid: true}
	}
	if e.MeetingPlatform != nil {
		row.MeetingPlatform = sql.NullString{String: *e.MeetingPlatform, Valid: true}
	}
	if e.HasExternalAttendees != nil {
		row.HasExternalAttendees = sql.NullBool{Bool: *e.HasExternalAttendees, Valid: true}
	}
	if e.OrganizerEmail != nil {
		row.OrganizerEmail = sql.NullString{String: *e.OrganizerEmail, Valid: true}
	}
	if e.OrganizerDomain != nil {
		row.OrganizerDomain = sql.NullString{String: *e.OrganizerDomain, Valid: true}
	}
	if e.MeetingID != nil {
		row.MeetingID = sql.NullString{String: *e.MeetingID, Valid: true}
	}
	if e.AttendeeCount != nil {
		row.AttendeeCount = sql.NullInt32{Int32: *e.AttendeeCount, Valid: true}
	}
	if e.ExternalAttendeeCount != nil {
		row.ExternalAttendeeCount = sql.NullInt32{Int32: *e.ExternalAttendeeCount, Valid: true}
	}
	return row
}

func fromCalendarEventRow(row calendarEventRow) domain.CalendarEvent {
	e := domain.CalendarEvent{
		ID:            row.ID,
		GoogleEventID: row.GoogleEventID,
		UserEmail:     row.UserEmail,
		Summary:       row.Summary,
		When:          domain.TimeRange{StartTS: row.StartTS, EndTS: row.EndTS, IsAllDay: row.IsAllDay},
		IsRecurringSeries: row.IsRecurringSeries,
		IsOnlineMeeting:   row.IsOnlineMeeting,
	}
	if row.Description.Valid {
		e.Description = &row.Description.String
	}
	if row.RecurringEventID.Valid {
		e.RecurringEventID = &row.RecurringEventID.String
	}
	if row.Project.Valid {
		e.Parsed.Project = &row.Project.String
	}
	if row.Workstream.Valid {
		e.Parsed.Workstream = &row.Workstream.String
	}
	if row.Task.Valid {
		e.Parsed.Task = &row.Task.String
	}
	if row.ConfidenceScore.Valid {
		e.Parsed.ConfidenceScore = &row.ConfidenceScore.Float64
	}
	if row.MeetingPlatform.Valid {
		e.MeetingPlatform = &row.MeetingPlatform.String
	}
	if row.HasExternalAttendees.Valid {
		e.HasExternalAttendees = &row.HasExternalAttendees.Bool
	}
	if row.OrganizerEmail.Valid {
		e.OrganizerEmail = &row.OrganizerEmail.String
	}
	if row.OrganizerDomain.Valid {
		e.OrganizerDomain = &row.OrganizerDomain.String
	}
	if row.MeetingID.Valid {
		e.MeetingID = &row.MeetingID.String
	}
	if row.AttendeeCount.Valid {
		e.AttendeeCount = &row.AttendeeCount.Int32
	}
	if row.ExternalAttendeeCount.Valid {
		e.ExternalAttendeeCount = &row.ExternalAttendeeCount.Int32
	}
	return e
}
