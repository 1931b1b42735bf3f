package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"busymirror/models"
)

// ErrNotFound is returned when a calendar or event does not exist.
var ErrNotFound = errors.New("not found")

// EventRepository stores calendars and their events.
type EventRepository struct {
	conn *sql.DB
}

// EnsureCalendar creates the calendar row if it does not exist yet.
func (r *EventRepository) EnsureCalendar(id, name string) error {
	_, err := r.conn.Exec(
		`INSERT INTO calendars (id, name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("ensure calendar %s: %w", id, err)
	}
	return nil
}

// CalendarExists reports whether the calendar row is present.
func (r *EventRepository) CalendarExists(id string) (bool, error) {
	var one int
	err := r.conn.QueryRow(`SELECT 1 FROM calendars WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check calendar %s: %w", id, err)
	}
	return true, nil
}

// InsertEvent stores an event in the given calendar. Times are persisted as
// epoch milliseconds UTC; tags as a JSON object.
func (r *EventRepository) InsertEvent(calendarID string, e models.Event) error {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("encode tags for %s: %w", e.ID, err)
	}
	if e.Tags == nil {
		tags = []byte("{}")
	}
	_, err = r.conn.Exec(
		`INSERT INTO calendar_events (id, calendar_id, title, start_ms, end_ms, tags) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, calendarID, e.Title, e.Start.UnixMilli(), e.End.UnixMilli(), string(tags),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

// DeleteEvent removes an event from a calendar. Deleting an absent event
// returns ErrNotFound.
func (r *EventRepository) DeleteEvent(calendarID, eventID string) error {
	res, err := r.conn.Exec(
		`DELETE FROM calendar_events WHERE calendar_id = ? AND id = ?`,
		calendarID, eventID,
	)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	if n == 0 {
		return fmt.Errorf("event %s in %s: %w", eventID, calendarID, ErrNotFound)
	}
	return nil
}

// ListEvents returns events overlapping the half-open window [start, end),
// ordered by start time.
func (r *EventRepository) ListEvents(calendarID string, start, end time.Time) ([]models.Event, error) {
	rows, err := r.conn.Query(
		`SELECT id, title, start_ms, end_ms, tags
		 FROM calendar_events
		 WHERE calendar_id = ? AND end_ms > ? AND start_ms < ?
		 ORDER BY start_ms`,
		calendarID, start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("list events in %s: %w", calendarID, err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			e        models.Event
			startMS  int64
			endMS    int64
			tagsJSON string
		)
		if err := rows.Scan(&e.ID, &e.Title, &startMS, &endMS, &tagsJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Start = time.UnixMilli(startMS).UTC()
		e.End = time.UnixMilli(endMS).UTC()
		if tagsJSON != "" && tagsJSON != "{}" {
			if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
				return nil, fmt.Errorf("decode tags for %s: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events in %s: %w", calendarID, err)
	}
	return events, nil
}
