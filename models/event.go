package models

import "time"

// Event is a provider-independent calendar event. The interval is half-open:
// an event occupies [Start, End). Tags carry provider-side string metadata;
// genuine events have none, mirrored placeholders carry provenance tags.
type Event struct {
	ID    string            `json:"id"`
	Title string            `json:"title"`
	Start time.Time         `json:"start"`
	End   time.Time         `json:"end"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// Tag returns the value for key, or "" when unset.
func (e Event) Tag(key string) string {
	return e.Tags[key]
}

// Overlaps reports whether the event intersects the half-open window [start, end).
func (e Event) Overlaps(start, end time.Time) bool {
	return e.End.After(start) && e.Start.Before(end)
}

// Origin identifies the source event a placeholder mirrors.
type Origin struct {
	EventID    string `json:"eventId"`
	CalendarID string `json:"calendarId"`
}
