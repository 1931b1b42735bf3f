// Package provider defines the calendar provider abstraction the sync engine
// runs against. Adapters live in subpackages: localcal (sqlite-backed) and
// webcal (JSON over HTTP).
package provider

import (
	"errors"
	"time"

	"busymirror/models"
)

var (
	// ErrCalendarNotFound is returned when a calendar ID cannot be resolved.
	ErrCalendarNotFound = errors.New("calendar not found")
	// ErrEventNotFound is returned when deleting an event that does not exist.
	ErrEventNotFound = errors.New("event not found")
)

// Calendar is a handle to one mutable calendar.
type Calendar interface {
	// ID returns the calendar's opaque identifier.
	ID() string
	// Events returns all events overlapping the half-open window [start, end).
	Events(start, end time.Time) ([]models.Event, error)
	// CreateEvent adds an event over [start, end) with the given tags and
	// returns it with its provider-assigned ID.
	CreateEvent(title string, start, end time.Time, tags map[string]string) (models.Event, error)
	// DeleteEvent removes the event with the given ID.
	DeleteEvent(eventID string) error
}

// Provider resolves calendar IDs to handles.
type Provider interface {
	Calendar(id string) (Calendar, error)
}
