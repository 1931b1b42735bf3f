// Package localcal adapts the sqlite event store to the provider contract.
// It is the durable provider for self-hosted deployments and tests.
package localcal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"busymirror/internal/database"
	"busymirror/internal/provider"
	"busymirror/models"
)

// Provider resolves calendars stored in the local database.
type Provider struct {
	repo *database.EventRepository
}

// New creates a provider over the given store.
func New(db *database.DB) *Provider {
	return &Provider{repo: db.Events}
}

// EnsureCalendar creates a calendar row if missing, so configured IDs resolve.
func (p *Provider) EnsureCalendar(id, name string) error {
	return p.repo.EnsureCalendar(id, name)
}

// Calendar resolves a calendar ID to a handle.
func (p *Provider) Calendar(id string) (provider.Calendar, error) {
	ok, err := p.repo.CalendarExists(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("calendar %s: %w", id, provider.ErrCalendarNotFound)
	}
	return &calendar{id: id, repo: p.repo}, nil
}

type calendar struct {
	id   string
	repo *database.EventRepository
}

func (c *calendar) ID() string { return c.id }

func (c *calendar) Events(start, end time.Time) ([]models.Event, error) {
	return c.repo.ListEvents(c.id, start, end)
}

func (c *calendar) CreateEvent(title string, start, end time.Time, tags map[string]string) (models.Event, error) {
	e := models.Event{
		ID:    uuid.NewString(),
		Title: title,
		Start: start.UTC(),
		End:   end.UTC(),
		Tags:  tags,
	}
	if err := c.repo.InsertEvent(c.id, e); err != nil {
		return models.Event{}, err
	}
	return e, nil
}

func (c *calendar) DeleteEvent(eventID string) error {
	err := c.repo.DeleteEvent(c.id, eventID)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("event %s: %w", eventID, provider.ErrEventNotFound)
	}
	return err
}
