package sync

import (
	"errors"
	"log"
	"time"

	"busymirror/internal/provider"
	"busymirror/models"
)

// Snapshot is one calendar's events over the reconciliation window, split by
// whether they have already ended relative to the pass clock.
type Snapshot struct {
	Expired []models.Event
	Active  []models.Event
}

// takeSnapshot fetches all events for calendarID over [windowStart, windowEnd)
// and partitions them: expired iff the event ends before now, active
// otherwise. A calendar that no longer resolves yields an empty snapshot and
// the pass continues degraded; every other provider fault propagates.
func takeSnapshot(p provider.Provider, calendarID string, windowStart, windowEnd, now time.Time) (Snapshot, error) {
	cal, err := p.Calendar(calendarID)
	if err != nil {
		if errors.Is(err, provider.ErrCalendarNotFound) {
			log.Printf("[sync] calendar %s not found, continuing with empty snapshot", calendarID)
			return Snapshot{}, nil
		}
		return Snapshot{}, err
	}

	events, err := cal.Events(windowStart, windowEnd)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	for _, e := range events {
		if e.End.Before(now) {
			snap.Expired = append(snap.Expired, e)
		} else {
			snap.Active = append(snap.Active, e)
		}
	}
	return snap, nil
}
