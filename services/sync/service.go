// Package sync implements the reconciliation engine that mirrors busy time
// between two calendars as tagged placeholder events. Each pass is stateless:
// everything it needs is re-derived from the calendars' current contents, so
// a failed or interrupted pass is healed by simply running the next one.
package sync

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"busymirror/internal/provider"
)

// ErrMissingParameter is returned by New when a required calendar ID is absent.
var ErrMissingParameter = errors.New("missing required parameter")

// Default reconciliation window around the pass clock.
const (
	DefaultLookBackPeriod  = 7 * 24 * time.Hour
	DefaultLookAheadPeriod = 60 * 24 * time.Hour
)

// Config carries the immutable settings for one calendar pairing.
type Config struct {
	PrimaryCalendarID string
	RemoteCalendarID  string
	LookBackPeriod    time.Duration
	LookAheadPeriod   time.Duration
}

// Summary reports what one pass changed, per direction.
type Summary struct {
	ExpiredPrimary  int           `json:"expiredPrimary"`
	ExpiredRemote   int           `json:"expiredRemote"`
	ObsoletePrimary int           `json:"obsoletePrimary"`
	ObsoleteRemote  int           `json:"obsoleteRemote"`
	CreatedPrimary  int           `json:"createdPrimary"`
	CreatedRemote   int           `json:"createdRemote"`
	Duration        time.Duration `json:"duration"`
}

// Deleted is the total number of placeholders the pass removed.
func (s Summary) Deleted() int {
	return s.ExpiredPrimary + s.ExpiredRemote + s.ObsoletePrimary + s.ObsoleteRemote
}

// Created is the total number of placeholders the pass created.
func (s Summary) Created() int {
	return s.CreatedPrimary + s.CreatedRemote
}

// Status is the engine's last-pass state, served by the admin API.
type Status struct {
	PrimaryCalendarID string    `json:"primaryCalendarId"`
	RemoteCalendarID  string    `json:"remoteCalendarId"`
	LastRunAt         time.Time `json:"lastRunAt"`
	LastSummary       Summary   `json:"lastSummary"`
	LastError         string    `json:"lastError,omitempty"`
}

// Service is the synchronization orchestrator. It holds only configuration
// and the provider handle; all calendar state lives provider-side.
type Service struct {
	provider provider.Provider
	cfg      Config
	now      func() time.Time

	statusMu    sync.RWMutex
	lastRunAt   time.Time
	lastSummary Summary
	lastError   string
}

// New validates the configuration and resolves both calendars. Missing IDs
// and unresolvable calendars are fatal here; at fetch time a vanished
// calendar only degrades the pass.
func New(p provider.Provider, cfg Config) (*Service, error) {
	if cfg.PrimaryCalendarID == "" {
		return nil, fmt.Errorf("%w: primary calendar ID", ErrMissingParameter)
	}
	if cfg.RemoteCalendarID == "" {
		return nil, fmt.Errorf("%w: remote calendar ID", ErrMissingParameter)
	}
	if cfg.LookBackPeriod <= 0 {
		cfg.LookBackPeriod = DefaultLookBackPeriod
	}
	if cfg.LookAheadPeriod <= 0 {
		cfg.LookAheadPeriod = DefaultLookAheadPeriod
	}

	for _, id := range []string{cfg.PrimaryCalendarID, cfg.RemoteCalendarID} {
		if _, err := p.Calendar(id); err != nil {
			return nil, fmt.Errorf("resolve calendar %s: %w", id, err)
		}
	}

	return &Service{
		provider: p,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// SetClock replaces the pass clock. Tests use this to pin "now".
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Status returns the outcome of the most recent pass.
func (s *Service) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return Status{
		PrimaryCalendarID: s.cfg.PrimaryCalendarID,
		RemoteCalendarID:  s.cfg.RemoteCalendarID,
		LastRunAt:         s.lastRunAt,
		LastSummary:       s.lastSummary,
		LastError:         s.lastError,
	}
}

// Synchronize runs one full reconciliation pass over both calendars. The
// order is fixed: expire, then de-obsolete, then create. Creation's duplicate
// guard must see calendars already cleared of stale placeholders, and a moved
// source event must be deleted before its corrected mirror is created so one
// pass never leaves two placeholders for the same source.
func (s *Service) Synchronize() (Summary, error) {
	started := s.now()
	summary, err := s.runPass(started)
	summary.Duration = time.Since(started)

	s.statusMu.Lock()
	s.lastRunAt = started
	s.lastSummary = summary
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.statusMu.Unlock()

	if err != nil {
		log.Printf("[sync] pass failed: %v", err)
		return summary, err
	}
	log.Printf("[sync] pass complete: %d deleted, %d created in %s",
		summary.Deleted(), summary.Created(), summary.Duration.Round(time.Millisecond))
	return summary, nil
}

func (s *Service) runPass(now time.Time) (Summary, error) {
	var summary Summary

	windowStart := now.Add(-s.cfg.LookBackPeriod)
	windowEnd := now.Add(s.cfg.LookAheadPeriod)

	primarySnap, err := takeSnapshot(s.provider, s.cfg.PrimaryCalendarID, windowStart, windowEnd, now)
	if err != nil {
		return summary, fmt.Errorf("snapshot %s: %w", s.cfg.PrimaryCalendarID, err)
	}
	remoteSnap, err := takeSnapshot(s.provider, s.cfg.RemoteCalendarID, windowStart, windowEnd, now)
	if err != nil {
		return summary, fmt.Errorf("snapshot %s: %w", s.cfg.RemoteCalendarID, err)
	}

	primary, remote, err := s.resolveCalendars()
	if err != nil {
		return summary, err
	}

	if primary != nil {
		if summary.ExpiredPrimary, err = reconcileExpired(primary, primarySnap.Expired, s.cfg.RemoteCalendarID); err != nil {
			return summary, err
		}
	}
	if remote != nil {
		if summary.ExpiredRemote, err = reconcileExpired(remote, remoteSnap.Expired, s.cfg.PrimaryCalendarID); err != nil {
			return summary, err
		}
	}

	if primary != nil {
		if summary.ObsoletePrimary, err = reconcileObsolete(primary, primarySnap.Active, remoteSnap.Active, s.cfg.RemoteCalendarID); err != nil {
			return summary, err
		}
	}
	if remote != nil {
		if summary.ObsoleteRemote, err = reconcileObsolete(remote, remoteSnap.Active, primarySnap.Active, s.cfg.PrimaryCalendarID); err != nil {
			return summary, err
		}
	}

	// Placeholders landing in the primary calendar spell out what blocks
	// them; the remote calendar only ever shows a neutral busy marker.
	if primary != nil {
		if summary.CreatedPrimary, err = reconcileCreate(primary, remoteSnap.Active, s.cfg.RemoteCalendarID, s.cfg.PrimaryCalendarID, DescriptiveTitle, now); err != nil {
			return summary, err
		}
	}
	if remote != nil {
		if summary.CreatedRemote, err = reconcileCreate(remote, primarySnap.Active, s.cfg.PrimaryCalendarID, s.cfg.RemoteCalendarID, GenericTitle, now); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

// RemoveBlockingEvents deletes every placeholder this pairing ever created in
// either calendar, regardless of expiry or obsolescence, and returns how many
// were removed. It undoes all synchronization effects.
func (s *Service) RemoveBlockingEvents() (int, error) {
	now := s.now()
	windowStart := now.Add(-s.cfg.LookBackPeriod)
	windowEnd := now.Add(s.cfg.LookAheadPeriod)

	removed := 0
	pairs := []struct {
		calendarID string
		sourceID   string
	}{
		{s.cfg.PrimaryCalendarID, s.cfg.RemoteCalendarID},
		{s.cfg.RemoteCalendarID, s.cfg.PrimaryCalendarID},
	}

	for _, pair := range pairs {
		snap, err := takeSnapshot(s.provider, pair.calendarID, windowStart, windowEnd, now)
		if err != nil {
			return removed, fmt.Errorf("snapshot %s: %w", pair.calendarID, err)
		}
		cal, err := s.provider.Calendar(pair.calendarID)
		if err != nil {
			if errors.Is(err, provider.ErrCalendarNotFound) {
				continue
			}
			return removed, err
		}
		for _, e := range append(snap.Expired, snap.Active...) {
			if !isMirrorOf(e, pair.sourceID) {
				continue
			}
			if err := cal.DeleteEvent(e.ID); err != nil {
				return removed, fmt.Errorf("delete placeholder %s in %s: %w", e.ID, pair.calendarID, err)
			}
			removed++
		}
		log.Printf("[sync] teardown cleared %s of placeholders sourced from %s", pair.calendarID, pair.sourceID)
	}

	return removed, nil
}

// resolveCalendars re-resolves both handles at pass time. A calendar that
// disappeared after construction comes back nil so its side of the pass is
// skipped, matching the degraded snapshot behavior.
func (s *Service) resolveCalendars() (primary, remote provider.Calendar, err error) {
	primary, err = s.provider.Calendar(s.cfg.PrimaryCalendarID)
	if err != nil {
		if !errors.Is(err, provider.ErrCalendarNotFound) {
			return nil, nil, err
		}
		primary = nil
	}
	remote, err = s.provider.Calendar(s.cfg.RemoteCalendarID)
	if err != nil {
		if !errors.Is(err, provider.ErrCalendarNotFound) {
			return nil, nil, err
		}
		remote = nil
	}
	return primary, remote, nil
}
