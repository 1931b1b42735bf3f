package sync

import (
	"fmt"
	"log"
	"time"

	"busymirror/internal/provider"
	"busymirror/models"
)

// TitleFunc decides the title of a new placeholder mirroring source. The two
// directions use different strategies: the personal calendar shows what is
// blocking it, the counterpart only shows a neutral busy marker.
type TitleFunc func(source models.Event, sourceCalendarID string) string

// GenericTitle labels every placeholder with the same neutral marker.
func GenericTitle(models.Event, string) string {
	return "Busy"
}

// DescriptiveTitle embeds the source calendar and the original title.
func DescriptiveTitle(source models.Event, sourceCalendarID string) string {
	return fmt.Sprintf("[%s] %s", sourceCalendarID, source.Title)
}

// matchKey is the identity used to match a placeholder against candidate
// source events: event ID plus start time. Keying on the start as well means a
// source event whose start moved simply never matches and the placeholder is
// deleted, leaving the creation pass to mint a corrected one in the same run.
func matchKey(eventID string, start time.Time) string {
	return fmt.Sprintf("%s|%d", eventID, start.UnixMilli())
}

// reconcileExpired deletes placeholders in cal whose window has fully passed.
// Only placeholders sourced from sourceCalendarID are touched; genuine past
// events and placeholders belonging to another pairing are left alone.
func reconcileExpired(cal provider.Calendar, expired []models.Event, sourceCalendarID string) (int, error) {
	deleted := 0
	for _, e := range expired {
		if !isMirrorOf(e, sourceCalendarID) {
			continue
		}
		if err := cal.DeleteEvent(e.ID); err != nil {
			return deleted, fmt.Errorf("delete expired placeholder %s in %s: %w", e.ID, cal.ID(), err)
		}
		log.Printf("[sync] deleted expired placeholder %q (%s) from %s", e.Title, e.ID, cal.ID())
		deleted++
	}
	return deleted, nil
}

// reconcileObsolete deletes placeholders in cal whose source event vanished or
// drifted. sourceActive is the counterpart calendar's active set; a
// placeholder survives only if its (sourceEventId, own start) key finds a
// source event with an identical [start, end) interval.
func reconcileObsolete(cal provider.Calendar, active, sourceActive []models.Event, sourceCalendarID string) (int, error) {
	lookup := make(map[string]models.Event, len(sourceActive))
	for _, e := range sourceActive {
		lookup[matchKey(e.ID, e.Start)] = e
	}

	deleted := 0
	for _, e := range active {
		origin, ok := OriginOf(e)
		if !ok || origin.CalendarID != sourceCalendarID {
			continue
		}
		source, found := lookup[matchKey(origin.EventID, e.Start)]
		if found && source.Start.Equal(e.Start) && source.End.Equal(e.End) {
			continue
		}
		if err := cal.DeleteEvent(e.ID); err != nil {
			return deleted, fmt.Errorf("delete obsolete placeholder %s in %s: %w", e.ID, cal.ID(), err)
		}
		log.Printf("[sync] deleted obsolete placeholder %q (%s) from %s", e.Title, e.ID, cal.ID())
		deleted++
	}
	return deleted, nil
}

// reconcileCreate mirrors every still-active source event into target that is
// not mirrored there yet. Re-running is safe: an existing placeholder with the
// same (sourceCalendarId, sourceEventId) inside the event's window suppresses
// creation, and placeholders that themselves mirror target are never
// reflected back.
func reconcileCreate(target provider.Calendar, sourceActive []models.Event, sourceCalendarID, targetCalendarID string, title TitleFunc, now time.Time) (int, error) {
	created := 0
	for _, e := range sourceActive {
		if e.End.Before(now) {
			continue
		}
		if isMirrorOf(e, targetCalendarID) {
			continue
		}

		existing, err := target.Events(e.Start, e.End)
		if err != nil {
			return created, fmt.Errorf("list events in %s: %w", target.ID(), err)
		}
		if hasPlaceholderFor(existing, sourceCalendarID, e.ID) {
			continue
		}

		placeholder, err := target.CreateEvent(title(e, sourceCalendarID), e.Start, e.End, provenanceTags(e, sourceCalendarID))
		if err != nil {
			return created, fmt.Errorf("create placeholder for %s in %s: %w", e.ID, target.ID(), err)
		}
		log.Printf("[sync] created placeholder %q (%s) in %s for %s/%s",
			placeholder.Title, placeholder.ID, target.ID(), sourceCalendarID, e.ID)
		created++
	}
	return created, nil
}

func hasPlaceholderFor(events []models.Event, sourceCalendarID, sourceEventID string) bool {
	for _, e := range events {
		origin, ok := OriginOf(e)
		if ok && origin.CalendarID == sourceCalendarID && origin.EventID == sourceEventID {
			return true
		}
	}
	return false
}
