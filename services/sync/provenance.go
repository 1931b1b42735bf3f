package sync

import "busymirror/models"

// Tag keys stored on placeholder events. The provider's string tags are the
// only durable state the engine keeps; these three keys are the data contract
// that lets a placeholder be traced back to its origin.
const (
	TagPlaceholder      = "isPlaceholder"
	TagSourceEventID    = "sourceEventId"
	TagSourceCalendarID = "sourceCalendarId"
)

// IsPlaceholder reports whether the event is a mirrored placeholder: the
// isPlaceholder tag must be the literal "true" and sourceCalendarId non-empty.
func IsPlaceholder(e models.Event) bool {
	return e.Tag(TagPlaceholder) == "true" && e.Tag(TagSourceCalendarID) != ""
}

// OriginOf returns the origin a placeholder mirrors. The second return is
// false for genuine events.
func OriginOf(e models.Event) (models.Origin, bool) {
	if !IsPlaceholder(e) {
		return models.Origin{}, false
	}
	return models.Origin{
		EventID:    e.Tag(TagSourceEventID),
		CalendarID: e.Tag(TagSourceCalendarID),
	}, true
}

// isMirrorOf reports whether the event is a placeholder sourced from the given
// calendar. Placeholders tagged for a different pairing are not ours to touch.
func isMirrorOf(e models.Event, sourceCalendarID string) bool {
	origin, ok := OriginOf(e)
	return ok && origin.CalendarID == sourceCalendarID
}

// provenanceTags builds the tag set for a new placeholder mirroring source.
func provenanceTags(source models.Event, sourceCalendarID string) map[string]string {
	return map[string]string{
		TagPlaceholder:      "true",
		TagSourceEventID:    source.ID,
		TagSourceCalendarID: sourceCalendarID,
	}
}
