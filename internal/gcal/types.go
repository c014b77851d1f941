package gcal

import (
	"context"
	"time"
)

// Event is a read-only projection of a calendar event returned by the
// provider.
type Event struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time
}

// EventInput is the payload for creating a calendar event. Start and End
// must be timezone-qualified instants; TimeZone names the provider-side zone.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

// API is the calendar collaborator surface consumed by the availability
// engine. ListEvents returns events overlapping [timeMin, timeMax), sorted
// by start time server-side with recurrences already expanded. InsertEvent
// returns the provider-assigned event ID.
type API interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error)
	InsertEvent(ctx context.Context, input EventInput) (string, error)
}
