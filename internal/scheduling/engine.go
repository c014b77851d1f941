package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calendent/calendent/internal/dateparse"
	"github.com/calendent/calendent/internal/gcal"
)

// SuccessMarker is embedded in booking confirmations. Kept for wire
// compatibility with existing clients; control flow relies on the structured
// Outcome instead.
const SuccessMarker = "🎉 SUCCESS!"

// FailureMarker prefixes user-facing fault messages.
const FailureMarker = "❌"

var (
	// ErrInvalidWindow rejects windows whose start does not precede their end.
	ErrInvalidWindow = errors.New("window start must precede end")
	// ErrCalendarUnavailable wraps collaborator faults (auth, quota, connectivity).
	ErrCalendarUnavailable = errors.New("calendar unavailable")
)

// Segment is a sub-interval of a queried window covered by an existing event.
type Segment struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Title string `json:"title"`
}

// Result classifies a queried window as free or busy-with-segments.
type Result struct {
	Window dateparse.Window `json:"-"`
	Free   bool             `json:"free"`
	Busy   []Segment        `json:"busy,omitempty"`
}

// Outcome is the terminal result of one booking attempt.
type Outcome struct {
	Succeeded bool   `json:"succeeded"`
	EventID   string `json:"event_id,omitempty"`
	Message   string `json:"message"`
}

// Suggestion is a derived view of candidate slots for a date.
type Suggestion struct {
	Date    time.Time `json:"date"`
	Free    bool      `json:"free"`
	Options []string  `json:"options"`
}

// Fixed hourly candidates offered on a free day: 09:00-17:00 skipping the
// 12:00-14:00 lunch block.
var freeDaySlots = []string{
	"09:00-10:00 (Morning slot)",
	"10:00-11:00 (Late morning)",
	"11:00-12:00 (Pre-lunch)",
	"14:00-15:00 (Early afternoon)",
	"15:00-16:00 (Mid afternoon)",
	"16:00-17:00 (Late afternoon)",
}

// Coarse fallback offered on a busy day, without computing exact gaps.
var busyDaySlots = []string{
	"Before 12:00",
	"13:00 onwards",
}

// Engine answers availability questions and performs booking writes against
// the calendar collaborator. All times use a single fixed offset.
type Engine struct {
	cal      gcal.API
	loc      *time.Location
	timeZone string
	timeout  time.Duration
}

// NewEngine builds an availability engine. loc is the assistant's fixed
// local offset; timeZone is the provider-side zone identifier sent with
// event payloads; timeout bounds each collaborator call.
func NewEngine(cal gcal.API, loc *time.Location, timeZone string, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Engine{cal: cal, loc: loc, timeZone: timeZone, timeout: timeout}
}

// CheckAvailability fetches all events overlapping the window in a single
// server-side-filtered query and classifies the window as free or busy.
func (e *Engine) CheckAvailability(ctx context.Context, w dateparse.Window) (Result, error) {
	if !w.Valid() {
		return Result{}, ErrInvalidWindow
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start, end := w.Bounds(e.loc)
	events, err := e.cal.ListEvents(ctx, start, end)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCalendarUnavailable, err)
	}

	result := Result{Window: w, Free: len(events) == 0}
	for _, ev := range events {
		title := ev.Title
		if title == "" {
			title = "Busy"
		}
		result.Busy = append(result.Busy, Segment{
			Start: ev.Start.In(e.loc).Format("15:04"),
			End:   ev.End.In(e.loc).Format("15:04"),
			Title: title,
		})
	}
	return result, nil
}

// BookEvent re-validates the window and performs a single create call.
// Collaborator faults surface as Succeeded=false with the fault message and
// are never retried: without a dedup key a retry risks double-booking.
func (e *Engine) BookEvent(ctx context.Context, title string, w dateparse.Window, description string) Outcome {
	if !w.Valid() {
		return Outcome{
			Succeeded: false,
			Message:   fmt.Sprintf("%s Failed to create event: %v", FailureMarker, ErrInvalidWindow),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start, end := w.Bounds(e.loc)
	id, err := e.cal.InsertEvent(ctx, gcal.EventInput{
		Title:       title,
		Description: description,
		Start:       start,
		End:         end,
		TimeZone:    e.timeZone,
	})
	if err != nil {
		return Outcome{
			Succeeded: false,
			Message:   fmt.Sprintf("%s Failed to create event: %v", FailureMarker, err),
		}
	}

	date := w.Date.Format("2006-01-02")
	return Outcome{
		Succeeded: true,
		EventID:   id,
		Message: fmt.Sprintf("%s Booked '%s' on %s from %s to %s %s. Event ID: %s",
			SuccessMarker, title, date, w.Start, w.End, e.loc.String(), id),
	}
}

// SuggestSlots offers candidate windows for a date. A free day yields the six
// fixed hourly candidates; a busy day yields the coarse fallback. The slot
// duration is fixed at one hour regardless of durationMinutes, matching the
// fixed candidate grid.
func (e *Engine) SuggestSlots(ctx context.Context, date time.Time, durationMinutes int) (Suggestion, error) {
	_ = durationMinutes

	w := dateparse.Window{Date: date, Start: "09:00", End: "17:00"}
	result, err := e.CheckAvailability(ctx, w)
	if err != nil {
		return Suggestion{}, err
	}

	s := Suggestion{Date: date, Free: result.Free}
	if result.Free {
		s.Options = append(s.Options, freeDaySlots...)
	} else {
		s.Options = append(s.Options, busyDaySlots...)
	}
	return s, nil
}

// Location exposes the engine's fixed local offset for callers that render
// timestamps.
func (e *Engine) Location() *time.Location { return e.loc }
