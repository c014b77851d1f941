package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/calendent/calendent/internal/dateparse"
	"github.com/calendent/calendent/internal/reasoner"
	"github.com/calendent/calendent/internal/scheduling"
)

// dispatch executes one selected action against the availability engine and
// renders its result as text for the reasoning feedback loop. The second
// return value carries the structured outcome for create_event calls so
// booking success never depends on grepping the reply text.
func (o *Orchestrator) dispatch(ctx context.Context, call reasoner.ToolCall) (string, *scheduling.Outcome) {
	switch call.Name {
	case reasoner.ActionCheckAvailability:
		return o.runCheckAvailability(ctx, call.Args), nil
	case reasoner.ActionCreateEvent:
		return o.runCreateEvent(ctx, call.Args)
	case reasoner.ActionSuggestSlots:
		return o.runSuggestSlots(ctx, call.Args), nil
	default:
		return fmt.Sprintf("%s Unknown action %q.", scheduling.FailureMarker, call.Name), nil
	}
}

func (o *Orchestrator) runCheckAvailability(ctx context.Context, args map[string]string) string {
	w := o.windowFromArgs(args, "09:00", "17:00")

	result, err := o.tools.CheckAvailability(ctx, w)
	if err != nil {
		if o.metrics != nil {
			o.metrics.CalendarErrors.WithLabelValues("list").Inc()
		}
		return fmt.Sprintf("%s Error checking calendar: %v", scheduling.FailureMarker, err)
	}

	date := w.Date.Format("2006-01-02")
	if result.Free {
		return fmt.Sprintf("✅ %s is completely free from %s to %s %s. Available for booking!",
			date, w.Start, w.End, o.loc.String())
	}

	segments := make([]string, 0, len(result.Busy))
	for _, seg := range result.Busy {
		segments = append(segments, fmt.Sprintf("%s-%s (%s)", seg.Start, seg.End, seg.Title))
	}
	return fmt.Sprintf("📅 %s has these busy times (%s): %s. I can suggest free slots around these times.",
		date, o.loc.String(), strings.Join(segments, ", "))
}

func (o *Orchestrator) runCreateEvent(ctx context.Context, args map[string]string) (string, *scheduling.Outcome) {
	title := strings.TrimSpace(args["title"])
	if title == "" {
		title = "Meeting"
	}
	w := o.windowFromArgs(args, "", "")
	if w.Start == "" || w.End == "" {
		outcome := scheduling.Outcome{
			Succeeded: false,
			Message:   fmt.Sprintf("%s Failed to create event: start and end times are required.", scheduling.FailureMarker),
		}
		return outcome.Message, &outcome
	}

	outcome := o.tools.BookEvent(ctx, title, w, args["description"])
	if o.metrics != nil && !outcome.Succeeded {
		o.metrics.Bookings.WithLabelValues("failure").Inc()
	}
	return outcome.Message, &outcome
}

func (o *Orchestrator) runSuggestSlots(ctx context.Context, args map[string]string) string {
	date := o.dateFromArgs(args)
	duration := 60
	if d, err := strconv.Atoi(strings.TrimSpace(args["duration_minutes"])); err == nil && d > 0 {
		duration = d
	}

	suggestion, err := o.tools.SuggestSlots(ctx, date, duration)
	if err != nil {
		if o.metrics != nil {
			o.metrics.CalendarErrors.WithLabelValues("list").Inc()
		}
		return fmt.Sprintf("%s Error getting suggestions: %v", scheduling.FailureMarker, err)
	}

	day := date.Format("2006-01-02")
	if suggestion.Free {
		return fmt.Sprintf("💡 Here are suggested time slots for %s:\n• %s",
			day, strings.Join(suggestion.Options, "\n• "))
	}
	return fmt.Sprintf("💡 Based on your calendar, here are some free slots for %s:\n• %s\n\nWould you like me to book a specific time?",
		day, strings.Join(suggestion.Options, "\n• "))
}

// windowFromArgs assembles a window from action arguments. Unresolvable
// pieces fall back to defaults rather than failing the turn: a parse fault
// is never fatal.
func (o *Orchestrator) windowFromArgs(args map[string]string, defaultStart, defaultEnd string) dateparse.Window {
	w := dateparse.Window{
		Date:  o.dateFromArgs(args),
		Start: normalizeArgClock(args["start_time"], defaultStart),
		End:   normalizeArgClock(args["end_time"], defaultEnd),
	}
	return w
}

func (o *Orchestrator) dateFromArgs(args map[string]string) time.Time {
	raw := strings.TrimSpace(args["date"])
	if raw != "" {
		if date, err := time.ParseInLocation("2006-01-02", raw, o.loc); err == nil {
			return date
		}
	}
	now := o.now().In(o.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, o.loc)
}

func normalizeArgClock(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	return dateparse.NormalizeClock(raw)
}
