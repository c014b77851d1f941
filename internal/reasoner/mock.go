package reasoner

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/calendent/calendent/internal/dateparse"
)

// MockEngine selects actions deterministically from keywords so the service
// runs without a hosted model and orchestration tests stay scripted. It
// follows the same check-then-book workflow the hosted model is instructed
// to use.
type MockEngine struct{}

func NewMockEngine() *MockEngine { return &MockEngine{} }

var isoDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

func (m *MockEngine) Decide(ctx context.Context, req Request, history []Exchange) (Step, error) {
	select {
	case <-ctx.Done():
		return Step{}, ctx.Err()
	default:
	}

	if len(history) > 0 {
		return m.followUp(req, history)
	}
	return m.firstRound(req)
}

func (m *MockEngine) firstRound(req Request) (Step, error) {
	lower := strings.ToLower(req.Input)

	// The date annotation is metadata, not schedule text; strip it before
	// window extraction so its digits cannot read as a time range.
	clean := annotationPattern.ReplaceAllString(req.Input, "")
	w := dateparse.ExtractWindowOn(clean, time.Now())
	date := w.Date.Format("2006-01-02")
	if iso := isoDatePattern.FindString(req.Input); iso != "" {
		date = iso
	}

	switch {
	case wantsSuggestions(lower):
		return Step{Calls: []ToolCall{{
			Name: ActionSuggestSlots,
			Args: map[string]string{"date": date, "duration_minutes": "60"},
		}}}, nil
	case wantsBooking(lower), asksAvailability(lower):
		return Step{Calls: []ToolCall{{
			Name: ActionCheckAvailability,
			Args: map[string]string{"date": date, "start_time": w.Start, "end_time": w.End},
		}}}, nil
	default:
		return Step{Reply: "I can check availability, suggest time slots, or book meetings on the calendar. What would you like to do?"}, nil
	}
}

func (m *MockEngine) followUp(req Request, history []Exchange) (Step, error) {
	last := history[len(history)-1]
	lower := strings.ToLower(req.Input)

	switch last.Call.Name {
	case ActionCheckAvailability:
		if wantsBooking(lower) && strings.Contains(last.Result, "completely free") {
			return Step{Calls: []ToolCall{{
				Name: ActionCreateEvent,
				Args: map[string]string{
					"title":       deriveTitle(req.Input),
					"date":        last.Call.Args["date"],
					"start_time":  last.Call.Args["start_time"],
					"end_time":    last.Call.Args["end_time"],
					"description": "",
				},
			}}}, nil
		}
		if wantsBooking(lower) {
			return Step{Reply: last.Result + "\nThat window is taken. Would one of the times around it work instead?"}, nil
		}
		return Step{Reply: last.Result}, nil
	case ActionCreateEvent, ActionSuggestSlots:
		return Step{Reply: last.Result}, nil
	default:
		return Step{Reply: last.Result}, nil
	}
}

func wantsBooking(lower string) bool {
	for _, kw := range []string{"book", "schedule", "set up", "create"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func wantsSuggestions(lower string) bool {
	for _, kw := range []string{"suggest", "free slots", "what's free", "whats free", "available slots"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func asksAvailability(lower string) bool {
	for _, kw := range []string{"free", "available", "busy", "availability"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var titleStopWords = map[string]bool{
	"book": true, "schedule": true, "create": true, "set": true, "up": true,
	"a": true, "an": true, "the": true,
	"tomorrow": true, "today": true, "next": true, "this": true, "week": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"at": true, "on": true, "from": true, "to": true, "until": true,
	"am": true, "pm": true, "for": true, "please": true,
}

var (
	timeTokenPattern  = regexp.MustCompile(`^\d{1,2}(?::\d{2})?(?:[ap]m)?$`)
	annotationPattern = regexp.MustCompile(`\(Date context: \d{4}-\d{2}-\d{2}\)`)
)

// deriveTitle builds an event title from the request text by dropping
// scheduling words and time tokens. Falls back to "Meeting".
func deriveTitle(input string) string {
	input = annotationPattern.ReplaceAllString(input, "")
	var kept []string
	for _, tok := range strings.Fields(input) {
		lower := strings.ToLower(strings.Trim(tok, ".,!?"))
		if titleStopWords[lower] || timeTokenPattern.MatchString(lower) {
			continue
		}
		kept = append(kept, strings.Trim(tok, ".,!?"))
	}
	if len(kept) == 0 {
		return "Meeting"
	}
	title := strings.Join(kept, " ")
	if len(title) > 60 {
		title = title[:60]
	}
	return title
}
