package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/calendent/calendent/internal/dateparse"
	"github.com/calendent/calendent/internal/gcal"
	"github.com/calendent/calendent/internal/memory"
	"github.com/calendent/calendent/internal/observability"
	"github.com/calendent/calendent/internal/reasoner"
	"github.com/calendent/calendent/internal/scheduling"
)

var ist = time.FixedZone("IST", 330*60)

// Monday.
var refNow = time.Date(2024, 6, 10, 9, 0, 0, 0, ist)

type fakeCalendar struct {
	events      []gcal.Event
	listErr     error
	insertErr   error
	listCalls   int
	insertCalls int
	lastInput   gcal.EventInput
}

func (f *fakeCalendar) ListEvents(_ context.Context, timeMin, timeMax time.Time) ([]gcal.Event, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []gcal.Event
	for _, ev := range f.events {
		if ev.Start.Before(timeMax) && ev.End.After(timeMin) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeCalendar) InsertEvent(_ context.Context, input gcal.EventInput) (string, error) {
	f.insertCalls++
	f.lastInput = input
	if f.insertErr != nil {
		return "", f.insertErr
	}
	return "evt-42", nil
}

// scriptedEngine replays a fixed decision script.
type scriptedEngine struct {
	steps  []reasoner.Step
	err    error
	rounds int
}

func (s *scriptedEngine) Decide(_ context.Context, _ reasoner.Request, _ []reasoner.Exchange) (reasoner.Step, error) {
	if s.err != nil {
		return reasoner.Step{}, s.err
	}
	i := s.rounds
	s.rounds++
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i], nil
}

func testMetrics(t *testing.T) *observability.Metrics {
	t.Helper()
	return observability.NewMetrics(fmt.Sprintf("agent_test_%s_%d", strings.ToLower(t.Name()), time.Now().UnixNano()))
}

func newTestOrchestrator(t *testing.T, engine reasoner.Engine, cal gcal.API) (*Orchestrator, memory.Store) {
	t.Helper()
	store := memory.NewInMemoryStore(20)
	tools := scheduling.NewEngine(cal, ist, "Asia/Kolkata", time.Second)
	o := NewOrchestrator(engine, tools, store, testMetrics(t), Options{
		RecentWindow: 6,
		Now:          func() time.Time { return refNow },
	})
	return o, store
}

func TestBookingHappyPath(t *testing.T) {
	cal := &fakeCalendar{}
	o, _ := newTestOrchestrator(t, reasoner.NewMockEngine(), cal)

	reply := o.HandleMessage(context.Background(), "default_user", "Book team sync tomorrow 2 PM to 3 PM")

	if !reply.BookingSucceeded {
		t.Fatalf("booking should succeed, reply: %q", reply.Text)
	}
	if !strings.Contains(reply.Text, scheduling.SuccessMarker) {
		t.Fatalf("reply should carry the success marker: %q", reply.Text)
	}
	if cal.listCalls != 1 || cal.insertCalls != 1 {
		t.Fatalf("calls = %d list, %d insert; want 1 and 1", cal.listCalls, cal.insertCalls)
	}
	want := time.Date(2024, 6, 11, 14, 0, 0, 0, ist)
	if !cal.lastInput.Start.Equal(want) {
		t.Fatalf("booked start = %v, want %v", cal.lastInput.Start, want)
	}
	if !strings.Contains(strings.ToLower(cal.lastInput.Title), "team sync") {
		t.Fatalf("booked title = %q, want it to mention team sync", cal.lastInput.Title)
	}
}

func TestBusyWindowIsNotBooked(t *testing.T) {
	cal := &fakeCalendar{
		events: []gcal.Event{{
			Title: "Standup",
			Start: time.Date(2024, 6, 11, 14, 0, 0, 0, ist),
			End:   time.Date(2024, 6, 11, 14, 30, 0, 0, ist),
		}},
	}
	o, _ := newTestOrchestrator(t, reasoner.NewMockEngine(), cal)

	reply := o.HandleMessage(context.Background(), "default_user", "Book team sync tomorrow 2 PM to 3 PM")

	if reply.BookingSucceeded {
		t.Fatalf("booking must not succeed for a busy window")
	}
	if cal.insertCalls != 0 {
		t.Fatalf("create-event must not be called, got %d inserts", cal.insertCalls)
	}
	if !strings.Contains(reply.Text, "14:00-14:30 (Standup)") {
		t.Fatalf("reply should surface the busy segment: %q", reply.Text)
	}
}

func TestSuggestSlotsPath(t *testing.T) {
	cal := &fakeCalendar{}
	o, _ := newTestOrchestrator(t, reasoner.NewMockEngine(), cal)

	reply := o.HandleMessage(context.Background(), "default_user", "What's free this Friday")

	if reply.BookingSucceeded {
		t.Fatalf("suggestion path must not book")
	}
	if cal.insertCalls != 0 {
		t.Fatalf("create-event must not be called")
	}
	for _, slot := range []string{"09:00-10:00", "10:00-11:00", "11:00-12:00", "14:00-15:00", "15:00-16:00", "16:00-17:00"} {
		if !strings.Contains(reply.Text, slot) {
			t.Fatalf("reply missing candidate %q: %q", slot, reply.Text)
		}
	}
}

func TestDayPartAvailabilityUsesDayPartWindow(t *testing.T) {
	cal := &fakeCalendar{}
	o, _ := newTestOrchestrator(t, reasoner.NewMockEngine(), cal)

	// The resolved-date annotation appended to this message contains digit
	// pairs; the checked window must still be the afternoon block.
	reply := o.HandleMessage(context.Background(), "default_user", "anything free tomorrow afternoon?")

	if cal.listCalls != 1 {
		t.Fatalf("list calls = %d, want 1", cal.listCalls)
	}
	if !strings.Contains(reply.Text, "13:00 to 16:00") {
		t.Fatalf("reply should report the 13:00-16:00 afternoon window: %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "2024-06-11") {
		t.Fatalf("reply should carry tomorrow's date: %q", reply.Text)
	}
}

func TestActionBoundTerminatesTurn(t *testing.T) {
	cal := &fakeCalendar{}
	// An engine that never stops asking for actions.
	engine := &scriptedEngine{steps: []reasoner.Step{{
		Calls: []reasoner.ToolCall{{
			Name: reasoner.ActionCheckAvailability,
			Args: map[string]string{"date": "2024-06-11", "start_time": "14:00", "end_time": "15:00"},
		}},
	}}}
	o, _ := newTestOrchestrator(t, engine, cal)

	reply := o.HandleMessage(context.Background(), "default_user", "book something tomorrow")

	if cal.listCalls != 4 {
		t.Fatalf("action invocations = %d, want exactly the bound of 4", cal.listCalls)
	}
	if reply.Text == "" {
		t.Fatalf("a partial reply must be returned when the bound is hit")
	}
	if reply.BookingSucceeded {
		t.Fatalf("no booking happened")
	}
}

func TestReasonerFaultProducesApologyAndRecordsTurns(t *testing.T) {
	cal := &fakeCalendar{}
	engine := &scriptedEngine{err: errors.New("model unavailable")}
	o, store := newTestOrchestrator(t, engine, cal)

	reply := o.HandleMessage(context.Background(), "u1", "book tomorrow 2 PM")

	if reply.BookingSucceeded {
		t.Fatalf("failed turn must not report success")
	}
	if !strings.HasPrefix(reply.Text, scheduling.FailureMarker) {
		t.Fatalf("reply should start with the failure marker: %q", reply.Text)
	}

	turns, err := store.Recent(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns recorded = %d, want user and assistant turns", len(turns))
	}
	if turns[0].Role != memory.RoleUser || turns[1].Role != memory.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", turns)
	}
}

func TestCalendarFaultSurfacesWithFailureMarker(t *testing.T) {
	cal := &fakeCalendar{listErr: context.DeadlineExceeded}
	o, store := newTestOrchestrator(t, reasoner.NewMockEngine(), cal)

	reply := o.HandleMessage(context.Background(), "u1", "Book team sync tomorrow 2 PM to 3 PM")

	if reply.BookingSucceeded {
		t.Fatalf("turn must not report success")
	}
	if !strings.Contains(reply.Text, scheduling.FailureMarker) {
		t.Fatalf("reply should contain the failure marker: %q", reply.Text)
	}
	if cal.insertCalls != 0 {
		t.Fatalf("no booking write after a failed availability check")
	}

	turns, _ := store.Recent(context.Background(), "u1", 0)
	if len(turns) != 2 {
		t.Fatalf("turns recorded = %d, want 2", len(turns))
	}
}

func TestDateAnnotationReachesEngine(t *testing.T) {
	cal := &fakeCalendar{}
	var seenInput string
	engine := engineFunc(func(_ context.Context, req reasoner.Request, _ []reasoner.Exchange) (reasoner.Step, error) {
		seenInput = req.Input
		return reasoner.Step{Reply: "noted"}, nil
	})
	o, _ := newTestOrchestrator(t, engine, cal)

	o.HandleMessage(context.Background(), "u1", "anything free tomorrow afternoon?")

	if !strings.Contains(seenInput, "(Date context: 2024-06-11)") {
		t.Fatalf("input should carry the resolved date annotation: %q", seenInput)
	}
}

func TestNoAnnotationWithoutDateKeyword(t *testing.T) {
	cal := &fakeCalendar{}
	var seenInput string
	engine := engineFunc(func(_ context.Context, req reasoner.Request, _ []reasoner.Exchange) (reasoner.Step, error) {
		seenInput = req.Input
		return reasoner.Step{Reply: "noted"}, nil
	})
	o, _ := newTestOrchestrator(t, engine, cal)

	o.HandleMessage(context.Background(), "u1", "book a meeting at 2 PM")

	if strings.Contains(seenInput, "Date context") {
		t.Fatalf("no annotation expected without a date keyword: %q", seenInput)
	}
}

func TestContextRendersPriorTurnsOnly(t *testing.T) {
	cal := &fakeCalendar{}
	var contexts []string
	engine := engineFunc(func(_ context.Context, req reasoner.Request, _ []reasoner.Exchange) (reasoner.Step, error) {
		contexts = append(contexts, req.Context)
		return reasoner.Step{Reply: "ok"}, nil
	})
	o, _ := newTestOrchestrator(t, engine, cal)

	o.HandleMessage(context.Background(), "u1", "first message")
	o.HandleMessage(context.Background(), "u1", "second message")

	if contexts[0] != "" {
		t.Fatalf("first turn should see no context, got %q", contexts[0])
	}
	if !strings.Contains(contexts[1], "user: first message") {
		t.Fatalf("second turn should see the first exchange: %q", contexts[1])
	}
	if strings.Contains(contexts[1], "second message") {
		t.Fatalf("context must only reflect turns committed before the acting phase: %q", contexts[1])
	}
}

type engineFunc func(ctx context.Context, req reasoner.Request, history []reasoner.Exchange) (reasoner.Step, error)

func (f engineFunc) Decide(ctx context.Context, req reasoner.Request, history []reasoner.Exchange) (reasoner.Step, error) {
	return f(ctx, req, history)
}

func TestWindowFromArgsDefaults(t *testing.T) {
	cal := &fakeCalendar{}
	o, _ := newTestOrchestrator(t, reasoner.NewMockEngine(), cal)

	w := o.windowFromArgs(map[string]string{"date": "2024-06-14"}, "09:00", "17:00")
	if w.Start != "09:00" || w.End != "17:00" {
		t.Fatalf("defaults not applied: %+v", w)
	}
	if w.Date.Format("2006-01-02") != "2024-06-14" {
		t.Fatalf("date = %s, want 2024-06-14", w.Date.Format("2006-01-02"))
	}

	w = o.windowFromArgs(map[string]string{"date": "garbage", "start_time": "2 PM", "end_time": "3 PM"}, "09:00", "17:00")
	if w.Date.Format("2006-01-02") != refNow.Format("2006-01-02") {
		t.Fatalf("unparseable date should fall back to today, got %s", w.Date.Format("2006-01-02"))
	}
	if w.Start != "14:00" || w.End != "15:00" {
		t.Fatalf("clock args should normalize, got %+v", w)
	}
}

func TestWindowValidCheck(t *testing.T) {
	w := dateparse.Window{Date: refNow, Start: "15:00", End: "14:00"}
	if w.Valid() {
		t.Fatalf("inverted window must be invalid")
	}
}
