package gcal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryCalendar is a process-local calendar for local/dev use when no
// service account is configured.
type InMemoryCalendar struct {
	mu     sync.Mutex
	events []Event
	nextID int
}

func NewInMemoryCalendar() *InMemoryCalendar {
	return &InMemoryCalendar{}
}

// ListEvents returns events overlapping [timeMin, timeMax), sorted by start
// time, matching the provider contract.
func (c *InMemoryCalendar) ListEvents(_ context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Event
	for _, ev := range c.events {
		if ev.Start.Before(timeMax) && ev.End.After(timeMin) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (c *InMemoryCalendar) InsertEvent(_ context.Context, input EventInput) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := fmt.Sprintf("local-%d", c.nextID)
	c.events = append(c.events, Event{
		ID:    id,
		Title: input.Title,
		Start: input.Start,
		End:   input.End,
	})
	return id, nil
}
