package agent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/calendent/calendent/internal/dateparse"
	"github.com/calendent/calendent/internal/memory"
	"github.com/calendent/calendent/internal/observability"
	"github.com/calendent/calendent/internal/reasoner"
	"github.com/calendent/calendent/internal/scheduling"
)

// Reply is the terminal result of one conversation turn.
type Reply struct {
	Text             string
	BookingSucceeded bool
}

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	// MaxActions caps calendar action invocations per turn. A misbehaving
	// reasoning step terminates with a partial result instead of looping.
	MaxActions int
	// RecentWindow is the number of trailing turns rendered as context.
	RecentWindow int
	// TurnTimeout bounds one whole turn end to end.
	TurnTimeout time.Duration
	// Now is an injectable clock for tests.
	Now func() time.Time
}

// Orchestrator runs the per-turn decision loop: derive intent with the
// reasoning engine, execute calendar actions, and produce one final reply.
type Orchestrator struct {
	engine  reasoner.Engine
	tools   *scheduling.Engine
	store   memory.Store
	metrics *observability.Metrics
	loc     *time.Location

	maxActions   int
	recentWindow int
	turnTimeout  time.Duration
	now          func() time.Time

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func NewOrchestrator(
	engine reasoner.Engine,
	tools *scheduling.Engine,
	store memory.Store,
	metrics *observability.Metrics,
	opts Options,
) *Orchestrator {
	if opts.MaxActions <= 0 {
		opts.MaxActions = 4
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 6
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 2 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		engine:       engine,
		tools:        tools,
		store:        store,
		metrics:      metrics,
		loc:          tools.Location(),
		maxActions:   opts.MaxActions,
		recentWindow: opts.RecentWindow,
		turnTimeout:  opts.TurnTimeout,
		now:          opts.Now,
		userLocks:    make(map[string]*sync.Mutex),
	}
}

// HandleMessage processes one inbound chat message for userID. Turns for the
// same user are serialized; different users proceed concurrently. Every path
// is terminal: faults become an apologetic reply and the turn is still
// recorded for conversational continuity.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID, message string) Reply {
	lock := o.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	started := o.now()
	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	now := o.now().In(o.loc)
	currentDate := now.Format("2006-01-02")

	// The rendered context reflects turns committed strictly before this
	// turn's acting phase.
	recent, err := o.store.Recent(ctx, userID, o.recentWindow)
	if err != nil {
		log.Printf("agent: recent context read failed for %s: %v", userID, err)
	}
	convoContext := memory.RenderContext(recent)

	o.appendTurn(ctx, userID, memory.RoleUser, message)

	// Annotate date-sensitive text with the resolved date so the reasoning
	// step stays date-consistent instead of re-deriving "tomorrow".
	annotated := message
	if dateparse.HasDateKeyword(message) {
		date, _ := dateparse.ResolveDate(message, now)
		annotated = fmt.Sprintf("%s (Date context: %s)", message, date.Format("2006-01-02"))
	}

	text, booked, err := o.act(ctx, annotated, currentDate, convoContext)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		log.Printf("agent: turn failed for %s: %v", userID, err)
		text = fmt.Sprintf("%s I encountered an error: %v. Please try again.", scheduling.FailureMarker, err)
		booked = false
	}

	o.appendTurn(ctx, userID, memory.RoleAssistant, text)

	if o.metrics != nil {
		o.metrics.Turns.WithLabelValues(outcome).Inc()
		o.metrics.ObserveTurnLatency(o.now().Sub(started))
		if booked {
			o.metrics.Bookings.WithLabelValues("success").Inc()
		}
	}

	return Reply{Text: text, BookingSucceeded: booked}
}

// act runs the bounded decision loop against the reasoning engine.
func (o *Orchestrator) act(ctx context.Context, input, currentDate, convoContext string) (string, bool, error) {
	req := reasoner.Request{
		System:  systemPrompt(currentDate, o.loc.String()),
		Input:   input,
		Context: convoContext,
	}

	var (
		history []reasoner.Exchange
		actions int
		booked  bool
		partial string
	)

	for {
		step, err := o.engine.Decide(ctx, req, history)
		if err != nil {
			return "", false, fmt.Errorf("reasoning step: %w", err)
		}

		if len(step.Calls) == 0 {
			reply := step.Reply
			if reply == "" {
				reply = partialReply(partial, history)
			}
			return reply, booked, nil
		}
		if step.Reply != "" {
			partial = step.Reply
		}

		for _, call := range step.Calls {
			if actions >= o.maxActions {
				log.Printf("agent: action bound of %d reached, terminating turn", o.maxActions)
				return partialReply(partial, history), booked, nil
			}
			actions++

			result, outcome := o.dispatch(ctx, call)
			if outcome != nil && outcome.Succeeded {
				booked = true
			}
			history = append(history, reasoner.Exchange{Call: call, Result: result})

			if o.metrics != nil {
				o.metrics.Actions.WithLabelValues(call.Name).Inc()
			}
		}
	}
}

// partialReply salvages the best available text when the loop terminates
// without a final reply.
func partialReply(partial string, history []reasoner.Exchange) string {
	if partial != "" {
		return partial
	}
	if len(history) > 0 {
		return history[len(history)-1].Result
	}
	return fmt.Sprintf("%s I could not complete that request. Please try again.", scheduling.FailureMarker)
}

func (o *Orchestrator) appendTurn(ctx context.Context, userID, role, content string) {
	err := o.store.AppendTurn(ctx, memory.Turn{
		UserID:  userID,
		Role:    role,
		Content: content,
	})
	if err != nil {
		log.Printf("agent: append %s turn failed for %s: %v", role, userID, err)
	}
}

func (o *Orchestrator) lockFor(userID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		o.userLocks[userID] = lock
	}
	return lock
}
