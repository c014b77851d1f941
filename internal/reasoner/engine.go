package reasoner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Action names in the fixed tool catalogue offered to the reasoning
// capability.
const (
	ActionCheckAvailability = "check_availability"
	ActionCreateEvent       = "create_event"
	ActionSuggestSlots      = "suggest_time_slots"
)

// Request carries one turn's input to the reasoning capability.
type Request struct {
	System  string `json:"system"`
	Input   string `json:"input"`
	Context string `json:"context,omitempty"`
}

// ToolCall is one action selected by the capability, with concrete arguments.
type ToolCall struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}

// Exchange pairs an executed action with its result text, fed back into the
// capability before it produces its final reply.
type Exchange struct {
	Call   ToolCall `json:"call"`
	Result string   `json:"result"`
}

// Step is one decision round: either more actions to run, or a final reply
// when Calls is empty.
type Step struct {
	Reply string     `json:"reply,omitempty"`
	Calls []ToolCall `json:"calls,omitempty"`
}

// Engine is the opaque reasoning capability driving action selection. It is
// guaranteed to terminate with a reply even when it selects no actions.
type Engine interface {
	Decide(ctx context.Context, req Request, history []Exchange) (Step, error)
}

// Config controls engine construction.
type Config struct {
	Mode    string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewEngine picks the reasoning backend by mode: "gemini" for the hosted
// model, "mock" for the deterministic local engine, "auto" to prefer gemini
// when a key is configured.
func NewEngine(cfg Config) (Engine, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewGeminiEngine(cfg.APIKey, cfg.Model, cfg.Timeout), nil
		}
		return NewMockEngine(), nil
	case "gemini":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("gemini api key is required for gemini mode")
		}
		return NewGeminiEngine(cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case "mock":
		return NewMockEngine(), nil
	default:
		return nil, fmt.Errorf("unsupported reasoner mode %q", cfg.Mode)
	}
}
