package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// GeminiEngine drives action selection through the Gemini generateContent
// API with function calling.
type GeminiEngine struct {
	apiKey string
	model  string
	client *http.Client
}

func NewGeminiEngine(apiKey, model string, timeout time.Duration) *GeminiEngine {
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiEngine{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	Tools             []geminiTool     `json:"tools,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     *geminiFuncCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFuncResp `json:"functionResponse,omitempty"`
}

type geminiFuncCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiFuncResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFuncDecl `json:"functionDeclarations"`
}

type geminiFuncDecl struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Parameters  *geminiSchema `json:"parameters,omitempty"`
}

type geminiSchema struct {
	Type        string                  `json:"type"`
	Description string                  `json:"description,omitempty"`
	Properties  map[string]geminiSchema `json:"properties,omitempty"`
	Required    []string                `json:"required,omitempty"`
}

type geminiGenConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// actionDeclarations describes the fixed three-action catalogue.
var actionDeclarations = []geminiFuncDecl{
	{
		Name:        ActionCheckAvailability,
		Description: "Check calendar availability for a date and time range.",
		Parameters: &geminiSchema{
			Type: "object",
			Properties: map[string]geminiSchema{
				"date":       {Type: "string", Description: "Date in YYYY-MM-DD format."},
				"start_time": {Type: "string", Description: "Start time in 24-hour HH:MM."},
				"end_time":   {Type: "string", Description: "End time in 24-hour HH:MM."},
			},
			Required: []string{"date"},
		},
	},
	{
		Name:        ActionCreateEvent,
		Description: "Create a calendar event and return the confirmation.",
		Parameters: &geminiSchema{
			Type: "object",
			Properties: map[string]geminiSchema{
				"title":       {Type: "string"},
				"date":        {Type: "string", Description: "Date in YYYY-MM-DD format."},
				"start_time":  {Type: "string", Description: "Start time in 24-hour HH:MM."},
				"end_time":    {Type: "string", Description: "End time in 24-hour HH:MM."},
				"description": {Type: "string"},
			},
			Required: []string{"title", "date", "start_time", "end_time"},
		},
	},
	{
		Name:        ActionSuggestSlots,
		Description: "Suggest available time slots for a date.",
		Parameters: &geminiSchema{
			Type: "object",
			Properties: map[string]geminiSchema{
				"date":             {Type: "string", Description: "Date in YYYY-MM-DD format."},
				"duration_minutes": {Type: "string", Description: "Desired slot length in minutes."},
			},
			Required: []string{"date"},
		},
	},
}

func (e *GeminiEngine) Decide(ctx context.Context, req Request, history []Exchange) (Step, error) {
	payload := geminiRequest{
		Contents:         buildContents(req, history),
		Tools:            []geminiTool{{FunctionDeclarations: actionDeclarations}},
		GenerationConfig: &geminiGenConfig{Temperature: 0.1},
	}
	if strings.TrimSpace(req.System) != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Step{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf(geminiEndpoint, e.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Step{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", e.apiKey)

	res, err := e.client.Do(httpReq)
	if err != nil {
		return Step{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Step{}, fmt.Errorf("gemini http status %d: %s", res.StatusCode, string(detail))
	}

	var parsed geminiResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Step{}, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return Step{Reply: ""}, nil
	}

	var step Step
	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			step.Calls = append(step.Calls, ToolCall{
				Name: part.FunctionCall.Name,
				Args: stringifyArgs(part.FunctionCall.Args),
			})
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	step.Reply = strings.TrimSpace(text.String())
	return step, nil
}

// buildContents lays out the conversation for the model: the user input
// (with rendered context), then each executed action as a model
// functionCall followed by a user functionResponse.
func buildContents(req Request, history []Exchange) []geminiContent {
	input := req.Input
	if strings.TrimSpace(req.Context) != "" {
		input = req.Context + "\n\n" + req.Input
	}

	contents := []geminiContent{
		{Role: "user", Parts: []geminiPart{{Text: input}}},
	}
	for _, ex := range history {
		contents = append(contents,
			geminiContent{Role: "model", Parts: []geminiPart{{
				FunctionCall: &geminiFuncCall{Name: ex.Call.Name, Args: anyArgs(ex.Call.Args)},
			}}},
			geminiContent{Role: "user", Parts: []geminiPart{{
				FunctionResponse: &geminiFuncResp{
					Name:     ex.Call.Name,
					Response: map[string]any{"result": ex.Result},
				},
			}}},
		)
	}
	return contents
}

func stringifyArgs(args map[string]any) map[string]string {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]string, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			// JSON numbers arrive as float64; render integers without decimals.
			if val == float64(int64(val)) {
				out[k] = fmt.Sprintf("%d", int64(val))
			} else {
				out[k] = fmt.Sprintf("%v", val)
			}
		default:
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

func anyArgs(args map[string]string) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
