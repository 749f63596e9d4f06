package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genai"
)

func TestGeminiModelSelection(t *testing.T) {
	tests := []struct {
		name     string
		override string
		want     string
	}{
		{name: "configured", want: "gemini-2.0-flash"},
		{name: "friendly override", override: "gemini-pro", want: "gemini-2.0-pro"},
		{name: "id override", override: "gemini-2.0-pro", want: "gemini-2.0-pro"},
		{name: "foreign model ignored", override: "gpt-4o", want: "gemini-2.0-flash"},
	}
	configured := resolveModel("gemini-flash", geminiModels)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickModel(tt.override, configured, geminiModels); got != tt.want {
				t.Errorf("pickModel(%q) = %q, want %q", tt.override, got, tt.want)
			}
		})
	}
}

func TestBuildGeminiSchema_StoryTurn(t *testing.T) {
	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"story":           map[string]any{"type": "string", "minLength": 1},
			"question":        map[string]any{"type": "string"},
			"expected_answer": map[string]any{"type": []any{"string", "number"}},
			"difficulty":      map[string]any{"type": "string", "enum": []any{"easy", "medium", "hard"}},
			"steps": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer"},
			},
			"score": map[string]any{"type": []any{"null", "number"}},
		},
		"required": []any{"story", "question", "expected_answer"},
	}

	schema := buildGeminiSchema(def)

	if schema.Type != genai.TypeObject {
		t.Fatalf("type = %s, want OBJECT", schema.Type)
	}
	want := map[string]genai.Type{
		"story":           genai.TypeString,
		"question":        genai.TypeString,
		"expected_answer": genai.TypeString,
		"difficulty":      genai.TypeString,
		"steps":           genai.TypeArray,
		"score":           genai.TypeNumber,
	}
	for name, typ := range want {
		if got := schema.Properties[name].Type; got != typ {
			t.Errorf("%s type = %s, want %s", name, got, typ)
		}
	}
	if n := len(schema.Properties["difficulty"].Enum); n != 3 {
		t.Errorf("difficulty enum has %d values", n)
	}
	if schema.Properties["steps"].Items.Type != genai.TypeInteger {
		t.Errorf("steps items = %s", schema.Properties["steps"].Items.Type)
	}
	if len(schema.Required) != 3 {
		t.Errorf("required = %v", schema.Required)
	}
}

func TestBuildGeminiConfig(t *testing.T) {
	cfg := buildGeminiConfig(Request{
		System:      "You grade answers.",
		MaxTokens:   64,
		Temperature: 0.2,
		Schema: &Schema{Name: "answer-verdict", Definition: map[string]any{
			"type":       "object",
			"properties": map[string]any{"correct": map[string]any{"type": "boolean"}},
		}},
	})
	if cfg.MaxOutputTokens != 64 {
		t.Errorf("max tokens = %d", cfg.MaxOutputTokens)
	}
	if cfg.Temperature == nil || *cfg.Temperature != float32(0.2) {
		t.Errorf("temperature = %v", cfg.Temperature)
	}
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "You grade answers." {
		t.Errorf("system instruction = %+v", cfg.SystemInstruction)
	}
	if cfg.ResponseMIMEType != "application/json" {
		t.Errorf("mime type = %q", cfg.ResponseMIMEType)
	}
	if cfg.ResponseSchema.Properties["correct"].Type != genai.TypeBoolean {
		t.Errorf("schema = %+v", cfg.ResponseSchema)
	}

	plain := buildGeminiConfig(Request{})
	if plain.Temperature != nil || plain.SystemInstruction != nil || plain.ResponseSchema != nil {
		t.Errorf("unexpected settings on a plain request: %+v", plain)
	}
}

func TestBuildGeminiContents(t *testing.T) {
	contents := buildGeminiContents([]Message{
		{Role: RoleUser, Content: "tell me a story"},
		{Role: RoleAssistant, Content: "Five ducks swam."},
		{Role: RoleUser, Content: "5"},
	})
	roles := make([]string, len(contents))
	for i, c := range contents {
		roles[i] = c.Role
	}
	if fmt.Sprint(roles) != "[user model user]" {
		t.Errorf("roles = %v", roles)
	}
	if contents[1].Parts[0].Text != "Five ducks swam." {
		t.Errorf("text = %q", contents[1].Parts[0].Text)
	}
}

func TestMapGeminiError(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"})

	var rl *ErrRateLimit
	if !errors.As(mapGeminiError(wrapped), &rl) {
		t.Errorf("429 not mapped to a rate limit")
	}

	var unavail *ErrProviderUnavailable
	if !errors.As(mapGeminiError(genai.APIError{Code: 503}), &unavail) {
		t.Errorf("503 not mapped to unavailable")
	}
	if !errors.As(mapGeminiError(errors.New("dial tcp: refused")), &unavail) {
		t.Errorf("network error not mapped to unavailable")
	}
	if err := mapGeminiError(context.DeadlineExceeded); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("deadline = %v", err)
	}
}

func TestMapGeminiStopReason(t *testing.T) {
	tests := []struct {
		reason genai.FinishReason
		want   string
	}{
		{genai.FinishReasonStop, "end"},
		{genai.FinishReasonMaxTokens, "max_tokens"},
		{genai.FinishReasonSafety, "end"},
	}
	for _, tt := range tests {
		result := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: tt.reason}}}
		if got := mapGeminiStopReason(result); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.reason, got, tt.want)
		}
	}
	if got := mapGeminiStopReason(&genai.GenerateContentResponse{}); got != "end" {
		t.Errorf("no candidates: %q", got)
	}
}
