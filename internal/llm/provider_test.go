package llm

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestMockProvider_SharesQueueAcrossStreamAndGenerate(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`Nine apples fell.`), Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{Content: json.RawMessage(`{"correct":true}`)},
	)

	deltas, final, err := collect(mock.Stream(context.Background(), Request{System: "story"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(deltas, "") != "Nine apples fell." || final.Usage.InputTokens != 10 {
		t.Fatalf("stream = %q, %+v", deltas, final)
	}

	resp, err := mock.Generate(context.Background(), Request{System: "verdict"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Content) != `{"correct":true}` || resp.StopReason != "end" {
		t.Fatalf("generate = %s (%s)", resp.Content, resp.StopReason)
	}

	reqs := mock.Requests()
	if len(reqs) != 2 || reqs[0].System != "story" || reqs[1].System != "verdict" {
		t.Fatalf("requests = %+v", reqs)
	}
	if mock.Pending() != 0 {
		t.Fatalf("pending = %d", mock.Pending())
	}

	mock.AddResponse(MockResponse{Err: &ErrRateLimit{}})
	_, err = mock.Generate(context.Background(), Request{})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T", err)
	}

	_, err = mock.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("empty queue: expected ErrProviderUnavailable, got: %T", err)
	}
	if mock.ModelID() != "mock" {
		t.Fatalf("model = %q", mock.ModelID())
	}
}

func TestAttribution(t *testing.T) {
	ctx := context.Background()
	if got := AttributionFrom(ctx); got != (Attribution{Purpose: "unknown"}) {
		t.Fatalf("empty context = %+v", got)
	}

	ctx = WithThread(ctx, "alice", "thread-1")
	ctx = WithPurpose(ctx, "story-turn")
	want := Attribution{Purpose: "story-turn", ThreadID: "thread-1", UserID: "alice"}
	if got := AttributionFrom(ctx); got != want {
		t.Fatalf("attribution = %+v, want %+v", got, want)
	}

	// A nested purpose keeps the thread and leaves the parent untouched.
	repair := WithPurpose(ctx, "json-repair")
	if got := AttributionFrom(repair); got.Purpose != "json-repair" || got.ThreadID != "thread-1" {
		t.Fatalf("nested = %+v", got)
	}
	if PurposeFrom(ctx) != "story-turn" {
		t.Fatalf("parent purpose = %q", PurposeFrom(ctx))
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "anthropic without key", cfg: Config{Provider: "anthropic"}, wantErr: "STORYTELLER_ANTHROPIC_API_KEY"},
		{name: "anthropic with key", cfg: Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}}},
		{name: "openai without key", cfg: Config{Provider: "openai"}, wantErr: "STORYTELLER_OPENAI_API_KEY"},
		{name: "gemini without key", cfg: Config{Provider: "gemini"}, wantErr: "STORYTELLER_GEMINI_API_KEY"},
		{name: "openrouter without key", cfg: Config{Provider: "openrouter"}, wantErr: "STORYTELLER_OPENROUTER_API_KEY"},
		{name: "openrouter with key", cfg: Config{Provider: "openrouter", OpenRouter: OpenRouterConfig{APIKey: "sk-or"}}},
		{name: "mock needs no key", cfg: Config{Provider: "mock"}},
		{name: "unknown provider", cfg: Config{Provider: "llamafile"}, wantErr: "unknown LLM provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

// clearProviderEnv unsets every variable provider discovery reads.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"STORYTELLER_LLM_PROVIDER", "STORYTELLER_ANTHROPIC_API_KEY", "STORYTELLER_OPENAI_API_KEY",
		"STORYTELLER_GEMINI_API_KEY", "STORYTELLER_OPENROUTER_API_KEY", "STORYTELLER_LLM_MAX_ATTEMPTS",
		"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestConfigFromEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("STORYTELLER_LLM_PROVIDER", "openrouter")
	t.Setenv("STORYTELLER_OPENROUTER_API_KEY", "sk-or")
	t.Setenv("STORYTELLER_OPENROUTER_MODEL", "meta-llama/llama-3.1-8b-instruct")
	t.Setenv("STORYTELLER_OPENROUTER_APP_URL", "https://tutor.example")
	t.Setenv("STORYTELLER_LLM_MAX_ATTEMPTS", "5")
	t.Setenv("STORYTELLER_LLM_TIMEOUT", "45s")

	cfg := ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenRouter.Model != "meta-llama/llama-3.1-8b-instruct" || cfg.OpenRouter.AppURL != "https://tutor.example" {
		t.Errorf("openrouter = %+v", cfg.OpenRouter)
	}
	if cfg.OpenRouter.AppName != "storyteller" {
		t.Errorf("app name = %q", cfg.OpenRouter.AppName)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Timeout.String() != "45s" {
		t.Errorf("retry = %+v, timeout = %s", cfg.Retry, cfg.Timeout)
	}
}

func TestDiscoverConfig(t *testing.T) {
	clearProviderEnv(t)
	if _, ok := DiscoverConfig(); ok {
		t.Fatal("discovered a provider with no keys set")
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "sk-oai")
	cfg, ok := DiscoverConfig()
	if !ok || cfg.Provider != "openai" || cfg.OpenAI.APIKey != "sk-oai" {
		t.Fatalf("discover = %+v, %v; OpenAI outranks Anthropic", cfg, ok)
	}
}

func TestNewProviderFromEnv(t *testing.T) {
	t.Run("explicit mock", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("STORYTELLER_LLM_PROVIDER", "mock")
		p, err := NewProviderFromEnv(context.Background(), nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.ModelID() != "mock" {
			t.Fatalf("model = %q", p.ModelID())
		}
	})

	t.Run("explicit provider is not second-guessed", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("STORYTELLER_LLM_PROVIDER", "anthropic")
		t.Setenv("OPENAI_API_KEY", "sk-oai")
		if _, err := NewProviderFromEnv(context.Background(), nil, nil); err == nil {
			t.Fatal("expected the missing anthropic key to be reported")
		}
	})

	t.Run("falls back to a standard key", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("OPENROUTER_API_KEY", "sk-or")
		t.Setenv("STORYTELLER_LLM_MAX_ATTEMPTS", "4")
		p, err := NewProviderFromEnv(context.Background(), nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.ModelID() != "google/gemini-2.0-flash-exp" {
			t.Fatalf("model = %q", p.ModelID())
		}
		retry, ok := p.(*RetryProvider)
		if !ok || retry.config.MaxAttempts != 4 {
			t.Fatalf("provider = %T %+v, want retries kept from the environment", p, p)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		clearProviderEnv(t)
		if _, err := NewProviderFromEnv(context.Background(), nil, nil); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestLookupCost(t *testing.T) {
	tests := []struct {
		model string
		in    float64
	}{
		{model: "claude-haiku", in: 1},
		{model: "claude-haiku-4-5-20251001", in: 1},
		{model: "gpt-4o-mini", in: 0.15},
		{model: "gemini-flash", in: 0.1},
		{model: "google/gemini-2.0-flash-exp", in: 0.1},
		{model: "anthropic/claude-3.5-haiku", in: 0.8},
		{model: "openai/gpt-4o-mini", in: 0.15},
		{model: "meta-llama/llama-3.1-8b-instruct", in: 0.02},
		{model: "mistralai/mistral-7b-instruct:free", in: 0},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			c := LookupCost(tt.model)
			if c == nil {
				t.Fatalf("no price for %q", tt.model)
			}
			if c.InputPerMTok != tt.in {
				t.Errorf("input price = %v, want %v", c.InputPerMTok, tt.in)
			}
		})
	}

	if LookupCost("mock") != nil || LookupCost("") != nil {
		t.Error("priced an unknown model")
	}
}

func TestDefaultModelsArePriced(t *testing.T) {
	d := DefaultConfig()
	for _, model := range []string{d.Anthropic.Model, d.OpenAI.Model, d.Gemini.Model, d.OpenRouter.Model} {
		if LookupCost(model) == nil {
			t.Errorf("default model %q has no price", model)
		}
	}
}

func TestModelCost_Cost(t *testing.T) {
	c := ModelCost{InputPerMTok: 1, OutputPerMTok: 5}
	if got := c.Cost(2_000, 400); math.Abs(got-0.004) > 1e-12 {
		t.Fatalf("cost = %v, want 0.004", got)
	}
}
