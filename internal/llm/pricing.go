package llm

import (
	"slices"
	"strings"
)

// ModelCost holds per-million-token pricing for a model in USD.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost calculates the total USD cost for the given token counts.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*c.InputPerMTok/1_000_000 +
		float64(outputTokens)*c.OutputPerMTok/1_000_000
}

// LookupCost returns the pricing for a model, or nil if unknown. It
// accepts the friendly names the providers resolve ("claude-haiku"),
// dated provider IDs and OpenRouter routes ("google/gemini-2.0-flash-exp").
// OpenRouter ":free" routes cost nothing.
func LookupCost(model string) *ModelCost {
	model = strings.TrimSpace(model)
	if route, ok := strings.CutSuffix(model, ":free"); ok && route != "" {
		return &ModelCost{}
	}
	for _, id := range costCandidates(model) {
		if c, ok := modelCosts[id]; ok {
			return &c
		}
	}
	return nil
}

// costCandidates lists the keys tried for a model, most specific first.
func costCandidates(model string) []string {
	ids := []string{model}
	if _, name, ok := strings.Cut(model, "/"); ok {
		// OpenRouter routes are vendor/model, with dots where the vendor
		// uses dashes in version numbers (anthropic/claude-3.5-haiku).
		ids = append(ids, name, strings.ReplaceAll(name, ".", "-"))
	}
	for _, models := range []map[string]string{anthropicModels, openaiModels, geminiModels} {
		if id, ok := models[model]; ok {
			ids = append(ids, id)
		}
	}
	for _, id := range slices.Clone(ids) {
		if base, ok := strings.CutSuffix(id, "-exp"); ok {
			ids = append(ids, base)
		}
	}
	return ids
}

// modelCosts covers the models the storyteller is configured with by
// default and the OpenRouter routes commonly pointed at it.
var modelCosts = map[string]ModelCost{
	// Anthropic: "claude-haiku" and "claude-sonnet" resolve to these.
	"claude-haiku-4-5-20251001":  {1, 5},
	"claude-haiku-4-5":           {1, 5},
	"claude-3-5-haiku-20241022":  {0.8, 4},
	"claude-3-5-haiku":           {0.8, 4},
	"claude-sonnet-4-20250514":   {3, 15},
	"claude-sonnet-4":            {3, 15},
	"claude-sonnet-4-5":          {3, 15},
	"claude-sonnet-4-5-20250929": {3, 15},

	// OpenAI
	"gpt-3.5-turbo": {0.5, 1.5},
	"gpt-4o":        {2.5, 10},
	"gpt-4o-mini":   {0.15, 0.6},
	"gpt-4.1-mini":  {0.4, 1.6},
	"gpt-4.1-nano":  {0.1, 0.4},
	"gpt-5-mini":    {0.25, 2},
	"gpt-5-nano":    {0.05, 0.4},

	// Gemini: "gemini-flash" and "gemini-pro" resolve to the 2.0 models;
	// the OpenRouter default route is the 2.0 flash preview.
	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.0-flash-lite": {0.075, 0.3},
	"gemini-2.0-pro":        {1.25, 10},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-flash-lite": {0.1, 0.4},
	"gemini-2.5-pro":        {1.25, 10},

	// Open-weight models reached through OpenRouter.
	"llama-3.1-8b-instruct":          {0.02, 0.03},
	"llama-3.3-70b-instruct":         {0.13, 0.4},
	"mistral-small-3.1-24b-instruct": {0.05, 0.1},
	"qwen-2.5-72b-instruct":          {0.12, 0.39},
}
