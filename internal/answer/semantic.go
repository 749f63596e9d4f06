package answer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abhisek/storyteller/internal/llm"
	"github.com/abhisek/storyteller/internal/prompt"
)

// VerdictSchema is the JSON schema for semantic validation replies.
var VerdictSchema = &llm.Schema{
	Name:        "answer-verdict",
	Description: "Whether a learner's answer satisfies the expected answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"correct": map[string]any{
				"type":        "boolean",
				"description": "True when the learner's answer means the same as the expected answer",
			},
		},
		"required":             []any{"correct"},
		"additionalProperties": false,
	},
}

// ValidatorConfig holds configuration for the semantic validator.
type ValidatorConfig struct {
	MaxTokens int
	Model     string
}

// DefaultValidatorConfig returns sensible defaults.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{MaxTokens: 32}
}

// SemanticValidator asks the model whether an answer is acceptable when
// the deterministic rules reject it.
type SemanticValidator struct {
	provider llm.Provider
	cfg      ValidatorConfig
}

func NewSemanticValidator(provider llm.Provider, cfg ValidatorConfig) *SemanticValidator {
	return &SemanticValidator{provider: provider, cfg: cfg}
}

type verdictOutput struct {
	Correct bool `json:"correct"`
}

// Validate makes exactly one model call at temperature 0.
func (v *SemanticValidator) Validate(ctx context.Context, question, expected, student string) (bool, error) {
	ctx = llm.WithPurpose(ctx, "answer-validation")

	resp, err := v.provider.Generate(ctx, llm.Request{
		System: prompt.ValidationSystem,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt.Validation(question, expected, student)},
		},
		Schema:      VerdictSchema,
		Model:       v.cfg.Model,
		MaxTokens:   v.cfg.MaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return false, fmt.Errorf("semantic validation: %w", err)
	}

	var out verdictOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return false, fmt.Errorf("parse validation verdict: %w", err)
	}
	return out.Correct, nil
}
