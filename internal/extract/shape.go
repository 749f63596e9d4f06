package extract

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abhisek/storyteller/internal/llm"
)

// Shape checks a parsed object. A non-nil error sends the reply to repair.
type Shape func(obj map[string]any) error

// StorySchema is the contract for linear story replies.
var StorySchema = &llm.Schema{
	Name:        "story-turn",
	Description: "One part of a teaching story ending in a single question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"story":           map[string]any{"type": "string"},
			"question":        map[string]any{"type": "string", "minLength": 1},
			"expected_answer": map[string]any{"type": []any{"string", "number"}, "minLength": 1},
			"difficulty":      map[string]any{"type": "string"},
			"hint":            map[string]any{"type": "string"},
		},
		"required": []any{"story", "question", "expected_answer"},
	},
}

// StoryShape validates a linear story reply against StorySchema.
func StoryShape(obj map[string]any) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return llm.ValidateJSON(StorySchema, raw)
}

var errNoNodes = errors.New("no entry is a node object with an id")

// GraphShape accepts a mapping of node ids to nodes when at least one
// entry is itself a mapping carrying an "id".
func GraphShape(obj map[string]any) error {
	for _, v := range obj {
		node, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := node["id"]; ok && fmt.Sprint(id) != "" {
			return nil
		}
	}
	return errNoNodes
}
