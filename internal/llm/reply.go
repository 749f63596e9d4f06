package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ReplyText normalizes a model reply to plain text. Transports sometimes
// hand back a JSON-encoded string or a list of text parts instead of bare
// text; those are unwrapped here once so nothing downstream has to probe
// the shape again.
//
//   - a JSON string is unquoted
//   - a JSON array has each element normalized and concatenated
//   - an object with a "text" or "content" string field yields that field
//   - anything else (including a bare JSON object) is returned verbatim
func ReplyText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(trimmed, &parts); err == nil {
			var b strings.Builder
			for _, p := range parts {
				b.WriteString(partText(p))
			}
			return b.String()
		}
	}
	return string(raw)
}

// partText normalizes one element of a list-shaped reply.
func partText(p json.RawMessage) string {
	trimmed := bytes.TrimSpace(p)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"', '[':
		return ReplyText(trimmed)
	case '{':
		var part map[string]any
		if err := json.Unmarshal(trimmed, &part); err == nil {
			for _, key := range []string{"text", "content"} {
				if s, ok := part[key].(string); ok {
					return s
				}
			}
		}
		return string(trimmed)
	}
	var scalar any
	if err := json.Unmarshal(trimmed, &scalar); err == nil && scalar != nil {
		return fmt.Sprint(scalar)
	}
	return string(trimmed)
}
