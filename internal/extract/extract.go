// Package extract pulls one JSON object out of a model reply that may
// wrap it in markdown fences or prose, and repairs it through the model
// when it does not parse.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Method names how an object was located in the reply.
type Method string

const (
	MethodDirect     Method = "direct"
	MethodFencedJSON Method = "fenced_json"
	MethodFenced     Method = "fenced"
	MethodBraces     Method = "braces"
	MethodRepaired   Method = "repaired"
	MethodFallback   Method = "fallback"
)

// ExtractionError reports a reply that did not yield a usable object.
// Slice is the text that was handed to the parser.
type ExtractionError struct {
	Slice string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract json: %v (slice %q)", e.Err, truncate(e.Slice, 120))
}

func (e *ExtractionError) Unwrap() error { return e.Err }

var (
	errNoObject  = errors.New("no JSON object found")
	errNotObject = errors.New("top-level value is not an object")

	fencedJSON = regexp.MustCompile("(?s)```[ \t]*(?i:json)[ \t]*\r?\n?(.*?)```")
	fencedAny  = regexp.MustCompile("(?s)```[^\n`]*\r?\n?(.*?)```")
)

// Extract locates and parses the JSON object in raw. It tries, in order:
// the whole reply, a fenced block labeled json, any fenced block, and the
// span from the first '{' to the last '}'.
func Extract(raw string) (map[string]any, Method, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, "", &ExtractionError{Err: errNoObject}
	}

	if strings.HasPrefix(text, "{") {
		if obj, err := parseObject(text); err == nil {
			return obj, MethodDirect, nil
		}
	}

	slice, method := locate(text)
	if slice == "" {
		return nil, "", &ExtractionError{Slice: text, Err: errNoObject}
	}
	obj, err := parseObject(slice)
	if err != nil {
		return nil, method, &ExtractionError{Slice: slice, Err: err}
	}
	return obj, method, nil
}

func locate(text string) (string, Method) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			return s, MethodFencedJSON
		}
	}
	if m := fencedAny.FindStringSubmatch(text); m != nil {
		if s := strings.TrimSpace(m[1]); strings.Contains(s, "{") {
			return s, MethodFenced
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1], MethodBraces
	}
	return "", ""
}

func parseObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
