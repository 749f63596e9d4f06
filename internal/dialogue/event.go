package dialogue

import (
	"errors"
	"fmt"
)

// EventType tags an event of a turn's stream.
type EventType string

const (
	EventThreadID EventType = "thread_id"
	EventContent  EventType = "content"
	EventStatus   EventType = "status"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// StatusGenerating is sent while a story graph is being expanded.
const StatusGenerating = "generating"

// Event is one item of a turn's stream. Exactly one done or error event
// ends every stream.
type Event struct {
	Type           EventType `json:"type"`
	ThreadID       string    `json:"thread_id,omitempty"`
	Content        string    `json:"content,omitempty"`
	Status         string    `json:"status,omitempty"`
	WasWrong       *bool     `json:"was_wrong,omitempty"`
	ConversationID int64     `json:"conversation_id,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// UpstreamError is a failed or timed-out model call.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ErrNotOwner means the conversation or thread belongs to another user.
var ErrNotOwner = errors.New("conversation belongs to another user")

// errAbandoned ends a turn whose consumer stopped reading.
var errAbandoned = errors.New("stream abandoned by consumer")
