package store

import (
	"context"
	"encoding/json"
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // exact purpose match (empty = any)
	Thread  string    // exact thread match (empty = any)
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
}

// Conversation is one tutoring session linked to a model-side thread.
type Conversation struct {
	ID           int64
	UserID       string
	ThreadID     string
	HasWrong     bool
	CreatedAt    time.Time
	LastActivity time.Time
}

// Turn is one append-only exchange unit. Correct is nil for turns that
// were never graded.
type Turn struct {
	ID             int64
	ConversationID int64
	Role           string
	Content        string
	Correct        *bool
	Difficulty     string
	CreatedAt      time.Time
}

// ConversationRepo persists conversations and their turns.
type ConversationRepo interface {
	// Create inserts a conversation for the thread and returns its ID.
	Create(ctx context.Context, userID, threadID string) (int64, error)

	// Get returns the conversation by ID, or nil if none exists.
	Get(ctx context.Context, id int64) (*Conversation, error)

	// ByThread returns the conversation for a thread, or nil if none exists.
	ByThread(ctx context.Context, threadID string) (*Conversation, error)

	// Touch bumps last_activity.
	Touch(ctx context.Context, id int64) error

	// MarkWrong flips the sticky has_wrong flag.
	MarkWrong(ctx context.Context, id int64) error

	// AppendTurn records a turn and returns its ID.
	AppendTurn(ctx context.Context, turn Turn) (int64, error)

	// GradeLatestUserTurn sets the correctness flag on the most recent
	// user turn of the conversation.
	GradeLatestUserTurn(ctx context.Context, conversationID int64, correct bool) error

	// Turns returns all turns in insertion order.
	Turns(ctx context.Context, conversationID int64) ([]Turn, error)

	// ListByUser returns the user's conversations, most recent activity first.
	ListByUser(ctx context.Context, userID string) ([]Conversation, error)
}

// ExpectedAnswer is the latest question asked on a thread.
type ExpectedAnswer struct {
	ThreadID   string
	Question   string
	Answer     string
	Hint       string
	Difficulty string
	UpdatedAt  time.Time
}

// ExpectedAnswerRepo is the persistent per-thread answer cache.
type ExpectedAnswerRepo interface {
	// Get returns the cached entry, or nil if the thread has none.
	Get(ctx context.Context, threadID string) (*ExpectedAnswer, error)

	// Put replaces the thread's entry.
	Put(ctx context.Context, ans ExpectedAnswer) error
}

// GraphRepo stores serialized story graphs. Save is a full replace.
type GraphRepo interface {
	// Load returns the serialized graph, or nil if the thread has none.
	Load(ctx context.Context, threadID string) (json.RawMessage, error)
	Save(ctx context.Context, threadID string, data json.RawMessage) error
}

// Instruction is a teacher-authored prompt directive.
type Instruction struct {
	ID        int64
	Name      string
	Value     string
	Active    bool
	UpdatedAt time.Time
}

// InstructionRepo manages teacher instructions.
type InstructionRepo interface {
	// Active returns active instructions ordered by name.
	Active(ctx context.Context) ([]Instruction, error)
	List(ctx context.Context) ([]Instruction, error)

	// Upsert creates or replaces an instruction by name.
	Upsert(ctx context.Context, name, value string, active bool) error
	SetActive(ctx context.Context, name string, active bool) error
}

// Document is an uploaded lesson document.
type Document struct {
	ID        int64
	Title     string
	Summary   string
	Indexed   bool
	Active    bool
	CreatedAt time.Time
}

// DocumentRepo manages lesson documents.
type DocumentRepo interface {
	// Active returns documents that are both indexed and active.
	Active(ctx context.Context) ([]Document, error)
	List(ctx context.Context) ([]Document, error)

	// Upsert creates or replaces a document by title.
	Upsert(ctx context.Context, doc Document) error
}

// AssistantRepo maps users to their persistent assistant identity.
type AssistantRepo interface {
	// ForUser returns the user's assistant ID, creating one on first use.
	ForUser(ctx context.Context, userID string) (string, error)
}

// ThreadMessage is one message of a model-side thread.
type ThreadMessage struct {
	ID        int64
	ThreadID  string
	Role      string
	Content   string
	CreatedAt time.Time
}

// ThreadRepo persists model-side thread history.
type ThreadRepo interface {
	Create(ctx context.Context, threadID, assistantID string) error

	// Exists reports whether the thread has been created.
	Exists(ctx context.Context, threadID string) (bool, error)

	// Append records messages atomically, in order.
	Append(ctx context.Context, threadID string, msgs ...ThreadMessage) error

	// Recent returns up to limit most recent messages in chronological order.
	Recent(ctx context.Context, threadID string, limit int) ([]ThreadMessage, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	ThreadID     string // empty for calls made outside a learner's turn
	UserID       string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int64
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates LLM usage for one purpose.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates LLM usage for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int64) (*LLMEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}
