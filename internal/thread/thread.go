// Package thread provides model-side conversation threads: a handle that
// accumulates message history so each new message is answered in context.
package thread

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"

	"github.com/abhisek/storyteller/internal/llm"
	"github.com/abhisek/storyteller/internal/store"
)

// ChunkType tags a chunk of a reply.
type ChunkType string

const (
	ContentChunk    ChunkType = "content_chunk"
	MessageComplete ChunkType = "message_complete"
)

// Chunk is one piece of a reply. The message_complete chunk carries the
// full normalized reply text.
type Chunk struct {
	Type    ChunkType
	Content string
}

// SendRequest is a message sent on a thread.
type SendRequest struct {
	Content     string
	System      string
	Model       string
	Stream      bool
	MaxTokens   int
	Temperature float64

	// Deferred leaves the exchange out of the thread history; the caller
	// records it with Record once it has kept the reply.
	Deferred bool
}

// Exchange is one user message and the reply to it.
type Exchange struct {
	User  string
	Reply string
}

// Client creates threads and sends messages on them.
type Client interface {
	CreateThread(ctx context.Context, assistantID string) (string, error)

	// SendMessage yields content chunks followed by one message_complete
	// chunk. Consumers read until message_complete or the sequence ends.
	SendMessage(ctx context.Context, threadID string, req SendRequest) iter.Seq2[Chunk, error]

	// Record appends exchanges sent with Deferred to the thread history.
	Record(ctx context.Context, threadID string, exchanges ...Exchange) error
}

var ErrThreadNotFound = errors.New("thread not found")

// DefaultHistory is the number of prior messages replayed as context.
const DefaultHistory = 20

// Local implements Client on a Provider, keeping history in the store.
type Local struct {
	provider llm.Provider
	threads  store.ThreadRepo
	history  int
}

// NewLocal returns a Local client replaying up to history prior messages.
func NewLocal(provider llm.Provider, threads store.ThreadRepo, history int) *Local {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Local{provider: provider, threads: threads, history: history}
}

func (l *Local) CreateThread(ctx context.Context, assistantID string) (string, error) {
	id := "thread_" + uuid.NewString()
	if err := l.threads.Create(ctx, id, assistantID); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return id, nil
}

// SendMessage replays the thread's recent history with the new message.
// Unless the request is deferred, the user message and the reply are
// appended to the thread only once the reply completes, so an aborted
// stream leaves no half exchange.
func (l *Local) SendMessage(ctx context.Context, threadID string, req SendRequest) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		ok, err := l.threads.Exists(ctx, threadID)
		if err != nil {
			yield(Chunk{}, fmt.Errorf("look up thread: %w", err))
			return
		}
		if !ok {
			yield(Chunk{}, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID))
			return
		}

		prior, err := l.threads.Recent(ctx, threadID, l.history)
		if err != nil {
			yield(Chunk{}, fmt.Errorf("load thread history: %w", err))
			return
		}
		msgs := make([]llm.Message, 0, len(prior)+1)
		for _, m := range prior {
			role := llm.RoleUser
			if m.Role == store.RoleAssistant {
				role = llm.RoleAssistant
			}
			msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: req.Content})

		llmReq := llm.Request{
			System:      req.System,
			Messages:    msgs,
			Model:       req.Model,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		}

		var reply string
		if req.Stream {
			var done bool
			reply, done = l.stream(ctx, llmReq, yield)
			if !done {
				return
			}
		} else {
			resp, err := l.provider.Generate(ctx, llmReq)
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			reply = resp.Text()
			if !yield(Chunk{Type: ContentChunk, Content: reply}, nil) {
				return
			}
		}

		if !req.Deferred {
			if err := l.Record(ctx, threadID, Exchange{User: req.Content, Reply: reply}); err != nil {
				yield(Chunk{}, err)
				return
			}
		}
		yield(Chunk{Type: MessageComplete, Content: reply}, nil)
	}
}

func (l *Local) Record(ctx context.Context, threadID string, exchanges ...Exchange) error {
	if len(exchanges) == 0 {
		return nil
	}
	msgs := make([]store.ThreadMessage, 0, 2*len(exchanges))
	for _, ex := range exchanges {
		msgs = append(msgs,
			store.ThreadMessage{Role: store.RoleUser, Content: ex.User},
			store.ThreadMessage{Role: store.RoleAssistant, Content: ex.Reply},
		)
	}
	if err := l.threads.Append(ctx, threadID, msgs...); err != nil {
		return fmt.Errorf("append thread messages: %w", err)
	}
	return nil
}

// stream relays deltas and returns the full reply. done is false when the
// stream failed or the consumer stopped.
func (l *Local) stream(ctx context.Context, req llm.Request, yield func(Chunk, error) bool) (string, bool) {
	var text strings.Builder
	for ev, err := range l.provider.Stream(ctx, req) {
		if err != nil {
			yield(Chunk{}, err)
			return "", false
		}
		if ev.Done {
			if ev.Response != nil {
				return ev.Response.Text(), true
			}
			return text.String(), true
		}
		text.WriteString(ev.Delta)
		if !yield(Chunk{Type: ContentChunk, Content: ev.Delta}, nil) {
			return "", false
		}
	}
	// A provider that ends without a final event still produced a reply.
	return text.String(), true
}
