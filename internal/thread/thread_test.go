package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/storyteller/internal/llm"
	"github.com/abhisek/storyteller/internal/store"
)

func newTestLocal(t *testing.T, responses ...llm.MockResponse) (*Local, *llm.MockProvider, *store.Store) {
	t.Helper()
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	mock := llm.NewMockProvider(responses...)
	return NewLocal(mock, s.Threads(), 0), mock, s
}

func drain(seq func(func(Chunk, error) bool)) ([]Chunk, error) {
	var out []Chunk
	for c, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

func TestLocal_StreamAppendsAfterComplete(t *testing.T) {
	ctx := context.Background()
	local, mock, s := newTestLocal(t,
		llm.MockResponse{Content: json.RawMessage("Once upon a time there was a very small fox.")},
		llm.MockResponse{Content: json.RawMessage("The fox found two apples.")},
	)

	id, err := local.CreateThread(ctx, "asst_1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(id, "thread_"))

	chunks, err := drain(local.SendMessage(ctx, id, SendRequest{Content: "tell me a story", System: "sys", Stream: true}))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	last := chunks[len(chunks)-1]
	assert.Equal(t, MessageComplete, last.Type)
	assert.Equal(t, "Once upon a time there was a very small fox.", last.Content)

	var joined strings.Builder
	for _, c := range chunks[:len(chunks)-1] {
		assert.Equal(t, ContentChunk, c.Type)
		joined.WriteString(c.Content)
	}
	assert.Equal(t, last.Content, joined.String())

	// The second message is sent with the first exchange as history.
	_, err = drain(local.SendMessage(ctx, id, SendRequest{Content: "continue", Stream: true}))
	require.NoError(t, err)

	req := mock.Requests()[1]
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "tell me a story", req.Messages[0].Content)
	assert.Equal(t, llm.RoleAssistant, req.Messages[1].Role)
	assert.Equal(t, "continue", req.Messages[2].Content)

	msgs, err := s.Threads().Recent(ctx, id, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestLocal_NonStreamingSingleChunk(t *testing.T) {
	ctx := context.Background()
	local, _, _ := newTestLocal(t, llm.MockResponse{Content: json.RawMessage(`"quoted reply"`)})
	id, err := local.CreateThread(ctx, "asst_1")
	require.NoError(t, err)

	chunks, err := drain(local.SendMessage(ctx, id, SendRequest{Content: "hi"}))
	require.NoError(t, err)
	require.Equal(t, []Chunk{
		{Type: ContentChunk, Content: "quoted reply"},
		{Type: MessageComplete, Content: "quoted reply"},
	}, chunks)
}

func TestLocal_AbortedStreamLeavesNoHistory(t *testing.T) {
	ctx := context.Background()
	local, _, s := newTestLocal(t, llm.MockResponse{
		Content: json.RawMessage("half a story that never"),
		Err:     &llm.ErrProviderUnavailable{Err: errors.New("reset")},
	})
	id, err := local.CreateThread(ctx, "asst_1")
	require.NoError(t, err)

	_, err = drain(local.SendMessage(ctx, id, SendRequest{Content: "hi", Stream: true}))
	require.Error(t, err)

	msgs, err := s.Threads().Recent(ctx, id, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLocal_ConsumerStopLeavesNoHistory(t *testing.T) {
	ctx := context.Background()
	local, _, s := newTestLocal(t, llm.MockResponse{Content: json.RawMessage(strings.Repeat("story ", 20))})
	id, err := local.CreateThread(ctx, "asst_1")
	require.NoError(t, err)

	for range local.SendMessage(ctx, id, SendRequest{Content: "hi", Stream: true}) {
		break
	}

	msgs, err := s.Threads().Recent(ctx, id, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLocal_DeferredExchangeIsRecordedByCaller(t *testing.T) {
	ctx := context.Background()
	local, mock, s := newTestLocal(t,
		llm.MockResponse{Content: json.RawMessage("The owl counted stars.")},
		llm.MockResponse{Content: json.RawMessage("Then the moon rose.")},
	)
	id, err := local.CreateThread(ctx, "asst_1")
	require.NoError(t, err)

	chunks, err := drain(local.SendMessage(ctx, id, SendRequest{Content: "owls", Stream: true, Deferred: true}))
	require.NoError(t, err)
	reply := chunks[len(chunks)-1].Content

	msgs, err := s.Threads().Recent(ctx, id, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs, "deferred exchange is not history yet")

	require.NoError(t, local.Record(ctx, id, Exchange{User: "owls", Reply: reply}))

	_, err = drain(local.SendMessage(ctx, id, SendRequest{Content: "more", Deferred: true}))
	require.NoError(t, err)
	req := mock.Requests()[1]
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "owls", req.Messages[0].Content)
	assert.Equal(t, "The owl counted stars.", req.Messages[1].Content)
}

func TestLocal_UnknownThread(t *testing.T) {
	local, mock, _ := newTestLocal(t)
	_, err := drain(local.SendMessage(context.Background(), "thread_missing", SendRequest{Content: "hi"}))
	require.ErrorIs(t, err, ErrThreadNotFound)
	assert.Zero(t, mock.CallCount())
}
