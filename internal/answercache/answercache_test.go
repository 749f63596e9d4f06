package answercache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/storyteller/internal/config"
	"github.com/abhisek/storyteller/internal/store"
)

func TestNew_FallsBackToStore(t *testing.T) {
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c, err := New(config.RedisConfig{}, s.ExpectedAnswers(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	got, err := c.Get(ctx, "thread_a")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Put(ctx, store.ExpectedAnswer{ThreadID: "thread_a", Question: "How many?", Answer: "9"}))
	got, err = c.Get(ctx, "thread_a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "9", got.Answer)
}

func TestNewRedis_UnreachableServer(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{Addr: "127.0.0.1:1"}, nil)
	require.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := encode(store.ExpectedAnswer{
		ThreadID: "thread_a", Question: "How many geese?", Answer: "9",
		Hint: "count the wings", Difficulty: "easy", UpdatedAt: at,
	})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "thread_a", "the thread id lives in the key")

	got, err := decode("thread_a", raw)
	require.NoError(t, err)
	assert.Equal(t, &store.ExpectedAnswer{
		ThreadID: "thread_a", Question: "How many geese?", Answer: "9",
		Hint: "count the wings", Difficulty: "easy", UpdatedAt: at,
	}, got)

	_, err = decode("thread_a", []byte("not json"))
	require.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "storyteller:answer:thread_a", key("thread_a"))
}
