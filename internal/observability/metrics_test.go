package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/storyteller/internal/llm"
)

func TestTurnAndExtractionCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.TurnCompleted("linear", "first", 2*time.Second)
	m.TurnCompleted("linear", "first", time.Second)
	m.TurnCompleted("graph", "wrong", time.Second)
	m.ExtractionCompleted("repaired")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Turns.WithLabelValues("linear", "first")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("graph", "wrong")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Extractions.WithLabelValues("repaired")))
}

func TestStreamOpened(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	release := m.StreamOpened()
	m.StreamOpened()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveStreams))
	release()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveStreams))
}

func TestInstrumentProvider(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`{"correct": true}`)},
		llm.MockResponse{Err: errors.New("boom")},
		llm.MockResponse{Content: json.RawMessage("a streamed story reply")},
	)
	p := m.InstrumentProvider(mock)
	ctx := llm.WithPurpose(context.Background(), "answer-validation")

	_, err := p.Generate(ctx, llm.Request{})
	require.NoError(t, err)
	_, err = p.Generate(ctx, llm.Request{})
	require.Error(t, err)

	streamCtx := llm.WithPurpose(context.Background(), "story-turn")
	for _, err := range p.Stream(streamCtx, llm.Request{}) {
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("answer-validation", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("answer-validation", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("story-turn", "ok")))
	assert.Equal(t, "mock", p.ModelID())
}

func TestHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.TurnCompleted("linear", "correct", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storyteller_turns_total{mode="linear",outcome="correct"} 1`)
}
