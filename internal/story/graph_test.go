package story

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchObject() map[string]any {
	return map[string]any{
		"bridge": map[string]any{
			"id": "bridge", "kind": "challenge", "text": "The bridge has 3 planks missing.",
			"question": "How many planks?", "expected_answer": "3", "hint": "count them",
			"difficulty": "easy", "next_on_success": "GENERATE", "next_on_failure": "help",
		},
		"start": map[string]any{
			"id": "start", "kind": "narrative", "text": "A fox walks to the river.", "next": "bridge",
		},
		"help": map[string]any{
			"id": "help", "kind": "narrative", "text": "Look closely at each gap.", "next": "bridge",
		},
		"note": "ignored",
	}
}

func TestParseBatch_EntryFirst(t *testing.T) {
	nodes, err := ParseBatch(batchObject())
	require.NoError(t, err)

	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	if diff := cmp.Diff([]string{"start", "bridge", "help"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, KindChallenge, nodes[1].Kind)
	assert.Equal(t, "3", nodes[1].ExpectedAnswer)
}

func TestParseBatch_EntryWithoutStart(t *testing.T) {
	nodes, err := ParseBatch(map[string]any{
		"b": map[string]any{"id": "b", "next": "c"},
		"a": map[string]any{"id": "a", "next": "b"},
		"c": map[string]any{"id": "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a", nodes[0].ID)
	assert.Len(t, nodes, 3)
}

func TestParseBatch_NumericFields(t *testing.T) {
	nodes, err := ParseBatch(map[string]any{
		"start": map[string]any{"id": "start", "text": "Seven geese land.", "next": "2"},
		"2": map[string]any{
			"id": float64(2), "kind": "challenge", "question": "How many geese?",
			"expected_answer": float64(7), "next_on_success": "GENERATE",
		},
		"3": map[string]any{"id": "3", "expected_answer": 2.5, "hint": true},
		"bad": map[string]any{"id": "bad", "text": map[string]any{"nested": "object"}},
	})
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	assert.Equal(t, "start", nodes[0].ID)
	assert.Equal(t, "2", nodes[1].ID)
	assert.Equal(t, KindChallenge, nodes[1].Kind)
	assert.Equal(t, "7", nodes[1].ExpectedAnswer)
	assert.Equal(t, "2.5", nodes[2].ExpectedAnswer)
	assert.Equal(t, "true", nodes[2].Hint)
}

func TestParseBatch_Empty(t *testing.T) {
	_, err := ParseBatch(map[string]any{"story": "plain"})
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestAppendBatch_Namespaces(t *testing.T) {
	g := New()
	nodes, err := ParseBatch(batchObject())
	require.NoError(t, err)

	entry, err := g.AppendBatch(nodes)
	require.NoError(t, err)
	assert.Equal(t, "b0.start", entry)
	assert.Equal(t, "b0.start", g.Start())
	assert.Equal(t, 1, g.Batches)

	bridge := g.Node("b0.bridge")
	require.NotNil(t, bridge)
	assert.Equal(t, Generate, bridge.NextOnSuccess)
	assert.Equal(t, "b0.help", bridge.NextOnFailure)
	assert.Equal(t, "b0.bridge", g.Node("b0.start").Next)

	// The same local ids in a second batch never collide.
	nodes, err = ParseBatch(batchObject())
	require.NoError(t, err)
	entry, err = g.AppendBatch(nodes)
	require.NoError(t, err)
	assert.Equal(t, "b1.start", entry)
	assert.Len(t, g.Nodes, 6)
	assert.Equal(t, "b0.start", g.Start())
}

func TestAppendBatch_UnknownReferenceBecomesGenerate(t *testing.T) {
	g := New()
	_, err := g.AppendBatch([]*Node{{ID: "start", Next: "missing"}})
	require.NoError(t, err)
	assert.Equal(t, Generate, g.Node("b0.start").Next)

	next, ok := g.Resolve("b0.start", EdgeNext)
	assert.False(t, ok)
	assert.Empty(t, next)
}

func TestAppendBatch_RejectsDuplicates(t *testing.T) {
	g := New()
	_, err := g.AppendBatch([]*Node{{ID: "a"}, {ID: "a"}})
	require.True(t, errors.Is(err, ErrDuplicateNode))
	assert.True(t, g.Empty())
}

func TestResolveAndLink(t *testing.T) {
	g := New()
	nodes, err := ParseBatch(batchObject())
	require.NoError(t, err)
	_, err = g.AppendBatch(nodes)
	require.NoError(t, err)

	next, ok := g.Resolve("b0.start", EdgeNext)
	assert.True(t, ok)
	assert.Equal(t, "b0.bridge", next)

	_, ok = g.Resolve("b0.bridge", EdgeSuccess)
	assert.False(t, ok, "GENERATE must not resolve")

	_, err = g.AppendBatch([]*Node{{ID: "start", Kind: KindNarrative, Text: "Across the river."}})
	require.NoError(t, err)
	require.NoError(t, g.Link("b0.bridge", EdgeSuccess, "b1.start"))

	next, ok = g.Resolve("b0.bridge", EdgeSuccess)
	assert.True(t, ok)
	assert.Equal(t, "b1.start", next)

	// Existing nodes are untouched by linking.
	assert.Equal(t, Generate, g.Node("b0.bridge").NextOnSuccess)

	require.Error(t, g.Link("b0.bridge", EdgeSuccess, "nope"))

	end, ok := g.Resolve("b1.start", EdgeNext)
	assert.True(t, ok)
	assert.Empty(t, end, "empty successor marks the end of the story")
}

func TestRecover(t *testing.T) {
	g := New()
	assert.False(t, g.Recover())

	_, err := g.AppendBatch([]*Node{{ID: "start"}, {ID: "two"}})
	require.NoError(t, err)

	g.Current = "b0.two"
	assert.False(t, g.Recover())
	assert.Equal(t, "b0.two", g.Current)

	g.Current = "b7.ghost"
	assert.True(t, g.Recover())
	assert.Equal(t, "b0.start", g.Current)
}

func TestMarshalRoundTrip(t *testing.T) {
	g := New()
	nodes, err := ParseBatch(batchObject())
	require.NoError(t, err)
	_, err = g.AppendBatch(nodes)
	require.NoError(t, err)
	g.Current = "b0.bridge"

	data, err := g.Marshal()
	require.NoError(t, err)
	back, err := Unmarshal(data)
	require.NoError(t, err)

	if diff := cmp.Diff(g, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshal_InitializesMaps(t *testing.T) {
	g, err := Unmarshal([]byte(`{"current":"x"}`))
	require.NoError(t, err)
	assert.NotNil(t, g.Nodes)
	assert.NotNil(t, g.Links)
	assert.False(t, g.Recover())
}
