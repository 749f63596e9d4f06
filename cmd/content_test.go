package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContent(t *testing.T) {
	f, err := parseContent([]byte(`
instructions:
  - name: tone
    value: Keep sentences short.
  - name: theme
    value: Space pirates.
    active: false
documents:
  - title: Fractions unit
    summary: Halves and quarters.
    indexed: false
`))
	require.NoError(t, err)
	require.Len(t, f.Instructions, 2)
	assert.Equal(t, "tone", f.Instructions[0].Name)
	assert.True(t, boolOr(f.Instructions[0].Active, true))
	assert.False(t, boolOr(f.Instructions[1].Active, true))

	require.Len(t, f.Documents, 1)
	assert.False(t, boolOr(f.Documents[0].Indexed, true))
	assert.True(t, boolOr(f.Documents[0].Active, true))
}

func TestParseContent_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "missing name", in: "instructions:\n  - value: x\n"},
		{name: "missing title", in: "documents:\n  - summary: x\n"},
		{name: "not yaml", in: "instructions: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseContent([]byte(tt.in))
			assert.Error(t, err)
		})
	}
}
