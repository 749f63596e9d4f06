package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDBCommand(t *testing.T, flag string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "x"}
	c.Flags().String("db", "", "")
	if flag != "" {
		require.NoError(t, c.Flags().Set("db", flag))
	}
	return c
}

func TestResolveDBPath(t *testing.T) {
	dir := t.TempDir()
	flagPath := filepath.Join(dir, "flag", "a.db")
	configured := filepath.Join(dir, "configured", "b.db")
	envPath := filepath.Join(dir, "env", "c.db")
	t.Setenv("STORYTELLER_DB", envPath)

	tests := []struct {
		name       string
		flag       string
		configured string
		want       string
	}{
		{name: "flag wins", flag: flagPath, configured: configured, want: flagPath},
		{name: "configured path", configured: configured, want: configured},
		{name: "environment", want: envPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveDBPath(newDBCommand(t, tt.flag), tt.configured)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.DirExists(t, filepath.Dir(got))
		})
	}
}

func TestOpenStoreAt_UsesConfiguredPath(t *testing.T) {
	configured := filepath.Join(t.TempDir(), "nested", "story.db")

	s, err := openStoreAt(newDBCommand(t, ""), configured)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.FileExists(t, configured)
}

func TestWriteVersion(t *testing.T) {
	info := buildInfo{Version: "v1.2.0", Go: "go1.25.6", Provider: "openrouter"}

	var text bytes.Buffer
	require.NoError(t, writeVersion(&text, info, false))
	assert.Equal(t, "storyteller v1.2.0 (go1.25.6, llm provider openrouter)\n", text.String())

	var raw bytes.Buffer
	require.NoError(t, writeVersion(&raw, info, true))
	var got map[string]string
	require.NoError(t, json.Unmarshal(raw.Bytes(), &got))
	assert.Equal(t, "openrouter", got["llm_provider"])
	assert.NotContains(t, got, "revision")
}

func TestCurrentBuild_ReadsProvider(t *testing.T) {
	t.Setenv("STORYTELLER_LLM_PROVIDER", "gemini")
	info := currentBuild()
	assert.Equal(t, "gemini", info.Provider)
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Go)
}
