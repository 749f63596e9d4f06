package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/abhisek/storyteller/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "storyteller",
	Short: "Story-driven math tutor service",
	Long:  "storyteller serves an interactive math story over HTTP: the model tells a story, asks a question and grades the learner's answer.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine; the environment is used as is.
		_ = godotenv.Load()
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides STORYTELLER_DB env var)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(conversationCmd)
	rootCmd.AddCommand(instructionsCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the configured path, then STORYTELLER_DB env var, then the default
// XDG path.
func resolveDBPath(cmd *cobra.Command, configured string) (string, error) {
	p, _ := cmd.Flags().GetString("db")
	if p == "" {
		p = configured
	}
	if p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	return openStoreAt(cmd, "")
}

// openStoreAt opens the database, preferring configured over the
// environment when --db is not given.
func openStoreAt(cmd *cobra.Command, configured string) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd, configured)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}
