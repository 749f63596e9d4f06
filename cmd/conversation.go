package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/storyteller/internal/performance"
)

var conversationCmd = &cobra.Command{
	Use:   "conversation",
	Short: "Inspect stored conversations",
}

var conversationListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a learner's conversations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		convs, err := s.Conversations().ListByUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Println("No conversations.")
			return nil
		}
		fmt.Printf("%-5s  %-44s  %-5s  %s\n", "ID", "Thread", "Wrong", "Last activity")
		fmt.Println(strings.Repeat("─", 80))
		for _, c := range convs {
			fmt.Printf("%-5d  %-44s  %-5v  %s\n",
				c.ID, c.ThreadID, c.HasWrong, c.LastActivity.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var conversationShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a conversation's turns and performance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		conv, err := s.Conversations().Get(ctx, id)
		if err != nil {
			return err
		}
		if conv == nil {
			return fmt.Errorf("conversation %d not found", id)
		}
		turns, err := s.Conversations().Turns(ctx, id)
		if err != nil {
			return err
		}

		sep := strings.Repeat("─", 60)
		fmt.Printf("Conversation %d (user %s, thread %s)\n", conv.ID, conv.UserID, conv.ThreadID)
		fmt.Println(sep)
		for _, t := range turns {
			label := t.Role
			if t.Correct != nil {
				if *t.Correct {
					label += " ✓"
				} else {
					label += " ✗"
				}
			}
			if t.Difficulty != "" {
				label += " [" + t.Difficulty + "]"
			}
			fmt.Printf("%s\n%s\n\n", label, t.Content)
		}
		fmt.Println(sep)
		fmt.Println(performance.FromTurns(turns).Summary())
		return nil
	},
}

func init() {
	conversationCmd.AddCommand(conversationListCmd)
	conversationCmd.AddCommand(conversationShowCmd)
}
