package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/storyteller/internal/config"
	"github.com/abhisek/storyteller/internal/identity"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue an access token for a learner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		tok, err := identity.NewVerifier(cfg.JWTSecret).Issue(args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", identity.DefaultTTL, "Token lifetime")
}
