package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/H-SG/telegram-quizbot/internal/bank"
)

// NewCheckCmd validates a bank file without starting the bot.
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [bank file]",
		Short: "Validate a TOML question bank",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "quiz.toml"
			if len(args) == 1 {
				path = args[0]
			}

			b, err := bank.Load(path)
			if err != nil {
				return err
			}
			for _, prompt := range b.Prompts() {
				fmt.Fprintf(cmd.OutOrStdout(), "checked: %s\n", prompt)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d questions\n", b.Len())
			return nil
		},
	}
}
