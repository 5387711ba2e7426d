package main

import (
	"github.com/spf13/cobra"

	"github.com/govm-net/promptheist/contracts/judge"
)

var judgeCmd = &cobra.Command{
	Use:   "judge <guess> <secret>",
	Short: "Score a guess against a secret prompt",
	Long: `Score a guess against a secret prompt without touching any contract state.
Example: heist-cli judge "a cat sat on mat" "a dog sat on mat"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), judge.ScoreGuess(args[0], args[1]))
	},
}
