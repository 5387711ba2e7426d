package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/govm-net/promptheist/heist"
	"github.com/govm-net/promptheist/metrics"
)

var (
	matchCases     []string
	matchEntries   []string
	matchChallenge bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Play a full match with fixed guesses",
	Long: `Play every phase of a match. Each --entry submits the same guess in every round.
With --challenge the first player challenges each verdict and all players vote yes.
Example: heist-cli match --case case_001 --entry 0xabc...=neon samurai --entry 0xdef...=a cat`,
	RunE: func(cmd *cobra.Command, args []string) error {
		type entry struct{ wallet, guess string }
		entries := make([]entry, 0, len(matchEntries))
		for _, raw := range matchEntries {
			wallet, guess, ok := strings.Cut(raw, "=")
			if !ok {
				return fmt.Errorf("invalid entry %q, want wallet=guess", raw)
			}
			entries = append(entries, entry{wallet: wallet, guess: guess})
		}

		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		board, err := openLeaderboard(engine)
		if err != nil {
			return err
		}
		defer board.Close()

		service, err := openService(engine, board, metrics.NewManager())
		if err != nil {
			return err
		}
		match, err := service.NewMatch(matchCases...)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		for match.Phase() != heist.PhaseCompleted {
			switch match.Phase() {
			case heist.PhaseSubmit:
				for _, e := range entries {
					if err := match.Submit(e.wallet, e.guess); err != nil {
						return err
					}
				}
			case heist.PhaseChallengeWindow:
				if matchChallenge && len(entries) > 0 {
					if err := match.OpenChallenge(entries[0].wallet, ""); err != nil {
						return err
					}
					for _, e := range entries {
						if err := match.Vote(e.wallet, true); err != nil {
							return err
						}
					}
				}
			}
			if _, err := match.Advance(ctx); err != nil {
				return err
			}
		}
		return printJSON(cmd.OutOrStdout(), match.State())
	},
}

func init() {
	matchCmd.Flags().StringSliceVar(&matchCases, "case", nil, "Case ids to play, one round each (default: the first cases of the pack)")
	matchCmd.Flags().StringArrayVarP(&matchEntries, "entry", "e", nil, "Player guess as wallet=guess")
	matchCmd.Flags().BoolVar(&matchChallenge, "challenge", false, "Challenge every verdict and vote yes")
}
