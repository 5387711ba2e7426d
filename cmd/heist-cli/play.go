package main

import (
	"github.com/spf13/cobra"

	"github.com/govm-net/promptheist/metrics"
)

var (
	playWallet  string
	playCase    string
	playGuess   string
	playMetrics bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Submit a guess for a case",
	Long: `Score a guess against the secret prompt of a case and award the XP.
The judge contract is deployed on first use.
Example: heist-cli play --wallet 0x... --case case_001 --guess "neon samurai in the rain"`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		m := metrics.NewManager()
		service, err := openService(engine, board, m)
		if err != nil {
			return err
		}

		verdict, err := service.SubmitGuess(cmd.Context(), playWallet, playCase, playGuess)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), verdict); err != nil {
			return err
		}
		if playMetrics {
			return m.WriteText(cmd.ErrOrStderr())
		}
		return nil
	},
}

func init() {
	playCmd.Flags().StringVarP(&playWallet, "wallet", "w", "", "Player wallet address (required)")
	playCmd.Flags().StringVarP(&playCase, "case", "c", "", "Case id (required)")
	playCmd.Flags().StringVarP(&playGuess, "guess", "g", "", "Guessed prompt")
	playCmd.Flags().BoolVar(&playMetrics, "metrics", false, "Print the metrics of this run to stderr")
	playCmd.MarkFlagRequired("wallet")
	playCmd.MarkFlagRequired("case")
}
