package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/govm-net/promptheist/leaderboard"
)

var (
	topLimit int
	topJSON  bool
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Inspect the XP leaderboard",
}

var leaderboardTopCmd = &cobra.Command{
	Use:   "top",
	Short: "List the players with the most XP",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := topLimit
		if limit == 0 {
			limit = cfg.LeaderboardLimit
		}

		board, err := leaderboard.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer board.Close()

		players, err := board.Top(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if topJSON {
			return printJSON(cmd.OutOrStdout(), players)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tPLAYER\tWALLET\tXP")
		for i, p := range players {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i+1, p.DisplayName, p.Wallet, p.TotalXP)
		}
		return w.Flush()
	},
}

func init() {
	leaderboardTopCmd.Flags().IntVarP(&topLimit, "limit", "n", 0, "Number of players (1-200)")
	leaderboardTopCmd.Flags().BoolVar(&topJSON, "json", false, "Print JSON")
	leaderboardCmd.AddCommand(leaderboardTopCmd)
}
