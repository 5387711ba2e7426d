package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/govm-net/promptheist/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "heist-cli",
	Short: "Prompt Heist command line tool",
	Long: `Prompt Heist command line tool for deploying and calling the game contracts,
managing case packs and playing rounds.
Configuration comes from HEIST_* environment variables, an optional .env file
and the YAML file named by HEIST_CONFIG.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}
		cfg = loaded
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(judgeCmd)
	rootCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(abiCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
