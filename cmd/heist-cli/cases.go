package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/govm-net/promptheist/cases"
)

var (
	casesCount int
	casesOut   string
	casesFile  string
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Generate and validate case packs",
}

var casesGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a deterministic case pack",
	Long: `Generate a case pack from the built-in word lists.
Example: heist-cli cases generate --count 120 --out pack_v1.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		list := cases.Generate(casesCount)
		if _, err := cases.NewPack(list); err != nil {
			return err
		}
		if err := cases.Save(casesOut, list); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d cases to %s\n", len(list), casesOut)
		return nil
	},
}

var casesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a case pack file",
	RunE: func(cmd *cobra.Command, args []string) error {
		file := casesFile
		if file == "" {
			file = cfg.CasePack
		}
		if file == "" {
			return fmt.Errorf("--file is required when case_pack is not configured")
		}
		pack, err := cases.Load(file)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d cases, ok\n", file, pack.Len())
		return nil
	},
}

func init() {
	casesGenerateCmd.Flags().IntVarP(&casesCount, "count", "n", 120, "Number of cases")
	casesGenerateCmd.Flags().StringVarP(&casesOut, "out", "o", "pack_v1.json", "Output file")
	casesValidateCmd.Flags().StringVarP(&casesFile, "file", "f", "", "Case pack file")

	casesCmd.AddCommand(casesGenerateCmd)
	casesCmd.AddCommand(casesValidateCmd)
}
