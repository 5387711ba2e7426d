package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/govm-net/promptheist/abi"
)

var (
	abiFile     string
	abiHandlers bool
)

var abiCmd = &cobra.Command{
	Use:   "abi",
	Short: "Print the ABI of a contract source file",
	Long: `Print the ABI of a Go contract as JSON, or the generated handler file.
Example: heist-cli abi -f contracts/judge/judge.go --handlers > contracts/judge/judge.handlers.go`,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(abiFile)
		if err != nil {
			return fmt.Errorf("failed to read source file: %w", err)
		}
		contractABI, err := abi.ExtractABI(code)
		if err != nil {
			return err
		}
		if !abiHandlers {
			return printJSON(cmd.OutOrStdout(), contractABI)
		}
		handlers, err := abi.GenerateHandlerFile(contractABI)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), handlers)
		return err
	},
}

func init() {
	abiCmd.Flags().StringVarP(&abiFile, "file", "f", "", "Source file of the contract (required)")
	abiCmd.Flags().BoolVar(&abiHandlers, "handlers", false, "Print the generated handler file")
	abiCmd.MarkFlagRequired("file")
}
