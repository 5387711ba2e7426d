package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/govm-net/promptheist/core"
)

var (
	executeContract string
	executeFunction string
	executeArgs     string
	executeSender   string
	executeList     bool
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Execute a contract function",
	Long: `Execute a function of a deployed contract. Arguments are a JSON object keyed
by parameter name.
Example: heist-cli execute -c <address> -f set_greeting -a '{"greeting":"hi"}'
         heist-cli execute --list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		if executeList {
			contracts, err := engine.Contracts()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), contracts)
		}

		if executeContract == "" || executeFunction == "" {
			return fmt.Errorf("--contract and --function are required")
		}
		address, err := core.ParseAddress(executeContract)
		if err != nil {
			return fmt.Errorf("invalid contract address: %w", err)
		}
		sender := core.ZeroAddress
		if executeSender != "" {
			if sender, err = core.ParseAddress(executeSender); err != nil {
				return fmt.Errorf("invalid sender address: %w", err)
			}
		}

		var params []byte
		if executeArgs != "" {
			params = []byte(executeArgs)
		}

		result, err := engine.ExecuteAs(sender, address, executeFunction, params)
		if result != nil {
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		}
		if err != nil {
			return fmt.Errorf("failed to execute contract: %w", err)
		}
		return nil
	},
}

func init() {
	executeCmd.Flags().StringVarP(&executeContract, "contract", "c", "", "Contract address")
	executeCmd.Flags().StringVarP(&executeFunction, "function", "f", "", "Function name, Go or snake_case")
	executeCmd.Flags().StringVarP(&executeArgs, "args", "a", "", "JSON object of named arguments")
	executeCmd.Flags().StringVarP(&executeSender, "sender", "s", "", "Sender address")
	executeCmd.Flags().BoolVarP(&executeList, "list", "l", false, "List deployed contracts instead")
}
