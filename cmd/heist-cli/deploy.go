package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/govm-net/promptheist/core"
)

var (
	deployContract string
	deployWASM     string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a smart contract",
	Long: `Deploy a native contract from the built-in catalog or a WebAssembly module.
Example: heist-cli deploy --contract greeting
         heist-cli deploy --wasm contract.wasm`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (deployContract == "") == (deployWASM == "") {
			return errors.New("exactly one of --contract or --wasm is required")
		}

		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		var address core.Address
		if deployContract != "" {
			address, err = engine.DeployNative(deployContract)
		} else {
			var code []byte
			code, err = os.ReadFile(deployWASM)
			if err != nil {
				return fmt.Errorf("failed to read wasm file: %w", err)
			}
			address, err = engine.DeployWASM(cmd.Context(), code)
		}
		if errors.Is(err, core.ErrContractExists) {
			fmt.Fprintf(cmd.OutOrStdout(), "Contract already deployed at %s\n", address)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to deploy contract: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Contract deployed successfully!\n")
		fmt.Fprintf(cmd.OutOrStdout(), "Contract address: %s\n", address)
		return nil
	},
}

func init() {
	deployCmd.Flags().StringVarP(&deployContract, "contract", "c", "", "Native contract name (greeting or judge)")
	deployCmd.Flags().StringVarP(&deployWASM, "wasm", "w", "", "WebAssembly module file")
}
