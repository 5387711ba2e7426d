package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.wasm>",
	Short: "List the imports and exports of a WebAssembly module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wasmBytes, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read wasm file: %w", err)
		}

		ctx := cmd.Context()
		rt := wazero.NewRuntime(ctx)
		defer rt.Close(ctx)

		module, err := rt.CompileModule(ctx, wasmBytes)
		if err != nil {
			return fmt.Errorf("failed to compile module: %w", err)
		}
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "Imported functions:")
		for _, fn := range module.ImportedFunctions() {
			moduleName, name, _ := fn.Import()
			fmt.Fprintf(out, "  - %s.%s(%s) %s\n", moduleName, name, typeNames(fn.ParamTypes()), typeNames(fn.ResultTypes()))
		}

		fmt.Fprintln(out, "\nExported functions:")
		for name, fn := range module.ExportedFunctions() {
			fmt.Fprintf(out, "  - %s(%s) %s\n", name, typeNames(fn.ParamTypes()), typeNames(fn.ResultTypes()))
		}

		fmt.Fprintln(out, "\nExported memories:")
		for name, mem := range module.ExportedMemories() {
			fmt.Fprintf(out, "  - %s (min %d pages)\n", name, mem.Min())
		}
		return nil
	},
}

func typeNames(types []api.ValueType) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, api.ValueTypeName(t))
	}
	return strings.Join(names, ", ")
}
