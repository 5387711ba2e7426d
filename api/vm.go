// Package api provides the interfaces between the host and the contract engine.
// It is not used by contracts themselves.
package api

import (
	"crypto/sha256"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/govm-net/promptheist/core"
	"github.com/govm-net/promptheist/types"
)

// VM represents the engine that runs contracts
type VM interface {
	// DeployNative deploys a contract from the native catalog
	DeployNative(name string) (core.Address, error)

	// ExecuteAs executes a function on a deployed contract on behalf of sender.
	// args is a JSON object keyed by parameter name.
	ExecuteAs(sender, contract core.Address, function string, args []byte) (*types.ExecutionResult, error)
}

// ContractConfig defines configuration for contract validation and execution
type ContractConfig struct {
	// MaxGas is the maximum amount of gas that can be used by a contract
	MaxGas int64

	// MaxCallDepth is the maximum depth of contract calls
	MaxCallDepth int

	// MaxCodeSize is the maximum size of contract code in bytes
	MaxCodeSize uint64

	// AllowedImports contains the packages that can be imported by contracts
	AllowedImports []string
}

// DefaultContractConfig returns a default configuration for contracts
func DefaultContractConfig() ContractConfig {
	return ContractConfig{
		MaxGas:       1000000,
		MaxCallDepth: 8,
		MaxCodeSize:  1024 * 1024, // 1MB
		AllowedImports: []string{
			"github.com/govm-net/promptheist/core",
			"golang.org/x/text/",
			"errors",
			"fmt",
			"math",
			"strconv",
			"strings",
			"unicode",
		},
	}
}

// DefaultContractAddressGenerator derives a contract address from its code and deployer
func DefaultContractAddressGenerator(code []byte, sender core.Address) core.Address {
	h := sha256.New()
	h.Write(sender[:])
	h.Write(code)
	var addr core.Address
	copy(addr[:], h.Sum(nil))
	return addr
}

// ValidateContract checks that Go contract source fits the size limit,
// imports only allowed packages, avoids restricted statements and
// directives, and exports at least one function.
func ValidateContract(code []byte, config ContractConfig) error {
	if len(code) == 0 {
		return fmt.Errorf("%w: empty contract code", core.ErrInvalidArgument)
	}
	if config.MaxCodeSize > 0 && uint64(len(code)) > config.MaxCodeSize {
		return fmt.Errorf("%w: contract size %d exceeds %d", core.ErrInvalidArgument, len(code), config.MaxCodeSize)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", code, parser.ParseComments)
	if err != nil {
		return fmt.Errorf("failed to parse contract: %w", err)
	}
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("invalid import %s: %w", imp.Path.Value, err)
		}
		if !importAllowed(path, config.AllowedImports) {
			return fmt.Errorf("%w: import %q is not allowed", core.ErrInvalidArgument, path)
		}
	}
	if err := validateStatements(file); err != nil {
		return err
	}
	if err := validateComments(fset, file); err != nil {
		return err
	}

	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Recv == nil && fn.Name.IsExported() {
			return nil
		}
	}
	return fmt.Errorf("%w: contract must have at least one exported function", core.ErrInvalidArgument)
}

// importAllowed matches exact paths, entries ending in "/" allow a whole tree
func importAllowed(path string, allowed []string) bool {
	for _, a := range allowed {
		if path == a || (strings.HasSuffix(a, "/") && strings.HasPrefix(path, a)) {
			return true
		}
	}
	return false
}
