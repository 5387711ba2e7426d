package abi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compareCode compares two code strings ignoring formatting differences
func compareCode(got, expected string) bool {
	strip := strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "")
	return strip.Replace(got) == strip.Replace(expected)
}

func TestGenerateHandlerFile(t *testing.T) {
	abi, err := ExtractABI([]byte(vaultContract))
	require.NoError(t, err)

	code, err := GenerateHandlerFile(abi)
	require.NoError(t, err)

	expected := `// Code generated by abi.GenerateHandlerFile. DO NOT EDIT.

package vault

import (
	"encoding/json"
	"fmt"

	"github.com/govm-net/promptheist/core"
	"math/big"
)

type DepositParams struct {
	Amount uint64 ` + "`json:\"amount,omitempty\"`" + `
	Memo   string ` + "`json:\"memo,omitempty\"`" + `
}

func handleDeposit(ctx core.Context, params []byte) (any, error) {
	var args DepositParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
	}

	result0, err := Deposit(ctx, args.Amount, args.Memo)
	if err != nil {
		return nil, err
	}
	return result0, nil
}

func handleTotal(ctx core.Context, params []byte) (any, error) {
	result0 := Total(ctx)
	return result0, nil
}

type ScaleParams struct {
	Value   *big.Int ` + "`json:\"value,omitempty\"`" + `
	Factors []int    ` + "`json:\"factors,omitempty\"`" + `
}

func handleScale(ctx core.Context, params []byte) (any, error) {
	var args ScaleParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
	}

	Scale(args.Value, args.Factors)
	return nil, nil
}

// Handlers maps exported function names to their dispatchers.
var Handlers = map[string]func(ctx core.Context, params []byte) (any, error){
	"Deposit": handleDeposit,
	"Total":   handleTotal,
	"Scale":   handleScale,
}
`
	assert.True(t, compareCode(code, expected), "generated:\n%s", code)
}

func TestGenerateHandlerFileWithNoInputs(t *testing.T) {
	EnableFormatAfterGenerate = false
	t.Cleanup(func() { EnableFormatAfterGenerate = true })

	abi := &ABI{
		PackageName: "testcontract",
		Functions: []Function{
			{
				Name:       "GetBalance",
				IsExported: true,
				Outputs:    []Parameter{{Type: "uint64"}},
			},
			{
				Name:       "Pair",
				IsExported: true,
				Outputs:    []Parameter{{Type: "int64"}, {Type: "string"}},
			},
		},
	}

	code, err := GenerateHandlerFile(abi)
	require.NoError(t, err)

	expected := `// Code generated by abi.GenerateHandlerFile. DO NOT EDIT.
package testcontract

import (
	"github.com/govm-net/promptheist/core"
)

func handleGetBalance(ctx core.Context, params []byte) (any, error) {
	result0 := GetBalance()
	return result0, nil
}

func handlePair(ctx core.Context, params []byte) (any, error) {
	result0, result1 := Pair()
	return []any{result0, result1}, nil
}

// Handlers maps exported function names to their dispatchers.
var Handlers = map[string]func(ctx core.Context, params []byte) (any, error){
	"GetBalance": handleGetBalance,
	"Pair": handlePair,
}
`
	assert.True(t, compareCode(code, expected), "generated:\n%s", code)
	assert.NotContains(t, code, "encoding/json")
}

func TestFindImportForType(t *testing.T) {
	abi := &ABI{
		Imports: []Import{
			{Path: "github.com/govm-net/promptheist/core", Name: "core"},
			{Path: "github.com/govm-net/promptheist/types", Name: "vmtypes"},
			{Path: "math/big"},
		},
	}
	generator := NewHandlerGenerator(abi)

	tests := []struct {
		name     string
		typeStr  string
		wantPath string
		wantName string
	}{
		{"basic type with alias", "core.Address", "github.com/govm-net/promptheist/core", "core"},
		{"pointer type with alias", "*core.Address", "github.com/govm-net/promptheist/core", "core"},
		{"array type with alias", "[]vmtypes.Address", "github.com/govm-net/promptheist/types", "vmtypes"},
		{"type without alias", "big.Int", "math/big", ""},
		{"pointer type without alias", "*big.Int", "math/big", ""},
		{"unknown type", "unknown.Type", "", ""},
		{"builtin type", "string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generator.findImportForType(tt.typeStr)
			if tt.wantPath == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantPath, got.Path)
			assert.Equal(t, tt.wantName, got.Name)
		})
	}
}

func TestFieldName(t *testing.T) {
	assert.Equal(t, "Guess", FieldName("guess"))
	assert.Equal(t, "Userid", FieldName("userID"))
}
