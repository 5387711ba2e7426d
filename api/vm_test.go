package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/govm-net/promptheist/core"
)

func TestDefaultContractAddressGenerator(t *testing.T) {
	code := []byte("package greeting")
	sender := core.AddressFromString("0x01")

	addr := DefaultContractAddressGenerator(code, sender)
	assert.NotEqual(t, core.ZeroAddress, addr)
	assert.Equal(t, addr, DefaultContractAddressGenerator(code, sender))
	assert.NotEqual(t, addr, DefaultContractAddressGenerator(code, core.AddressFromString("0x02")))
	assert.NotEqual(t, addr, DefaultContractAddressGenerator([]byte("package judge"), sender))
}

func TestValidateContract(t *testing.T) {
	config := DefaultContractConfig()

	ok := []byte(`package judge

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"github.com/govm-net/promptheist/core"
)

// Score is exported
func Score(ctx core.Context, guess string) int {
	for range strings.Fields(cases.Lower(language.Und).String(guess)) {
	}
	return 0
}
`)
	assert.NoError(t, ValidateContract(ok, config))

	bad := []byte(`package evil

import "os"
`)
	assert.ErrorIs(t, ValidateContract(bad, config), core.ErrInvalidArgument)

	assert.ErrorIs(t, ValidateContract(nil, config), core.ErrInvalidArgument)

	config.MaxCodeSize = 10
	assert.ErrorIs(t, ValidateContract([]byte(strings.Repeat("x", 11)), config), core.ErrInvalidArgument)

	assert.Error(t, ValidateContract([]byte("not go"), DefaultContractConfig()))
}

func TestValidateContractRestrictions(t *testing.T) {
	config := DefaultContractConfig()

	for name, src := range map[string]string{
		"goroutine": "package c\nfunc Run() { go func() {}() }\n",
		"select":    "package c\nfunc Run() { select {} }\n",
		"recover":   "package c\nfunc Run() { recover() }\n",
		"linkname":  "package c\n//go:linkname now time.now\nfunc Run() {}\n",
		"export":    "package c\n//export run\nfunc Run() {}\n",
		"build tag": "// +build ignore\n\npackage c\nfunc Run() {}\n",
		"no export": "package c\nfunc run() {}\n",
	} {
		assert.ErrorIs(t, ValidateContract([]byte(src), config), core.ErrInvalidArgument, name)
	}

	// ordinary comments that happen to start with a directive word are fine
	doc := "package c\n\n// Export the greeting. go: ahead\n// line one\nfunc Run() {}\n"
	assert.NoError(t, ValidateContract([]byte(doc), config))
}
