package greeting

import (
	_ "embed"

	"github.com/govm-net/promptheist/vm"
)

// Name is the catalog name of the contract.
const Name = "greeting"

//go:embed greeting.go
var source []byte

func init() {
	if err := vm.Register(Name, vm.Contract{Source: source, Handlers: Handlers}); err != nil {
		panic(err)
	}
}
