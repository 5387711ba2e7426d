package vm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/govm-net/promptheist/core"
)

// Handler decodes JSON params and runs one exported contract function.
type Handler = func(ctx core.Context, params []byte) (any, error)

// Contract is a Go contract linked into the host binary
type Contract struct {
	// Source is the contract source file, the ABI is read from it
	Source []byte
	// Handlers are the generated dispatchers keyed by function name
	Handlers map[string]Handler
}

var (
	catalogMu sync.RWMutex
	catalog   = make(map[string]Contract)
)

// Register adds a native contract to the catalog. Contracts call it from init.
func Register(name string, contract Contract) error {
	if name == "" || len(contract.Source) == 0 || len(contract.Handlers) == 0 {
		return fmt.Errorf("%w: native contract %q is incomplete", core.ErrInvalidArgument, name)
	}
	catalogMu.Lock()
	defer catalogMu.Unlock()
	if _, exists := catalog[name]; exists {
		return fmt.Errorf("native contract %s already registered", name)
	}
	catalog[name] = contract
	return nil
}

// Lookup returns the registered native contract called name
func Lookup(name string) (Contract, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	contract, ok := catalog[name]
	return contract, ok
}

// Registered lists the catalog names in sorted order
func Registered() []string {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
