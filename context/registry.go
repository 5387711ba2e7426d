// Package context keeps the set of BlockchainContext implementations the
// engine can run contracts against. Implementations register themselves from
// an init function, so importing context/memory or context/db is enough.
package context

import (
	"fmt"
	"sort"
	"sync"

	"github.com/govm-net/promptheist/types"
)

// ContextType represents the type of blockchain context
type ContextType string

const (
	// MemoryContextType represents in-memory context implementation
	MemoryContextType ContextType = "memory"
	// DBContextType represents database-backed context implementation
	DBContextType ContextType = "db"
)

// ContextConstructor creates a new BlockchainContext instance
type ContextConstructor func(params map[string]any) (types.BlockchainContext, error)

// Registry defines the interface for managing BlockchainContext implementations
type Registry interface {
	// Register adds a new BlockchainContext implementation to the registry
	Register(ct ContextType, constructor ContextConstructor) error
	// SetDefault sets the default context type
	SetDefault(ct ContextType) error
	// Get returns a new instance of the specified context type
	Get(ct ContextType, params map[string]any) (types.BlockchainContext, error)
	// DefaultContextType returns the current default context type
	DefaultContextType() ContextType
	// ListRegistered returns the registered context types in sorted order
	ListRegistered() []ContextType
}

type registry struct {
	mu        sync.RWMutex
	contexts  map[ContextType]ContextConstructor
	defaultCt ContextType
}

var defaultRegistry Registry = NewRegistry()

// NewRegistry returns an empty registry whose default type is memory.
func NewRegistry() Registry {
	return &registry{
		contexts:  make(map[ContextType]ContextConstructor),
		defaultCt: MemoryContextType,
	}
}

// GetRegistry returns the global Registry instance
func GetRegistry() Registry {
	return defaultRegistry
}

func (r *registry) Register(ct ContextType, constructor ContextConstructor) error {
	if constructor == nil {
		return fmt.Errorf("context type %s: nil constructor", ct)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contexts[ct]; exists {
		return fmt.Errorf("context type %s already registered", ct)
	}
	r.contexts[ct] = constructor
	return nil
}

func (r *registry) SetDefault(ct ContextType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contexts[ct]; !exists {
		return fmt.Errorf("context type %s not registered", ct)
	}
	r.defaultCt = ct
	return nil
}

// Get builds a context of type ct, the default type is used when ct is empty.
func (r *registry) Get(ct ContextType, params map[string]any) (types.BlockchainContext, error) {
	r.mu.RLock()
	if ct == "" {
		ct = r.defaultCt
	}
	constructor, exists := r.contexts[ct]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("context type %s not found", ct)
	}
	ctx, err := constructor(params)
	if err != nil {
		return nil, fmt.Errorf("create %s context: %w", ct, err)
	}
	return ctx, nil
}

func (r *registry) DefaultContextType() ContextType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultCt
}

func (r *registry) ListRegistered() []ContextType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]ContextType, 0, len(r.contexts))
	for ct := range r.contexts {
		list = append(list, ct)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

// Package level functions that delegate to defaultRegistry

func Register(ct ContextType, constructor ContextConstructor) error {
	return GetRegistry().Register(ct, constructor)
}

func SetDefault(ct ContextType) error {
	return GetRegistry().SetDefault(ct)
}

func Get(ct ContextType, params map[string]any) (types.BlockchainContext, error) {
	return GetRegistry().Get(ct, params)
}

func DefaultContextType() ContextType {
	return GetRegistry().DefaultContextType()
}

func ListRegistered() []ContextType {
	return GetRegistry().ListRegistered()
}
