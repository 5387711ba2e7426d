// Package vm deploys contracts and runs calls against a BlockchainContext.
// Native contracts are Go code linked into the host, WASM contracts run in
// the wazero host from package wasi.
package vm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/govm-net/promptheist/abi"
	"github.com/govm-net/promptheist/api"
	vmcontext "github.com/govm-net/promptheist/context"
	_ "github.com/govm-net/promptheist/context/memory"
	"github.com/govm-net/promptheist/core"
	"github.com/govm-net/promptheist/mock"
	"github.com/govm-net/promptheist/repository"
	"github.com/govm-net/promptheist/types"
	"github.com/govm-net/promptheist/wasi"
)

// Gas schedule
const (
	GasCall        int64 = 100
	GasPerArgByte  int64 = 1
	GasObjectRead  int64 = 10
	GasObjectWrite int64 = 50
	GasLog         int64 = 20
)

// InitFunction runs once when a native contract is deployed. It cannot be
// called afterwards.
const InitFunction = "Initialize"

// CallObserver is told about every top-level call
type CallObserver interface {
	ObserveCall(contract, function string, err error)
}

// Engine is responsible for contract deployment and execution
type Engine struct {
	config         *Config
	contractConfig api.ContractConfig
	wazeroEngine   *wasi.WazeroVM
	codeManager    *repository.Manager
	ctx            types.BlockchainContext // Blockchain context
	observer       CallObserver

	// mu serialises calls, contracts never run concurrently
	mu           sync.Mutex
	height       uint64
	initializing bool
	gas     *mock.GasMeter
	stack   mock.CallStack
	natives map[core.Address]Contract
	abis    map[core.Address]*abi.ABI
}

// Config represents engine configuration
type Config struct {
	MaxContractSize  uint64         // Maximum contract size
	RepoDir          string         // Code repository directory
	WASIContractsDir string         // WASI contract storage directory
	ContextType      string         // Blockchain context type
	ContextParams    map[string]any // Blockchain context parameters
	GasLimit         int64          // Gas available to one top-level call
	MaxCallDepth     int            // Maximum nesting of cross-contract calls
}

// DefaultConfig returns a memory-backed configuration rooted at dir
func DefaultConfig(dir string) *Config {
	contractConfig := api.DefaultContractConfig()
	return &Config{
		MaxContractSize:  contractConfig.MaxCodeSize,
		RepoDir:          filepath.Join(dir, "repo"),
		WASIContractsDir: filepath.Join(dir, "wasm"),
		ContextType:      string(vmcontext.MemoryContextType),
		GasLimit:         contractConfig.MaxGas,
		MaxCallDepth:     contractConfig.MaxCallDepth,
	}
}

// NewEngine creates a new contract engine
func NewEngine(config *Config) (*Engine, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	contractConfig := api.DefaultContractConfig()
	contractConfig.MaxCodeSize = config.MaxContractSize
	contractConfig.MaxGas = config.GasLimit
	contractConfig.MaxCallDepth = config.MaxCallDepth

	wazeroEngine, err := wasi.NewWazeroVM(config.WASIContractsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create wazero engine: %w", err)
	}

	codeManager, err := repository.NewManager(config.RepoDir)
	if err != nil {
		wazeroEngine.Close(context.Background())
		return nil, fmt.Errorf("failed to create code manager: %w", err)
	}

	ctx, err := vmcontext.Get(vmcontext.ContextType(config.ContextType), config.ContextParams)
	if err != nil {
		wazeroEngine.Close(context.Background())
		return nil, fmt.Errorf("failed to get blockchain context: %w", err)
	}

	return &Engine{
		config:         config,
		contractConfig: contractConfig,
		wazeroEngine:   wazeroEngine,
		codeManager:    codeManager,
		ctx:            ctx,
		height:         ctx.BlockHeight(),
		natives:        make(map[core.Address]Contract),
		abis:           make(map[core.Address]*abi.ABI),
	}, nil
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config == nil {
		return errors.New("config is nil")
	}
	if config.MaxContractSize == 0 {
		return errors.New("invalid max contract size: 0")
	}
	if config.RepoDir == "" {
		return errors.New("repository directory is empty")
	}
	if config.WASIContractsDir == "" {
		return errors.New("WASI contracts directory is empty")
	}
	if config.GasLimit <= 0 {
		return fmt.Errorf("invalid gas limit: %d", config.GasLimit)
	}
	if config.MaxCallDepth <= 0 {
		return fmt.Errorf("invalid max call depth: %d", config.MaxCallDepth)
	}
	return nil
}

// GetContext returns the blockchain context calls run against
func (e *Engine) GetContext() types.BlockchainContext {
	return e.ctx
}

// SetCallObserver installs o, nil removes it
func (e *Engine) SetCallObserver(o CallObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = o
}

// NativeAddress is the address DeployNative uses for name
func (e *Engine) NativeAddress(name string) (core.Address, error) {
	contract, ok := Lookup(name)
	if !ok {
		return core.ZeroAddress, fmt.Errorf("%w: native contract %s", core.ErrContractNotFound, name)
	}
	return api.DefaultContractAddressGenerator(contract.Source, core.ZeroAddress), nil
}

// IsDeployed reports whether a contract lives at addr
func (e *Engine) IsDeployed(addr core.Address) bool {
	return e.codeManager.Exists(addr)
}

// DeployNative deploys a catalog contract at its deterministic address
func (e *Engine) DeployNative(name string) (core.Address, error) {
	addr, err := e.NativeAddress(name)
	if err != nil {
		return core.ZeroAddress, err
	}
	return addr, e.DeployNativeWithAddress(name, addr)
}

// DeployNativeWithAddress deploys a catalog contract at addr and runs its
// Initialize function when it has one.
func (e *Engine) DeployNativeWithAddress(name string, addr core.Address) error {
	contract, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("%w: native contract %s", core.ErrContractNotFound, name)
	}
	if err := api.ValidateContract(contract.Source, e.contractConfig); err != nil {
		return fmt.Errorf("contract validation failed: %w", err)
	}
	contractABI, err := abi.ExtractABI(contract.Source)
	if err != nil {
		return fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.codeManager.RegisterCode(addr, name, repository.KindNative, contract.Source, contractABI); err != nil {
		return fmt.Errorf("failed to save contract code: %w", err)
	}
	if err := e.ensureDefaultObject(addr); err != nil {
		e.codeManager.Remove(addr)
		return err
	}
	e.natives[addr] = contract
	e.abis[addr] = contractABI

	if _, ok := contractABI.Function(InitFunction); ok {
		e.initializing = true
		_, err := e.run(core.ZeroAddress, addr, InitFunction, nil)
		e.initializing = false
		if err != nil {
			e.forget(addr)
			return fmt.Errorf("failed to initialize contract: %w", err)
		}
	}

	slog.Info("Contract deployed", "name", name, "address", addr, "kind", repository.KindNative)
	return nil
}

// ensureDefaultObject creates the contract's default object unless a
// persistent context already holds it.
func (e *Engine) ensureDefaultObject(addr core.Address) error {
	id := core.DefaultObjectID(addr)
	if _, err := e.ctx.GetObject(addr, id); err == nil {
		return nil
	}
	if _, err := e.ctx.CreateObjectWithID(addr, id); err != nil {
		return fmt.Errorf("failed to create contract object: %w", err)
	}
	return nil
}

func (e *Engine) forget(addr core.Address) {
	delete(e.natives, addr)
	delete(e.abis, addr)
	e.ctx.DeleteObject(addr, core.DefaultObjectID(addr))
	e.codeManager.Remove(addr)
}

// DeployWASM deploys a WebAssembly module that follows the wasi calling
// convention. The address is returned with ErrContractExists too.
func (e *Engine) DeployWASM(ctx context.Context, code []byte) (core.Address, error) {
	if uint64(len(code)) > e.config.MaxContractSize {
		return core.ZeroAddress, fmt.Errorf("%w: contract size %d exceeds %d", core.ErrInvalidArgument, len(code), e.config.MaxContractSize)
	}
	addr := api.DefaultContractAddressGenerator(code, core.ZeroAddress)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.codeManager.RegisterCode(addr, "", repository.KindWASM, code, &abi.ABI{}); err != nil {
		return addr, fmt.Errorf("failed to save contract code: %w", err)
	}
	if err := e.wazeroEngine.DeployContractWithAddress(ctx, e.ctx, code, addr); err != nil {
		e.codeManager.Remove(addr)
		return core.ZeroAddress, fmt.Errorf("contract deployment failed: %w", err)
	}

	slog.Info("Contract deployed", "address", addr, "kind", repository.KindWASM, "size", len(code))
	return addr, nil
}

// ContractInfo describes a deployed contract
type ContractInfo struct {
	repository.Metadata
	ABI *abi.ABI `json:"abi,omitempty"`
}

// Contracts lists the deployed contracts
func (e *Engine) Contracts() ([]ContractInfo, error) {
	list, err := e.codeManager.List()
	if err != nil {
		return nil, err
	}
	infos := make([]ContractInfo, 0, len(list))
	for _, metadata := range list {
		contractABI, err := e.codeManager.GetABI(metadata.Address)
		if err != nil {
			return nil, err
		}
		infos = append(infos, ContractInfo{Metadata: metadata, ABI: contractABI})
	}
	return infos, nil
}

// ExecuteContract executes a contract function with positional arguments,
// which are matched to the ABI parameter names.
func (e *Engine) ExecuteContract(contractAddr core.Address, function string, args ...any) (*types.ExecutionResult, error) {
	return e.ExecuteContractAs(core.ZeroAddress, contractAddr, function, args...)
}

// ExecuteContractAs is ExecuteContract on behalf of sender
func (e *Engine) ExecuteContractAs(sender, contractAddr core.Address, function string, args ...any) (*types.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name, params, err := e.encodeArgs(contractAddr, function, args)
	if err != nil {
		return nil, err
	}
	return e.run(sender, contractAddr, name, params)
}

// Execute executes a contract function with a JSON object of named arguments
func (e *Engine) Execute(contractAddr core.Address, function string, args []byte) (*types.ExecutionResult, error) {
	return e.ExecuteAs(core.ZeroAddress, contractAddr, function, args)
}

// ExecuteAs is Execute on behalf of sender
func (e *Engine) ExecuteAs(sender, contractAddr core.Address, function string, args []byte) (*types.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run(sender, contractAddr, function, args)
}

// encodeArgs turns positional arguments into the JSON object handlers decode
func (e *Engine) encodeArgs(contractAddr core.Address, function string, args []any) (string, []byte, error) {
	contractABI, err := e.contractABI(contractAddr)
	if err != nil {
		return "", nil, err
	}
	name, ok := resolveFunction(functionNames(contractABI), function)
	if !ok {
		if len(args) == 0 {
			// WASM modules carry no ABI, the module itself rejects unknown functions
			return function, nil, nil
		}
		return "", nil, fmt.Errorf("%w: %s", core.ErrFunctionNotFound, function)
	}
	fn, _ := contractABI.Function(name)

	inputs := fn.CallInputs()
	if len(args) > len(inputs) {
		return "", nil, fmt.Errorf("%w: %s takes %d arguments, got %d", core.ErrInvalidArgument, name, len(inputs), len(args))
	}
	params := make(map[string]any, len(args))
	for i, arg := range args {
		params[inputs[i].Name] = arg
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal function arguments: %w", err)
	}
	return name, data, nil
}

func (e *Engine) contractABI(addr core.Address) (*abi.ABI, error) {
	if contractABI, ok := e.abis[addr]; ok {
		return contractABI, nil
	}
	contractABI, err := e.codeManager.GetABI(addr)
	if err != nil {
		return nil, err
	}
	e.abis[addr] = contractABI
	return contractABI, nil
}

// run executes one top-level call in its own block and transaction
func (e *Engine) run(sender, contractAddr core.Address, function string, args []byte) (*types.ExecutionResult, error) {
	txHash := core.GetHash([]byte(uuid.NewString()))
	e.height++
	blockHash := core.GetHash([]byte(fmt.Sprintf("%d:%s", e.height, txHash)))
	if err := e.ctx.SetBlockInfo(e.height, time.Now().Unix(), blockHash); err != nil {
		return nil, fmt.Errorf("failed to set block info: %w", err)
	}
	if err := e.ctx.SetTransactionInfo(txHash, sender, contractAddr, 0); err != nil {
		return nil, fmt.Errorf("failed to set transaction info: %w", err)
	}

	if e.gas == nil {
		e.gas = mock.NewGasMeter(e.config.GasLimit)
	} else {
		e.gas.ResetGas(e.config.GasLimit)
	}
	e.ctx.SetGasLimit(e.config.GasLimit)
	e.stack.Reset()

	// 调用失败时丢弃本次调用的全部状态修改
	if err := e.ctx.Begin(); err != nil {
		return nil, fmt.Errorf("failed to begin state journal: %w", err)
	}
	data, err := e.invoke(types.CallParams{
		Caller:   sender,
		Contract: contractAddr,
		Function: function,
		Args:     args,
		GasLimit: e.config.GasLimit,
	})
	if err == nil {
		if cerr := e.ctx.Commit(); cerr != nil {
			data, err = nil, fmt.Errorf("failed to commit state: %w", cerr)
		}
	} else if rerr := e.ctx.Rollback(); rerr != nil {
		slog.Error("Failed to roll back reverted call", "contract", contractAddr, "function", function, "error", rerr)
	}
	result := &types.ExecutionResult{
		Success: err == nil,
		Data:    data,
		GasUsed: e.gas.GetUsedGas(),
		TxHash:  txHash.String(),
	}
	if e.observer != nil {
		e.observer.ObserveCall(contractAddr.String(), function, err)
	}
	if err != nil {
		result.Error = err.Error()
		slog.Warn("Contract call failed", "contract", contractAddr, "function", function, "sender", sender, "error", err)
		return result, err
	}
	slog.Debug("Contract call", "contract", contractAddr, "function", function, "sender", sender, "gas", result.GasUsed)
	return result, nil
}

// invoke runs one call. Contract panics are recovered here so a failing
// callee reports an error to its caller.
func (e *Engine) invoke(call types.CallParams) (data any, err error) {
	if e.stack.Depth() >= e.config.MaxCallDepth {
		return nil, fmt.Errorf("%w: depth %d", core.ErrCallDepthExceeded, e.stack.Depth())
	}

	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = revertError(r)
		}
	}()

	e.gas.ConsumeGas(GasCall + int64(len(call.Args))*GasPerArgByte)

	metadata, err := e.codeManager.GetMetadata(call.Contract)
	if err != nil {
		return nil, err
	}
	switch metadata.Kind {
	case repository.KindNative:
		return e.invokeNative(call, metadata.Name)
	case repository.KindWASM:
		return e.invokeWASM(call)
	default:
		return nil, fmt.Errorf("unknown contract kind %q", metadata.Kind)
	}
}

func (e *Engine) invokeNative(call types.CallParams, name string) (any, error) {
	contract, ok := e.natives[call.Contract]
	if !ok {
		// deployed by an earlier process against a persistent context
		if contract, ok = Lookup(name); !ok {
			return nil, fmt.Errorf("%w: native contract %s is not linked", core.ErrContractNotFound, name)
		}
		e.natives[call.Contract] = contract
	}

	names := make([]string, 0, len(contract.Handlers))
	for n := range contract.Handlers {
		if n == InitFunction && !(e.initializing && e.stack.Depth() == 0) {
			continue
		}
		names = append(names, n)
	}
	resolved, ok := resolveFunction(names, call.Function)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrFunctionNotFound, call.Function)
	}

	e.stack.Enter(call.Contract, resolved)
	defer e.stack.Exit()

	ctx := &executionContext{engine: e, contract: call.Contract, sender: call.Caller}
	data, err := contract.Handlers[resolved](ctx, call.Args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrExecutionReverted, err)
	}
	return data, nil
}

func (e *Engine) invokeWASM(call types.CallParams) (any, error) {
	e.stack.Enter(call.Contract, call.Function)
	defer e.stack.Exit()

	// 模块预留 GasLimit 内的剩余gas, 执行后退还未用部分
	reserved := min(call.GasLimit, e.gas.GetGas())
	e.gas.ConsumeGas(reserved)
	e.ctx.SetGasLimit(reserved)

	bc := &callerContext{BlockchainContext: e.ctx, sender: call.Caller}
	result, err := e.wazeroEngine.ExecuteContract(context.Background(), bc, call.Contract, call.Function, call.Args)
	var used int64
	if result != nil {
		used = result.GasUsed
	}
	if used <= reserved {
		e.gas.RefundGas(reserved - used)
	} else {
		e.gas.ConsumeGas(used - reserved)
	}
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}

// callerContext shows the calling contract as sender to a nested WASM call
type callerContext struct {
	types.BlockchainContext
	sender core.Address
}

func (c *callerContext) Sender() core.Address {
	return c.sender
}

func revertError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", core.ErrExecutionReverted, err)
	}
	return fmt.Errorf("%w: %v", core.ErrExecutionReverted, r)
}

func functionNames(contractABI *abi.ABI) []string {
	names := make([]string, 0, len(contractABI.Functions))
	for _, fn := range contractABI.Functions {
		if fn.Name == InitFunction {
			continue
		}
		names = append(names, fn.Name)
	}
	return names
}

// resolveFunction matches function against names exactly, then as
// snake_case or camelCase of an exported Go name.
func resolveFunction(names []string, function string) (string, bool) {
	for _, name := range names {
		if name == function {
			return name, true
		}
	}

	caser := cases.Title(language.English, cases.NoLower)
	parts := strings.Split(function, "_")
	for i, part := range parts {
		parts[i] = caser.String(part)
	}
	goName := strings.Join(parts, "")
	for _, name := range names {
		if name == goName {
			return name, true
		}
	}
	for _, name := range names {
		if strings.EqualFold(name, goName) {
			return name, true
		}
	}
	return "", false
}

// Close closes the engine and the blockchain context when it holds resources
func (e *Engine) Close() error {
	if err := e.wazeroEngine.Close(context.Background()); err != nil {
		return fmt.Errorf("failed to close wazero engine: %w", err)
	}
	if closer, ok := e.ctx.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close blockchain context: %w", err)
		}
	}
	return nil
}
