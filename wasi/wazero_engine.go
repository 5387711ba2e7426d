// Package wasi runs WebAssembly contracts with wazero.
//
// A contract module exports allocate, deallocate, get_buffer_address and
// handle_contract_call. The host writes a JSON HandleContractCallParams into
// memory returned by allocate, calls handle_contract_call(ptr, len) and reads
// the JSON ExecutionResult of the returned length from get_buffer_address.
package wasi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	vmapi "github.com/govm-net/promptheist/api"
	"github.com/govm-net/promptheist/core"
	"github.com/govm-net/promptheist/types"
)

// WazeroVM implements a virtual machine using wazero
type WazeroVM struct {
	mu sync.RWMutex

	// Contract storage directory
	contractDir string

	runtime  wazero.Runtime
	compiled map[types.Address]wazero.CompiledModule
}

// callState is what host functions need to serve one contract call
type callState struct {
	bc       types.BlockchainContext
	contract types.Address
}

type callStateKey struct{}

// NewWazeroVM creates a new wazero virtual machine instance
func NewWazeroVM(contractDir string) (*WazeroVM, error) {
	if contractDir == "" {
		return nil, errors.New("contract directory is empty")
	}
	if err := os.MkdirAll(contractDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create contract directory: %w", err)
	}

	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)

	vm := &WazeroVM{
		contractDir: contractDir,
		runtime:     runtime,
		compiled:    make(map[types.Address]wazero.CompiledModule),
	}
	if err := vm.instantiateEnv(ctx); err != nil {
		runtime.Close(ctx)
		return nil, err
	}
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate wasi: %w", err)
	}
	return vm, nil
}

// instantiateEnv registers the "env" host module. The blockchain context of
// the running call travels in the context.Context handed to each host func.
func (vm *WazeroVM) instantiateEnv(ctx context.Context) error {
	builder := vm.runtime.NewHostModuleBuilder("env")

	builder.NewFunctionBuilder().
		WithParameterNames("funcID", "argPtr", "argLen", "bufferPtr").
		WithResultNames("result").
		WithFunc(func(ctx context.Context, m api.Module, funcID, argPtr, argLen, bufferPtr uint32) int32 {
			state, ok := ctx.Value(callStateKey{}).(*callState)
			if !ok {
				return -1
			}
			argData, ok := m.Memory().Read(argPtr, argLen)
			if !ok {
				return -1
			}
			return handleHostSet(state, types.WasmFunctionID(funcID), argData)
		}).
		Export("call_host_set")

	builder.NewFunctionBuilder().
		WithParameterNames("funcID", "argPtr", "argLen", "buffer").
		WithResultNames("result").
		WithFunc(func(ctx context.Context, m api.Module, funcID, argPtr, argLen, buffer uint32) int32 {
			state, ok := ctx.Value(callStateKey{}).(*callState)
			if !ok {
				return -1
			}
			argData, ok := m.Memory().Read(argPtr, argLen)
			if !ok {
				return -1
			}
			data, ret := handleHostGetBuffer(state, types.WasmFunctionID(funcID), argData)
			if ret < 0 {
				return ret
			}
			if !m.Memory().Write(buffer, data) {
				return -1
			}
			return ret
		}).
		Export("call_host_get_buffer")

	builder.NewFunctionBuilder().
		WithResultNames("result").
		WithFunc(func(ctx context.Context, _ api.Module) uint32 {
			if state, ok := ctx.Value(callStateKey{}).(*callState); ok {
				return uint32(state.bc.BlockHeight())
			}
			return 0
		}).
		Export("get_block_height")

	builder.NewFunctionBuilder().
		WithResultNames("result").
		WithFunc(func(ctx context.Context, _ api.Module) uint32 {
			if state, ok := ctx.Value(callStateKey{}).(*callState); ok {
				return uint32(state.bc.BlockTime())
			}
			return 0
		}).
		Export("get_block_time")

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("failed to instantiate env module: %w", err)
	}
	return nil
}

func (vm *WazeroVM) contractPath(contractAddr types.Address) string {
	return filepath.Join(vm.contractDir, contractAddr.String()+".wasm")
}

// DeployContract deploys a new WebAssembly contract
func (vm *WazeroVM) DeployContract(ctx context.Context, bc types.BlockchainContext, wasmCode []byte, sender types.Address) (types.Address, error) {
	contractAddr := vmapi.DefaultContractAddressGenerator(wasmCode, sender)
	return contractAddr, vm.DeployContractWithAddress(ctx, bc, wasmCode, contractAddr)
}

// DeployContractWithAddress compiles and stores the module and creates the
// contract's default object.
func (vm *WazeroVM) DeployContractWithAddress(ctx context.Context, bc types.BlockchainContext, wasmCode []byte, contractAddr types.Address) error {
	if len(wasmCode) == 0 {
		return errors.New("contract code cannot be empty")
	}

	compiled, err := vm.runtime.CompileModule(ctx, wasmCode)
	if err != nil {
		return fmt.Errorf("failed to compile WebAssembly module: %w", err)
	}
	for _, name := range []string{"allocate", "deallocate", "get_buffer_address", "handle_contract_call"} {
		if _, ok := compiled.ExportedFunctions()[name]; !ok {
			compiled.Close(ctx)
			return fmt.Errorf("%w: module does not export %s", core.ErrInvalidArgument, name)
		}
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if _, err := os.Stat(vm.contractPath(contractAddr)); err == nil {
		compiled.Close(ctx)
		return fmt.Errorf("%w: %s", core.ErrContractExists, contractAddr)
	}
	if err := os.WriteFile(vm.contractPath(contractAddr), wasmCode, 0644); err != nil {
		compiled.Close(ctx)
		return fmt.Errorf("failed to store contract code: %w", err)
	}
	if _, err := bc.CreateObjectWithID(contractAddr, core.DefaultObjectID(contractAddr)); err != nil {
		os.Remove(vm.contractPath(contractAddr))
		compiled.Close(ctx)
		return fmt.Errorf("failed to create contract object: %w", err)
	}
	vm.compiled[contractAddr] = compiled
	return nil
}

// DeleteContract deletes a WebAssembly contract
func (vm *WazeroVM) DeleteContract(ctx context.Context, contractAddr types.Address) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if compiled, ok := vm.compiled[contractAddr]; ok {
		compiled.Close(ctx)
		delete(vm.compiled, contractAddr)
	}
	if err := os.Remove(vm.contractPath(contractAddr)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete contract: %w", err)
	}
	return nil
}

// module returns the compiled module, loading it from disk after a restart
func (vm *WazeroVM) module(ctx context.Context, contractAddr types.Address) (wazero.CompiledModule, error) {
	vm.mu.RLock()
	compiled, ok := vm.compiled[contractAddr]
	vm.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	wasmCode, err := os.ReadFile(vm.contractPath(contractAddr))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", core.ErrContractNotFound, contractAddr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read contract code: %w", err)
	}
	compiled, err = vm.runtime.CompileModule(ctx, wasmCode)
	if err != nil {
		return nil, fmt.Errorf("failed to compile WebAssembly module: %w", err)
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if existing, ok := vm.compiled[contractAddr]; ok {
		compiled.Close(ctx)
		return existing, nil
	}
	vm.compiled[contractAddr] = compiled
	return compiled, nil
}

// ExecuteContract executes a deployed contract function. A result with
// success=false is returned together with an ErrExecutionReverted error.
func (vm *WazeroVM) ExecuteContract(ctx context.Context, bc types.BlockchainContext, contractAddr types.Address, functionName string, params []byte) (*types.ExecutionResult, error) {
	compiled, err := vm.module(ctx, contractAddr)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, callStateKey{}, &callState{bc: bc, contract: contractAddr})
	// anonymous instances so concurrent calls do not collide on the name
	config := wazero.NewModuleConfig().WithName("").WithStartFunctions("_initialize")
	module, err := vm.runtime.InstantiateModule(ctx, compiled, config)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	defer module.Close(ctx)

	out, err := callWasmFunction(ctx, module, types.HandleContractCallParams{
		Contract: contractAddr,
		Sender:   bc.Sender(),
		Function: functionName,
		Args:     params,
		GasLimit: bc.GetGas(),
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return &types.ExecutionResult{Success: true}, nil
	}

	var result types.ExecutionResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize result: %w", err)
	}
	if !result.Success {
		return &result, fmt.Errorf("%w: %s", core.ErrExecutionReverted, result.Error)
	}
	return &result, nil
}

// callWasmFunction runs handle_contract_call and returns the raw result bytes
func callWasmFunction(ctx context.Context, module api.Module, input types.HandleContractCallParams) ([]byte, error) {
	allocate := module.ExportedFunction("allocate")
	if allocate == nil {
		return nil, fmt.Errorf("allocate function not found")
	}
	handle := module.ExportedFunction("handle_contract_call")
	if handle == nil {
		return nil, fmt.Errorf("handle_contract_call not found")
	}

	inputBytes, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize handle_contract_call: %w", err)
	}

	result, err := allocate.Call(ctx, uint64(len(inputBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate memory: %w", err)
	}
	inputAddr := uint32(result[0])
	if !module.Memory().Write(inputAddr, inputBytes) {
		return nil, fmt.Errorf("failed to write to memory")
	}

	result, err = handle.Call(ctx, uint64(inputAddr), uint64(len(inputBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s: %w", input.Function, err)
	}

	var out []byte
	if resultLen := int32(result[0]); resultLen > 0 {
		getBufferAddress := module.ExportedFunction("get_buffer_address")
		if getBufferAddress == nil {
			return nil, fmt.Errorf("get_buffer_address function not found")
		}
		result, err = getBufferAddress.Call(ctx)
		if err != nil {
			return nil, fmt.Errorf("get_buffer_address failed: %w", err)
		}
		bufferPtr := uint32(result[0])

		data, ok := module.Memory().Read(bufferPtr, uint32(resultLen))
		if !ok {
			return nil, fmt.Errorf("failed to read memory:%d, len:%d", bufferPtr, resultLen)
		}
		// the view aliases guest memory which is released with the module
		out = append([]byte(nil), data...)
	}

	if deallocate := module.ExportedFunction("deallocate"); deallocate != nil {
		if _, err := deallocate.Call(ctx, uint64(inputAddr), uint64(len(inputBytes))); err != nil {
			return nil, fmt.Errorf("failed to free memory: %w", err)
		}
	}
	return out, nil
}

// objectID maps the zero id onto the contract's default object
func objectID(contract types.Address, id types.ObjectID) types.ObjectID {
	if id == (types.ObjectID{}) {
		return core.DefaultObjectID(contract)
	}
	return id
}

// handleHostSet serves call_host_set. Contract and sender always come from
// the running call, never from the guest.
func handleHostSet(state *callState, funcID types.WasmFunctionID, argData []byte) int32 {
	bc := state.bc
	switch funcID {
	case types.FuncLog:
		var params types.LogParams
		if err := json.Unmarshal(argData, &params); err != nil {
			slog.Error("failed to deserialize log", "error", err)
			return -1
		}
		bc.Log(state.contract, params.Event, params.KeyValues...)
		return 0

	case types.FuncSetObjectField:
		var params types.SetObjectFieldParams
		if err := json.Unmarshal(argData, &params); err != nil {
			slog.Error("failed to deserialize set_object_field", "error", err)
			return -1
		}
		obj, err := bc.GetObject(state.contract, objectID(state.contract, params.ID))
		if err != nil {
			slog.Error("failed to get object in set_object_field", "error", err)
			return -1
		}
		valueBytes, err := json.Marshal(params.Value)
		if err != nil {
			slog.Error("failed to serialize in set_object_field", "error", err)
			return -1
		}
		if err := obj.Set(state.contract, bc.Sender(), params.Field, valueBytes); err != nil {
			slog.Error("failed to set field in set_object_field", "field", params.Field, "error", err)
			return -1
		}
		return 0

	default:
		return -1
	}
}

// handleHostGetBuffer serves call_host_get_buffer and returns the bytes for
// the guest buffer with their length, or -1.
func handleHostGetBuffer(state *callState, funcID types.WasmFunctionID, argData []byte) ([]byte, int32) {
	bc := state.bc
	var data []byte
	switch funcID {
	case types.FuncGetSender:
		sender := bc.Sender()
		data = sender[:]

	case types.FuncGetContractAddress:
		data = state.contract[:]

	case types.FuncGetObjectField:
		var params types.GetObjectFieldParams
		if err := json.Unmarshal(argData, &params); err != nil {
			slog.Error("failed to deserialize get_object_field", "error", err)
			return nil, -1
		}
		obj, err := bc.GetObject(state.contract, objectID(state.contract, params.ID))
		if err != nil {
			return nil, -1
		}
		value, err := obj.Get(state.contract, params.Field)
		if err != nil {
			return nil, -1
		}
		data = value

	default:
		return nil, -1
	}

	if len(data) > int(types.HostBufferSize) {
		slog.Error("host buffer overflow", "func", funcID, "size", len(data))
		return nil, -1
	}
	return data, int32(len(data))
}

// Close closes the virtual machine
func (vm *WazeroVM) Close(ctx context.Context) error {
	if err := vm.runtime.Close(ctx); err != nil {
		return fmt.Errorf("failed to close wazero runtime: %w", err)
	}
	return nil
}
