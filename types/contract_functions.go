// Package types contains shared type definitions and constants
// used by the host environment, the engine and WebAssembly contracts
package types

import (
	"github.com/govm-net/promptheist/core"
)

// WasmFunctionID defines constants for function IDs used in host-contract communication
// These constants must be used on both sides (host and contract) to ensure compatibility
//
// IMPORTANT: Any mismatch in the function ID values between the host and contract
// will result in undefined behavior. Always import these constants instead of
// redefining them.
type WasmFunctionID int32

const (
	// FuncGetSender returns the address of the sender (caller) of the current transaction
	FuncGetSender WasmFunctionID = iota + 1 // 1
	// FuncGetContractAddress returns the address of the current contract
	FuncGetContractAddress // 2
	// FuncGetObjectField retrieves a specific field from a state object
	FuncGetObjectField // 3
	// FuncSetObjectField updates a specific field in a state object
	FuncSetObjectField // 4
	// FuncLog logs a message to the blockchain's event system
	FuncLog // 5
)

// HostBufferSize defines the size of the buffer used for data exchange between host and contract
const HostBufferSize int32 = 2048

type Address = core.Address
type ObjectID = core.ObjectID
type Hash = core.Hash

// CallParams describes one contract call inside the engine
type CallParams struct {
	Caller   Address `json:"caller,omitempty"`
	Contract Address `json:"contract,omitempty"`
	Function string  `json:"function,omitempty"`
	Args     []byte  `json:"args,omitempty"`
	GasLimit int64   `json:"gas_limit,omitempty"`
}

type GetObjectFieldParams struct {
	Contract Address  `json:"contract,omitempty"`
	ID       ObjectID `json:"id,omitempty"`
	Field    string   `json:"field,omitempty"`
}

type SetObjectFieldParams struct {
	Contract Address  `json:"contract,omitempty"`
	Sender   Address  `json:"sender,omitempty"`
	ID       ObjectID `json:"id,omitempty"`
	Field    string   `json:"field,omitempty"`
	Value    any      `json:"value,omitempty"`
}

type LogParams struct {
	Contract  Address `json:"contract,omitempty"`
	Event     string  `json:"event,omitempty"`
	KeyValues []any   `json:"key_values,omitempty"`
}

// ExecutionResult is the envelope returned for every contract call.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	GasUsed int64  `json:"gas_used,omitempty"`
	TxHash  string `json:"tx_hash,omitempty"`
}

type HandleContractCallParams struct {
	Contract Address `json:"contract,omitempty"`
	Sender   Address `json:"sender,omitempty"`
	Function string  `json:"function,omitempty"`
	Args     []byte  `json:"args,omitempty"`
	GasLimit int64   `json:"gas_limit,omitempty"`
}

// BlockchainContext is the host side view of chain state
type BlockchainContext interface {
	// set block info and transaction info
	SetBlockInfo(height uint64, time int64, hash Hash) error
	SetTransactionInfo(hash Hash, from Address, to Address, value uint64) error
	// Blockchain information related
	BlockHeight() uint64      // Get current block height
	BlockTime() int64         // Get current block timestamp
	ContractAddress() Address // Get current contract address
	TransactionHash() Hash    // Get current transaction hash
	SetGasLimit(limit int64)  // Set gas limit
	GetGas() int64            // Get remaining gas
	// Account operations related
	Sender() Address                                          // Get transaction sender or contract caller
	Balance(addr Address) uint64                              // Get account balance
	Transfer(contract, from, to Address, amount uint64) error // Transfer operation

	// Object storage related
	CreateObject(contract Address) (VMObject, error)                      // Create new object
	CreateObjectWithID(contract Address, id ObjectID) (VMObject, error)   // Create new object with a fixed id
	GetObject(contract Address, id ObjectID) (VMObject, error)            // Get specified object
	GetObjectWithOwner(contract Address, owner Address) (VMObject, error) // Get object by owner
	DeleteObject(contract Address, id ObjectID) error                     // Delete object

	// Logs and events
	Log(contract Address, eventName string, keyValues ...any) // Log event

	// State journal of one call. Writes made after Begin are kept by Commit
	// and discarded by Rollback.
	Begin() error
	Commit() error
	Rollback() error
}

// VMObject 接口用于管理区块链状态对象
type VMObject interface {
	ID() ObjectID                                  // Get object ID
	Owner() Address                                // Get object owner
	Contract() Address                             // Get object's contract
	SetOwner(contract, sender, addr Address) error // Set object owner

	// Field operations
	Get(contract Address, field string) ([]byte, error)             // Get field value
	Set(contract, sender Address, field string, value []byte) error // Set field value
}
