package memory

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"

	"github.com/govm-net/promptheist/context"
	"github.com/govm-net/promptheist/core"
	"github.com/govm-net/promptheist/types"
)

const defaultGasLimit = 10000000

// Event is a contract log entry kept by the in-memory context.
type Event struct {
	BlockHeight uint64
	TxHash      core.Hash
	Contract    core.Address
	Name        string
	KeyValues   []any
}

// blockchainContext keeps all chain state in maps. Nothing survives the process.
type blockchainContext struct {
	// Block information
	blockHeight uint64
	blockTime   int64

	// Account balances
	balances map[core.Address]uint64

	// Virtual machine object storage
	objects        map[core.ObjectID]map[string][]byte
	objectOwner    map[core.ObjectID]core.Address
	objectContract map[core.ObjectID]core.Address

	events []Event

	// undo log of the open journal, nil when none is open
	undo    []func()
	journal bool

	// Current execution context
	contractAddr core.Address
	sender       core.Address
	txHash       core.Hash
	nonce        uint64
	gasLimit     int64
	mu           sync.Mutex
}

func init() {
	if err := context.Register(context.MemoryContextType, NewBlockchainContext); err != nil {
		panic(err)
	}
}

// NewBlockchainContext creates an empty in-memory blockchain context. params is unused.
func NewBlockchainContext(params map[string]any) (types.BlockchainContext, error) {
	return newBlockchainContext(), nil
}

func newBlockchainContext() *blockchainContext {
	return &blockchainContext{
		balances:       make(map[core.Address]uint64),
		objects:        make(map[core.ObjectID]map[string][]byte),
		objectOwner:    make(map[core.ObjectID]core.Address),
		objectContract: make(map[core.ObjectID]core.Address),
		gasLimit:       defaultGasLimit,
	}
}

func (ctx *blockchainContext) SetBlockInfo(height uint64, time int64, hash core.Hash) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.blockHeight = height
	ctx.blockTime = time
	return nil
}

func (ctx *blockchainContext) SetTransactionInfo(hash core.Hash, from, to core.Address, value uint64) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.txHash = hash
	ctx.sender = from
	ctx.contractAddr = to
	ctx.nonce = 0
	return nil
}

// BlockHeight gets the current block height
func (ctx *blockchainContext) BlockHeight() uint64 {
	return ctx.blockHeight
}

// BlockTime gets the current block timestamp
func (ctx *blockchainContext) BlockTime() int64 {
	return ctx.blockTime
}

// ContractAddress gets the current contract address
func (ctx *blockchainContext) ContractAddress() core.Address {
	return ctx.contractAddr
}

// TransactionHash gets the current transaction hash
func (ctx *blockchainContext) TransactionHash() core.Hash {
	return ctx.txHash
}

// Sender gets the transaction sender
func (ctx *blockchainContext) Sender() core.Address {
	return ctx.sender
}

// Balance gets the account balance
func (ctx *blockchainContext) Balance(addr core.Address) uint64 {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.balances[addr]
}

// SetBalance seeds an account balance.
func (ctx *blockchainContext) SetBalance(addr core.Address, amount uint64) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.balances[addr] = amount
}

func (ctx *blockchainContext) SetGasLimit(limit int64) {
	ctx.gasLimit = limit
}

func (ctx *blockchainContext) GetGas() int64 {
	return ctx.gasLimit
}

// Transfer moves amount from one account to another
func (ctx *blockchainContext) Transfer(contract, from, to core.Address, amount uint64) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.balances[from] < amount {
		return core.ErrInsufficientFunds
	}
	ctx.balances[from] -= amount
	ctx.balances[to] += amount
	ctx.record(func() {
		ctx.balances[to] -= amount
		ctx.balances[from] += amount
	})
	return nil
}

// Begin opens the journal of one call
func (ctx *blockchainContext) Begin() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.journal {
		return core.ErrJournalOpen
	}
	ctx.journal = true
	ctx.undo = nil
	return nil
}

// Commit keeps the writes made since Begin
func (ctx *blockchainContext) Commit() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if !ctx.journal {
		return core.ErrNoJournal
	}
	ctx.journal = false
	ctx.undo = nil
	return nil
}

// Rollback undoes the writes made since Begin, newest first
func (ctx *blockchainContext) Rollback() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if !ctx.journal {
		return core.ErrNoJournal
	}
	for i := len(ctx.undo) - 1; i >= 0; i-- {
		ctx.undo[i]()
	}
	ctx.journal = false
	ctx.undo = nil
	return nil
}

// record adds an undo step to the open journal. Callers hold mu.
func (ctx *blockchainContext) record(fn func()) {
	if ctx.journal {
		ctx.undo = append(ctx.undo, fn)
	}
}

// CreateObject creates a new object owned by the contract
func (ctx *blockchainContext) CreateObject(contract core.Address) (types.VMObject, error) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.createObject(contract, ctx.generateObjectID(contract))
}

// CreateObjectWithID creates a new object with a caller chosen id
func (ctx *blockchainContext) CreateObjectWithID(contract core.Address, id core.ObjectID) (types.VMObject, error) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if _, exists := ctx.objects[id]; exists {
		return nil, fmt.Errorf("object %s already exists", id)
	}
	return ctx.createObject(contract, id)
}

func (ctx *blockchainContext) createObject(contract core.Address, id core.ObjectID) (types.VMObject, error) {
	ctx.objects[id] = make(map[string][]byte)
	ctx.objectOwner[id] = contract
	ctx.objectContract[id] = contract
	ctx.record(func() {
		delete(ctx.objects, id)
		delete(ctx.objectOwner, id)
		delete(ctx.objectContract, id)
	})
	return &vmObject{ctx: ctx, objOwner: contract, objContract: contract, id: id}, nil
}

// generateObjectID derives a new object ID from the current transaction
func (ctx *blockchainContext) generateObjectID(contract core.Address) core.ObjectID {
	ctx.nonce++
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s-%d", contract, ctx.sender, ctx.txHash, ctx.nonce)))
	return core.ObjectID(hash)
}

// GetObject gets a specified object
func (ctx *blockchainContext) GetObject(contract core.Address, id core.ObjectID) (types.VMObject, error) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if _, exists := ctx.objects[id]; !exists {
		return nil, core.ErrObjectNotFound
	}
	if ctx.objectContract[id] != contract {
		return nil, core.ErrObjectNotFound
	}
	return &vmObject{
		ctx:         ctx,
		objOwner:    ctx.objectOwner[id],
		objContract: ctx.objectContract[id],
		id:          id,
	}, nil
}

// GetObjectWithOwner gets the first object of contract held by owner
func (ctx *blockchainContext) GetObjectWithOwner(contract, owner core.Address) (types.VMObject, error) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for id, objOwner := range ctx.objectOwner {
		if objOwner == owner && ctx.objectContract[id] == contract {
			return &vmObject{ctx: ctx, objOwner: objOwner, objContract: contract, id: id}, nil
		}
	}
	return nil, core.ErrObjectNotFound
}

// DeleteObject deletes an object
func (ctx *blockchainContext) DeleteObject(contract core.Address, id core.ObjectID) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.objectContract[id] != contract {
		return core.ErrObjectNotFound
	}
	fields, owner := ctx.objects[id], ctx.objectOwner[id]
	delete(ctx.objects, id)
	delete(ctx.objectOwner, id)
	delete(ctx.objectContract, id)
	ctx.record(func() {
		ctx.objects[id] = fields
		ctx.objectOwner[id] = owner
		ctx.objectContract[id] = contract
	})
	return nil
}

// Log records events
func (ctx *blockchainContext) Log(contract core.Address, eventName string, keyValues ...any) {
	ctx.mu.Lock()
	n := len(ctx.events)
	ctx.record(func() { ctx.events = ctx.events[:n] })
	ctx.events = append(ctx.events, Event{
		BlockHeight: ctx.blockHeight,
		TxHash:      ctx.txHash,
		Contract:    contract,
		Name:        eventName,
		KeyValues:   keyValues,
	})
	ctx.mu.Unlock()

	params := []any{
		"contract", contract,
		"event", eventName,
	}
	params = append(params, keyValues...)
	slog.Info("Contract log", params...)
}

// Events returns the events logged so far
func (ctx *blockchainContext) Events() []Event {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	out := make([]Event, len(ctx.events))
	copy(out, ctx.events)
	return out
}

// vmObject implements the object interface
type vmObject struct {
	ctx         *blockchainContext
	objOwner    core.Address
	objContract core.Address
	id          core.ObjectID
}

func (o *vmObject) ID() core.ObjectID {
	return o.id
}

func (o *vmObject) Owner() core.Address {
	return o.objOwner
}

func (o *vmObject) Contract() core.Address {
	return o.objContract
}

// SetOwner sets the object owner
func (o *vmObject) SetOwner(contract, sender, addr core.Address) error {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	if contract != o.objContract {
		return fmt.Errorf("%w: invalid contract", core.ErrUnauthorized)
	}
	if sender != o.objOwner && contract != o.objOwner {
		return fmt.Errorf("%w: not owner", core.ErrUnauthorized)
	}
	prev := o.objOwner
	o.objOwner = addr
	o.ctx.objectOwner[o.id] = addr
	o.ctx.record(func() {
		o.objOwner = prev
		o.ctx.objectOwner[o.id] = prev
	})
	return nil
}

// Get gets the field value
func (o *vmObject) Get(contract core.Address, field string) ([]byte, error) {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	if contract != o.objContract {
		return nil, fmt.Errorf("%w: invalid contract", core.ErrUnauthorized)
	}
	fields, exists := o.ctx.objects[o.id]
	if !exists {
		return nil, core.ErrObjectNotFound
	}
	value, exists := fields[field]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrFieldNotFound, field)
	}
	return value, nil
}

// Set sets the field value
func (o *vmObject) Set(contract, sender core.Address, field string, value []byte) error {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	if contract != o.objContract {
		return fmt.Errorf("%w: invalid contract", core.ErrUnauthorized)
	}
	if sender != o.objOwner && contract != o.objOwner {
		return fmt.Errorf("%w: not owner", core.ErrUnauthorized)
	}
	fields, exists := o.ctx.objects[o.id]
	if !exists {
		return core.ErrObjectNotFound
	}
	prev, existed := fields[field]
	fields[field] = append([]byte(nil), value...)
	o.ctx.record(func() {
		if existed {
			fields[field] = prev
		} else {
			delete(fields, field)
		}
	})
	return nil
}
