package core

import (
	"errors"
)

// Common errors that can be returned by smart contracts and the host
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnauthorized      = errors.New("unauthorized operation")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrContractNotFound  = errors.New("contract not found")
	ErrContractExists    = errors.New("contract already exists")
	ErrFunctionNotFound  = errors.New("function not found")
	ErrExecutionReverted = errors.New("execution reverted")
	ErrObjectNotFound    = errors.New("object not found")
	ErrFieldNotFound     = errors.New("field does not exist")
	ErrOutOfGas          = errors.New("out of gas")
	ErrCallDepthExceeded = errors.New("call depth exceeded")
	ErrJournalOpen       = errors.New("state journal already open")
	ErrNoJournal         = errors.New("no open state journal")
)

// DefaultObjectID returns the id of a contract's default object, the
// object a contract reaches through GetObject(ObjectID{}).
func DefaultObjectID(contract Address) ObjectID {
	var id ObjectID
	copy(id[:], contract[:])
	return id
}
