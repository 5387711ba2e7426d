// Package mock provides the per-call bookkeeping of the engine: a gas meter
// and the cross-contract call stack.
package mock

import (
	"github.com/govm-net/promptheist/core"
)

// CallStack stores the contract call hierarchy
type CallStack struct {
	frames []frame
}

type frame struct {
	contract core.Address
	function string
}

// Depth is the number of active calls
func (s *CallStack) Depth() int {
	return len(s.frames)
}

// GetCurrentContract returns the address of the currently executing contract
// Returns an empty address if the call stack is empty
func (s *CallStack) GetCurrentContract() core.Address {
	if len(s.frames) == 0 {
		return core.Address{}
	}
	return s.frames[len(s.frames)-1].contract
}

// GetCurrentFunction returns the function on top of the stack
func (s *CallStack) GetCurrentFunction() string {
	if len(s.frames) == 0 {
		return ""
	}
	return s.frames[len(s.frames)-1].function
}

// GetCaller returns the address of the contract that called the current contract
// A contract calling its own functions is skipped over.
// Returns an empty address if there's no caller (e.g., top-level call)
func (s *CallStack) GetCaller() core.Address {
	if len(s.frames) < 2 {
		return core.Address{}
	}

	current := s.frames[len(s.frames)-1].contract
	for i := len(s.frames) - 2; i >= 0; i-- {
		if s.frames[i].contract != current {
			return s.frames[i].contract
		}
	}
	return core.Address{}
}

// Contains reports whether contract is anywhere on the stack
func (s *CallStack) Contains(contract core.Address) bool {
	for _, f := range s.frames {
		if f.contract == contract {
			return true
		}
	}
	return false
}

// Enter records function entry by pushing the contract address onto the call stack
func (s *CallStack) Enter(contract core.Address, function string) {
	s.frames = append(s.frames, frame{contract: contract, function: function})
}

// Exit records function exit by popping the top contract address from the call stack
func (s *CallStack) Exit() {
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Reset drops every frame
func (s *CallStack) Reset() {
	s.frames = s.frames[:0]
}
