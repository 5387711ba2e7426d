package mock

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/govm-net/promptheist/core"
)

// Helper function to create a test Address
func createAddress(val byte) core.Address {
	var addr core.Address
	for i := 0; i < len(addr); i++ {
		addr[i] = val
	}
	return addr
}

func TestEmptyStack(t *testing.T) {
	var stack CallStack
	assert.Equal(t, core.Address{}, stack.GetCurrentContract())
	assert.Equal(t, core.Address{}, stack.GetCaller())
	assert.Equal(t, "", stack.GetCurrentFunction())
	assert.Equal(t, 0, stack.Depth())

	// exiting an empty stack is a no-op
	stack.Exit()
	assert.Equal(t, 0, stack.Depth())
}

func TestEnterExit(t *testing.T) {
	var stack CallStack
	addrA := createAddress(0xA)
	addrB := createAddress(0xB)

	stack.Enter(addrA, "Play")
	assert.Equal(t, addrA, stack.GetCurrentContract())
	assert.Equal(t, core.Address{}, stack.GetCaller())

	stack.Enter(addrB, "ScoreGuess")
	assert.Equal(t, addrB, stack.GetCurrentContract())
	assert.Equal(t, "ScoreGuess", stack.GetCurrentFunction())
	assert.Equal(t, addrA, stack.GetCaller())
	assert.Equal(t, 2, stack.Depth())
	assert.True(t, stack.Contains(addrA))

	stack.Exit()
	assert.Equal(t, addrA, stack.GetCurrentContract())
	assert.False(t, stack.Contains(addrB))
}

func TestGetCallerSkipsSelfCalls(t *testing.T) {
	var stack CallStack
	addrA := createAddress(0xA)
	addrB := createAddress(0xB)

	stack.Enter(addrA, "Outer")
	stack.Enter(addrB, "First")
	stack.Enter(addrB, "Second")
	assert.Equal(t, addrA, stack.GetCaller())

	// a contract only calling itself has no contract caller
	stack.Reset()
	stack.Enter(addrB, "First")
	stack.Enter(addrB, "Second")
	assert.Equal(t, core.Address{}, stack.GetCaller())
}
