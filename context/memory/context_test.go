package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/promptheist/context"
	"github.com/govm-net/promptheist/core"
)

func setupTestContext() *blockchainContext {
	return newBlockchainContext()
}

func TestRegistered(t *testing.T) {
	ctx, err := context.Get(context.MemoryContextType, nil)
	require.NoError(t, err)
	assert.NotNil(t, ctx)
}

func TestBlockContext(t *testing.T) {
	ctx := setupTestContext()

	assert.Equal(t, uint64(0), ctx.BlockHeight())
	assert.Equal(t, int64(0), ctx.BlockTime())

	require.NoError(t, ctx.SetBlockInfo(100, 1234567890, core.HashFromString("0xb10c")))
	assert.Equal(t, uint64(100), ctx.BlockHeight())
	assert.Equal(t, int64(1234567890), ctx.BlockTime())
}

func TestTransactionContext(t *testing.T) {
	ctx := setupTestContext()

	sender := core.AddressFromString("0x5e4de2")
	contract := core.AddressFromString("0xc0417ac7")
	txHash := core.HashFromString("0x7a")

	require.NoError(t, ctx.SetTransactionInfo(txHash, sender, contract, 1000))

	assert.Equal(t, sender, ctx.Sender())
	assert.Equal(t, contract, ctx.ContractAddress())
	assert.Equal(t, txHash, ctx.TransactionHash())
}

func TestBalanceTransfer(t *testing.T) {
	ctx := setupTestContext()

	addr1 := core.AddressFromString("0x1111")
	addr2 := core.AddressFromString("0x2222")
	ctx.SetBalance(addr1, 1000)

	assert.Equal(t, uint64(1000), ctx.Balance(addr1))
	assert.Equal(t, uint64(0), ctx.Balance(addr2))

	require.NoError(t, ctx.Transfer(core.ZeroAddress, addr1, addr2, 500))
	assert.Equal(t, uint64(500), ctx.Balance(addr1))
	assert.Equal(t, uint64(500), ctx.Balance(addr2))

	err := ctx.Transfer(core.ZeroAddress, addr1, addr2, 1000)
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)
}

func TestObjectOperations(t *testing.T) {
	ctx := setupTestContext()

	contract := core.AddressFromString("0xc0417ac7")
	sender := core.AddressFromString("0x5e4de2")
	require.NoError(t, ctx.SetTransactionInfo(core.HashFromString("0x7a"), sender, contract, 0))

	obj, err := ctx.CreateObject(contract)
	require.NoError(t, err)
	assert.Equal(t, contract, obj.Owner())
	assert.Equal(t, contract, obj.Contract())

	require.NoError(t, obj.Set(contract, sender, "name", []byte(`"test"`)))

	value, err := obj.Get(contract, "name")
	require.NoError(t, err)
	assert.Equal(t, []byte(`"test"`), value)

	_, err = obj.Get(contract, "missing")
	assert.ErrorIs(t, err, core.ErrFieldNotFound)

	obj2, err := ctx.GetObject(contract, obj.ID())
	require.NoError(t, err)
	assert.Equal(t, obj.ID(), obj2.ID())

	obj3, err := ctx.GetObjectWithOwner(contract, contract)
	require.NoError(t, err)
	assert.Equal(t, obj.ID(), obj3.ID())

	// another contract cannot see the object
	other := core.AddressFromString("0x0e")
	_, err = ctx.GetObject(other, obj.ID())
	assert.ErrorIs(t, err, core.ErrObjectNotFound)
	_, err = obj.Get(other, "name")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	require.NoError(t, ctx.DeleteObject(contract, obj.ID()))
	_, err = ctx.GetObject(contract, obj.ID())
	assert.Error(t, err)
}

func TestCreateObjectWithID(t *testing.T) {
	ctx := setupTestContext()
	contract := core.AddressFromString("0xc0417ac7")
	id := core.DefaultObjectID(contract)

	obj, err := ctx.CreateObjectWithID(contract, id)
	require.NoError(t, err)
	assert.Equal(t, id, obj.ID())

	_, err = ctx.CreateObjectWithID(contract, id)
	assert.Error(t, err)
}

func TestGasOperations(t *testing.T) {
	ctx := setupTestContext()
	assert.Equal(t, int64(defaultGasLimit), ctx.GetGas())

	ctx.SetGasLimit(1000)
	assert.Equal(t, int64(1000), ctx.GetGas())
}

func TestObjectOwnership(t *testing.T) {
	ctx := setupTestContext()

	contract := core.AddressFromString("0xc0417ac7")
	sender := core.AddressFromString("0x5e4de2")
	newOwner := core.AddressFromString("0x0e4")

	obj, err := ctx.CreateObject(contract)
	require.NoError(t, err)

	// the contract owns new objects and may hand them over
	require.NoError(t, obj.SetOwner(contract, sender, newOwner))
	assert.Equal(t, newOwner, obj.Owner())

	// once handed over neither the sender nor the contract may write
	err = obj.Set(contract, sender, "x", []byte("1"))
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	require.NoError(t, obj.Set(contract, newOwner, "x", []byte("1")))

	unauthorized := core.AddressFromString("0xbad")
	err = obj.SetOwner(unauthorized, sender, sender)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestLogRecordsEvents(t *testing.T) {
	ctx := setupTestContext()
	contract := core.AddressFromString("0xc0417ac7")
	require.NoError(t, ctx.SetBlockInfo(7, 70, core.Hash{}))

	ctx.Log(contract, "greeting_set", "greeting", "hi")

	events := ctx.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "greeting_set", events[0].Name)
	assert.Equal(t, uint64(7), events[0].BlockHeight)
	assert.Equal(t, []any{"greeting", "hi"}, events[0].KeyValues)
}

func TestJournalRollback(t *testing.T) {
	ctx := setupTestContext()
	contract := core.AddressFromString("0xc0417ac7")
	user := core.AddressFromString("0x5e4de2")
	ctx.SetBalance(contract, 100)

	kept, err := ctx.CreateObject(contract)
	require.NoError(t, err)
	require.NoError(t, kept.Set(contract, contract, "name", []byte(`"before"`)))

	require.NoError(t, ctx.Begin())
	assert.ErrorIs(t, ctx.Begin(), core.ErrJournalOpen)

	require.NoError(t, kept.Set(contract, contract, "name", []byte(`"after"`)))
	require.NoError(t, kept.Set(contract, contract, "extra", []byte(`1`)))
	require.NoError(t, kept.SetOwner(contract, contract, user))
	created, err := ctx.CreateObject(contract)
	require.NoError(t, err)
	require.NoError(t, ctx.Transfer(contract, contract, user, 40))
	ctx.Log(contract, "changed")
	require.NoError(t, ctx.DeleteObject(contract, kept.ID()))

	require.NoError(t, ctx.Rollback())
	assert.ErrorIs(t, ctx.Rollback(), core.ErrNoJournal)

	obj, err := ctx.GetObject(contract, kept.ID())
	require.NoError(t, err)
	assert.Equal(t, contract, obj.Owner())
	value, err := obj.Get(contract, "name")
	require.NoError(t, err)
	assert.Equal(t, `"before"`, string(value))
	_, err = obj.Get(contract, "extra")
	assert.ErrorIs(t, err, core.ErrFieldNotFound)

	_, err = ctx.GetObject(contract, created.ID())
	assert.ErrorIs(t, err, core.ErrObjectNotFound)
	assert.Equal(t, uint64(100), ctx.Balance(contract))
	assert.Equal(t, uint64(0), ctx.Balance(user))
	assert.Empty(t, ctx.Events())
}

func TestJournalCommit(t *testing.T) {
	ctx := setupTestContext()
	contract := core.AddressFromString("0xc0417ac7")
	obj, err := ctx.CreateObject(contract)
	require.NoError(t, err)

	require.NoError(t, ctx.Begin())
	require.NoError(t, obj.Set(contract, contract, "name", []byte(`"kept"`)))
	require.NoError(t, ctx.Commit())
	assert.ErrorIs(t, ctx.Commit(), core.ErrNoJournal)

	value, err := obj.Get(contract, "name")
	require.NoError(t, err)
	assert.Equal(t, `"kept"`, string(value))

	// writes outside a journal are not recorded
	require.NoError(t, obj.Set(contract, contract, "name", []byte(`"later"`)))
	assert.Empty(t, ctx.undo)
}
