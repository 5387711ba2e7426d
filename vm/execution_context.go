package vm

import (
	"encoding/json"
	"fmt"

	"github.com/govm-net/promptheist/core"
	"github.com/govm-net/promptheist/types"
)

// executionContext 实现了合约执行上下文，为原生合约提供与区块链环境交互的接口
type executionContext struct {
	engine   *Engine
	contract core.Address // 合约地址
	sender   core.Address // 交易发送者或调用合约
}

// objectID maps the zero id onto the contract's default object
func (c *executionContext) objectID(id core.ObjectID) core.ObjectID {
	if id == (core.ObjectID{}) {
		return core.DefaultObjectID(c.contract)
	}
	return id
}

func (c *executionContext) BlockHeight() uint64 {
	return c.engine.ctx.BlockHeight()
}

func (c *executionContext) BlockTime() int64 {
	return c.engine.ctx.BlockTime()
}

func (c *executionContext) ContractAddress() core.Address {
	return c.contract
}

func (c *executionContext) Sender() core.Address {
	return c.sender
}

func (c *executionContext) Balance(addr core.Address) uint64 {
	return c.engine.ctx.Balance(addr)
}

// Transfer moves coins out of the contract's own account
func (c *executionContext) Transfer(to core.Address, amount uint64) error {
	return c.engine.ctx.Transfer(c.contract, c.contract, to, amount)
}

func (c *executionContext) CreateObject() core.Object {
	c.engine.gas.ConsumeGas(GasObjectWrite)
	obj, err := c.engine.ctx.CreateObject(c.contract)
	core.Assert(err)
	return &object{ctx: c, obj: obj}
}

func (c *executionContext) GetObject(id core.ObjectID) (core.Object, error) {
	c.engine.gas.ConsumeGas(GasObjectRead)
	obj, err := c.engine.ctx.GetObject(c.contract, c.objectID(id))
	if err != nil {
		return nil, err
	}
	return &object{ctx: c, obj: obj}, nil
}

func (c *executionContext) GetObjectWithOwner(owner core.Address) (core.Object, error) {
	c.engine.gas.ConsumeGas(GasObjectRead)
	obj, err := c.engine.ctx.GetObjectWithOwner(c.contract, owner)
	if err != nil {
		return nil, err
	}
	return &object{ctx: c, obj: obj}, nil
}

func (c *executionContext) DeleteObject(id core.ObjectID) {
	c.engine.gas.ConsumeGas(GasObjectWrite)
	core.Assert(c.engine.ctx.DeleteObject(c.contract, c.objectID(id)))
}

// Call runs a function of another contract. Inside the callee Sender() is
// this contract. The result is the JSON encoding of the callee's return value.
func (c *executionContext) Call(contract core.Address, function string, args ...any) ([]byte, error) {
	name, params, err := c.engine.encodeArgs(contract, function, args)
	if err != nil {
		return nil, err
	}
	data, err := c.engine.invoke(types.CallParams{
		Caller:   c.contract,
		Contract: contract,
		Function: name,
		Args:     params,
		GasLimit: c.engine.gas.GetGas(),
	})
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal call result: %w", err)
	}
	return out, nil
}

func (c *executionContext) Log(eventName string, keyValues ...any) {
	c.engine.gas.ConsumeGas(GasLog)
	c.engine.ctx.Log(c.contract, eventName, keyValues...)
}

// object 为合约提供 JSON 编码的字段访问
type object struct {
	ctx *executionContext
	obj types.VMObject
}

func (o *object) ID() core.ObjectID {
	return o.obj.ID()
}

func (o *object) Owner() core.Address {
	return o.obj.Owner()
}

func (o *object) Contract() core.Address {
	return o.obj.Contract()
}

func (o *object) SetOwner(addr core.Address) {
	o.ctx.engine.gas.ConsumeGas(GasObjectWrite)
	core.Assert(o.obj.SetOwner(o.ctx.contract, o.ctx.sender, addr))
}

func (o *object) Get(field string, value any) error {
	o.ctx.engine.gas.ConsumeGas(GasObjectRead)
	data, err := o.obj.Get(o.ctx.contract, field)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("failed to decode field %s: %w", field, err)
	}
	return nil
}

func (o *object) Set(field string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode field %s: %w", field, err)
	}
	o.ctx.engine.gas.ConsumeGas(GasObjectWrite + int64(len(data))*GasPerArgByte)
	return o.obj.Set(o.ctx.contract, o.ctx.sender, field, data)
}
