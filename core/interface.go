// Package core 定义了智能合约与VM系统交互所需的核心接口
// 合约开发者只需了解并使用此文件中的接口即可编写智能合约
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Address 表示区块链上的地址
type Address [20]byte

// ObjectID 表示状态对象的唯一标识符
type ObjectID [32]byte

type Hash [32]byte

var ZeroAddress = Address{}
var ZeroObjectID = ObjectID{}
var ZeroHash = Hash{}

func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// IDFromString parses a hex object id, an optional 0x prefix is allowed.
// Invalid input yields ZeroObjectID.
func IDFromString(str string) ObjectID {
	var id ObjectID
	decodeHex(str, id[:])
	return id
}

func (addr Address) String() string {
	return hex.EncodeToString(addr[:])
}

// AddressFromString parses a hex address, an optional 0x prefix is allowed.
// Invalid input yields ZeroAddress.
func AddressFromString(str string) Address {
	var addr Address
	decodeHex(str, addr[:])
	return addr
}

// ParseAddress is the strict form of AddressFromString.
func ParseAddress(str string) (Address, error) {
	var addr Address
	s := strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X")
	if len(s) != 2*len(addr) {
		return addr, fmt.Errorf("%w: address %q must be 40 hex characters", ErrInvalidArgument, str)
	}
	if _, err := hex.Decode(addr[:], []byte(s)); err != nil {
		return addr, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return addr, nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func HashFromString(str string) Hash {
	var h Hash
	decodeHex(str, h[:])
	return h
}

// MarshalText encodes the address as hex, so JSON carries a string.
func (addr Address) MarshalText() ([]byte, error) {
	return []byte(addr.String()), nil
}

func (addr *Address) UnmarshalText(text []byte) error {
	*addr = AddressFromString(string(text))
	return nil
}

func (id ObjectID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ObjectID) UnmarshalText(text []byte) error {
	*id = IDFromString(string(text))
	return nil
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	*h = HashFromString(string(text))
	return nil
}

// GetHash returns the sha256 of data
func GetHash(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

func decodeHex(str string, out []byte) {
	str = strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X")
	if len(str)%2 == 1 {
		str = "0" + str
	}
	b, err := hex.DecodeString(str)
	if err != nil {
		return
	}
	copy(out, b)
}

// Context 是合约与区块链环境交互的主要接口
type Context interface {
	// 区块链信息相关
	BlockHeight() uint64      // 获取当前区块高度
	BlockTime() int64         // 获取当前区块时间戳
	ContractAddress() Address // 获取当前合约地址

	// 账户操作相关
	Sender() Address                          // 获取交易发送者或调用合约
	Balance(addr Address) uint64              // 获取账户余额
	Transfer(to Address, amount uint64) error // 转账操作

	// 对象存储相关 - 基础状态操作使用panic而非返回error
	CreateObject() Object                             // 创建新对象，失败时panic
	GetObject(id ObjectID) (Object, error)            // 获取指定对象，可能返回error
	GetObjectWithOwner(owner Address) (Object, error) // 按所有者获取对象，可能返回error
	DeleteObject(id ObjectID)                         // 删除对象，失败时panic

	// 跨合约调用
	Call(contract Address, function string, args ...any) ([]byte, error)

	// 日志与事件
	Log(eventName string, keyValues ...any) // 记录事件
}

// Object 接口用于管理区块链状态对象
type Object interface {
	ID() ObjectID          // 获取对象ID
	Owner() Address        // 获取对象所有者
	Contract() Address     // 获取对象所属合约
	SetOwner(addr Address) // 设置对象所有者，失败时panic

	// 字段操作, 值以JSON编码存储
	Get(field string, value any) error // 获取字段值
	Set(field string, value any) error // 设置字段值
}

// Assert aborts the running contract call when condition is false or a
// non-nil error. The host reverts the call and reports the message.
func Assert(condition any, msgs ...any) {
	switch v := condition.(type) {
	case bool:
		if !v {
			if len(msgs) > 0 {
				panic(fmt.Sprint(msgs...))
			}
			panic("assertion failed")
		}
	case error:
		if v != nil {
			panic(v)
		}
	}
}
