package mock

import (
	"fmt"
	"sync"

	"github.com/govm-net/promptheist/core"
)

// GasMeter tracks the gas of one contract call
type GasMeter struct {
	mu   sync.RWMutex
	gas  int64
	used int64
}

// NewGasMeter 初始化gas
func NewGasMeter(initialGas int64) *GasMeter {
	return &GasMeter{gas: initialGas}
}

// GetGas 获取剩余gas
func (m *GasMeter) GetGas() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gas
}

// GetUsedGas 获取已使用的gas
func (m *GasMeter) GetUsedGas() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

// ConsumeGas 消耗gas, gas不足时panic, panic的值包装了core.ErrOutOfGas
func (m *GasMeter) ConsumeGas(amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount <= 0 {
		return
	}

	if m.gas < amount {
		panic(fmt.Errorf("%w: gas=%d, need=%d", core.ErrOutOfGas, m.gas, amount))
	}

	m.gas -= amount
	m.used += amount
}

// RefundGas 退还gas
func (m *GasMeter) RefundGas(amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount <= 0 {
		return
	}

	if m.used < amount {
		panic(fmt.Sprintf("invalid refund: used=%d, refund=%d", m.used, amount))
	}

	m.gas += amount
	m.used -= amount
}

// ResetGas 重置gas
func (m *GasMeter) ResetGas(initialGas int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gas = initialGas
	m.used = 0
}
