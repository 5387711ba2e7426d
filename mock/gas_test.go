package mock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/govm-net/promptheist/core"
)

func TestGas(t *testing.T) {
	meter := NewGasMeter(1000)
	assert.Equal(t, int64(1000), meter.GetGas())
	assert.Equal(t, int64(0), meter.GetUsedGas())

	meter.ConsumeGas(500)
	assert.Equal(t, int64(500), meter.GetGas())
	assert.Equal(t, int64(500), meter.GetUsedGas())

	// non-positive amounts are ignored
	meter.ConsumeGas(-5)
	assert.Equal(t, int64(500), meter.GetGas())

	meter.RefundGas(200)
	assert.Equal(t, int64(700), meter.GetGas())
	assert.Equal(t, int64(300), meter.GetUsedGas())

	meter.ResetGas(2000)
	assert.Equal(t, int64(2000), meter.GetGas())
	assert.Equal(t, int64(0), meter.GetUsedGas())
}

func TestOutOfGas(t *testing.T) {
	meter := NewGasMeter(100)

	defer func() {
		r := recover()
		err, ok := r.(error)
		if assert.True(t, ok, "expected an error panic, got %v", r) {
			assert.True(t, errors.Is(err, core.ErrOutOfGas))
		}
		assert.Equal(t, int64(100), meter.GetGas())
	}()
	meter.ConsumeGas(200)
}

func TestInvalidRefund(t *testing.T) {
	meter := NewGasMeter(100)
	meter.ConsumeGas(50)
	assert.Panics(t, func() { meter.RefundGas(100) })
}
