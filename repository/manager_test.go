package repository

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/promptheist/abi"
	"github.com/govm-net/promptheist/core"
)

func setupTestManager(t *testing.T) (*Manager, string) {
	tmpDir := t.TempDir()
	manager, err := NewManager(tmpDir)
	require.NoError(t, err)
	return manager, tmpDir
}

func TestManager(t *testing.T) {
	manager, tmpDir := setupTestManager(t)

	addr := core.AddressFromString("1234567890abcdef1234567890abcdef12345678")
	code := []byte("package greeting\n\nfunc Hello() string { return \"hi\" }\n")
	contractABI := &abi.ABI{
		PackageName: "greeting",
		Functions:   []abi.Function{{Name: "Hello", IsExported: true, Outputs: []abi.Parameter{{Type: "string"}}}},
	}

	require.False(t, manager.Exists(addr))
	require.NoError(t, manager.RegisterCode(addr, "greeting", KindNative, code, contractABI))
	assert.True(t, manager.Exists(addr))

	contractDir := filepath.Join(tmpDir, addr.String())
	assert.FileExists(t, filepath.Join(contractDir, "code"))
	assert.FileExists(t, filepath.Join(contractDir, "abi.json"))
	assert.FileExists(t, filepath.Join(contractDir, "metadata.json"))

	contractCode, err := manager.GetCode(addr)
	require.NoError(t, err)
	assert.Equal(t, code, contractCode.Code)
	assert.Equal(t, "greeting", contractCode.Name)
	assert.Equal(t, KindNative, contractCode.Kind)
	assert.Equal(t, addr, contractCode.Address)
	assert.Len(t, contractCode.Hash, 64)

	loaded, err := manager.GetABI(addr)
	require.NoError(t, err)
	assert.Equal(t, contractABI, loaded)
}

func TestRegisterCodeRefusesOverwrite(t *testing.T) {
	manager, _ := setupTestManager(t)
	addr := core.AddressFromString("0xaa")

	require.NoError(t, manager.RegisterCode(addr, "a", KindNative, []byte("package a"), nil))
	err := manager.RegisterCode(addr, "b", KindNative, []byte("package b"), nil)
	assert.ErrorIs(t, err, core.ErrContractExists)

	contractCode, err := manager.GetCode(addr)
	require.NoError(t, err)
	assert.Equal(t, "a", contractCode.Name)
}

func TestMissingContract(t *testing.T) {
	manager, _ := setupTestManager(t)
	addr := core.AddressFromString("0xbb")

	_, err := manager.GetCode(addr)
	assert.ErrorIs(t, err, core.ErrContractNotFound)
	_, err = manager.GetABI(addr)
	assert.ErrorIs(t, err, core.ErrContractNotFound)
}

func TestListAndRemove(t *testing.T) {
	manager, tmpDir := setupTestManager(t)
	first := core.AddressFromString("0x01")
	second := core.AddressFromString("0x02")

	require.NoError(t, manager.RegisterCode(first, "greeting", KindNative, []byte("a"), nil))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, manager.RegisterCode(second, "module", KindWASM, []byte("\x00asm"), nil))

	// stray files and broken directories are ignored
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "README"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "broken"), 0755))

	list, err := manager.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].Address)
	assert.Equal(t, KindWASM, list[1].Kind)

	require.NoError(t, manager.Remove(first))
	assert.False(t, manager.Exists(first))
	list, err = manager.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
