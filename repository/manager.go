// Package repository keeps deployed contract code on disk, one directory per
// contract address.
package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/govm-net/promptheist/abi"
	"github.com/govm-net/promptheist/core"
)

// Kind 合约类型
type Kind string

const (
	// KindNative is Go code compiled into the host and run through its handlers
	KindNative Kind = "native"
	// KindWASM is a WebAssembly module run by the wasi host
	KindWASM Kind = "wasm"
)

const (
	codeFile     = "code"
	abiFile      = "abi.json"
	metadataFile = "metadata.json"
)

// Manager 代码管理器
type Manager struct {
	rootDir string // 代码根目录
}

// ContractCode 合约代码信息
type ContractCode struct {
	Metadata
	Code []byte // 原始代码, Go 源码或 wasm
}

// Metadata 合约元数据
type Metadata struct {
	Address    core.Address `json:"address"`
	Name       string       `json:"name,omitempty"`
	Kind       Kind         `json:"kind"`
	Hash       string       `json:"hash"`        // 代码哈希
	UpdateTime time.Time    `json:"update_time"` // 更新时间
}

// NewManager 创建代码管理器
func NewManager(rootDir string) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		slog.Error("failed to create root directory", "dir", rootDir, "error", err)
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	return &Manager{
		rootDir: rootDir,
	}, nil
}

// Exists reports whether code is registered at address
func (m *Manager) Exists(address core.Address) bool {
	_, err := os.Stat(filepath.Join(m.getContractDir(address), metadataFile))
	return err == nil
}

// RegisterCode 注册新的合约代码, 已存在的合约不会被覆盖
func (m *Manager) RegisterCode(address core.Address, name string, kind Kind, code []byte, contractABI *abi.ABI) error {
	contractDir := m.getContractDir(address)
	if _, err := os.Stat(contractDir); err == nil {
		return fmt.Errorf("%w: %s", core.ErrContractExists, address)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check contract directory: %w", err)
	}

	if err := os.MkdirAll(contractDir, 0755); err != nil {
		return fmt.Errorf("failed to create contract directory: %w", err)
	}

	hash := sha256.Sum256(code)
	contract := &ContractCode{
		Metadata: Metadata{
			Address:    address,
			Name:       name,
			Kind:       kind,
			Hash:       hex.EncodeToString(hash[:]),
			UpdateTime: time.Now().UTC(),
		},
		Code: code,
	}

	if err := m.saveContractFiles(contract, contractABI); err != nil {
		// 删除已创建的目录
		os.RemoveAll(contractDir)
		return fmt.Errorf("failed to save contract files: %w", err)
	}

	slog.Debug("contract code registered", "address", address, "name", name, "kind", kind)
	return nil
}

// Remove deletes everything stored for address
func (m *Manager) Remove(address core.Address) error {
	if err := os.RemoveAll(m.getContractDir(address)); err != nil {
		return fmt.Errorf("failed to remove contract: %w", err)
	}
	return nil
}

// GetCode 获取合约代码
func (m *Manager) GetCode(address core.Address) (*ContractCode, error) {
	metadata, err := m.GetMetadata(address)
	if err != nil {
		return nil, err
	}
	code, err := os.ReadFile(filepath.Join(m.getContractDir(address), codeFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read code: %w", err)
	}
	return &ContractCode{Metadata: *metadata, Code: code}, nil
}

// GetMetadata 读取合约元数据
func (m *Manager) GetMetadata(address core.Address) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(m.getContractDir(address), metadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", core.ErrContractNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &metadata, nil
}

// GetABI 读取合约 ABI
func (m *Manager) GetABI(address core.Address) (*abi.ABI, error) {
	data, err := os.ReadFile(filepath.Join(m.getContractDir(address), abiFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", core.ErrContractNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read abi: %w", err)
	}

	var contractABI abi.ABI
	if err := json.Unmarshal(data, &contractABI); err != nil {
		return nil, fmt.Errorf("failed to unmarshal abi: %w", err)
	}
	return &contractABI, nil
}

// List returns the metadata of every registered contract, oldest first
func (m *Manager) List() ([]Metadata, error) {
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}

	list := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metadata, err := m.GetMetadata(core.AddressFromString(entry.Name()))
		if err != nil {
			slog.Warn("skipping unreadable contract", "dir", entry.Name(), "error", err)
			continue
		}
		list = append(list, *metadata)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].UpdateTime.Before(list[j].UpdateTime)
	})
	return list, nil
}

// getContractDir 获取合约目录路径
func (m *Manager) getContractDir(address core.Address) string {
	return filepath.Join(m.rootDir, address.String())
}

// saveContractFiles 保存合约相关文件
func (m *Manager) saveContractFiles(code *ContractCode, contractABI *abi.ABI) error {
	dir := m.getContractDir(code.Address)

	if err := os.WriteFile(filepath.Join(dir, codeFile), code.Code, 0644); err != nil {
		return fmt.Errorf("failed to save code: %w", err)
	}

	if contractABI == nil {
		contractABI = &abi.ABI{}
	}
	abiBytes, err := json.MarshalIndent(contractABI, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal abi: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, abiFile), abiBytes, 0644); err != nil {
		return fmt.Errorf("failed to save abi: %w", err)
	}

	metadataBytes, err := json.MarshalIndent(code.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), metadataBytes, 0644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}
