package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg := New(context.Background())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "db", cfg.ContextType)
	assert.Equal(t, 240, cfg.MaxGuessLen)
	assert.Equal(t, 50, cfg.LeaderboardLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(".env", []byte("HEIST_LOG_LEVEL=debug\nHEIST_MAX_GUESS_LEN=100\n"), 0644))

	yamlPath := filepath.Join(dir, "heist.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("context_type: memory\ndb_path: state.db\ngas_limit: 5000\nmax_guess_len: 120\n"), 0644))
	t.Setenv("HEIST_CONFIG", yamlPath)
	t.Setenv("HEIST_GAS_LIMIT", "7000")
	// the real environment wins over .env
	t.Setenv("HEIST_LOG_LEVEL", "warn")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
	assert.Equal(t, "memory", cfg.ContextType)
	assert.Equal(t, "state.db", cfg.DBPath)
	assert.Equal(t, int64(7000), cfg.GasLimit)
	// the env file value loses to the YAML file
	assert.Equal(t, 120, cfg.MaxGuessLen)
	// untouched keys keep their defaults
	assert.Equal(t, 50, cfg.LeaderboardLimit)
}

func TestLoadWithoutFiles(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HEIST_CONFIG", "")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, New(context.Background()), cfg)
}

func TestLoadErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("HEIST_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load(context.Background())
	assert.ErrorIs(t, err, ErrLoadConfig)

	t.Setenv("HEIST_CONFIG", "")
	t.Setenv("HEIST_CONTEXT_TYPE", "redis")
	_, err = Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"log level":    func(c *Config) { c.LogLevel = "loud" },
		"db path":      func(c *Config) { c.ContextType, c.DBPath = "db", "" },
		"gas limit":    func(c *Config) { c.GasLimit = 0 },
		"guess length": func(c *Config) { c.MaxGuessLen = -1 },
	} {
		cfg := New(context.Background())
		mutate(cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, name)
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := New(context.Background())
	cfg.ContextType = "memory"
	engine := cfg.EngineConfig()
	assert.Equal(t, cfg.RepoDir, engine.RepoDir)
	assert.Equal(t, cfg.WASMDir, engine.WASIContractsDir)
	assert.Equal(t, cfg.GasLimit, engine.GasLimit)
	assert.Nil(t, engine.ContextParams)

	cfg.ContextType = "db"
	engine = cfg.EngineConfig()
	assert.Equal(t, "db", engine.ContextType)
	assert.Equal(t, cfg.DBPath, engine.ContextParams["db_path"])
}
