// Package config defines the heist configuration and how it is loaded.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/govm-net/promptheist/api"
	"github.com/govm-net/promptheist/vm"
)

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// EnvPrefix prefixes every environment variable, e.g. HEIST_GAS_LIMIT.
const EnvPrefix = "HEIST_"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// ContextType selects the blockchain context, memory or db.
	ContextType string `koanf:"context_type"`

	// DBPath is the SQLite file of the db context and the leaderboard.
	DBPath string `koanf:"db_path"`

	// RepoDir and WASMDir hold deployed contract code.
	RepoDir string `koanf:"repo_dir"`
	WASMDir string `koanf:"wasm_dir"`

	MaxContractSize uint64 `koanf:"max_contract_size"`
	GasLimit        int64  `koanf:"gas_limit"`
	MaxCallDepth    int    `koanf:"max_call_depth"`

	// CasePack is the JSON case pack, empty means a generated pack.
	CasePack string `koanf:"case_pack"`

	// LeaderboardLimit is the default number of players listed.
	LeaderboardLimit int `koanf:"leaderboard_limit"`

	// MaxGuessLen truncates guesses, counted in characters.
	MaxGuessLen int `koanf:"max_guess_len"`
}

// New creates a Config with defaults rooted at ./data.
func New(_ context.Context) *Config {
	contract := api.DefaultContractConfig()
	return &Config{
		LogLevel:         "info",
		ContextType:      "db",
		DBPath:           filepath.Join("data", "prompt-heist.sqlite"),
		RepoDir:          filepath.Join("data", "repo"),
		WASMDir:          filepath.Join("data", "wasm"),
		MaxContractSize:  contract.MaxCodeSize,
		GasLimit:         contract.MaxGas,
		MaxCallDepth:     contract.MaxCallDepth,
		LeaderboardLimit: 50,
		MaxGuessLen:      240,
	}
}

// Load builds a Config by layering, low to high precedence:
//  1. defaults (New(ctx))
//  2. HEIST_ entries of a .env file in the working directory, if present
//  3. YAML file if HEIST_CONFIG is set
//  4. env (prefix HEIST_)
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	dotenv, err := godotenv.Read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: .env: %w", ErrLoadConfig, err)
	}
	for name, value := range dotenv {
		if !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		if err := k.Set(envKey(name), value); err != nil {
			return nil, fmt.Errorf("%w: .env: %w", ErrLoadConfig, err)
		}
	}

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New(ctx)
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps HEIST_GAS_LIMIT to gas_limit. Underscores are kept to match
// the flat koanf tags.
func envKey(name string) string {
	return strings.TrimPrefix(strings.ToLower(name), strings.ToLower(EnvPrefix))
}

// Validate checks the values New and Load cannot default
func (c *Config) Validate() error {
	switch c.ContextType {
	case "memory", "db":
	default:
		return fmt.Errorf("%w: unknown context_type %q", ErrInvalidConfig, c.ContextType)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ContextType == "db" && c.DBPath == "" {
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	}
	if c.GasLimit <= 0 || c.MaxCallDepth <= 0 || c.MaxContractSize == 0 {
		return fmt.Errorf("%w: gas_limit, max_call_depth and max_contract_size must be positive", ErrInvalidConfig)
	}
	if c.MaxGuessLen <= 0 {
		return fmt.Errorf("%w: max_guess_len must be positive", ErrInvalidConfig)
	}
	return nil
}

// SlogLevel returns LogLevel as a slog.Level
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, s)
	}
	return level, nil
}

// EngineConfig converts the configuration to the engine's own config
func (c *Config) EngineConfig() *vm.Config {
	engine := &vm.Config{
		MaxContractSize:  c.MaxContractSize,
		RepoDir:          c.RepoDir,
		WASIContractsDir: c.WASMDir,
		ContextType:      c.ContextType,
		GasLimit:         c.GasLimit,
		MaxCallDepth:     c.MaxCallDepth,
	}
	if c.ContextType == "db" {
		engine.ContextParams = map[string]any{"db_path": c.DBPath}
	}
	return engine
}
