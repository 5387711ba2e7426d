// Package leaderboard keeps the experience points of every player in SQLite.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
	// MaxDisplayName is the longest display name a player can pick
	MaxDisplayName = 20
)

// ErrInvalidPlayer wraps wallet and display name validation failures
var ErrInvalidPlayer = errors.New("invalid player")

// Player is one row of the leaderboard
type Player struct {
	Wallet      string    `gorm:"column:wallet;primaryKey;size:42" json:"wallet"`
	DisplayName string    `gorm:"column:display_name;size:20" json:"displayName"`
	TotalXP     int64     `gorm:"column:total_xp;not null;default:0;index" json:"totalXp"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (Player) TableName() string {
	return "players"
}

type identity struct {
	Wallet      string `validate:"required,eth_addr"`
	DisplayName string `validate:"max=20,displayname"`
}

var displayNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("displayname", func(fl validator.FieldLevel) bool {
		return displayNamePattern.MatchString(fl.Field().String())
	}, true)
	return v
}

// Validate checks a wallet address and an optional display name
func Validate(wallet, displayName string) error {
	if err := validate.Struct(identity{Wallet: wallet, DisplayName: displayName}); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPlayer, err)
	}
	return nil
}

// Store is the leaderboard table
type Store struct {
	db  *gorm.DB
	own bool
}

// Open opens (or creates) the leaderboard database at dbPath
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s, err := New(db)
	if err != nil {
		return nil, err
	}
	s.own = true
	return s, nil
}

// New uses an open database, for example the one of the db blockchain context
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Player{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database when the store opened it
func (s *Store) Close() error {
	if !s.own {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertPlayer registers wallet. An empty displayName keeps the current one.
func (s *Store) UpsertPlayer(ctx context.Context, wallet, displayName string) (*Player, error) {
	return s.AddXP(ctx, wallet, 0, displayName)
}

// AddXP adds delta to the player's total, negative deltas count as 0
func (s *Store) AddXP(ctx context.Context, wallet string, delta int64, displayName string) (*Player, error) {
	if err := Validate(wallet, displayName); err != nil {
		return nil, err
	}
	delta = max(delta, 0)

	var player Player
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		err := tx.Where(Player{Wallet: strings.ToLower(wallet)}).
			Attrs(Player{UpdatedAt: now}).
			FirstOrCreate(&player).Error
		if err != nil {
			return err
		}
		if displayName != "" {
			player.DisplayName = displayName
		}
		player.TotalXP += delta
		player.UpdatedAt = now
		return tx.Save(&player).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update player: %w", err)
	}
	return &player, nil
}

// Get returns the player for wallet
func (s *Store) Get(ctx context.Context, wallet string) (*Player, error) {
	var player Player
	err := s.db.WithContext(ctx).Where("wallet = ?", strings.ToLower(wallet)).First(&player).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", wallet, err)
	}
	return &player, nil
}

// Top returns the best players, highest XP first and the most recently
// active first among equals. limit is clamped to [1, MaxLimit], 0 means
// DefaultLimit.
func (s *Store) Top(ctx context.Context, limit int) ([]Player, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	limit = min(max(limit, 1), MaxLimit)

	var players []Player
	err := s.db.WithContext(ctx).
		Order("total_xp DESC").
		Order("updated_at DESC").
		Limit(limit).
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	for i := range players {
		if players[i].DisplayName == "" {
			players[i].DisplayName = FallbackName(players[i].Wallet)
		}
	}
	return players, nil
}

// FallbackName is shown for players without a display name
func FallbackName(wallet string) string {
	if len(wallet) < 6 {
		return "player_" + strings.TrimPrefix(wallet, "0x")
	}
	return "player_" + wallet[2:6]
}
