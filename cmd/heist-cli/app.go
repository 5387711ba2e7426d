package main

import (
	"encoding/json"
	"fmt"
	"io"

	dbcontext "github.com/govm-net/promptheist/context/db"
	"github.com/govm-net/promptheist/cases"
	_ "github.com/govm-net/promptheist/contracts/greeting"
	_ "github.com/govm-net/promptheist/contracts/judge"
	"github.com/govm-net/promptheist/heist"
	"github.com/govm-net/promptheist/leaderboard"
	"github.com/govm-net/promptheist/metrics"
	"github.com/govm-net/promptheist/vm"
)

// defaultPackSize is used when no case pack file is configured
const defaultPackSize = 40

func openEngine() (*vm.Engine, error) {
	engine, err := vm.NewEngine(cfg.EngineConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create VM engine: %w", err)
	}
	return engine, nil
}

// openLeaderboard shares the engine's database when it runs on the db context
func openLeaderboard(engine *vm.Engine) (*leaderboard.Store, error) {
	if bc, ok := engine.GetContext().(*dbcontext.Context); ok {
		return leaderboard.New(bc.DB())
	}
	return leaderboard.Open(cfg.DBPath)
}

func loadPack() (*cases.Pack, error) {
	if cfg.CasePack == "" {
		return cases.NewPack(cases.Generate(defaultPackSize))
	}
	return cases.Load(cfg.CasePack)
}

// openService wires the game service, deploying the judge on first use
func openService(engine *vm.Engine, board *leaderboard.Store, m *metrics.Manager) (*heist.Service, error) {
	pack, err := loadPack()
	if err != nil {
		return nil, fmt.Errorf("failed to load case pack: %w", err)
	}
	return heist.NewService(heist.Config{
		Engine:      engine,
		Leaderboard: board,
		Pack:        pack,
		Metrics:     m,
		MaxGuessLen: cfg.MaxGuessLen,
	})
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
