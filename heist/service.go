// Package heist runs the game: a player guesses the secret prompt of a
// case, the judge contract scores the guess and the leaderboard keeps the XP.
package heist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/govm-net/promptheist/cases"
	"github.com/govm-net/promptheist/contracts/judge"
	"github.com/govm-net/promptheist/core"
	"github.com/govm-net/promptheist/leaderboard"
	"github.com/govm-net/promptheist/metrics"
	"github.com/govm-net/promptheist/vm"
)

// DefaultMaxGuessLen is the guess length used when Config leaves it at 0
const DefaultMaxGuessLen = 240

// Verdict is the outcome of one submitted guess
type Verdict struct {
	RoundID string            `json:"roundId"`
	CaseID  string            `json:"caseId"`
	Wallet  string            `json:"wallet"`
	Guess   string            `json:"guess"`
	Result  judge.ScoreResult `json:"result"`
	TotalXP int64             `json:"totalXp"`
	TxHash  string            `json:"txHash"`
}

// Config wires a Service
type Config struct {
	Engine      *vm.Engine
	Leaderboard *leaderboard.Store
	Pack        *cases.Pack
	Metrics     *metrics.Manager // optional
	MaxGuessLen int
}

// Service plays rounds against a deployed judge contract
type Service struct {
	engine      *vm.Engine
	judge       core.Address
	board       *leaderboard.Store
	pack        *cases.Pack
	metrics     *metrics.Manager
	maxGuessLen int
}

// NewService deploys the judge contract unless it is already deployed
func NewService(cfg Config) (*Service, error) {
	if cfg.Engine == nil || cfg.Leaderboard == nil || cfg.Pack == nil {
		return nil, fmt.Errorf("%w: engine, leaderboard and case pack are required", core.ErrInvalidArgument)
	}
	if cfg.MaxGuessLen <= 0 {
		cfg.MaxGuessLen = DefaultMaxGuessLen
	}

	addr, err := cfg.Engine.NativeAddress(judge.Name)
	if err != nil {
		return nil, err
	}
	if !cfg.Engine.IsDeployed(addr) {
		if _, err := cfg.Engine.DeployNative(judge.Name); err != nil {
			return nil, fmt.Errorf("failed to deploy judge: %w", err)
		}
	}
	if cfg.Metrics != nil {
		cfg.Engine.SetCallObserver(cfg.Metrics)
	}

	return &Service{
		engine:      cfg.Engine,
		judge:       addr,
		board:       cfg.Leaderboard,
		pack:        cfg.Pack,
		metrics:     cfg.Metrics,
		maxGuessLen: cfg.MaxGuessLen,
	}, nil
}

// Judge returns the address of the judge contract
func (s *Service) Judge() core.Address {
	return s.judge
}

// SubmitGuess scores guess against the secret prompt of caseID and awards
// the XP to wallet.
func (s *Service) SubmitGuess(ctx context.Context, wallet, caseID, guess string) (*Verdict, error) {
	if err := leaderboard.Validate(wallet, ""); err != nil {
		return nil, err
	}
	sender, err := core.ParseAddress(wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", leaderboard.ErrInvalidPlayer, err)
	}
	c, err := s.pack.Find(caseID)
	if err != nil {
		return nil, err
	}
	guess = truncate(guess, s.maxGuessLen)

	result, err := s.engine.ExecuteContractAs(sender, s.judge, "ScoreGuess", guess, c.SecretPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to score guess: %w", err)
	}
	score, err := decodeScore(result.Data)
	if err != nil {
		return nil, err
	}

	player, err := s.board.AddXP(ctx, wallet, int64(score.XPDelta), "")
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordGuess(score.Score, score.XPDelta)
	}

	verdict := &Verdict{
		RoundID: uuid.NewString(),
		CaseID:  c.ID,
		Wallet:  player.Wallet,
		Guess:   guess,
		Result:  score,
		TotalXP: player.TotalXP,
		TxHash:  result.TxHash,
	}
	slog.Info("Guess scored", "round", verdict.RoundID, "case", c.ID, "wallet", player.Wallet, "score", score.Score, "total_xp", player.TotalXP)
	return verdict, nil
}

// ScoreBatch scores guesses against secret in parallel with the judge's
// pure scoring function. The results keep the order of guesses.
func (s *Service) ScoreBatch(ctx context.Context, secret string, guesses []string) ([]judge.ScoreResult, error) {
	results := make([]judge.ScoreResult, len(guesses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, guess := range guesses {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = judge.ScoreGuess(truncate(guess, s.maxGuessLen), secret)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// decodeScore accepts the judge's Go value or its JSON form from a WASM judge
func decodeScore(data any) (judge.ScoreResult, error) {
	if score, ok := data.(judge.ScoreResult); ok {
		return score, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return judge.ScoreResult{}, fmt.Errorf("failed to encode judge result: %w", err)
	}
	var score judge.ScoreResult
	if err := json.Unmarshal(raw, &score); err != nil {
		return judge.ScoreResult{}, fmt.Errorf("failed to decode judge result: %w", err)
	}
	return score, nil
}

// truncate keeps the first n characters of s
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
