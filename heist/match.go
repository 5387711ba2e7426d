package heist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/govm-net/promptheist/cases"
	"github.com/govm-net/promptheist/leaderboard"
)

// Phase is the stage a match round is in
type Phase string

// 每轮流程: reveal -> submit -> verdict -> challenge_window -> (challenge_vote) -> 下一轮
const (
	PhaseReveal          Phase = "reveal"
	PhaseSubmit          Phase = "submit"
	PhaseVerdict         Phase = "verdict"
	PhaseChallengeWindow Phase = "challenge_window"
	PhaseChallengeVote   Phase = "challenge_vote"
	PhaseCompleted       Phase = "completed"
)

const (
	// DefaultRounds is the number of rounds NewMatch plays when no case is named
	DefaultRounds = 3
	// ChallengeBonus is added to every round score when a challenge passes
	ChallengeBonus = 3
	// DefaultReasonCode is used for a challenge opened without a reason
	DefaultReasonCode = "too_harsh"
)

var (
	ErrWrongPhase    = errors.New("not allowed in the current phase")
	ErrChallengeOpen = errors.New("a challenge is already open")
	ErrMatchOver     = errors.New("match is completed")
)

// Round is one case played in a match
type Round struct {
	ID       string `json:"roundId"`
	CaseID   string `json:"caseId"`
	ImageURL string `json:"imageUrl"`
}

// Entry is one player's result in a round
type Entry struct {
	Wallet    string `json:"wallet"`
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
	Bonus     int    `json:"bonus,omitempty"`
}

// Challenge is a vote on raising the scores of a round
type Challenge struct {
	RoundID    string          `json:"roundId"`
	ReasonCode string          `json:"reasonCode"`
	Opener     string          `json:"opener"`
	Votes      map[string]bool `json:"votes"`
}

// MatchState is a snapshot of a match
type MatchState struct {
	ID          string             `json:"id"`
	Phase       Phase              `json:"phase"`
	Round       *Round             `json:"round,omitempty"`
	Rounds      []Round            `json:"rounds"`
	Leaderboard map[string][]Entry `json:"leaderboard"`
	Challenge   *Challenge         `json:"challenge,omitempty"`
}

// Match plays a sequence of rounds for a group of players. Phases move
// forward only through Advance.
type Match struct {
	service *Service
	id      string

	mu          sync.Mutex
	rounds      []Round
	secrets     map[string]string
	current     int
	phase       Phase
	submissions map[string]map[string]string // round -> wallet -> guess
	leaderboard map[string][]Entry
	challenge   *Challenge
}

// NewMatch starts a match in the reveal phase of its first round. Without
// caseIDs the first DefaultRounds cases of the pack are played.
func (s *Service) NewMatch(caseIDs ...string) (*Match, error) {
	var list []cases.Case
	if len(caseIDs) == 0 {
		all := s.pack.Cases()
		list = all[:min(DefaultRounds, len(all))]
	}
	for _, id := range caseIDs {
		c, err := s.pack.Find(id)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}

	m := &Match{
		service:     s,
		id:          uuid.NewString(),
		secrets:     make(map[string]string, len(list)),
		phase:       PhaseReveal,
		submissions: make(map[string]map[string]string),
		leaderboard: make(map[string][]Entry),
	}
	for i, c := range list {
		round := Round{ID: fmt.Sprintf("r%d", i+1), CaseID: c.ID, ImageURL: c.ImageURL}
		m.rounds = append(m.rounds, round)
		m.secrets[round.ID] = c.SecretPrompt
	}
	slog.Info("Match started", "match", m.id, "rounds", len(m.rounds))
	return m, nil
}

// ID returns the match id
func (m *Match) ID() string {
	return m.id
}

// Phase returns the current phase
func (m *Match) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Round returns the round being played
func (m *Match) Round() (Round, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current >= len(m.rounds) {
		return Round{}, false
	}
	return m.rounds[m.current], true
}

// Submit records the guess of wallet for the current round. A later
// submission replaces an earlier one.
func (m *Match) Submit(wallet, guess string) error {
	if err := leaderboard.Validate(wallet, ""); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseSubmit {
		return fmt.Errorf("%w: submit during %s", ErrWrongPhase, m.phase)
	}
	roundID := m.rounds[m.current].ID
	if m.submissions[roundID] == nil {
		m.submissions[roundID] = make(map[string]string)
	}
	m.submissions[roundID][strings.ToLower(wallet)] = truncate(guess, m.service.maxGuessLen)
	return nil
}

// OpenChallenge asks the players to vote on the verdict of the current round
func (m *Match) OpenChallenge(wallet, reasonCode string) error {
	if err := leaderboard.Validate(wallet, ""); err != nil {
		return err
	}
	if reasonCode == "" {
		reasonCode = DefaultReasonCode
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseChallengeWindow {
		return fmt.Errorf("%w: challenge during %s", ErrWrongPhase, m.phase)
	}
	if m.challenge != nil {
		return ErrChallengeOpen
	}
	m.challenge = &Challenge{
		RoundID:    m.rounds[m.current].ID,
		ReasonCode: reasonCode,
		Opener:     strings.ToLower(wallet),
		Votes:      make(map[string]bool),
	}
	m.phase = PhaseChallengeVote
	slog.Info("Challenge opened", "match", m.id, "round", m.challenge.RoundID, "reason", reasonCode)
	return nil
}

// Vote records the vote of wallet on the open challenge. A later vote
// replaces an earlier one.
func (m *Match) Vote(wallet string, yes bool) error {
	if err := leaderboard.Validate(wallet, ""); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseChallengeVote || m.challenge == nil {
		return fmt.Errorf("%w: vote during %s", ErrWrongPhase, m.phase)
	}
	m.challenge.Votes[strings.ToLower(wallet)] = yes
	return nil
}

// Advance moves the match to its next phase and returns it. Leaving the
// submit phase scores the round and awards the XP.
func (m *Match) Advance(ctx context.Context) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseReveal:
		m.phase = PhaseSubmit
	case PhaseSubmit:
		if err := m.scoreRound(ctx); err != nil {
			return m.phase, err
		}
		m.phase = PhaseVerdict
	case PhaseVerdict:
		m.phase = PhaseChallengeWindow
	case PhaseChallengeWindow:
		if m.challenge != nil {
			m.phase = PhaseChallengeVote
		} else {
			m.nextRound()
		}
	case PhaseChallengeVote:
		m.resolveChallenge()
		m.nextRound()
	case PhaseCompleted:
		return m.phase, ErrMatchOver
	}
	return m.phase, nil
}

func (m *Match) nextRound() {
	m.current++
	if m.current >= len(m.rounds) {
		m.phase = PhaseCompleted
		slog.Info("Match completed", "match", m.id)
		return
	}
	m.phase = PhaseReveal
}

// scoreRound judges every submission of the current round. Callers hold mu.
func (m *Match) scoreRound(ctx context.Context) error {
	roundID := m.rounds[m.current].ID
	subs := m.submissions[roundID]
	wallets := make([]string, 0, len(subs))
	for wallet := range subs {
		wallets = append(wallets, wallet)
	}
	sort.Strings(wallets)
	guesses := make([]string, len(wallets))
	for i, wallet := range wallets {
		guesses[i] = subs[wallet]
	}

	results, err := m.service.ScoreBatch(ctx, m.secrets[roundID], guesses)
	if err != nil {
		return fmt.Errorf("failed to score round %s: %w", roundID, err)
	}

	entries := make([]Entry, len(wallets))
	for i, wallet := range wallets {
		res := results[i]
		if _, err := m.service.board.AddXP(ctx, wallet, int64(res.XPDelta), ""); err != nil {
			return err
		}
		if m.service.metrics != nil {
			m.service.metrics.RecordGuess(res.Score, res.XPDelta)
		}
		entries[i] = Entry{Wallet: wallet, Score: res.Score, Reasoning: res.Reasoning}
	}
	sortEntries(entries)
	m.leaderboard[roundID] = entries
	slog.Info("Round scored", "match", m.id, "round", roundID, "entries", len(entries))
	return nil
}

// resolveChallenge applies the bonus when yes votes outnumber no votes
func (m *Match) resolveChallenge() {
	ch := m.challenge
	m.challenge = nil
	if ch == nil {
		return
	}

	yes, no := 0, 0
	for _, v := range ch.Votes {
		if v {
			yes++
		} else {
			no++
		}
	}
	passed := yes > no
	slog.Info("Challenge resolved", "match", m.id, "round", ch.RoundID, "yes", yes, "no", no, "passed", passed)
	if !passed {
		return
	}

	entries := m.leaderboard[ch.RoundID]
	for i := range entries {
		raised := min(entries[i].Score+ChallengeBonus, 100)
		entries[i].Bonus += raised - entries[i].Score
		entries[i].Score = raised
	}
	sortEntries(entries)
}

// sortEntries orders by score, highest first. Equal scores keep their order.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
}

// Leaderboard returns the scored entries of a round, highest score first
func (m *Match) Leaderboard(roundID string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.leaderboard[roundID]...)
}

// State returns a snapshot of the match
func (m *Match) State() MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := MatchState{
		ID:          m.id,
		Phase:       m.phase,
		Rounds:      append([]Round(nil), m.rounds...),
		Leaderboard: make(map[string][]Entry, len(m.leaderboard)),
	}
	if m.current < len(m.rounds) {
		round := m.rounds[m.current]
		state.Round = &round
	}
	for id, entries := range m.leaderboard {
		state.Leaderboard[id] = append([]Entry(nil), entries...)
	}
	if m.challenge != nil {
		ch := *m.challenge
		ch.Votes = make(map[string]bool, len(m.challenge.Votes))
		for wallet, v := range m.challenge.Votes {
			ch.Votes[wallet] = v
		}
		state.Challenge = &ch
	}
	return state
}
