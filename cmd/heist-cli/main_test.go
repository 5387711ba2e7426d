package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/promptheist/contracts/judge"
	"github.com/govm-net/promptheist/heist"
	"github.com/govm-net/promptheist/leaderboard"
	"github.com/govm-net/promptheist/wasi/wasmtest"
)

// runCLI runs the root command in a fresh working directory
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores flag defaults, cobra keeps values between runs
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func setupWorkdir(t *testing.T) string {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HEIST_CONFIG", "")
	t.Setenv("HEIST_LOG_LEVEL", "error")
	return dir
}

func TestJudgeCommand(t *testing.T) {
	setupWorkdir(t)

	out, err := runCLI(t, "judge", "a cat sat on mat", "a dog sat on mat")
	require.NoError(t, err)

	var result judge.ScoreResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, judge.ScoreResult{Score: 67, Reasoning: judge.ReasonSome, XPDelta: 67}, result)
}

func TestCasesCommands(t *testing.T) {
	dir := setupWorkdir(t)
	pack := filepath.Join(dir, "pack.json")

	out, err := runCLI(t, "cases", "generate", "--count", "15", "--out", pack)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 15 cases")

	out, err = runCLI(t, "cases", "validate", "--file", pack)
	require.NoError(t, err)
	assert.Contains(t, out, "15 cases, ok")

	require.NoError(t, os.WriteFile(pack, []byte(`[]`), 0644))
	_, err = runCLI(t, "cases", "validate", "--file", pack)
	assert.Error(t, err)
}

func TestDeployAndExecute(t *testing.T) {
	setupWorkdir(t)

	out, err := runCLI(t, "deploy", "--contract", "greeting")
	require.NoError(t, err)
	assert.Contains(t, out, "Contract deployed successfully!")

	out, err = runCLI(t, "deploy", "--contract", "greeting")
	require.NoError(t, err)
	assert.Contains(t, out, "already deployed")

	out, err = runCLI(t, "execute", "--list")
	require.NoError(t, err)
	var contracts []struct {
		Address string `json:"address"`
		Name    string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &contracts))
	require.Len(t, contracts, 1)
	assert.Equal(t, "greeting", contracts[0].Name)

	// state survives between processes on the db context
	_, err = runCLI(t, "execute", "-c", contracts[0].Address, "-f", "set_greeting", "-a", `{"greeting":"hello heist"}`)
	require.NoError(t, err)
	out, err = runCLI(t, "execute", "-c", contracts[0].Address, "-f", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, `"data": "hello heist"`)

	_, err = runCLI(t, "deploy")
	assert.Error(t, err)
}

func TestDeployWASMAndInspect(t *testing.T) {
	dir := setupWorkdir(t)
	wasmFile := filepath.Join(dir, "contract.wasm")
	require.NoError(t, os.WriteFile(wasmFile, wasmtest.BuildContract(`{"success":true}`), 0644))

	out, err := runCLI(t, "inspect", wasmFile)
	require.NoError(t, err)
	assert.Contains(t, out, "handle_contract_call(i32, i32) i32")

	out, err = runCLI(t, "deploy", "--wasm", wasmFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Contract deployed successfully!")
}

func TestPlayAndLeaderboard(t *testing.T) {
	setupWorkdir(t)
	wallet := "0x52908400098527886e0f7030069857d2e4169ee7"

	out, err := runCLI(t, "play", "--wallet", wallet, "--case", "case_001",
		"--guess", "watercolor scene of a floating island village")
	require.NoError(t, err)

	var verdict heist.Verdict
	require.NoError(t, json.Unmarshal([]byte(out), &verdict))
	assert.Equal(t, "case_001", verdict.CaseID)
	assert.Greater(t, verdict.Result.Score, 0)
	assert.Equal(t, int64(verdict.Result.XPDelta), verdict.TotalXP)

	out, err = runCLI(t, "leaderboard", "top", "--json", "--limit", "5")
	require.NoError(t, err)
	var players []leaderboard.Player
	require.NoError(t, json.Unmarshal([]byte(out), &players))
	require.Len(t, players, 1)
	assert.Equal(t, wallet, players[0].Wallet)
	assert.Equal(t, "player_5290", players[0].DisplayName)
}

func TestPlayPrintsMetrics(t *testing.T) {
	setupWorkdir(t)

	out, err := runCLI(t, "play", "--wallet", "0x52908400098527886e0f7030069857d2e4169ee7",
		"--case", "case_002", "--guess", "anything", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, `"caseId"`)
	assert.Contains(t, out, "promptheist_guesses_scored_total 1")
	assert.Contains(t, out, `status="ok"`)
}

func TestMatchCommand(t *testing.T) {
	setupWorkdir(t)
	first := "0x52908400098527886e0f7030069857d2e4169ee7"
	second := "0x00000000000000000000000000000000000000b2"

	out, err := runCLI(t, "match", "--case", "case_001,case_002",
		"--entry", first+"=watercolor scene of a floating island village",
		"--entry", second+"=zebra", "--challenge")
	require.NoError(t, err)

	var state heist.MatchState
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, heist.PhaseCompleted, state.Phase)
	require.Len(t, state.Rounds, 2)
	for _, round := range state.Rounds {
		entries := state.Leaderboard[round.ID]
		require.Len(t, entries, 2, round.ID)
		assert.Equal(t, first, entries[0].Wallet)
		assert.Equal(t, heist.ChallengeBonus, entries[1].Bonus)
	}

	_, err = runCLI(t, "match", "--entry", "no-separator")
	assert.Error(t, err)
}

func TestABICommand(t *testing.T) {
	dir := setupWorkdir(t)
	source := filepath.Join(dir, "contract.go")
	require.NoError(t, os.WriteFile(source, []byte(`package demo

import "github.com/govm-net/promptheist/core"

func Ping(ctx core.Context, n int) int { return n }
`), 0644))

	out, err := runCLI(t, "abi", "-f", source, "--handlers=false")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Ping"`)

	out, err = runCLI(t, "abi", "-f", source, "--handlers")
	require.NoError(t, err)
	assert.Contains(t, out, "func handlePing(ctx core.Context, params []byte) (any, error)")
}
