package metrics

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCall(t *testing.T) {
	m := NewManager()

	m.ObserveCall("c0417ac7", "ScoreGuess", nil)
	m.ObserveCall("c0417ac7", "ScoreGuess", nil)
	m.ObserveCall("c0417ac7", "ScoreGuess", errors.New("reverted"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.contractCalls.WithLabelValues("c0417ac7", "ScoreGuess", StatusOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.contractCalls.WithLabelValues("c0417ac7", "ScoreGuess", StatusFailed)))
}

func TestRecordGuess(t *testing.T) {
	m := NewManager()

	m.RecordGuess(67, 67)
	m.RecordGuess(0, 0)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.guessesScored))
	assert.Equal(t, float64(67), testutil.ToFloat64(m.xpAwarded))
	assert.Equal(t, 1, testutil.CollectAndCount(m.guessScore))
}

func TestManagersDoNotShareRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewManager()
		NewManager()
	})

	registry := prometheus.NewRegistry()
	m := NewManager(WithRegistry(registry), WithNamespace("test"), WithScoreBuckets([]float64{50, 100}))
	assert.Same(t, registry, m.Registry())
	assert.Panics(t, func() { NewManager(WithRegistry(registry), WithNamespace("test")) })
}

func TestWriteText(t *testing.T) {
	m := NewManager()
	m.ObserveCall("c0417ac7", "ScoreGuess", nil)
	m.RecordGuess(40, 40)

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	assert.Contains(t, buf.String(), `promptheist_contract_calls_total{contract="c0417ac7",function="ScoreGuess",status="ok"} 1`)
	assert.Contains(t, buf.String(), "promptheist_xp_awarded_total 40")
}

func TestHandler(t *testing.T) {
	m := NewManager()
	m.RecordGuess(90, 90)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "promptheist_guesses_scored_total 1")
	assert.Contains(t, string(body), `promptheist_guess_score_bucket{le="90"} 1`)
}
