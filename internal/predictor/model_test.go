package predictor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"nbafirst/ingestion/internal/features"
	"nbafirst/ingestion/internal/models"
	"nbafirst/ingestion/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vector(rate float64, home, starter bool) models.FeatureVector {
	return models.FeatureVector{
		RawRate:        rate,
		RecencyRate:    rate,
		Home:           home,
		Starter:        starter,
		OpponentFactor: 0.5,
	}
}

func trainedModel(t *testing.T) *Model {
	t.Helper()

	// Synthetic set where a high first-basket rate separates scorers
	var samples []Sample
	for i := 0; i < 40; i++ {
		samples = append(samples,
			Sample{Features: vector(0.30, true, true), Label: true},
			Sample{Features: vector(0.05, false, false), Label: false},
			Sample{Features: vector(0.08, true, false), Label: false},
		)
	}

	m := New(DefaultThresholds)
	require.NoError(t, m.Fit(context.Background(), samples, time.Now()))
	return m
}

func candidates(rates ...float64) []Candidate {
	out := make([]Candidate, len(rates))
	for i, r := range rates {
		out[i] = Candidate{
			Player:   models.Player{PlayerID: string(rune('a' + i)), Name: "P", Team: "BOS"},
			Features: vector(r, i == 0, i == 0),
		}
	}
	return out
}

func testGame() *models.Game {
	return &models.Game{GameID: "g1", HomeTeam: "BOS", AwayTeam: "LAL"}
}

func TestModelStateMachine(t *testing.T) {
	m := New(DefaultThresholds)
	assert.Equal(t, StateUntrained, m.State(time.Now()))

	cutoff := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	samples := []Sample{
		{Features: vector(0.3, true, true), Label: true},
		{Features: vector(0.05, false, false), Label: false},
	}
	require.NoError(t, m.Fit(context.Background(), samples, cutoff))

	assert.Equal(t, StateTrained, m.State(cutoff))
	assert.Equal(t, StateStale, m.State(cutoff.Add(time.Hour)),
		"watermark past the cutoff marks the model stale")
}

func TestFit_EmptySamples(t *testing.T) {
	m := New(DefaultThresholds)
	err := m.Fit(context.Background(), nil, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, features.ErrInsufficientData))
}

func TestFit_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := New(DefaultThresholds)
	err := m.Fit(ctx, []Sample{{Features: vector(0.3, true, true), Label: true}}, time.Now())
	require.Error(t, err)
	assert.Equal(t, StateUntrained, m.State(time.Now()), "aborted fit must leave the model untouched")
}

func TestInfer_ProbabilitiesNormalize(t *testing.T) {
	m := trainedModel(t)

	for _, n := range []int{1, 2, 5, 12} {
		rates := make([]float64, n)
		for i := range rates {
			rates[i] = 0.05 + 0.02*float64(i)
		}
		pred, err := m.Infer(testGame(), candidates(rates...))
		require.NoError(t, err)
		require.Len(t, pred.Players, n)

		sum := 0.0
		for _, p := range pred.Players {
			assert.Greater(t, p.Probability, 0.0)
			assert.Less(t, p.Probability, 1.0+1e-9)
			sum += p.Probability
		}
		assert.InDelta(t, 1.0, sum, 1e-6, "probabilities must sum to 1 for %d players", n)
	}
}

func TestInfer_RanksByHistory(t *testing.T) {
	m := trainedModel(t)

	// First candidate has the stronger record
	pred, err := m.Infer(testGame(), candidates(0.5, 1.0/3.0))
	require.NoError(t, err)
	require.Len(t, pred.Players, 2)
	assert.Equal(t, "a", pred.Players[0].PlayerID)
	assert.Greater(t, pred.Players[0].Probability, pred.Players[1].Probability)
}

func TestInfer_Untrained(t *testing.T) {
	m := New(DefaultThresholds)
	_, err := m.Infer(testGame(), candidates(0.3))
	assert.ErrorIs(t, err, ErrUntrained)
}

func TestInfer_EmptyRoster(t *testing.T) {
	m := trainedModel(t)
	_, err := m.Infer(testGame(), nil)
	assert.ErrorIs(t, err, features.ErrInsufficientData)
}

func TestInfer_UniformFallback(t *testing.T) {
	m := New(DefaultThresholds)
	m.trained = true
	m.weights = make([]float64, models.FeatureDim)
	m.bias = math.Inf(-1) // forces every raw score to exactly zero

	pred, err := m.Infer(testGame(), candidates(0.3, 0.2, 0.1, 0.4))
	require.NoError(t, err)
	for _, p := range pred.Players {
		assert.InDelta(t, 0.25, p.Probability, 1e-9, "all-zero scores fall back to uniform")
	}
}

func TestConfidenceLabels(t *testing.T) {
	th := Thresholds{High: 0.12, Medium: 0.07}
	assert.Equal(t, models.ConfidenceHigh, th.Label(0.12))
	assert.Equal(t, models.ConfidenceHigh, th.Label(0.30))
	assert.Equal(t, models.ConfidenceMedium, th.Label(0.07))
	assert.Equal(t, models.ConfidenceMedium, th.Label(0.119))
	assert.Equal(t, models.ConfidenceLow, th.Label(0.069))
	assert.Equal(t, models.ConfidenceLow, th.Label(0.0))
}

// End-to-end over the store: A scored first in 1 of 2 prior games,
// B in 0 of 1; A must rank above B for the upcoming matchup.
func TestTrainAndInferOverStore(t *testing.T) {
	mem := &storetest.Memory{}
	day := func(n int) time.Time {
		return time.Date(2025, 1, 1, 19, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	}
	addFinal := func(id string, d time.Time, home, away string) {
		mem.AddGame(models.Game{
			GameID: id, Season: "2024-25", GameDate: d,
			HomeTeam: home, AwayTeam: away, Status: models.StatusFinal, UpdatedAt: d,
		})
	}

	addFinal("g1", day(0), "BOS", "NYK")
	addFinal("g2", day(2), "MIA", "BOS")
	addFinal("g3", day(4), "LAL", "GSW")
	mem.AddGame(models.Game{
		GameID: "g4", Season: "2024-25", GameDate: day(10),
		HomeTeam: "BOS", AwayTeam: "LAL", Status: models.StatusScheduled,
	})

	mem.AddPlayer(models.Player{PlayerID: "A", Name: "Player A", Team: "BOS", Season: "2024-25", Starter: true})
	mem.AddPlayer(models.Player{PlayerID: "B", Name: "Player B", Team: "LAL", Season: "2024-25", Starter: true})
	mem.AddPlayer(models.Player{PlayerID: "M", Name: "Heat Center", Team: "MIA", Season: "2024-25", Starter: true})
	mem.AddPlayer(models.Player{PlayerID: "W", Name: "Warrior", Team: "GSW", Season: "2024-25", Starter: true})

	mem.AddEvent(models.FirstBasketEvent{GameID: "g1", PlayerID: "A", PlayerName: "Player A", Team: "BOS", RecordedAt: day(0)})
	mem.AddEvent(models.FirstBasketEvent{GameID: "g2", PlayerID: "M", PlayerName: "Heat Center", Team: "MIA", RecordedAt: day(2)})
	mem.AddEvent(models.FirstBasketEvent{GameID: "g3", PlayerID: "W", PlayerName: "Warrior", Team: "GSW", RecordedAt: day(4)})

	builder := features.NewBuilder(mem, features.DefaultHalfLifeDays)
	trainer := NewTrainer(mem, builder)

	samples, cutoff, err := trainer.TrainingSet(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	m := New(DefaultThresholds)
	require.NoError(t, m.Fit(context.Background(), samples, cutoff))
	assert.Equal(t, StateTrained, m.State(cutoff))

	vectors, err := builder.BuildFeatures(context.Background(), "g4", []string{"A", "B"})
	require.NoError(t, err)
	assert.Greater(t, vectors["A"].RawRate, vectors["B"].RawRate)

	pred, err := m.Infer(&models.Game{GameID: "g4", HomeTeam: "BOS", AwayTeam: "LAL"}, []Candidate{
		{Player: models.Player{PlayerID: "A", Name: "Player A", Team: "BOS"}, Features: vectors["A"]},
		{Player: models.Player{PlayerID: "B", Name: "Player B", Team: "LAL"}, Features: vectors["B"]},
	})
	require.NoError(t, err)
	require.Len(t, pred.Players, 2)

	assert.Equal(t, "A", pred.Players[0].PlayerID, "A's record must rank first")
	sum := pred.Players[0].Probability + pred.Players[1].Probability
	assert.InDelta(t, 1.0, sum, 1e-6)
	for _, p := range pred.Players {
		assert.Contains(t,
			[]string{models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow},
			p.Confidence)
	}
}
