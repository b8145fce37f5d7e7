package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"nbafirst/ingestion/internal/features"
	"nbafirst/ingestion/internal/models"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// ModelVersion identifies the model family in prediction output
const ModelVersion = "first-basket-logistic-v1"

// ErrUntrained is returned by Infer before the first successful Fit
var ErrUntrained = errors.New("model not trained")

// State of the model relative to the store watermark
type State int

const (
	StateUntrained State = iota
	StateTrained
	// StateStale means the store has ingested data past the model's
	// training cutoff. Inference still answers; the caller is expected
	// to trigger retraining.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateUntrained:
		return "untrained"
	case StateTrained:
		return "trained"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Thresholds map a probability to a discrete confidence label
type Thresholds struct {
	High   float64
	Medium float64
}

// DefaultThresholds per the configured defaults
var DefaultThresholds = Thresholds{High: 0.12, Medium: 0.07}

// Label buckets a probability
func (t Thresholds) Label(p float64) string {
	switch {
	case p >= t.High:
		return models.ConfidenceHigh
	case p >= t.Medium:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// Sample is one training example: a candidate's features for a resolved
// game and whether that candidate scored the first basket
type Sample struct {
	Features models.FeatureVector
	Label    bool
}

// Candidate pairs a roster player with their features for inference
type Candidate struct {
	Player   models.Player
	Features models.FeatureVector
}

// Model is a logistic classifier over feature vectors. It is retrained
// from scratch each refresh cycle; the only state it carries between
// cycles is the fitted weights and the training cutoff.
type Model struct {
	mu         sync.RWMutex
	weights    []float64
	bias       float64
	trained    bool
	trainedAt  time.Time
	cutoff     time.Time
	thresholds Thresholds
}

// New creates an untrained model with the given confidence thresholds
func New(th Thresholds) *Model {
	if th.High <= 0 || th.Medium <= 0 {
		th = DefaultThresholds
	}
	return &Model{thresholds: th}
}

// Fit trains the model on the full sample set, discarding any previous
// weights. cutoff is the store watermark the samples were derived from.
// Cancellation is checked between epochs; an aborted fit leaves the
// model untouched.
func (m *Model) Fit(ctx context.Context, samples []Sample, cutoff time.Time) error {
	if len(samples) == 0 {
		return fmt.Errorf("no training samples: %w", features.ErrInsufficientData)
	}

	const (
		epochs       = 300
		learningRate = 0.5
	)

	weights := make([]float64, models.FeatureDim)
	bias := 0.0
	grad := make([]float64, models.FeatureDim)
	n := float64(len(samples))

	start := time.Now()
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("training cancelled at epoch %d: %w", epoch, err)
		}

		for i := range grad {
			grad[i] = 0
		}
		biasGrad := 0.0

		for _, s := range samples {
			x := s.Features.Values()
			p := sigmoid(floats.Dot(weights, x) + bias)
			label := 0.0
			if s.Label {
				label = 1.0
			}
			residual := p - label
			floats.AddScaled(grad, residual, x)
			biasGrad += residual
		}

		floats.Scale(learningRate/n, grad)
		floats.Sub(weights, grad)
		bias -= learningRate / n * biasGrad
	}

	m.mu.Lock()
	m.weights = weights
	m.bias = bias
	m.trained = true
	m.trainedAt = time.Now()
	m.cutoff = cutoff
	m.mu.Unlock()

	log.Info().
		Int("samples", len(samples)).
		Dur("elapsed", time.Since(start)).
		Time("cutoff", cutoff).
		Msg("Model trained")

	return nil
}

// State compares the training cutoff with the store watermark
func (m *Model) State(watermark time.Time) State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return StateUntrained
	}
	if watermark.After(m.cutoff) {
		return StateStale
	}
	return StateTrained
}

// TrainedAt returns when the current weights were fitted
func (m *Model) TrainedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trainedAt
}

// Infer ranks the candidates of one game by first-basket probability.
// Probabilities are normalized over the candidate set and sum to 1;
// degenerate all-zero scores fall back to a uniform distribution.
func (m *Model) Infer(game *models.Game, candidates []Candidate) (*models.Prediction, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("game %s has no eligible candidates: %w", game.GameID, features.ErrInsufficientData)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.trained {
		return nil, ErrUntrained
	}

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = sigmoid(floats.Dot(m.weights, c.Features.Values()) + m.bias)
	}

	total := floats.Sum(scores)
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		log.Warn().
			Str("game_id", game.GameID).
			Msg("Degenerate model scores, falling back to uniform distribution")
		uniform := 1.0 / float64(len(scores))
		for i := range scores {
			scores[i] = uniform
		}
		total = 1.0
	}

	players := make([]models.PlayerPrediction, len(candidates))
	for i, c := range candidates {
		p := scores[i] / total
		players[i] = models.PlayerPrediction{
			PlayerID:    c.Player.PlayerID,
			PlayerName:  c.Player.Name,
			Team:        c.Player.Team,
			Probability: p,
			Confidence:  m.thresholds.Label(p),
		}
	}

	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Probability != players[j].Probability {
			return players[i].Probability > players[j].Probability
		}
		return players[i].PlayerID < players[j].PlayerID
	})

	return &models.Prediction{
		GameID:       game.GameID,
		HomeTeam:     game.HomeTeam,
		AwayTeam:     game.AwayTeam,
		Players:      players,
		ModelVersion: ModelVersion,
		PredictedAt:  time.Now().UTC(),
	}, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
