package models

import "time"

// Confidence labels derived from a probability via fixed thresholds
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// PlayerPrediction is one ranked entry of a game prediction
type PlayerPrediction struct {
	PlayerID    string  `json:"player_id"`
	PlayerName  string  `json:"player_name"`
	Team        string  `json:"team"`
	Probability float64 `json:"probability"`
	Confidence  string  `json:"confidence"`
}

// Prediction is the model output for one scheduled game: candidate
// players ranked by first-basket probability. Probabilities are
// normalized over the roster and sum to 1.
type Prediction struct {
	GameID       string             `json:"game_id"`
	HomeTeam     string             `json:"home_team"`
	AwayTeam     string             `json:"away_team"`
	Players      []PlayerPrediction `json:"players"`
	ModelVersion string             `json:"model_version"`
	PredictedAt  time.Time          `json:"predicted_at"`
}

// Top returns the highest-probability entry, or nil for an empty ranking
func (p *Prediction) Top() *PlayerPrediction {
	if len(p.Players) == 0 {
		return nil
	}
	return &p.Players[0]
}
