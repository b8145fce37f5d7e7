package models

// FeatureVector holds the point-in-time statistics for one candidate
// player ahead of one game. It is recomputed on demand and never
// persisted, so it always reflects the latest store state.
type FeatureVector struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`

	// Smoothed historical first-basket rate (Laplace add-1/add-k)
	RawRate float64 `json:"raw_rate"`
	// Same rate with exponential recency decay applied
	RecencyRate float64 `json:"recency_rate"`

	Home           bool    `json:"home"`
	Starter        bool    `json:"starter"`
	OpponentFactor float64 `json:"opponent_factor"`

	GamesPlayed  int `json:"games_played"`
	FirstBaskets int `json:"first_baskets"`
}

// Values flattens the vector into the model's input layout.
// Order matters: the trained weights are positional.
func (fv *FeatureVector) Values() []float64 {
	home := 0.0
	if fv.Home {
		home = 1.0
	}
	starter := 0.0
	if fv.Starter {
		starter = 1.0
	}
	return []float64{fv.RawRate, fv.RecencyRate, home, starter, fv.OpponentFactor}
}

// FeatureDim is the length of FeatureVector.Values
const FeatureDim = 5
