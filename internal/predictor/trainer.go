package predictor

import (
	"context"
	"errors"
	"time"

	"nbafirst/ingestion/internal/features"
	"nbafirst/ingestion/internal/models"
	"nbafirst/ingestion/internal/store"

	"github.com/rs/zerolog/log"
)

// Trainer derives the training set from the store: one sample per
// roster candidate of every resolved prior game.
type Trainer struct {
	store   store.Querier
	builder *features.Builder
}

// NewTrainer creates a trainer over the store's query interface
func NewTrainer(q store.Querier, b *features.Builder) *Trainer {
	return &Trainer{store: q, builder: b}
}

// TrainingSet walks every game with a recorded first basket and builds
// point-in-time features for its candidates. Games whose features
// cannot be computed are skipped, not fatal. The returned cutoff is the
// store watermark the set reflects.
func (t *Trainer) TrainingSet(ctx context.Context) ([]Sample, time.Time, error) {
	cutoff, err := t.store.LastUpdatedWatermark(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	events, err := t.store.QueryEvents(ctx, store.Filter{})
	if err != nil {
		return nil, time.Time{}, err
	}

	var samples []Sample
	skipped := 0
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return nil, time.Time{}, err
		}

		game, err := t.store.GameByID(ctx, event.GameID)
		if err != nil {
			return nil, time.Time{}, err
		}
		if game == nil {
			continue
		}

		roster, err := t.gameRoster(ctx, game, event.PlayerID)
		if err != nil {
			return nil, time.Time{}, err
		}

		vectors, err := t.builder.BuildFeatures(ctx, game.GameID, roster)
		if err != nil {
			if errors.Is(err, features.ErrInsufficientData) {
				skipped++
				continue
			}
			return nil, time.Time{}, err
		}

		for playerID, fv := range vectors {
			samples = append(samples, Sample{
				Features: fv,
				Label:    playerID == event.PlayerID,
			})
		}
	}

	log.Debug().
		Int("samples", len(samples)).
		Int("skipped_games", skipped).
		Msg("Training set built")

	return samples, cutoff, nil
}

// gameRoster collects the stored candidates of both teams, always
// including the actual scorer so every game contributes its positive
// sample
func (t *Trainer) gameRoster(ctx context.Context, game *models.Game, scorerID string) ([]string, error) {
	var roster []string
	seen := make(map[string]bool)

	for _, team := range []string{game.HomeTeam, game.AwayTeam} {
		players, err := t.store.QueryPlayers(ctx, store.Filter{Season: game.Season, Team: team})
		if err != nil {
			return nil, err
		}
		for _, p := range players {
			if !seen[p.PlayerID] {
				seen[p.PlayerID] = true
				roster = append(roster, p.PlayerID)
			}
		}
	}

	if !seen[scorerID] {
		roster = append(roster, scorerID)
	}

	return roster, nil
}
