package features

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"nbafirst/ingestion/internal/models"
	"nbafirst/ingestion/internal/store"

	"github.com/rs/zerolog/log"
)

// ErrInsufficientData reports that features or predictions cannot be
// computed for a game. Callers skip the game; they never treat this as
// a pipeline failure.
var ErrInsufficientData = errors.New("insufficient data")

// DefaultHalfLifeDays is the recency decay half-life when none is
// configured
const DefaultHalfLifeDays = 30.0

// neutralOpponentFactor is used when the opponent has no history
const neutralOpponentFactor = 0.5

// Builder computes point-in-time feature vectors from the event store
type Builder struct {
	store    store.Querier
	halfLife float64
}

// NewBuilder creates a feature builder reading through the store's
// query interface
func NewBuilder(q store.Querier, halfLifeDays float64) *Builder {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	return &Builder{store: q, halfLife: halfLifeDays}
}

// BuildFeatures computes one FeatureVector per roster candidate for the
// given game, using only store state dated strictly before the game.
// Player games-played counts follow team schedules, which is what the
// sparse first-basket history supports.
func (b *Builder) BuildFeatures(ctx context.Context, gameID string, roster []string) (map[string]models.FeatureVector, error) {
	if len(roster) == 0 {
		return nil, fmt.Errorf("game %s has no stored roster: %w", gameID, ErrInsufficientData)
	}

	game, err := b.store.GameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("game %s not in store: %w", gameID, ErrInsufficientData)
	}

	cutoff := game.GameDate

	priorGames, err := b.store.QueryGames(ctx, store.Filter{Status: models.StatusFinal, Before: cutoff})
	if err != nil {
		return nil, err
	}
	priorEvents, err := b.store.QueryEvents(ctx, store.Filter{Before: cutoff})
	if err != nil {
		return nil, err
	}

	gamesByTeam := make(map[string][]models.Game)
	dateByGame := make(map[string]time.Time, len(priorGames))
	for _, g := range priorGames {
		gamesByTeam[g.HomeTeam] = append(gamesByTeam[g.HomeTeam], g)
		gamesByTeam[g.AwayTeam] = append(gamesByTeam[g.AwayTeam], g)
		dateByGame[g.GameID] = g.GameDate
	}

	eventsByPlayer := make(map[string][]models.FirstBasketEvent)
	scorerTeamByGame := make(map[string]string, len(priorEvents))
	for _, e := range priorEvents {
		eventsByPlayer[e.PlayerID] = append(eventsByPlayer[e.PlayerID], e)
		scorerTeamByGame[e.GameID] = e.Team
	}

	k := float64(len(roster))
	vectors := make(map[string]models.FeatureVector, len(roster))

	for _, playerID := range roster {
		player, err := b.lookupPlayer(ctx, playerID, game.Season)
		if err != nil {
			return nil, err
		}

		fv := models.FeatureVector{GameID: gameID, PlayerID: playerID}

		var team string
		if player != nil {
			team = player.Team
			fv.Starter = player.Starter
		}
		fv.Home = team != "" && team == game.HomeTeam

		teamGames := gamesByTeam[team]
		playerEvents := eventsByPlayer[playerID]

		fv.GamesPlayed = len(teamGames)
		fv.FirstBaskets = len(playerEvents)

		if fv.GamesPlayed == 0 {
			// No history at all: smoothed prior only
			fv.RawRate = 1.0 / k
			fv.RecencyRate = fv.RawRate
			fv.OpponentFactor = neutralOpponentFactor
			vectors[playerID] = fv
			continue
		}

		fv.RawRate = (float64(fv.FirstBaskets) + 1) / (float64(fv.GamesPlayed) + k)

		weightedGames := 0.0
		for _, g := range teamGames {
			weightedGames += b.decay(cutoff.Sub(g.GameDate))
		}
		weightedBaskets := 0.0
		for _, e := range playerEvents {
			if d, ok := dateByGame[e.GameID]; ok {
				weightedBaskets += b.decay(cutoff.Sub(d))
			}
		}
		fv.RecencyRate = (weightedBaskets + 1) / (weightedGames + k)

		opponent := game.AwayTeam
		if !fv.Home {
			opponent = game.HomeTeam
		}
		fv.OpponentFactor = opponentAllowedRate(gamesByTeam[opponent], scorerTeamByGame, opponent)

		vectors[playerID] = fv
	}

	log.Debug().
		Str("game_id", gameID).
		Int("candidates", len(vectors)).
		Msg("Feature vectors built")

	return vectors, nil
}

// lookupPlayer finds the player's row, preferring the target game's
// season over older affiliations. Nil when the player has never been
// stored.
func (b *Builder) lookupPlayer(ctx context.Context, playerID, season string) (*models.Player, error) {
	rows, err := b.store.QueryPlayers(ctx, store.Filter{PlayerID: playerID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	for i := range rows {
		if rows[i].Season == season {
			return &rows[i], nil
		}
	}
	// Rows are ordered by season; take the most recent
	return &rows[len(rows)-1], nil
}

// opponentAllowedRate is the fraction of the opponent's prior games in
// which the first basket went to the other side
func opponentAllowedRate(oppGames []models.Game, scorerTeamByGame map[string]string, opponent string) float64 {
	resolved := 0
	allowed := 0
	for _, g := range oppGames {
		scorer, ok := scorerTeamByGame[g.GameID]
		if !ok {
			continue
		}
		resolved++
		if scorer != opponent {
			allowed++
		}
	}
	if resolved == 0 {
		return neutralOpponentFactor
	}
	return float64(allowed) / float64(resolved)
}

func (b *Builder) decay(age time.Duration) float64 {
	days := age.Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp2(-days / b.halfLife)
}
