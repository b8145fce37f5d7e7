package store

import (
	"context"
	"errors"

	"nbafirst/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// GameStore handles game writes
type GameStore struct {
	store *Store
}

// Upsert inserts a scraped game or merges it into the existing row
// matched by its natural key. Teams are immutable; a status regression
// is logged and ignored rather than written.
func (gs *GameStore) Upsert(ctx context.Context, rec *models.GameRecord) (*models.Game, error) {
	if err := rec.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	incoming := rec.ToGame()
	unlock := gs.store.locks.acquire(incoming.NaturalKey())
	defer unlock()

	tx, err := gs.store.Pool.Begin(ctx)
	if err != nil {
		return nil, &StorageError{Op: "begin upsert game", Err: err}
	}
	defer tx.Rollback(ctx)

	existing, err := getGameForUpdate(ctx, tx, incoming)
	if err != nil {
		return nil, err
	}

	merged, regressed, err := mergeGame(existing, incoming)
	if err != nil {
		return nil, err
	}
	if regressed {
		log.Warn().
			Str("game_id", merged.GameID).
			Str("stored", merged.Status).
			Str("scraped", incoming.Status).
			Msg("Ignoring status regression from later scrape")
	}

	if existing == nil {
		query := `
			INSERT INTO games (game_id, season, game_date, home_team, away_team, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`
		err = tx.QueryRow(
			ctx, query,
			merged.GameID, merged.Season, merged.GameDate,
			merged.HomeTeam, merged.AwayTeam, merged.Status,
		).Scan(&merged.ID, &merged.CreatedAt, &merged.UpdatedAt)
	} else {
		query := `
			UPDATE games
			SET season = $1, game_date = $2, status = $3, updated_at = NOW()
			WHERE id = $4
			RETURNING created_at, updated_at
		`
		err = tx.QueryRow(
			ctx, query,
			merged.Season, merged.GameDate, merged.Status, merged.ID,
		).Scan(&merged.CreatedAt, &merged.UpdatedAt)
	}
	if err != nil {
		return nil, &StorageError{Op: "upsert game", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &StorageError{Op: "commit upsert game", Err: err}
	}

	log.Debug().
		Str("game_id", merged.GameID).
		Str("home", merged.HomeTeam).
		Str("away", merged.AwayTeam).
		Str("status", merged.Status).
		Msg("Game upserted")

	return merged, nil
}

// GameByID retrieves a game by its stable external id
func (s *Store) GameByID(ctx context.Context, gameID string) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE game_id = $1`

	var g models.Game
	err := s.Pool.QueryRow(ctx, query, gameID).Scan(
		&g.ID, &g.GameID, &g.Season, &g.GameDate,
		&g.HomeTeam, &g.AwayTeam, &g.Status,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "get game", Err: err}
	}

	return &g, nil
}

// getGameForUpdate looks up the stored row for an incoming scrape,
// matching by the stable external id first and falling back to the
// natural key so the same game scraped from two sources deduplicates.
func getGameForUpdate(ctx context.Context, tx pgx.Tx, incoming *models.Game) (*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE game_id = $1
		   OR (season = $2 AND game_date::date = $3::date AND home_team = $4 AND away_team = $5)
		LIMIT 1
		FOR UPDATE
	`

	var g models.Game
	err := tx.QueryRow(
		ctx, query,
		incoming.GameID, incoming.Season, incoming.GameDate,
		incoming.HomeTeam, incoming.AwayTeam,
	).Scan(
		&g.ID, &g.GameID, &g.Season, &g.GameDate,
		&g.HomeTeam, &g.AwayTeam, &g.Status,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "lookup game", Err: err}
	}

	return &g, nil
}
