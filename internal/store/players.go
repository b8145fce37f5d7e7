package store

import (
	"context"
	"errors"

	"nbafirst/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// PlayerStore handles player writes
type PlayerStore struct {
	store *Store
}

// Upsert inserts a scraped player or merges team/role corrections into
// the existing row for the same season. Historical rows are never
// deleted.
func (ps *PlayerStore) Upsert(ctx context.Context, rec *models.PlayerRecord) (*models.Player, error) {
	if err := rec.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	incoming := rec.ToPlayer()
	unlock := ps.store.locks.acquire(incoming.NaturalKey())
	defer unlock()

	tx, err := ps.store.Pool.Begin(ctx)
	if err != nil {
		return nil, &StorageError{Op: "begin upsert player", Err: err}
	}
	defer tx.Rollback(ctx)

	existing, err := getPlayerForUpdate(ctx, tx, incoming.Season, incoming.PlayerID)
	if err != nil {
		return nil, err
	}

	merged := mergePlayer(existing, incoming)

	query := `
		INSERT INTO players (player_id, name, team, season, position, starter)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (season, player_id) DO UPDATE SET
			name = EXCLUDED.name,
			team = EXCLUDED.team,
			position = EXCLUDED.position,
			starter = EXCLUDED.starter,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(
		ctx, query,
		merged.PlayerID, merged.Name, merged.Team,
		merged.Season, merged.Position, merged.Starter,
	).Scan(&merged.ID, &merged.CreatedAt, &merged.UpdatedAt)
	if err != nil {
		return nil, &StorageError{Op: "upsert player", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &StorageError{Op: "commit upsert player", Err: err}
	}

	log.Debug().
		Str("player_id", merged.PlayerID).
		Str("team", merged.Team).
		Str("season", merged.Season).
		Msg("Player upserted")

	return merged, nil
}

func getPlayerForUpdate(ctx context.Context, tx pgx.Tx, season, playerID string) (*models.Player, error) {
	query := `
		SELECT id, player_id, name, team, season, position, starter, created_at, updated_at
		FROM players
		WHERE season = $1 AND player_id = $2
		FOR UPDATE
	`

	var p models.Player
	err := tx.QueryRow(ctx, query, season, playerID).Scan(
		&p.ID, &p.PlayerID, &p.Name, &p.Team, &p.Season,
		&p.Position, &p.Starter, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "lookup player", Err: err}
	}

	return &p, nil
}
