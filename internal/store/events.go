package store

import (
	"context"
	"errors"
	"fmt"

	"nbafirst/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// EventStore handles first-basket event writes
type EventStore struct {
	store *Store
}

// RecordFirstBasket stores the first basket of a game and moves the
// game to final. Replaying the identical event is a no-op; a different
// scorer for an already resolved game is a conflict and never
// overwrites the stored event.
func (es *EventStore) RecordFirstBasket(ctx context.Context, rec *models.EventRecord) (*models.FirstBasketEvent, error) {
	if err := rec.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	game, err := es.store.GameByID(ctx, rec.GameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, &ValidationError{Err: fmt.Errorf("event references unknown game %s", rec.GameID)}
	}
	if rec.Team != game.HomeTeam && rec.Team != game.AwayTeam {
		return nil, &ValidationError{Err: fmt.Errorf("event team %s is not playing in game %s", rec.Team, rec.GameID)}
	}

	incoming := rec.ToEvent()
	unlock := es.store.locks.acquire(game.NaturalKey())
	defer unlock()

	tx, err := es.store.Pool.Begin(ctx)
	if err != nil {
		return nil, &StorageError{Op: "begin record event", Err: err}
	}
	defer tx.Rollback(ctx)

	existing, err := getEventForUpdate(ctx, tx, rec.GameID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Same(incoming) {
			// Identical replay from a repeated scrape
			log.Debug().
				Str("game_id", rec.GameID).
				Str("player_id", rec.PlayerID).
				Msg("First basket already recorded, replay ignored")
			return existing, nil
		}
		return nil, &ConflictError{
			Key: rec.GameID,
			Reason: fmt.Sprintf("first basket already attributed to player %s, refusing to overwrite with %s",
				existing.PlayerID, incoming.PlayerID),
		}
	}

	query := `
		INSERT INTO first_basket_events (game_id, player_id, player_name, team, elapsed_seconds, shot_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, recorded_at
	`
	err = tx.QueryRow(
		ctx, query,
		incoming.GameID, incoming.PlayerID, incoming.PlayerName,
		incoming.Team, incoming.ElapsedSeconds, incoming.ShotType,
	).Scan(&incoming.ID, &incoming.RecordedAt)
	if err != nil {
		return nil, &StorageError{Op: "insert event", Err: err}
	}

	// A recorded first basket resolves the game
	if _, err := tx.Exec(
		ctx,
		`UPDATE games SET status = $1, updated_at = NOW() WHERE game_id = $2`,
		models.StatusFinal, incoming.GameID,
	); err != nil {
		return nil, &StorageError{Op: "finalize game", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &StorageError{Op: "commit record event", Err: err}
	}

	log.Info().
		Str("game_id", incoming.GameID).
		Str("player", incoming.PlayerName).
		Str("team", incoming.Team).
		Float64("elapsed", incoming.ElapsedSeconds).
		Msg("First basket recorded")

	return incoming, nil
}

// EventByGameID retrieves the first-basket event of a game, nil when
// the game is unresolved
func (es *EventStore) EventByGameID(ctx context.Context, gameID string) (*models.FirstBasketEvent, error) {
	query := `
		SELECT id, game_id, player_id, player_name, team, elapsed_seconds, shot_type, recorded_at
		FROM first_basket_events
		WHERE game_id = $1
	`

	var e models.FirstBasketEvent
	err := es.store.Pool.QueryRow(ctx, query, gameID).Scan(
		&e.ID, &e.GameID, &e.PlayerID, &e.PlayerName,
		&e.Team, &e.ElapsedSeconds, &e.ShotType, &e.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "get event", Err: err}
	}

	return &e, nil
}

func getEventForUpdate(ctx context.Context, tx pgx.Tx, gameID string) (*models.FirstBasketEvent, error) {
	query := `
		SELECT id, game_id, player_id, player_name, team, elapsed_seconds, shot_type, recorded_at
		FROM first_basket_events
		WHERE game_id = $1
		FOR UPDATE
	`

	var e models.FirstBasketEvent
	err := tx.QueryRow(ctx, query, gameID).Scan(
		&e.ID, &e.GameID, &e.PlayerID, &e.PlayerName,
		&e.Team, &e.ElapsedSeconds, &e.ShotType, &e.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "lookup event", Err: err}
	}

	return &e, nil
}
