package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nbafirst/ingestion/internal/models"
)

// Filter narrows a read query. Zero-valued fields are ignored.
type Filter struct {
	Season   string
	Team     string
	PlayerID string
	Status   string
	// Before is an exclusive upper bound on the game date, used for
	// point-in-time feature computation
	Before time.Time
	From   time.Time
	To     time.Time
}

// Querier is the read side of the store. Feature building, snapshot
// export and refresh planning all go through this interface, which
// keeps them testable against an in-memory implementation.
type Querier interface {
	QueryGames(ctx context.Context, f Filter) ([]models.Game, error)
	QueryEvents(ctx context.Context, f Filter) ([]models.FirstBasketEvent, error)
	QueryPlayers(ctx context.Context, f Filter) ([]models.Player, error)
	GameByID(ctx context.Context, gameID string) (*models.Game, error)
	LastUpdatedWatermark(ctx context.Context) (time.Time, error)
}

const gameColumns = `id, game_id, season, game_date, home_team, away_team, status, created_at, updated_at`

// QueryGames returns games matching the filter, ordered by game date
func (s *Store) QueryGames(ctx context.Context, f Filter) ([]models.Game, error) {
	query := fmt.Sprintf(`SELECT %s FROM games`, gameColumns)
	where, args := gameConditions(f, "")
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY game_date, game_id"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query games", Err: err}
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		var g models.Game
		if err := rows.Scan(
			&g.ID, &g.GameID, &g.Season, &g.GameDate,
			&g.HomeTeam, &g.AwayTeam, &g.Status,
			&g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, &StorageError{Op: "scan game", Err: err}
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate games", Err: err}
	}

	return games, nil
}

// QueryEvents returns first-basket events matching the filter, ordered
// by the date of the game they belong to
func (s *Store) QueryEvents(ctx context.Context, f Filter) ([]models.FirstBasketEvent, error) {
	query := `
		SELECT e.id, e.game_id, e.player_id, e.player_name, e.team, e.elapsed_seconds, e.shot_type, e.recorded_at
		FROM first_basket_events e
		JOIN games g ON g.game_id = e.game_id
	`
	where, args := gameConditions(f, "g.")
	if f.PlayerID != "" {
		args = append(args, f.PlayerID)
		where = append(where, fmt.Sprintf("e.player_id = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY g.game_date, e.game_id"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query events", Err: err}
	}
	defer rows.Close()

	var events []models.FirstBasketEvent
	for rows.Next() {
		var e models.FirstBasketEvent
		if err := rows.Scan(
			&e.ID, &e.GameID, &e.PlayerID, &e.PlayerName,
			&e.Team, &e.ElapsedSeconds, &e.ShotType, &e.RecordedAt,
		); err != nil {
			return nil, &StorageError{Op: "scan event", Err: err}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate events", Err: err}
	}

	return events, nil
}

// QueryPlayers returns player rows matching the filter, ordered by
// season then team then player id for stable output
func (s *Store) QueryPlayers(ctx context.Context, f Filter) ([]models.Player, error) {
	query := `SELECT id, player_id, name, team, season, position, starter, created_at, updated_at FROM players`

	var where []string
	var args []interface{}
	if f.Season != "" {
		args = append(args, f.Season)
		where = append(where, fmt.Sprintf("season = $%d", len(args)))
	}
	if f.Team != "" {
		args = append(args, f.Team)
		where = append(where, fmt.Sprintf("team = $%d", len(args)))
	}
	if f.PlayerID != "" {
		args = append(args, f.PlayerID)
		where = append(where, fmt.Sprintf("player_id = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY season, team, player_id"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query players", Err: err}
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(
			&p.ID, &p.PlayerID, &p.Name, &p.Team, &p.Season,
			&p.Position, &p.Starter, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, &StorageError{Op: "scan player", Err: err}
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate players", Err: err}
	}

	return players, nil
}

// gameConditions builds the WHERE clauses shared by game and event
// queries. prefix qualifies column names when the games table is joined.
func gameConditions(f Filter, prefix string) ([]string, []interface{}) {
	var where []string
	var args []interface{}

	if f.Season != "" {
		args = append(args, f.Season)
		where = append(where, fmt.Sprintf("%sseason = $%d", prefix, len(args)))
	}
	if f.Team != "" {
		args = append(args, f.Team)
		where = append(where, fmt.Sprintf("(%shome_team = $%d OR %saway_team = $%d)", prefix, len(args), prefix, len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("%sstatus = $%d", prefix, len(args)))
	}
	if !f.Before.IsZero() {
		args = append(args, f.Before)
		where = append(where, fmt.Sprintf("%sgame_date < $%d", prefix, len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		where = append(where, fmt.Sprintf("%sgame_date >= $%d", prefix, len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		where = append(where, fmt.Sprintf("%sgame_date <= $%d", prefix, len(args)))
	}

	return where, args
}
