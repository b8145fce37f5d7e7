package models

import (
	"fmt"
	"strings"
	"time"
)

// Game statuses, ordered by lifecycle. A scraped status may only move
// forward through this sequence, never backward.
const (
	StatusScheduled  = "Scheduled"
	StatusInProgress = "InProgress"
	StatusFinal      = "Final"
)

var statusRank = map[string]int{
	StatusScheduled:  0,
	StatusInProgress: 1,
	StatusFinal:      2,
}

// StatusRank returns the lifecycle position of a status, or -1 for an
// unknown status string.
func StatusRank(status string) int {
	rank, ok := statusRank[status]
	if !ok {
		return -1
	}
	return rank
}

// Game represents one NBA game tracked by the store
type Game struct {
	ID       int       `db:"id"`
	GameID   string    `db:"game_id"`
	Season   string    `db:"season"`
	GameDate time.Time `db:"game_date"`
	HomeTeam string    `db:"home_team"`
	AwayTeam string    `db:"away_team"`
	Status   string    `db:"status"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NaturalKey identifies a game by its intrinsic attributes so repeated
// scrapes from different sources deduplicate onto the same row.
func (g *Game) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s|%s", g.Season, g.GameDate.Format("2006-01-02"), g.HomeTeam, g.AwayTeam)
}

// IsScheduled returns true if the game has not started
func (g *Game) IsScheduled() bool {
	return g.Status == StatusScheduled
}

// IsActive returns true if the game is currently in progress
func (g *Game) IsActive() bool {
	return g.Status == StatusInProgress
}

// IsFinal returns true if the game is completed
func (g *Game) IsFinal() bool {
	return g.Status == StatusFinal
}

// GameRecord is the collector-side shape of a scraped game. It is
// validated at the store boundary before it becomes a Game row.
type GameRecord struct {
	GameID   string    `json:"game_id"`
	Season   string    `json:"season"`
	GameDate time.Time `json:"game_date"`
	HomeTeam string    `json:"home_team"`
	AwayTeam string    `json:"away_team"`
	Status   string    `json:"status"`
}

// Validate checks the required fields of a scraped game
func (r *GameRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.GameID) == "":
		return fmt.Errorf("game record missing game_id")
	case strings.TrimSpace(r.Season) == "":
		return fmt.Errorf("game record %s missing season", r.GameID)
	case r.GameDate.IsZero():
		return fmt.Errorf("game record %s missing game_date", r.GameID)
	case strings.TrimSpace(r.HomeTeam) == "":
		return fmt.Errorf("game record %s missing home_team", r.GameID)
	case strings.TrimSpace(r.AwayTeam) == "":
		return fmt.Errorf("game record %s missing away_team", r.GameID)
	case r.HomeTeam == r.AwayTeam:
		return fmt.Errorf("game record %s has identical home and away teams", r.GameID)
	case StatusRank(r.Status) < 0:
		return fmt.Errorf("game record %s has unknown status %q", r.GameID, r.Status)
	}
	return nil
}

// ToGame converts a validated GameRecord to a Game row
func (r *GameRecord) ToGame() *Game {
	return &Game{
		GameID:   r.GameID,
		Season:   r.Season,
		GameDate: r.GameDate,
		HomeTeam: r.HomeTeam,
		AwayTeam: r.AwayTeam,
		Status:   r.Status,
	}
}
