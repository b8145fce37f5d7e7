package models

import (
	"fmt"
	"strings"
	"time"
)

// Player represents a player's identity plus their team affiliation and
// role for one season. Historical rows are never deleted; team and role
// fields may be corrected by later scrapes.
type Player struct {
	ID       int    `db:"id"`
	PlayerID string `db:"player_id"`
	Name     string `db:"name"`
	Team     string `db:"team"`
	Season   string `db:"season"`
	Position string `db:"position"`
	Starter  bool   `db:"starter"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NaturalKey identifies a player row within a season
func (p *Player) NaturalKey() string {
	return fmt.Sprintf("%s|%s", p.Season, p.PlayerID)
}

// PlayerRecord is the collector-side shape of a scraped player
type PlayerRecord struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Team     string `json:"team"`
	Season   string `json:"season"`
	Position string `json:"position"`
	Starter  bool   `json:"starter"`
}

// Validate checks the required fields of a scraped player
func (r *PlayerRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.PlayerID) == "":
		return fmt.Errorf("player record missing player_id")
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("player record %s missing name", r.PlayerID)
	case strings.TrimSpace(r.Team) == "":
		return fmt.Errorf("player record %s missing team", r.PlayerID)
	case strings.TrimSpace(r.Season) == "":
		return fmt.Errorf("player record %s missing season", r.PlayerID)
	}
	return nil
}

// ToPlayer converts a validated PlayerRecord to a Player row
func (r *PlayerRecord) ToPlayer() *Player {
	return &Player{
		PlayerID: r.PlayerID,
		Name:     r.Name,
		Team:     r.Team,
		Season:   r.Season,
		Position: r.Position,
		Starter:  r.Starter,
	}
}
