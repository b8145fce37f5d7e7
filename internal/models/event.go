package models

import (
	"fmt"
	"strings"
	"time"
)

// FirstBasketEvent records the first successful field goal of one game.
// The store enforces at most one event per game.
type FirstBasketEvent struct {
	ID             int     `db:"id"`
	GameID         string  `db:"game_id"`
	PlayerID       string  `db:"player_id"`
	PlayerName     string  `db:"player_name"`
	Team           string  `db:"team"`
	ElapsedSeconds float64 `db:"elapsed_seconds"`
	ShotType       string  `db:"shot_type"`

	RecordedAt time.Time `db:"recorded_at"`
}

// Same reports whether two events describe the identical first basket,
// which makes a replayed write a no-op rather than a conflict.
func (e *FirstBasketEvent) Same(other *FirstBasketEvent) bool {
	return e.GameID == other.GameID && e.PlayerID == other.PlayerID
}

// EventRecord is the collector-side shape of a scraped first-basket play
type EventRecord struct {
	GameID         string  `json:"game_id"`
	PlayerID       string  `json:"player_id"`
	PlayerName     string  `json:"player_name"`
	Team           string  `json:"team"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	ShotType       string  `json:"shot_type"`
}

// Validate checks the required fields of a scraped event
func (r *EventRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.GameID) == "":
		return fmt.Errorf("event record missing game_id")
	case strings.TrimSpace(r.PlayerID) == "":
		return fmt.Errorf("event record for game %s missing player_id", r.GameID)
	case strings.TrimSpace(r.Team) == "":
		return fmt.Errorf("event record for game %s missing team", r.GameID)
	case r.ElapsedSeconds < 0:
		return fmt.Errorf("event record for game %s has negative elapsed time", r.GameID)
	}
	return nil
}

// ToEvent converts a validated EventRecord to a FirstBasketEvent row
func (r *EventRecord) ToEvent() *FirstBasketEvent {
	return &FirstBasketEvent{
		GameID:         r.GameID,
		PlayerID:       r.PlayerID,
		PlayerName:     r.PlayerName,
		Team:           r.Team,
		ElapsedSeconds: r.ElapsedSeconds,
		ShotType:       r.ShotType,
	}
}

// ElapsedGameClock converts a period clock reading ("7:34" remaining)
// into total elapsed game seconds. Regulation periods run 12 minutes,
// overtime periods 5.
func ElapsedGameClock(clock string, period int, overtime bool) float64 {
	minutes := 12
	seconds := 0.0
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) == 2 {
		var m int
		var s float64
		if _, err := fmt.Sscanf(parts[0], "%d", &m); err == nil {
			if _, err := fmt.Sscanf(parts[1], "%f", &s); err == nil {
				minutes, seconds = m, s
			}
		}
	}

	periodLength := 12 * 60.0
	if period > 4 || overtime {
		periodLength = 5 * 60.0
	}

	elapsedInPeriod := periodLength - (float64(minutes)*60 + seconds)
	if elapsedInPeriod < 0 {
		elapsedInPeriod = 0
	}

	prior := 0.0
	for p := 1; p < period; p++ {
		if p > 4 {
			prior += 5 * 60
		} else {
			prior += 12 * 60
		}
	}
	return prior + elapsedInPeriod
}
