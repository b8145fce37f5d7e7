// Package collector defines the inbound data-acquisition boundary.
// The pipeline only depends on the two fetch shapes; whether records
// come from HTTP, a cache or a fixture is the implementation's concern.
package collector

import (
	"context"
	"fmt"
	"time"

	"nbafirst/ingestion/internal/models"
)

// Collector fetches raw games and first-basket events for the pipeline
type Collector interface {
	// FetchGames returns all games known upstream for the date range
	FetchGames(ctx context.Context, from, to time.Time) ([]models.GameRecord, error)
	// FetchFirstBasketEvent returns the first scoring play of a game,
	// or nil when none is available yet
	FetchFirstBasketEvent(ctx context.Context, gameID string) (*models.EventRecord, error)
}

// SeasonLabel formats the NBA season containing t, e.g. "2024-25".
// Seasons roll over in October.
func SeasonLabel(t time.Time) string {
	start := t.Year()
	if t.Month() < time.October {
		start--
	}
	return formatSeason(start)
}

func formatSeason(start int) string {
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

// SeasonsInRange lists the season labels touched by a date range, in
// chronological order
func SeasonsInRange(from, to time.Time) []string {
	startYear := from.Year()
	if from.Month() < time.October {
		startYear--
	}
	endYear := to.Year()
	if to.Month() < time.October {
		endYear--
	}

	var seasons []string
	for y := startYear; y <= endYear; y++ {
		seasons = append(seasons, formatSeason(y))
	}
	return seasons
}
