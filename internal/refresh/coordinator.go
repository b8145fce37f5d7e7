// Package refresh decides which games the external collector should
// re-fetch. Pure decision logic over the store; no I/O of its own.
package refresh

import (
	"context"
	"time"

	"nbafirst/ingestion/internal/models"
	"nbafirst/ingestion/internal/store"
)

// Reason explains why a game needs a re-fetch
type Reason string

const (
	// ReasonLiveGame: the game is in progress, its first basket may
	// already have happened
	ReasonLiveGame Reason = "live_game"
	// ReasonAwaitingResult: the scheduled start has passed with no
	// recorded result
	ReasonAwaitingResult Reason = "awaiting_result"
	// ReasonScheduleStale: the store watermark is old enough that the
	// upcoming schedule should be re-scraped
	ReasonScheduleStale Reason = "schedule_stale"
)

// WorkItem is one game the collector should re-fetch, with the reason
type WorkItem struct {
	Game   models.Game
	Reason Reason
}

// Coordinator plans re-fetch work from store state
type Coordinator struct {
	store  store.Querier
	maxAge time.Duration
}

// New creates a coordinator. maxAge bounds how stale the watermark may
// get before upcoming scheduled games are re-scraped.
func New(q store.Querier, maxAge time.Duration) *Coordinator {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Coordinator{store: q, maxAge: maxAge}
}

// PendingWork compares the watermark and each tracked game's status
// against now and returns the games to re-fetch, ordered by date
func (c *Coordinator) PendingWork(ctx context.Context, now time.Time) ([]WorkItem, error) {
	watermark, err := c.store.LastUpdatedWatermark(ctx)
	if err != nil {
		return nil, err
	}
	scheduleStale := watermark.IsZero() || now.Sub(watermark) >= c.maxAge

	var work []WorkItem

	live, err := c.store.QueryGames(ctx, store.Filter{Status: models.StatusInProgress})
	if err != nil {
		return nil, err
	}
	for _, g := range live {
		work = append(work, WorkItem{Game: g, Reason: ReasonLiveGame})
	}

	scheduled, err := c.store.QueryGames(ctx, store.Filter{Status: models.StatusScheduled})
	if err != nil {
		return nil, err
	}
	for _, g := range scheduled {
		switch {
		case !g.GameDate.After(now):
			work = append(work, WorkItem{Game: g, Reason: ReasonAwaitingResult})
		case scheduleStale:
			work = append(work, WorkItem{Game: g, Reason: ReasonScheduleStale})
		}
	}

	return work, nil
}
