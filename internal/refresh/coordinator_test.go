package refresh

import (
	"context"
	"testing"
	"time"

	"nbafirst/ingestion/internal/models"
	"nbafirst/ingestion/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gameAt(id, status string, date time.Time) models.Game {
	return models.Game{
		GameID: id, Season: "2024-25", GameDate: date,
		HomeTeam: "BOS", AwayTeam: "LAL", Status: status,
	}
}

func TestPendingWork_PicksUnresolvedPastGames(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	mem := &storetest.Memory{Watermark: now.Add(-time.Hour)}

	mem.AddGame(gameAt("past", models.StatusScheduled, now.Add(-18*time.Hour)))
	mem.AddGame(gameAt("live", models.StatusInProgress, now.Add(-time.Hour)))
	mem.AddGame(gameAt("done", models.StatusFinal, now.Add(-42*time.Hour)))
	mem.AddGame(gameAt("future", models.StatusScheduled, now.Add(30*time.Hour)))

	c := New(mem, 24*time.Hour)
	work, err := c.PendingWork(context.Background(), now)
	require.NoError(t, err)

	reasons := make(map[string]Reason)
	for _, w := range work {
		reasons[w.Game.GameID] = w.Reason
	}

	assert.Equal(t, ReasonLiveGame, reasons["live"])
	assert.Equal(t, ReasonAwaitingResult, reasons["past"])
	assert.NotContains(t, reasons, "done", "final games need no re-fetch")
	assert.NotContains(t, reasons, "future", "fresh watermark keeps future games off the plan")
}

func TestPendingWork_StaleWatermarkRefreshesSchedule(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	mem := &storetest.Memory{Watermark: now.Add(-48 * time.Hour)}
	mem.AddGame(gameAt("future", models.StatusScheduled, now.Add(30*time.Hour)))

	c := New(mem, 24*time.Hour)
	work, err := c.PendingWork(context.Background(), now)
	require.NoError(t, err)

	require.Len(t, work, 1)
	assert.Equal(t, "future", work[0].Game.GameID)
	assert.Equal(t, ReasonScheduleStale, work[0].Reason)
}

func TestPendingWork_EmptyStore(t *testing.T) {
	mem := &storetest.Memory{}

	c := New(mem, 24*time.Hour)
	work, err := c.PendingWork(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, work)
}
