package export

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"nbafirst/ingestion/internal/models"
	"nbafirst/ingestion/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSeason() *storetest.Memory {
	mem := &storetest.Memory{}
	d1 := time.Date(2025, 1, 10, 19, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 1, 12, 19, 0, 0, 0, time.UTC)

	mem.AddGame(models.Game{
		GameID: "g1", Season: "2024-25", GameDate: d1,
		HomeTeam: "BOS", AwayTeam: "LAL", Status: models.StatusFinal,
	})
	mem.AddGame(models.Game{
		GameID: "g2", Season: "2024-25", GameDate: d2,
		HomeTeam: "LAL", AwayTeam: "BOS", Status: models.StatusScheduled,
	})
	mem.AddPlayer(models.Player{PlayerID: "A", Name: "Player A", Team: "BOS", Season: "2024-25", Position: "F", Starter: true})
	mem.AddPlayer(models.Player{PlayerID: "B", Name: "Player B", Team: "LAL", Season: "2024-25"})
	mem.AddEvent(models.FirstBasketEvent{
		GameID: "g1", PlayerID: "A", PlayerName: "Player A", Team: "BOS",
		ElapsedSeconds: 42.5, ShotType: "Jump Shot",
	})
	return mem
}

func TestExportSeason_WritesBothDocuments(t *testing.T) {
	mem := seedSeason()
	e := New(mem, t.TempDir())

	docs, err := e.ExportSeason(context.Background(), "2024-25")
	require.NoError(t, err)

	var games []GameDoc
	require.NoError(t, json.Unmarshal(docs.Games, &games))
	require.Len(t, games, 2)
	assert.Equal(t, "g1", games[0].GameID, "games ordered by date")
	assert.Equal(t, "Player A", games[0].FirstBasketBy)
	assert.Equal(t, 42.5, games[0].FirstBasketTime)
	assert.Empty(t, games[1].FirstBasketBy, "unresolved game has no event fields")

	var players []PlayerDoc
	require.NoError(t, json.Unmarshal(docs.Players, &players))
	require.Len(t, players, 2)
	assert.Equal(t, "A", players[0].PlayerID, "players ordered by team")
	assert.Equal(t, 1, players[0].FirstBaskets)
	assert.Equal(t, 1, players[0].GamesPlayed)
	assert.Equal(t, 1.0, players[0].FirstBasketRate)
	assert.Equal(t, 0, players[1].FirstBaskets)

	// Files on disk match the returned documents
	onDisk, err := os.ReadFile(docs.GamesPath)
	require.NoError(t, err)
	assert.Equal(t, docs.Games, onDisk)
	onDisk, err = os.ReadFile(docs.PlayersPath)
	require.NoError(t, err)
	assert.Equal(t, docs.Players, onDisk)
}

func TestExportSeason_Deterministic(t *testing.T) {
	mem := seedSeason()
	e := New(mem, t.TempDir())

	first, err := e.ExportSeason(context.Background(), "2024-25")
	require.NoError(t, err)
	second, err := e.ExportSeason(context.Background(), "2024-25")
	require.NoError(t, err)

	assert.Equal(t, first.Games, second.Games, "re-export without writes must be byte-identical")
	assert.Equal(t, first.Players, second.Players)
}

func TestExportSeason_EmptySeason(t *testing.T) {
	mem := &storetest.Memory{}
	e := New(mem, t.TempDir())

	docs, err := e.ExportSeason(context.Background(), "2019-20")
	require.NoError(t, err, "empty season is not an error")

	var games []GameDoc
	require.NoError(t, json.Unmarshal(docs.Games, &games))
	assert.Empty(t, games)

	var players []PlayerDoc
	require.NoError(t, json.Unmarshal(docs.Players, &players))
	assert.Empty(t, players)
}

func TestExportSeason_Cancelled(t *testing.T) {
	mem := seedSeason()
	e := New(mem, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExportSeason(ctx, "2024-25")
	assert.Error(t, err)
}
