package store

import (
	"testing"
	"time"

	"nbafirst/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGame(status string) *models.Game {
	return &models.Game{
		ID:       1,
		GameID:   "0022400100",
		Season:   "2024-25",
		GameDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		HomeTeam: "BOS",
		AwayTeam: "LAL",
		Status:   status,
	}
}

func TestMergeGame_InsertWhenAbsent(t *testing.T) {
	incoming := testGame(models.StatusScheduled)

	merged, regressed, err := mergeGame(nil, incoming)
	require.NoError(t, err)
	assert.False(t, regressed)
	assert.Equal(t, incoming.GameID, merged.GameID)
	assert.Equal(t, models.StatusScheduled, merged.Status)
}

func TestMergeGame_StatusMovesForward(t *testing.T) {
	existing := testGame(models.StatusScheduled)
	incoming := testGame(models.StatusFinal)

	merged, regressed, err := mergeGame(existing, incoming)
	require.NoError(t, err)
	assert.False(t, regressed)
	assert.Equal(t, models.StatusFinal, merged.Status)
}

func TestMergeGame_StatusNeverRegresses(t *testing.T) {
	existing := testGame(models.StatusFinal)
	incoming := testGame(models.StatusScheduled)

	merged, regressed, err := mergeGame(existing, incoming)
	require.NoError(t, err)
	assert.True(t, regressed, "regression should be reported for logging")
	assert.Equal(t, models.StatusFinal, merged.Status, "stored status must not move backward")
}

func TestMergeGame_TeamsImmutable(t *testing.T) {
	existing := testGame(models.StatusScheduled)
	incoming := testGame(models.StatusScheduled)
	incoming.AwayTeam = "GSW"

	_, _, err := mergeGame(existing, incoming)
	require.Error(t, err)
	assert.True(t, IsConflict(err), "changing teams must be a conflict")
}

func TestMergeGame_DateCorrectionAllowed(t *testing.T) {
	existing := testGame(models.StatusScheduled)
	incoming := testGame(models.StatusScheduled)
	incoming.GameDate = existing.GameDate.Add(24 * time.Hour)

	merged, _, err := mergeGame(existing, incoming)
	require.NoError(t, err)
	assert.Equal(t, incoming.GameDate, merged.GameDate)
}

func TestMergeGame_KeepsFirstSeenExternalID(t *testing.T) {
	existing := testGame(models.StatusScheduled)
	incoming := testGame(models.StatusInProgress)
	incoming.GameID = "bdl-991"

	merged, _, err := mergeGame(existing, incoming)
	require.NoError(t, err)
	assert.Equal(t, "0022400100", merged.GameID, "events reference the first-seen id")
	assert.Equal(t, models.StatusInProgress, merged.Status)
}

func TestMergePlayer_MergesTeamAndRole(t *testing.T) {
	existing := &models.Player{
		ID: 7, PlayerID: "1628369", Name: "Jayson Tatum",
		Team: "BOS", Season: "2024-25", Position: "F", Starter: false,
	}
	incoming := &models.Player{
		PlayerID: "1628369", Name: "Jayson Tatum",
		Team: "BOS", Season: "2024-25", Starter: true,
	}

	merged := mergePlayer(existing, incoming)
	assert.True(t, merged.Starter)
	assert.Equal(t, "F", merged.Position, "empty position must not erase stored one")
	assert.Equal(t, 7, merged.ID)
}

func TestGameRecordValidate(t *testing.T) {
	rec := models.GameRecord{
		GameID:   "0022400100",
		Season:   "2024-25",
		GameDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		HomeTeam: "BOS",
		AwayTeam: "LAL",
		Status:   models.StatusScheduled,
	}
	require.NoError(t, rec.Validate())

	missing := rec
	missing.HomeTeam = ""
	assert.Error(t, missing.Validate())

	sameTeams := rec
	sameTeams.AwayTeam = "BOS"
	assert.Error(t, sameTeams.Validate())

	badStatus := rec
	badStatus.Status = "Postponed"
	assert.Error(t, badStatus.Validate())
}
