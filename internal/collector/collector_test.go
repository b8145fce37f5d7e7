package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeasonLabel(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2024-10-22", "2024-25"},
		{"2025-01-15", "2024-25"},
		{"2025-06-20", "2024-25"},
		{"2025-09-30", "2024-25"},
		{"2025-10-01", "2025-26"},
		{"1999-11-05", "1999-00"},
	}

	for _, tt := range tests {
		d, err := time.Parse("2006-01-02", tt.date)
		require.NoError(t, err)
		assert.Equal(t, tt.want, SeasonLabel(d), "date %s", tt.date)
	}
}

func TestSeasonsInRange(t *testing.T) {
	from := time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{"2023-24", "2024-25"}, SeasonsInRange(from, to))

	sameSeason := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"2024-25"}, SeasonsInRange(sameSeason, sameSeason))
}

const gameLogFixture = `{
  "resultSets": [
    {
      "name": "LeagueGameLog",
      "headers": ["TEAM_ABBREVIATION", "GAME_ID", "GAME_DATE", "MATCHUP", "WL"],
      "rowSet": [
        ["BOS", "0022400100", "2024-11-01", "BOS vs. LAL", "W"],
        ["LAL", "0022400100", "2024-11-01", "LAL @ BOS", "L"],
        ["NYK", "0022400101", "2024-11-02", "NYK @ MIA", "W"]
      ]
    }
  ]
}`

func TestFetchGamesParsesGameLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/leaguegamelog", r.URL.Path)
		assert.Equal(t, "2024-25", r.URL.Query().Get("Season"))
		w.Write([]byte(gameLogFixture))
	}))
	defer srv.Close()

	c := NewNBAClient(srv.URL, 5*time.Second, 2)
	from := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)

	games, err := c.FetchGames(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, games, 2)

	byID := make(map[string]int)
	for i, g := range games {
		byID[g.GameID] = i
	}

	g := games[byID["0022400100"]]
	assert.Equal(t, "BOS", g.HomeTeam)
	assert.Equal(t, "LAL", g.AwayTeam)
	assert.Equal(t, "2024-25", g.Season)
	assert.Equal(t, "Final", g.Status)
	assert.Equal(t, "2024-11-01", g.GameDate.Format("2006-01-02"))

	// Both team rows fold into one game; an away-only row still
	// resolves home from the matchup string.
	g = games[byID["0022400101"]]
	assert.Equal(t, "MIA", g.HomeTeam)
	assert.Equal(t, "NYK", g.AwayTeam)
}

func TestFetchGamesSkipsOutOfRangeDates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(gameLogFixture))
	}))
	defer srv.Close()

	c := NewNBAClient(srv.URL, 5*time.Second, 2)
	from := time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC)

	games, err := c.FetchGames(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "0022400101", games[0].GameID)
}

const playByPlayFixture = `{
  "resultSets": [
    {
      "name": "PlayByPlay",
      "headers": ["GAME_ID", "PERIOD", "PCTIMESTRING", "HOMEDESCRIPTION", "VISITORDESCRIPTION", "SCORE", "PLAYER1_ID", "PLAYER1_NAME", "PLAYER1_TEAM_ABBREVIATION"],
      "rowSet": [
        ["0022400100", 1, "12:00", "Jump Ball", null, null, 0, null, null],
        ["0022400100", 1, "11:42", null, "Davis MISS Layup", null, 203076, "Anthony Davis", "LAL"],
        ["0022400100", 1, "11:28", "Tatum 26' 3PT Jump Shot (3 PTS)", null, "0 - 3", 1628369, "Jayson Tatum", "BOS"],
        ["0022400100", 1, "11:10", null, "James Driving Dunk (2 PTS)", "2 - 3", 2544, "LeBron James", "LAL"]
      ]
    }
  ]
}`

func TestFetchFirstBasketEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/playbyplayv2", r.URL.Path)
		assert.Equal(t, "0022400100", r.URL.Query().Get("GameID"))
		w.Write([]byte(playByPlayFixture))
	}))
	defer srv.Close()

	c := NewNBAClient(srv.URL, 5*time.Second, 2)

	event, err := c.FetchFirstBasketEvent(context.Background(), "0022400100")
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, "1628369", event.PlayerID)
	assert.Equal(t, "Jayson Tatum", event.PlayerName)
	assert.Equal(t, "BOS", event.Team)
	assert.Equal(t, "3PT Shot", event.ShotType)
	assert.InDelta(t, 32.0, event.ElapsedSeconds, 0.001)
}

func TestFetchFirstBasketEventNoScoringPlay(t *testing.T) {
	fixture := `{
	  "resultSets": [
	    {
	      "name": "PlayByPlay",
	      "headers": ["GAME_ID", "PERIOD", "PCTIMESTRING", "HOMEDESCRIPTION", "VISITORDESCRIPTION", "SCORE", "PLAYER1_ID", "PLAYER1_NAME", "PLAYER1_TEAM_ABBREVIATION"],
	      "rowSet": [
	        ["0022400100", 1, "12:00", "Jump Ball", null, null, 0, null, null]
	      ]
	    }
	  ]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	c := NewNBAClient(srv.URL, 5*time.Second, 2)

	event, err := c.FetchFirstBasketEvent(context.Background(), "0022400100")
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestGetRetriesOnServerBusy(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(playByPlayFixture))
	}))
	defer srv.Close()

	c := NewNBAClient(srv.URL, 5*time.Second, 2)
	c.retryDelay = 10 * time.Millisecond

	event, err := c.FetchFirstBasketEvent(context.Background(), "0022400100")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, 2, calls)
}

func TestGetDoesNotRetryClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewNBAClient(srv.URL, 5*time.Second, 2)
	c.retryDelay = 10 * time.Millisecond

	_, err := c.FetchFirstBasketEvent(context.Background(), "0022400100")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestShotType(t *testing.T) {
	assert.Equal(t, "3PT Shot", shotType("Tatum 26' 3PT Jump Shot (3 PTS)"))
	assert.Equal(t, "Dunk", shotType("James Driving Dunk (2 PTS)"))
	assert.Equal(t, "Layup", shotType("Brown Cutting Layup Shot (2 PTS)"))
	assert.Equal(t, "Free Throw", shotType("Tatum Free Throw 1 of 2 (1 PTS)"))
	assert.Equal(t, "Jump Shot", shotType("White Pullup Jump Shot (2 PTS)"))
	assert.Equal(t, "", shotType(""))
}
