package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nbafirst/ingestion/internal/metrics"
	"nbafirst/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// scoreboardURL serves today's slate, including games the season game
// log does not list yet
const scoreboardURL = "https://cdn.nba.com/static/json/liveData/scoreboard/todaysScoreboard_00.json"

// NBAClient scrapes the NBA stats API: the season game log for
// schedules/results and first-period play-by-play for first baskets.
type NBAClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter chan struct{}
	maxRetries  int
	retryDelay  time.Duration
}

// NewNBAClient creates a rate-limited stats API client
func NewNBAClient(baseURL string, timeout time.Duration, maxConcurrent int) *NBAClient {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	rateLimiter := make(chan struct{}, maxConcurrent)
	for i := 0; i < maxConcurrent; i++ {
		rateLimiter <- struct{}{}
	}

	return &NBAClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		rateLimiter: rateLimiter,
		maxRetries:  3,
		retryDelay:  1 * time.Second,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// statsResponse is the stats API envelope: named result sets of
// header-indexed rows
type statsResponse struct {
	ResultSets []resultSet `json:"resultSets"`
}

type resultSet struct {
	Name    string          `json:"name"`
	Headers []string        `json:"headers"`
	RowSet  [][]interface{} `json:"rowSet"`
}

func (rs *resultSet) columns() map[string]int {
	idx := make(map[string]int, len(rs.Headers))
	for i, h := range rs.Headers {
		idx[h] = i
	}
	return idx
}

func cellString(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	switch v := row[idx].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func cellInt(row []interface{}, idx int) int {
	if idx < 0 || idx >= len(row) {
		return 0
	}
	if v, ok := row[idx].(float64); ok {
		return int(v)
	}
	return 0
}

// FetchGames collects the games of every season the range touches from
// the league game log. The log only lists played games, so everything
// it returns is final; when the range reaches today, the live
// scoreboard supplies scheduled and in-progress games too.
func (c *NBAClient) FetchGames(ctx context.Context, from, to time.Time) ([]models.GameRecord, error) {
	byID := make(map[string]*models.GameRecord)

	for _, season := range SeasonsInRange(from, to) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.fetchSeasonLog(ctx, season, from, to, byID); err != nil {
			return nil, err
		}
	}

	today := time.Now().Truncate(24 * time.Hour)
	if !today.Before(from) && !today.After(to) {
		if err := c.fetchScoreboard(ctx, byID); err != nil {
			// The game log already covered finished games, so a
			// scoreboard outage only delays today's slate.
			log.Warn().Err(err).Msg("Failed to fetch live scoreboard")
		}
	}

	records := make([]models.GameRecord, 0, len(byID))
	for _, rec := range byID {
		if rec.HomeTeam == "" || rec.AwayTeam == "" {
			continue
		}
		records = append(records, *rec)
	}

	log.Info().
		Time("from", from).
		Time("to", to).
		Int("games", len(records)).
		Msg("Games fetched from game log")

	return records, nil
}

// fetchSeasonLog parses leaguegamelog rows into game records. The log
// has one row per team per game; home/away is read off the MATCHUP
// column ("BOS vs. LAL" for home, "BOS @ LAL" for away).
func (c *NBAClient) fetchSeasonLog(ctx context.Context, season string, from, to time.Time, byID map[string]*models.GameRecord) error {
	params := map[string]string{
		"Season":       season,
		"SeasonType":   "Regular Season",
		"Sorter":       "DATE",
		"Direction":    "ASC",
		"Counter":      "0",
		"LeagueID":     "00",
		"PlayerOrTeam": "T",
	}

	body, err := c.get(ctx, "leaguegamelog", params)
	if err != nil {
		return fmt.Errorf("failed to fetch game log for %s: %w", season, err)
	}

	var resp statsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to unmarshal game log: %w", err)
	}

	for _, rs := range resp.ResultSets {
		if rs.Name != "LeagueGameLog" {
			continue
		}
		cols := rs.columns()
		gameIDCol := cols["GAME_ID"]
		dateCol := cols["GAME_DATE"]
		matchupCol := cols["MATCHUP"]
		teamCol := cols["TEAM_ABBREVIATION"]

		for _, row := range rs.RowSet {
			gameID := cellString(row, gameIDCol)
			matchup := cellString(row, matchupCol)
			team := cellString(row, teamCol)
			dateStr := cellString(row, dateCol)
			if gameID == "" || matchup == "" || team == "" || dateStr == "" {
				continue
			}

			gameDate, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				continue
			}
			if gameDate.Before(from) || gameDate.After(to) {
				continue
			}

			rec, ok := byID[gameID]
			if !ok {
				rec = &models.GameRecord{
					GameID:   gameID,
					Season:   season,
					GameDate: gameDate,
					Status:   models.StatusFinal,
				}
				byID[gameID] = rec
			}

			switch {
			case strings.Contains(matchup, " vs. "):
				rec.HomeTeam = team
				rec.AwayTeam = strings.SplitN(matchup, " vs. ", 2)[1]
			case strings.Contains(matchup, " @ "):
				rec.AwayTeam = team
				rec.HomeTeam = strings.SplitN(matchup, " @ ", 2)[1]
			}
		}
	}

	return nil
}

// scoreboardResponse is the live scoreboard payload shape
type scoreboardResponse struct {
	Scoreboard struct {
		GameDate string `json:"gameDate"`
		Games    []struct {
			GameID     string `json:"gameId"`
			GameStatus int    `json:"gameStatus"`
			HomeTeam   struct {
				TeamTricode string `json:"teamTricode"`
			} `json:"homeTeam"`
			AwayTeam struct {
				TeamTricode string `json:"teamTricode"`
			} `json:"awayTeam"`
		} `json:"games"`
	} `json:"scoreboard"`
}

// fetchScoreboard folds today's slate into the record set. Scoreboard
// status codes run 1 scheduled, 2 live, 3 final.
func (c *NBAClient) fetchScoreboard(ctx context.Context, byID map[string]*models.GameRecord) error {
	body, err := c.getURL(ctx, scoreboardURL, "scoreboard", nil)
	if err != nil {
		return fmt.Errorf("failed to fetch scoreboard: %w", err)
	}

	var resp scoreboardResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to unmarshal scoreboard: %w", err)
	}

	gameDate, err := time.Parse("2006-01-02", resp.Scoreboard.GameDate)
	if err != nil {
		return fmt.Errorf("failed to parse scoreboard date %q: %w", resp.Scoreboard.GameDate, err)
	}
	season := SeasonLabel(gameDate)

	for _, g := range resp.Scoreboard.Games {
		status := models.StatusScheduled
		switch g.GameStatus {
		case 2:
			status = models.StatusInProgress
		case 3:
			status = models.StatusFinal
		}

		byID[g.GameID] = &models.GameRecord{
			GameID:   g.GameID,
			Season:   season,
			GameDate: gameDate,
			HomeTeam: g.HomeTeam.TeamTricode,
			AwayTeam: g.AwayTeam.TeamTricode,
			Status:   status,
		}
	}

	return nil
}

// FetchFirstBasketEvent scans first-period play-by-play for the first
// row that changed the score. Nil when the feed has no scoring play
// yet.
func (c *NBAClient) FetchFirstBasketEvent(ctx context.Context, gameID string) (*models.EventRecord, error) {
	params := map[string]string{
		"GameID":      gameID,
		"StartPeriod": "1",
		"EndPeriod":   "1",
	}

	body, err := c.get(ctx, "playbyplayv2", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch play-by-play for %s: %w", gameID, err)
	}

	var resp statsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal play-by-play: %w", err)
	}

	for _, rs := range resp.ResultSets {
		if rs.Name != "PlayByPlay" {
			continue
		}
		cols := rs.columns()
		scoreCol := cols["SCORE"]
		playerCol := cols["PLAYER1_NAME"]
		playerIDCol := cols["PLAYER1_ID"]
		teamCol := cols["PLAYER1_TEAM_ABBREVIATION"]
		clockCol := cols["PCTIMESTRING"]
		periodCol := cols["PERIOD"]
		homeDescCol := cols["HOMEDESCRIPTION"]
		awayDescCol := cols["VISITORDESCRIPTION"]

		for _, row := range rs.RowSet {
			score := strings.TrimSpace(cellString(row, scoreCol))
			if score == "" || score == "0 - 0" {
				continue
			}

			player := cellString(row, playerCol)
			team := cellString(row, teamCol)
			if player == "" || team == "" {
				continue
			}

			description := cellString(row, homeDescCol)
			if description == "" {
				description = cellString(row, awayDescCol)
			}

			period := cellInt(row, periodCol)
			if period == 0 {
				period = 1
			}

			return &models.EventRecord{
				GameID:         gameID,
				PlayerID:       cellString(row, playerIDCol),
				PlayerName:     player,
				Team:           team,
				ElapsedSeconds: models.ElapsedGameClock(cellString(row, clockCol), period, false),
				ShotType:       shotType(description),
			}, nil
		}
	}

	log.Debug().Str("game_id", gameID).Msg("No scoring play found in first period")
	return nil, nil
}

// shotType condenses a play description into a short shot label
func shotType(description string) string {
	lower := strings.ToLower(description)
	switch {
	case strings.Contains(lower, "3pt"):
		return "3PT Shot"
	case strings.Contains(lower, "dunk"):
		return "Dunk"
	case strings.Contains(lower, "layup"):
		return "Layup"
	case strings.Contains(lower, "free throw"):
		return "Free Throw"
	case strings.Contains(lower, "hook"):
		return "Hook Shot"
	case description == "":
		return ""
	default:
		return "Jump Shot"
	}
}

// get performs a GET against the stats API with retry and rate
// limiting. The stats endpoints refuse requests without browser-like
// headers.
func (c *NBAClient) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	return c.getURL(ctx, fmt.Sprintf("%s/%s", c.baseURL, path), path, params)
}

func (c *NBAClient) getURL(ctx context.Context, url, endpoint string, params map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryDelay * time.Duration(1<<uint(attempt-1))
			log.Info().
				Str("url", url).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying API request after backoff")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.rateLimiter:
		}

		body, retryable, err := c.do(ctx, url, endpoint, params)
		c.rateLimiter <- struct{}{}
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !retryable || attempt == c.maxRetries {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

func (c *NBAClient) do(ctx context.Context, url, endpoint string, params map[string]string) (body []byte, retryable bool, err error) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.APICallsTotal.WithLabelValues(endpoint, status).Inc()
		metrics.APICallDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("Referer", "https://www.nba.com/")
	req.Header.Set("Origin", "https://www.nba.com")

	q := req.URL.Query()
	for key, value := range params {
		q.Add(key, value)
	}
	req.URL.RawQuery = q.Encode()

	log.Debug().
		Str("url", url).
		Msg("Making API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		status = "ok"
		return body, false, nil
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		status = "retryable"
		return nil, true, fmt.Errorf("API returned retryable status %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
}
