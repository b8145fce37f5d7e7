// Package storetest provides an in-memory store.Querier for tests of
// the read-side components.
package storetest

import (
	"context"
	"sort"
	"time"

	"nbafirst/ingestion/internal/models"
	"nbafirst/ingestion/internal/store"
)

// Memory is an in-memory implementation of store.Querier
type Memory struct {
	Games     []models.Game
	Players   []models.Player
	Events    []models.FirstBasketEvent
	Watermark time.Time
}

// AddGame appends a game row
func (m *Memory) AddGame(g models.Game) {
	m.Games = append(m.Games, g)
	if g.UpdatedAt.After(m.Watermark) {
		m.Watermark = g.UpdatedAt
	}
}

// AddPlayer appends a player row
func (m *Memory) AddPlayer(p models.Player) {
	m.Players = append(m.Players, p)
}

// AddEvent appends a first-basket event
func (m *Memory) AddEvent(e models.FirstBasketEvent) {
	m.Events = append(m.Events, e)
	if e.RecordedAt.After(m.Watermark) {
		m.Watermark = e.RecordedAt
	}
}

func (m *Memory) QueryGames(_ context.Context, f store.Filter) ([]models.Game, error) {
	var out []models.Game
	for _, g := range m.Games {
		if matchGame(g, f) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GameDate.Equal(out[j].GameDate) {
			return out[i].GameDate.Before(out[j].GameDate)
		}
		return out[i].GameID < out[j].GameID
	})
	return out, nil
}

func (m *Memory) QueryEvents(_ context.Context, f store.Filter) ([]models.FirstBasketEvent, error) {
	games := make(map[string]models.Game, len(m.Games))
	for _, g := range m.Games {
		games[g.GameID] = g
	}

	var out []models.FirstBasketEvent
	for _, e := range m.Events {
		g, ok := games[e.GameID]
		if !ok {
			continue
		}
		if !matchGame(g, f) {
			continue
		}
		if f.PlayerID != "" && e.PlayerID != f.PlayerID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		gi, gj := games[out[i].GameID], games[out[j].GameID]
		if !gi.GameDate.Equal(gj.GameDate) {
			return gi.GameDate.Before(gj.GameDate)
		}
		return out[i].GameID < out[j].GameID
	})
	return out, nil
}

func (m *Memory) QueryPlayers(_ context.Context, f store.Filter) ([]models.Player, error) {
	var out []models.Player
	for _, p := range m.Players {
		if f.Season != "" && p.Season != f.Season {
			continue
		}
		if f.Team != "" && p.Team != f.Team {
			continue
		}
		if f.PlayerID != "" && p.PlayerID != f.PlayerID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Season != out[j].Season {
			return out[i].Season < out[j].Season
		}
		if out[i].Team != out[j].Team {
			return out[i].Team < out[j].Team
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out, nil
}

func (m *Memory) GameByID(_ context.Context, gameID string) (*models.Game, error) {
	for i := range m.Games {
		if m.Games[i].GameID == gameID {
			g := m.Games[i]
			return &g, nil
		}
	}
	return nil, nil
}

func (m *Memory) LastUpdatedWatermark(context.Context) (time.Time, error) {
	return m.Watermark, nil
}

func matchGame(g models.Game, f store.Filter) bool {
	if f.Season != "" && g.Season != f.Season {
		return false
	}
	if f.Team != "" && g.HomeTeam != f.Team && g.AwayTeam != f.Team {
		return false
	}
	if f.Status != "" && g.Status != f.Status {
		return false
	}
	if !f.Before.IsZero() && !g.GameDate.Before(f.Before) {
		return false
	}
	if !f.From.IsZero() && g.GameDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && g.GameDate.After(f.To) {
		return false
	}
	return true
}
