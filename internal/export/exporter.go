// Package export materializes season snapshots of the store into
// human-inspectable JSON documents. Purely derived state: every export
// is rebuildable from the store.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"nbafirst/ingestion/internal/models"
	"nbafirst/ingestion/internal/store"

	"github.com/rs/zerolog/log"
)

// GameDoc is one game entry of the season games document
type GameDoc struct {
	GameID          string  `json:"game_id"`
	Date            string  `json:"date"`
	HomeTeam        string  `json:"home_team"`
	AwayTeam        string  `json:"away_team"`
	Status          string  `json:"status"`
	FirstBasketBy   string  `json:"first_basket_player,omitempty"`
	FirstBasketTeam string  `json:"first_basket_team,omitempty"`
	FirstBasketTime float64 `json:"first_basket_time,omitempty"`
	FirstBasketShot string  `json:"first_basket_shot,omitempty"`
	FirstBasketByID string  `json:"first_basket_player_id,omitempty"`
}

// PlayerDoc is one player entry of the season players document
type PlayerDoc struct {
	PlayerID           string  `json:"player_id"`
	Name               string  `json:"name"`
	Team               string  `json:"team"`
	Position           string  `json:"position,omitempty"`
	Starter            bool    `json:"starter"`
	GamesPlayed        int     `json:"games_played"`
	FirstBaskets       int     `json:"first_baskets"`
	FirstBasketRate    float64 `json:"first_basket_probability"`
	AvgFirstBasketTime float64 `json:"avg_first_basket_time"`
}

// SeasonDocuments holds the serialized snapshot of one season
type SeasonDocuments struct {
	Season      string
	Games       []byte
	Players     []byte
	GamesPath   string
	PlayersPath string
}

// Exporter reads the store and writes season snapshot files
type Exporter struct {
	store store.Querier
	dir   string
}

// New creates an exporter writing into dir
func New(q store.Querier, dir string) *Exporter {
	return &Exporter{store: q, dir: dir}
}

// ExportSeason serializes the season's games and players into two
// documents with deterministic field and row ordering, and writes them
// atomically. A season with zero rows yields empty documents, not an
// error.
func (e *Exporter) ExportSeason(ctx context.Context, season string) (*SeasonDocuments, error) {
	games, err := e.store.QueryGames(ctx, store.Filter{Season: season})
	if err != nil {
		return nil, err
	}
	events, err := e.store.QueryEvents(ctx, store.Filter{Season: season})
	if err != nil {
		return nil, err
	}
	players, err := e.store.QueryPlayers(ctx, store.Filter{Season: season})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	eventByGame := make(map[string]models.FirstBasketEvent, len(events))
	for _, ev := range events {
		eventByGame[ev.GameID] = ev
	}

	gamesDoc, err := marshalGames(games, eventByGame)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	playersDoc, err := marshalPlayers(players, games, events)
	if err != nil {
		return nil, err
	}

	docs := &SeasonDocuments{
		Season:      season,
		Games:       gamesDoc,
		Players:     playersDoc,
		GamesPath:   filepath.Join(e.dir, fmt.Sprintf("games_%s.json", season)),
		PlayersPath: filepath.Join(e.dir, fmt.Sprintf("players_%s.json", season)),
	}

	if err := writeAtomic(docs.GamesPath, gamesDoc); err != nil {
		return nil, err
	}
	if err := writeAtomic(docs.PlayersPath, playersDoc); err != nil {
		return nil, err
	}

	log.Info().
		Str("season", season).
		Int("games", len(games)).
		Int("players", len(players)).
		Msg("Season snapshot exported")

	return docs, nil
}

func marshalGames(games []models.Game, eventByGame map[string]models.FirstBasketEvent) ([]byte, error) {
	docs := make([]GameDoc, 0, len(games))
	for _, g := range games {
		doc := GameDoc{
			GameID:   g.GameID,
			Date:     g.GameDate.UTC().Format("2006-01-02"),
			HomeTeam: g.HomeTeam,
			AwayTeam: g.AwayTeam,
			Status:   g.Status,
		}
		if ev, ok := eventByGame[g.GameID]; ok {
			doc.FirstBasketBy = ev.PlayerName
			doc.FirstBasketByID = ev.PlayerID
			doc.FirstBasketTeam = ev.Team
			doc.FirstBasketTime = ev.ElapsedSeconds
			doc.FirstBasketShot = ev.ShotType
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Date != docs[j].Date {
			return docs[i].Date < docs[j].Date
		}
		return docs[i].GameID < docs[j].GameID
	})

	return json.MarshalIndent(docs, "", "  ")
}

func marshalPlayers(players []models.Player, games []models.Game, events []models.FirstBasketEvent) ([]byte, error) {
	gamesByTeam := make(map[string]int)
	for _, g := range games {
		if g.IsFinal() {
			gamesByTeam[g.HomeTeam]++
			gamesByTeam[g.AwayTeam]++
		}
	}

	basketsByPlayer := make(map[string]int)
	elapsedByPlayer := make(map[string]float64)
	for _, ev := range events {
		basketsByPlayer[ev.PlayerID]++
		elapsedByPlayer[ev.PlayerID] += ev.ElapsedSeconds
	}

	docs := make([]PlayerDoc, 0, len(players))
	for _, p := range players {
		doc := PlayerDoc{
			PlayerID: p.PlayerID,
			Name:     p.Name,
			Team:     p.Team,
			Position: p.Position,
			Starter:  p.Starter,
		}
		doc.GamesPlayed = gamesByTeam[p.Team]
		doc.FirstBaskets = basketsByPlayer[p.PlayerID]
		if doc.GamesPlayed > 0 {
			doc.FirstBasketRate = round4(float64(doc.FirstBaskets) / float64(doc.GamesPlayed))
		}
		if doc.FirstBaskets > 0 {
			doc.AvgFirstBasketTime = round2(elapsedByPlayer[p.PlayerID] / float64(doc.FirstBaskets))
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Team != docs[j].Team {
			return docs[i].Team < docs[j].Team
		}
		return docs[i].PlayerID < docs[j].PlayerID
	})

	return json.MarshalIndent(docs, "", "  ")
}

// writeAtomic writes via a temp file and rename so readers never
// observe a half-written document
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	return nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}
