// Package scheduler drives the background refresh loop: nightly full
// scrapes, hourly incremental updates for live and recently finished
// games, season snapshot exports, retraining and prediction.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"nbafirst/ingestion/internal/cache"
	"nbafirst/ingestion/internal/collector"
	"nbafirst/ingestion/internal/config"
	"nbafirst/ingestion/internal/export"
	"nbafirst/ingestion/internal/features"
	"nbafirst/ingestion/internal/metrics"
	"nbafirst/ingestion/internal/models"
	"nbafirst/ingestion/internal/predictor"
	"nbafirst/ingestion/internal/refresh"
	"nbafirst/ingestion/internal/store"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler manages background tasks for the first-basket pipeline:
// - Nightly full refresh of recent seasons
// - Hourly incremental refresh of games the coordinator flags
// - Retraining when the model falls behind the store watermark
// - Predictions for today's scheduled games
type Scheduler struct {
	cfg         *config.Config
	collector   collector.Collector
	db          *store.Store
	coordinator *refresh.Coordinator
	builder     *features.Builder
	trainer     *predictor.Trainer
	model       *predictor.Model
	exporter    *export.Exporter
	cache       *cache.RedisCache

	cron     *cron.Cron
	ticker   *time.Ticker
	stopChan chan struct{}
}

// NewScheduler creates a scheduler wired to the store and collector.
// redisCache may be nil when Redis is unavailable.
func NewScheduler(cfg *config.Config, col collector.Collector, db *store.Store, redisCache *cache.RedisCache) *Scheduler {
	builder := features.NewBuilder(db, cfg.HalfLifeDays)
	return &Scheduler{
		cfg:         cfg,
		collector:   col,
		db:          db,
		coordinator: refresh.New(db, cfg.WatermarkMaxAge),
		builder:     builder,
		trainer:     predictor.NewTrainer(db, builder),
		model: predictor.New(predictor.Thresholds{
			High:   cfg.ConfidenceHighThreshold,
			Medium: cfg.ConfidenceMediumThreshold,
		}),
		exporter: export.New(db, cfg.ExportDir),
		cache:    redisCache,
		cron:     cron.New(),
		stopChan: make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.cfg.NightlyRefreshCron, func() {
		log.Info().Msg("Running nightly refresh...")
		if err := s.FullRefresh(ctx); err != nil {
			log.Error().Err(err).Msg("Nightly refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule nightly refresh: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.cfg.NightlyRefreshCron).
		Msg("Nightly refresh scheduled")

	s.ticker = time.NewTicker(s.cfg.PredictionInterval)
	log.Info().
		Dur("interval", s.cfg.PredictionInterval).
		Msg("Prediction cycle started")

	go s.poll(ctx)

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	if s.cron != nil {
		s.cron.Stop()
	}

	if s.ticker != nil {
		s.ticker.Stop()
	}

	close(s.stopChan)
	log.Info().Msg("Scheduler stopped")
}

// poll runs the incremental refresh and prediction cycle on the ticker
func (s *Scheduler) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context cancelled, stopping prediction cycle")
			return
		case <-s.stopChan:
			log.Info().Msg("Stop signal received, stopping prediction cycle")
			return
		case <-s.ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				log.Error().Err(err).Msg("Prediction cycle failed")
			}
		}
	}
}

// FullRefresh re-scrapes the configured number of recent seasons,
// re-exports their snapshots and retrains the model. Run nightly and
// optionally at startup.
func (s *Scheduler) FullRefresh(ctx context.Context) error {
	start := time.Now()
	status := "success"
	defer func() {
		metrics.RecordRefresh("full", status, time.Since(start).Seconds())
	}()

	now := time.Now()
	from := now.AddDate(0, -12*s.cfg.HistoricalSeasons, 0)

	games, err := s.collector.FetchGames(ctx, from, now)
	if err != nil {
		status = "error"
		return fmt.Errorf("failed to fetch games: %w", err)
	}

	touched := make(map[string]bool)
	saved := 0
	for i := range games {
		if err := ctx.Err(); err != nil {
			status = "error"
			return err
		}
		game, err := s.upsertGame(ctx, &games[i])
		if err != nil {
			continue
		}
		touched[game.Season] = true
		saved++

		if game.IsFinal() {
			if err := s.ensureFirstBasket(ctx, game); err != nil {
				log.Error().Err(err).Str("game_id", game.GameID).Msg("Failed to resolve first basket")
			}
		}
	}
	log.Info().Int("fetched", len(games)).Int("saved", saved).Msg("Games saved to database")

	s.exportSeasons(ctx, touched)

	if err := s.retrain(ctx); err != nil {
		log.Error().Err(err).Msg("Retraining failed")
	}

	log.Info().Dur("duration", time.Since(start)).Msg("Full refresh complete")
	return nil
}

// RunCycle performs one incremental pass: refresh the games the
// coordinator flags, re-export touched seasons, retrain if the model is
// behind the watermark, then predict today's scheduled games.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	start := time.Now()
	status := "success"
	defer func() {
		metrics.RecordRefresh("incremental", status, time.Since(start).Seconds())
	}()

	now := time.Now()

	work, err := s.coordinator.PendingWork(ctx, now)
	if err != nil {
		status = "error"
		return fmt.Errorf("failed to plan refresh work: %w", err)
	}

	touched := make(map[string]bool)
	scheduleRefreshed := false
	for _, item := range work {
		if err := ctx.Err(); err != nil {
			status = "error"
			return err
		}

		switch item.Reason {
		case refresh.ReasonLiveGame, refresh.ReasonAwaitingResult:
			if err := s.refreshGame(ctx, &item.Game, touched); err != nil {
				log.Error().Err(err).
					Str("game_id", item.Game.GameID).
					Str("reason", string(item.Reason)).
					Msg("Failed to refresh game")
			}
		case refresh.ReasonScheduleStale:
			// One schedule scrape covers every stale game at once.
			if scheduleRefreshed {
				continue
			}
			if err := s.refreshSchedule(ctx, now, touched); err != nil {
				log.Error().Err(err).Msg("Failed to refresh schedule")
			}
			scheduleRefreshed = true
		}
	}

	s.exportSeasons(ctx, touched)

	if err := s.retrainIfStale(ctx); err != nil {
		log.Error().Err(err).Msg("Retraining failed")
	}

	if err := s.predictToday(ctx, now); err != nil {
		log.Error().Err(err).Msg("Prediction pass failed")
	}

	log.Info().
		Int("work_items", len(work)).
		Dur("duration", time.Since(start)).
		Msg("Prediction cycle complete")
	return nil
}

// upsertGame writes one scraped game, logging and counting conflicts
// rather than failing the cycle
func (s *Scheduler) upsertGame(ctx context.Context, rec *models.GameRecord) (*models.Game, error) {
	game, err := s.db.Games.Upsert(ctx, rec)
	if err != nil {
		switch {
		case store.IsConflict(err):
			metrics.ConflictsTotal.WithLabelValues("game").Inc()
			log.Warn().Err(err).Str("game_id", rec.GameID).Msg("Game upsert conflict")
		case store.IsValidation(err):
			log.Warn().Err(err).Str("game_id", rec.GameID).Msg("Malformed game record skipped")
		default:
			metrics.RecordError("scheduler", "game_upsert")
			log.Error().Err(err).Str("game_id", rec.GameID).Msg("Failed to save game")
		}
		metrics.GamesUpsertedTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.GamesUpsertedTotal.WithLabelValues("ok").Inc()
	return game, nil
}

// refreshGame re-fetches one flagged game: first its first-basket play,
// and through that its terminal status
func (s *Scheduler) refreshGame(ctx context.Context, game *models.Game, touched map[string]bool) error {
	event, err := s.collector.FetchFirstBasketEvent(ctx, game.GameID)
	if err != nil {
		return err
	}
	if event == nil {
		log.Debug().Str("game_id", game.GameID).Msg("No first basket yet")
		return nil
	}

	if err := s.recordFirstBasket(ctx, game, event); err != nil {
		return err
	}

	touched[game.Season] = true
	return nil
}

// ensureFirstBasket backfills the first-basket event of a final game
// that does not have one yet
func (s *Scheduler) ensureFirstBasket(ctx context.Context, game *models.Game) error {
	existing, err := s.db.Events.EventByGameID(ctx, game.GameID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	event, err := s.collector.FetchFirstBasketEvent(ctx, game.GameID)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	return s.recordFirstBasket(ctx, game, event)
}

// recordFirstBasket writes the event, registers the scorer as a season
// player and drops any stale cached prediction
func (s *Scheduler) recordFirstBasket(ctx context.Context, game *models.Game, event *models.EventRecord) error {
	if _, err := s.db.Events.RecordFirstBasket(ctx, event); err != nil {
		if store.IsConflict(err) {
			metrics.ConflictsTotal.WithLabelValues("event").Inc()
			log.Warn().Err(err).Str("game_id", game.GameID).Msg("First basket conflict, keeping stored event")
			return nil
		}
		return err
	}
	metrics.EventsRecordedTotal.Inc()

	// Register the scorer for the season, but do not clobber role data
	// on a row some richer scrape already wrote.
	known, err := s.db.QueryPlayers(ctx, store.Filter{Season: game.Season, PlayerID: event.PlayerID})
	if err != nil {
		return err
	}
	if len(known) == 0 {
		if _, err := s.db.Players.Upsert(ctx, &models.PlayerRecord{
			PlayerID: event.PlayerID,
			Name:     event.PlayerName,
			Team:     event.Team,
			Season:   game.Season,
		}); err != nil {
			log.Warn().Err(err).Str("player_id", event.PlayerID).Msg("Failed to save player")
		}
	}

	if s.cache != nil {
		if err := s.cache.InvalidatePrediction(ctx, game.GameID); err != nil {
			log.Warn().Err(err).Str("game_id", game.GameID).Msg("Failed to invalidate cached prediction")
		}
	}
	return nil
}

// refreshSchedule re-scrapes the upcoming week plus the last few days
func (s *Scheduler) refreshSchedule(ctx context.Context, now time.Time, touched map[string]bool) error {
	from := now.AddDate(0, 0, -3)
	to := now.AddDate(0, 0, 7)

	games, err := s.collector.FetchGames(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to fetch schedule: %w", err)
	}

	for i := range games {
		game, err := s.upsertGame(ctx, &games[i])
		if err != nil {
			continue
		}
		touched[game.Season] = true
	}

	log.Info().Int("count", len(games)).Msg("Schedule refreshed")
	return nil
}

// exportSeasons rewrites the snapshot files of every touched season
func (s *Scheduler) exportSeasons(ctx context.Context, touched map[string]bool) {
	for season := range touched {
		docs, err := s.exporter.ExportSeason(ctx, season)
		if err != nil {
			metrics.SeasonExportsTotal.WithLabelValues("error").Inc()
			log.Error().Err(err).Str("season", season).Msg("Season export failed")
			continue
		}
		metrics.SeasonExportsTotal.WithLabelValues("ok").Inc()
		log.Info().
			Str("season", season).
			Str("games", docs.GamesPath).
			Str("players", docs.PlayersPath).
			Msg("Season snapshot exported")
	}
}

// retrainIfStale retrains only when the model is behind the watermark
func (s *Scheduler) retrainIfStale(ctx context.Context) error {
	watermark, err := s.db.LastUpdatedWatermark(ctx)
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}

	if s.model.State(watermark) == predictor.StateTrained {
		return nil
	}
	return s.retrain(ctx)
}

// retrain rebuilds the training set and refits the model
func (s *Scheduler) retrain(ctx context.Context) error {
	start := time.Now()

	samples, cutoff, err := s.trainer.TrainingSet(ctx)
	if err != nil {
		return fmt.Errorf("failed to build training set: %w", err)
	}

	if err := s.model.Fit(ctx, samples, cutoff); err != nil {
		return fmt.Errorf("failed to fit model: %w", err)
	}

	metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	metrics.TrainingSamples.Set(float64(len(samples)))
	metrics.ModelTrainedAt.SetToCurrentTime()

	log.Info().
		Int("samples", len(samples)).
		Time("cutoff", cutoff).
		Dur("duration", time.Since(start)).
		Msg("Model retrained")
	return nil
}

// predictToday generates predictions for today's scheduled games and
// caches them
func (s *Scheduler) predictToday(ctx context.Context, now time.Time) error {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	games, err := s.db.QueryGames(ctx, store.Filter{
		Status: models.StatusScheduled,
		From:   dayStart,
		To:     dayStart.Add(24*time.Hour - time.Second),
	})
	if err != nil {
		return fmt.Errorf("failed to query today's games: %w", err)
	}

	for i := range games {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.predictGame(ctx, &games[i]); err != nil {
			metrics.PredictionsFailedTotal.Inc()
			log.Warn().Err(err).Str("game_id", games[i].GameID).Msg("Prediction skipped")
		}
	}
	return nil
}

func (s *Scheduler) predictGame(ctx context.Context, game *models.Game) error {
	roster, err := s.gameRoster(ctx, game)
	if err != nil {
		return err
	}

	ids := make([]string, len(roster))
	for i, p := range roster {
		ids[i] = p.PlayerID
	}

	vectors, err := s.builder.BuildFeatures(ctx, game.GameID, ids)
	if err != nil {
		return err
	}

	candidates := make([]predictor.Candidate, 0, len(roster))
	for _, p := range roster {
		fv, ok := vectors[p.PlayerID]
		if !ok {
			continue
		}
		candidates = append(candidates, predictor.Candidate{Player: p, Features: fv})
	}

	prediction, err := s.model.Infer(game, candidates)
	if err != nil {
		return err
	}
	metrics.PredictionsGeneratedTotal.Inc()

	if top := prediction.Top(); top != nil {
		log.Info().
			Str("game_id", game.GameID).
			Str("matchup", fmt.Sprintf("%s @ %s", game.AwayTeam, game.HomeTeam)).
			Str("pick", top.PlayerName).
			Float64("probability", top.Probability).
			Str("confidence", top.Confidence).
			Msg("Prediction generated")
	}

	if s.cache != nil {
		ttl := time.Duration(s.cfg.CacheTTLPredictions) * time.Second
		if err := s.cache.SetPrediction(ctx, prediction, ttl); err != nil {
			log.Warn().Err(err).Str("game_id", game.GameID).Msg("Failed to cache prediction")
		}
	}
	return nil
}

// gameRoster collects both teams' known season players
func (s *Scheduler) gameRoster(ctx context.Context, game *models.Game) ([]models.Player, error) {
	roster := make([]models.Player, 0, 24)
	for _, team := range []string{game.HomeTeam, game.AwayTeam} {
		players, err := s.db.QueryPlayers(ctx, store.Filter{Season: game.Season, Team: team})
		if err != nil {
			return nil, fmt.Errorf("failed to query %s roster: %w", team, err)
		}
		roster = append(roster, players...)
	}
	return roster, nil
}
