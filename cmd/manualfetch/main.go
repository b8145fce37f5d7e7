// Command manualfetch runs one refresh cycle by hand: scrape, persist,
// export, retrain and predict, then exit. Useful for backfills and for
// verifying the pipeline outside the scheduler.
package main

import (
	"context"
	"flag"
	"strconv"

	"nbafirst/ingestion/internal/collector"
	"nbafirst/ingestion/internal/config"
	"nbafirst/ingestion/internal/export"
	"nbafirst/ingestion/internal/scheduler"
	"nbafirst/ingestion/internal/store"

	"github.com/rs/zerolog/log"
)

func main() {
	full := flag.Bool("full", false, "run a full historical refresh instead of an incremental cycle")
	season := flag.String("export-season", "", "re-export one season's snapshot files and exit")
	flag.Parse()

	ctx := context.Background()
	cfg := config.MustLoad()

	db, err := store.New(ctx, store.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	log.Info().Msg("Validating service health...")
	if err := db.Health(ctx); err != nil {
		log.Fatal().Err(err).Msg("Database health check failed")
	}

	if *season != "" {
		exporter := export.New(db, cfg.ExportDir)
		docs, err := exporter.ExportSeason(ctx, *season)
		if err != nil {
			log.Fatal().Err(err).Str("season", *season).Msg("Season export failed")
		}
		log.Info().
			Str("games", docs.GamesPath).
			Str("players", docs.PlayersPath).
			Msg("Season snapshot exported")
		return
	}

	nbaClient := collector.NewNBAClient(
		cfg.NBAStatsBaseURL,
		cfg.NBAStatsTimeout,
		cfg.NBAMaxConcurrentRequests,
	)

	sched := scheduler.NewScheduler(cfg, nbaClient, db, nil)

	if *full {
		log.Info().Msg("Running full refresh...")
		if err := sched.FullRefresh(ctx); err != nil {
			log.Fatal().Err(err).Msg("Full refresh failed")
		}
	} else {
		log.Info().Msg("Running incremental cycle...")
		if err := sched.RunCycle(ctx); err != nil {
			log.Fatal().Err(err).Msg("Incremental cycle failed")
		}
	}

	log.Info().Msg("Manual fetch complete.")
}
