package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Store holds the database connection pool and is the single writer of
// games, players and first-basket events. All other components read
// through its Querier interface.
type Store struct {
	Pool *pgxpool.Pool

	Games   *GameStore
	Players *PlayerStore
	Events  *EventStore

	locks keyedLocks
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// New creates the database connection pool and initializes the
// per-entity stores
func New(ctx context.Context, cfg Config) (*Store, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Successfully connected to database")

	s := &Store{Pool: pool}
	s.Games = &GameStore{store: s}
	s.Players = &PlayerStore{store: s}
	s.Events = &EventStore{store: s}

	return s, nil
}

// Close closes the database connection pool
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
		log.Info().Msg("Database connection pool closed")
	}
}

// Health checks if the database is healthy
func (s *Store) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// LastUpdatedWatermark returns the most recent ingest timestamp across
// games and events. Zero time when the store is empty.
func (s *Store) LastUpdatedWatermark(ctx context.Context) (time.Time, error) {
	query := `
		SELECT GREATEST(
			COALESCE((SELECT MAX(updated_at) FROM games), 'epoch'::timestamptz),
			COALESCE((SELECT MAX(recorded_at) FROM first_basket_events), 'epoch'::timestamptz)
		)
	`

	var watermark time.Time
	if err := s.Pool.QueryRow(ctx, query).Scan(&watermark); err != nil {
		return time.Time{}, &StorageError{Op: "watermark", Err: err}
	}

	if watermark.Unix() <= 0 {
		return time.Time{}, nil
	}
	return watermark, nil
}

// keyedLocks serializes writers that target the same natural key.
// Writers on different games proceed independently.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
