package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nbafirst/ingestion/internal/metrics"
	"nbafirst/ingestion/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Config holds Redis connection settings
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RedisCache caches generated predictions so API consumers do not hit
// the database on every read
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close releases the Redis connection pool
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func predictionKey(gameID string) string {
	return fmt.Sprintf("prediction:%s", gameID)
}

// SetPrediction stores a game prediction with a TTL
func (c *RedisCache) SetPrediction(ctx context.Context, p *models.Prediction, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	if err := c.client.Set(ctx, predictionKey(p.GameID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache prediction for %s: %w", p.GameID, err)
	}

	log.Debug().Str("game_id", p.GameID).Dur("ttl", ttl).Msg("Prediction cached")
	return nil
}

// GetPrediction returns the cached prediction for a game, or nil on a
// cache miss
func (c *RedisCache) GetPrediction(ctx context.Context, gameID string) (*models.Prediction, error) {
	data, err := c.client.Get(ctx, predictionKey(gameID)).Bytes()
	if err == redis.Nil {
		metrics.RecordCacheMiss()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached prediction for %s: %w", gameID, err)
	}

	var p models.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached prediction for %s: %w", gameID, err)
	}

	metrics.RecordCacheHit()
	return &p, nil
}

// InvalidatePrediction drops the cached prediction for a game after its
// result arrives
func (c *RedisCache) InvalidatePrediction(ctx context.Context, gameID string) error {
	if err := c.client.Del(ctx, predictionKey(gameID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate prediction for %s: %w", gameID, err)
	}
	return nil
}
