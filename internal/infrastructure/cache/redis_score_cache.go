package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/infrastructure/config"
)

const (
	defaultScoreKeyPrefix = "reims:score:"
	defaultScoreTTL       = 90 * 24 * time.Hour
)

// RedisScoreCache keeps per-period health scores in Redis so the dashboard
// trendline is shared across instances and survives restarts.
type RedisScoreCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisScoreCache creates a Redis-backed score cache and verifies the
// connection.
func NewRedisScoreCache(cfg config.RedisConfig) (*RedisScoreCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisScoreCache{
		client:    client,
		keyPrefix: defaultScoreKeyPrefix,
		ttl:       defaultScoreTTL,
	}, nil
}

// NewRedisScoreCacheWithClient creates a cache with an existing Redis client.
// Useful for testing or when sharing a client across components.
func NewRedisScoreCacheWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisScoreCache {
	if keyPrefix == "" {
		keyPrefix = defaultScoreKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultScoreTTL
	}
	return &RedisScoreCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Put stores the score for one property, persona and period
func (c *RedisScoreCache) Put(ctx context.Context, propertyID uuid.UUID, periodID string, persona reconciliation.Persona, score float64) error {
	key := scoreKey(c.keyPrefix, propertyID, persona, periodID)
	if err := c.client.Set(ctx, key, strconv.FormatFloat(score, 'f', -1, 64), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache score: %w", err)
	}
	return nil
}

// History returns cached scores for consecutive periods ending at the given
// period, oldest first. Periods without a cached score are skipped.
func (c *RedisScoreCache) History(ctx context.Context, propertyID uuid.UUID, periodID string, persona reconciliation.Persona, periods int) ([]float64, error) {
	periodIDs := consecutivePeriods(periodID, periods)
	keys := make([]string, len(periodIDs))
	for i, p := range periodIDs {
		keys[i] = scoreKey(c.keyPrefix, propertyID, persona, p)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read score history: %w", err)
	}

	scores := make([]float64, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		score, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		scores = append(scores, score)
	}
	return scores, nil
}

// Close releases the underlying Redis connection
func (c *RedisScoreCache) Close() error {
	return c.client.Close()
}
