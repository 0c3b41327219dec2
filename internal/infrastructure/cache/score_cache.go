package cache

import (
	"fmt"

	"github.com/google/uuid"
	app "github.com/reims/backend/internal/application/reconciliation"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// scoreKey builds the cache key for one property, persona and period
func scoreKey(prefix string, propertyID uuid.UUID, persona reconciliation.Persona, periodID string) string {
	return fmt.Sprintf("%s%s:%s:%s", prefix, propertyID, persona, periodID)
}

// consecutivePeriods returns the n accounting periods ending at periodID,
// oldest first. An unparsable period ID yields just itself.
func consecutivePeriods(periodID string, n int) []string {
	if n < 1 {
		n = 1
	}
	periods := make([]string, n)
	current := periodID
	for i := n - 1; i >= 0; i-- {
		periods[i] = current
		prior, ok := reconciliation.PriorPeriod(current)
		if !ok {
			return periods[i:]
		}
		current = prior
	}
	return periods
}

// ScoreCacheFactory creates score caches based on configuration
type ScoreCacheFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ScoreCacheFactoryOption is a functional option for configuring the factory
type ScoreCacheFactoryOption func(*ScoreCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ScoreCacheFactoryOption {
	return func(f *ScoreCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory cache
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) ScoreCacheFactoryOption {
	return func(f *ScoreCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewScoreCacheFactory creates a new factory
func NewScoreCacheFactory(cfg config.RedisConfig, opts ...ScoreCacheFactoryOption) *ScoreCacheFactory {
	f := &ScoreCacheFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateCache creates a score cache. Redis is used when enabled and
// reachable; otherwise the in-memory cache serves as a single-instance
// fallback.
func (f *ScoreCacheFactory) CreateCache() (app.ScoreCache, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory score cache")
		return NewInMemoryScoreCache(), nil
	}

	store, err := NewRedisScoreCache(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis score cache")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for score cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory score cache. "+
		"Trendlines will not be shared across instances.",
		zap.Error(err),
	)
	return NewInMemoryScoreCache(), nil
}
