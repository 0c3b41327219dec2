package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
)

// InMemoryScoreCache implements the score cache with process-local storage.
// Suitable for single-instance deployments and testing.
type InMemoryScoreCache struct {
	mu      sync.RWMutex
	entries map[string]scoreEntry
	ttl     time.Duration
}

type scoreEntry struct {
	score     float64
	expiresAt time.Time
}

// NewInMemoryScoreCache creates an in-memory score cache with the default TTL
func NewInMemoryScoreCache() *InMemoryScoreCache {
	return &InMemoryScoreCache{
		entries: make(map[string]scoreEntry),
		ttl:     defaultScoreTTL,
	}
}

// Put stores the score for one property, persona and period
func (c *InMemoryScoreCache) Put(_ context.Context, propertyID uuid.UUID, periodID string, persona reconciliation.Persona, score float64) error {
	key := scoreKey("", propertyID, persona, periodID)
	c.mu.Lock()
	c.entries[key] = scoreEntry{score: score, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// History returns cached scores for consecutive periods ending at the given
// period, oldest first. Periods without a cached score are skipped.
func (c *InMemoryScoreCache) History(_ context.Context, propertyID uuid.UUID, periodID string, persona reconciliation.Persona, periods int) ([]float64, error) {
	periodIDs := consecutivePeriods(periodID, periods)
	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	scores := make([]float64, 0, len(periodIDs))
	for _, p := range periodIDs {
		entry, ok := c.entries[scoreKey("", propertyID, persona, p)]
		if !ok || now.After(entry.expiresAt) {
			continue
		}
		scores = append(scores, entry.score)
	}
	return scores, nil
}
