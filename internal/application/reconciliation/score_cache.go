package reconciliation

import (
	"context"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
)

// ScoreCache is a fast read path for per-period health scores, keeping the
// dashboard trendline off the primary store. Implementations are best-effort:
// a cache miss or write failure never fails a run.
type ScoreCache interface {
	Put(ctx context.Context, propertyID uuid.UUID, periodID string, persona reconciliation.Persona, score float64) error
	// History returns cached scores for consecutive periods ending at the
	// given period, oldest first. Missing entries are simply absent.
	History(ctx context.Context, propertyID uuid.UUID, periodID string, persona reconciliation.Persona, periods int) ([]float64, error)
}

// NopScoreCache satisfies ScoreCache without caching anything
type NopScoreCache struct{}

func (NopScoreCache) Put(context.Context, uuid.UUID, string, reconciliation.Persona, float64) error {
	return nil
}

func (NopScoreCache) History(context.Context, uuid.UUID, string, reconciliation.Persona, int) ([]float64, error) {
	return nil, nil
}
