package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScore(sessionID, propertyID uuid.UUID, periodID string, generation int, persona reconciliation.Persona, score float64) reconciliation.HealthScore {
	return reconciliation.HealthScore{
		BaseEntity: shared.NewBaseEntity(),
		SessionID:  sessionID,
		PropertyID: propertyID,
		PeriodID:   periodID,
		Generation: generation,
		Persona:    persona,
		Score:      score,
		Breakdown:  map[string]float64{"match_rate": score},
	}
}

func TestGormHealthScoreRepository_FindBySession(t *testing.T) {
	db := setupReconciliationTestDB(t)
	repo := NewGormHealthScoreRepository(db)
	ctx := context.Background()

	sessionID := uuid.New()
	propertyID := uuid.New()
	require.NoError(t, repo.SaveBatch(ctx, []reconciliation.HealthScore{
		testScore(sessionID, propertyID, "2025-01", 1, reconciliation.PersonaController, 70),
		testScore(sessionID, propertyID, "2025-01", 2, reconciliation.PersonaController, 85),
		testScore(sessionID, propertyID, "2025-01", 2, reconciliation.PersonaLender, 60),
	}))

	t.Run("returns the latest generation for the persona", func(t *testing.T) {
		found, err := repo.FindBySession(ctx, sessionID, reconciliation.PersonaController)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, 2, found.Generation)
		assert.Equal(t, 85.0, found.Score)
		assert.Equal(t, 85.0, found.Breakdown["match_rate"])
	})

	t.Run("personas are independent", func(t *testing.T) {
		found, err := repo.FindBySession(ctx, sessionID, reconciliation.PersonaLender)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, 60.0, found.Score)
	})

	t.Run("returns nil for a persona without a score", func(t *testing.T) {
		found, err := repo.FindBySession(ctx, sessionID, reconciliation.PersonaAssetManager)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestGormHealthScoreRepository_History(t *testing.T) {
	db := setupReconciliationTestDB(t)
	repo := NewGormHealthScoreRepository(db)
	ctx := context.Background()

	propertyID := uuid.New()
	periods := []string{"2024-10", "2024-11", "2024-12", "2025-01"}
	scores := make([]reconciliation.HealthScore, 0, len(periods))
	for i, period := range periods {
		scores = append(scores,
			testScore(uuid.New(), propertyID, period, 1, reconciliation.PersonaController, float64(60+10*i)))
	}
	scores = append(scores,
		testScore(uuid.New(), uuid.New(), "2024-12", 1, reconciliation.PersonaController, 99))
	require.NoError(t, repo.SaveBatch(ctx, scores))

	t.Run("returns prior periods oldest first", func(t *testing.T) {
		history, err := repo.History(ctx, propertyID, reconciliation.PersonaController, "2025-01", 12)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "2024-10", history[0].PeriodID)
		assert.Equal(t, "2024-12", history[2].PeriodID)
		assert.Equal(t, 60.0, history[0].Score)
	})

	t.Run("limit keeps the most recent periods", func(t *testing.T) {
		history, err := repo.History(ctx, propertyID, reconciliation.PersonaController, "2025-01", 2)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "2024-11", history[0].PeriodID)
		assert.Equal(t, "2024-12", history[1].PeriodID)
	})

	t.Run("excludes the current period and other properties", func(t *testing.T) {
		history, err := repo.History(ctx, propertyID, reconciliation.PersonaController, "2024-10", 12)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestGormHealthScoreRepository_DeleteByGeneration(t *testing.T) {
	db := setupReconciliationTestDB(t)
	repo := NewGormHealthScoreRepository(db)
	ctx := context.Background()

	sessionID := uuid.New()
	propertyID := uuid.New()
	require.NoError(t, repo.SaveBatch(ctx, []reconciliation.HealthScore{
		testScore(sessionID, propertyID, "2025-01", 1, reconciliation.PersonaController, 70),
		testScore(sessionID, propertyID, "2025-01", 2, reconciliation.PersonaController, 85),
	}))

	require.NoError(t, repo.DeleteByGeneration(ctx, sessionID, 2))

	found, err := repo.FindBySession(ctx, sessionID, reconciliation.PersonaController)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 2, found.Generation)

	require.NoError(t, repo.DeleteByGeneration(ctx, sessionID, 3))
	found, err = repo.FindBySession(ctx, sessionID, reconciliation.PersonaController)
	require.NoError(t, err)
	assert.Nil(t, found)
}
