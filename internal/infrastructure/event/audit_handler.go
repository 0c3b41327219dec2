package event

import (
	"context"

	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SessionAuditHandler writes a structured audit line for every session
// lifecycle event, so run history survives in the logs even when the
// session row is later replaced by a newer generation.
type SessionAuditHandler struct {
	logger *zap.Logger
}

// NewSessionAuditHandler creates a SessionAuditHandler
func NewSessionAuditHandler(logger *zap.Logger) *SessionAuditHandler {
	return &SessionAuditHandler{logger: logger.Named("session-audit")}
}

// EventTypes returns the session lifecycle events this handler consumes
func (h *SessionAuditHandler) EventTypes() []string {
	return []string{
		reconciliation.EventTypeSessionStarted,
		reconciliation.EventTypeSessionCompleted,
		reconciliation.EventTypeSessionFailed,
		reconciliation.EventTypeSessionCancelled,
	}
}

// Handle logs the lifecycle event
func (h *SessionAuditHandler) Handle(_ context.Context, ev shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", ev.EventType()),
		zap.String("session_id", ev.AggregateID().String()),
	}

	switch e := ev.(type) {
	case *reconciliation.SessionStartedEvent:
		fields = append(fields,
			zap.String("property_id", e.PropertyID.String()),
			zap.String("period_id", e.PeriodID),
			zap.Int("generation", e.Generation),
		)
		h.logger.Info("reconciliation run started", fields...)
	case *reconciliation.SessionCompletedEvent:
		fields = append(fields,
			zap.String("property_id", e.PropertyID.String()),
			zap.String("period_id", e.PeriodID),
			zap.Int("generation", e.Generation),
		)
		h.logger.Info("reconciliation run completed", fields...)
	case *reconciliation.SessionFailedEvent:
		fields = append(fields,
			zap.String("property_id", e.PropertyID.String()),
			zap.String("period_id", e.PeriodID),
			zap.String("reason", e.Reason),
		)
		h.logger.Warn("reconciliation run failed", fields...)
	case *reconciliation.SessionCancelledEvent:
		fields = append(fields,
			zap.String("property_id", e.PropertyID.String()),
			zap.String("period_id", e.PeriodID),
		)
		h.logger.Info("reconciliation run cancelled", fields...)
	default:
		h.logger.Info("session event", fields...)
	}
	return nil
}

var _ shared.EventHandler = (*SessionAuditHandler)(nil)
