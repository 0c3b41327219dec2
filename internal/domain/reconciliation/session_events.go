package reconciliation

import (
	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/shared"
)

// Event types for the reconciliation session aggregate
const (
	EventTypeSessionStarted   = "reconciliation.session.started"
	EventTypeSessionCompleted = "reconciliation.session.completed"
	EventTypeSessionFailed    = "reconciliation.session.failed"
	EventTypeSessionCancelled = "reconciliation.session.cancelled"

	aggregateTypeSession = "ReconciliationSession"
)

// SessionStartedEvent is emitted when a run begins
type SessionStartedEvent struct {
	shared.BaseDomainEvent
	PropertyID uuid.UUID `json:"property_id"`
	PeriodID   string    `json:"period_id"`
	Generation int       `json:"generation"`
}

// NewSessionStartedEvent creates a SessionStartedEvent
func NewSessionStartedEvent(s *ReconciliationSession) *SessionStartedEvent {
	return &SessionStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionStarted, aggregateTypeSession, s.ID),
		PropertyID:      s.PropertyID,
		PeriodID:        s.PeriodID,
		Generation:      s.Generation,
	}
}

// SessionCompletedEvent is emitted when a run seals COMPLETED
type SessionCompletedEvent struct {
	shared.BaseDomainEvent
	PropertyID uuid.UUID `json:"property_id"`
	PeriodID   string    `json:"period_id"`
	Generation int       `json:"generation"`
}

// NewSessionCompletedEvent creates a SessionCompletedEvent
func NewSessionCompletedEvent(s *ReconciliationSession) *SessionCompletedEvent {
	return &SessionCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionCompleted, aggregateTypeSession, s.ID),
		PropertyID:      s.PropertyID,
		PeriodID:        s.PeriodID,
		Generation:      s.Generation,
	}
}

// SessionFailedEvent is emitted when a run seals FAILED
type SessionFailedEvent struct {
	shared.BaseDomainEvent
	PropertyID uuid.UUID `json:"property_id"`
	PeriodID   string    `json:"period_id"`
	Reason     string    `json:"reason"`
}

// NewSessionFailedEvent creates a SessionFailedEvent
func NewSessionFailedEvent(s *ReconciliationSession, reason string) *SessionFailedEvent {
	return &SessionFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionFailed, aggregateTypeSession, s.ID),
		PropertyID:      s.PropertyID,
		PeriodID:        s.PeriodID,
		Reason:          reason,
	}
}

// SessionCancelledEvent is emitted when a run is cancelled
type SessionCancelledEvent struct {
	shared.BaseDomainEvent
	PropertyID uuid.UUID `json:"property_id"`
	PeriodID   string    `json:"period_id"`
}

// NewSessionCancelledEvent creates a SessionCancelledEvent
func NewSessionCancelledEvent(s *ReconciliationSession) *SessionCancelledEvent {
	return &SessionCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionCancelled, aggregateTypeSession, s.ID),
		PropertyID:      s.PropertyID,
		PeriodID:        s.PeriodID,
	}
}
