package reconciliation

import (
	"time"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/shared"
)

// SessionStatus represents the lifecycle state of a reconciliation session
type SessionStatus string

const (
	SessionStatusCreated         SessionStatus = "CREATED"
	SessionStatusRunning         SessionStatus = "RUNNING"
	SessionStatusEvaluatingRules SessionStatus = "EVALUATING_RULES"
	SessionStatusCompleted       SessionStatus = "COMPLETED"
	SessionStatusFailed          SessionStatus = "FAILED"
	SessionStatusCancelled       SessionStatus = "CANCELLED"
)

// IsValid checks if the status is a valid SessionStatus
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusCreated, SessionStatusRunning, SessionStatusEvaluatingRules,
		SessionStatusCompleted, SessionStatusFailed, SessionStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s SessionStatus) String() string {
	return string(s)
}

// IsActive returns true while a run is in progress
func (s SessionStatus) IsActive() bool {
	return s == SessionStatusRunning || s == SessionStatusEvaluatingRules
}

// CanStartRun returns true if a new run may begin from this status.
// COMPLETED and FAILED sessions may re-run; the new generation replaces the
// prior results.
func (s SessionStatus) CanStartRun() bool {
	switch s {
	case SessionStatusCreated, SessionStatusCompleted, SessionStatusFailed, SessionStatusCancelled:
		return true
	}
	return false
}

// ReconciliationSession is the aggregate root for one reconciliation run scoped
// to a single property and accounting period. Exactly one session may be
// active per (property, period) pair at a time.
type ReconciliationSession struct {
	shared.BaseAggregateRoot
	PropertyID  uuid.UUID
	PeriodID    string
	Status      SessionStatus
	Generation  int
	StartedAt   *time.Time
	CompletedAt *time.Time
	LastError   string
}

// NewReconciliationSession creates a session in CREATED state
func NewReconciliationSession(propertyID uuid.UUID, periodID string) (*ReconciliationSession, error) {
	if propertyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Property ID is required")
	}
	if err := ValidatePeriodID(periodID); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	return &ReconciliationSession{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PropertyID:        propertyID,
		PeriodID:          periodID,
		Status:            SessionStatusCreated,
	}, nil
}

// Start transitions the session to RUNNING and opens a new generation.
// Results of the previous generation are replaced, not merged, so a re-run
// against unchanged inputs is idempotent.
func (s *ReconciliationSession) Start() error {
	if !s.Status.CanStartRun() {
		return shared.ErrInvalidState
	}
	now := time.Now()
	s.Status = SessionStatusRunning
	s.Generation++
	s.StartedAt = &now
	s.CompletedAt = nil
	s.LastError = ""
	s.AddDomainEvent(NewSessionStartedEvent(s))
	return nil
}

// BeginRuleEvaluation transitions from RUNNING to EVALUATING_RULES
func (s *ReconciliationSession) BeginRuleEvaluation() error {
	if s.Status != SessionStatusRunning {
		return shared.ErrInvalidState
	}
	s.Status = SessionStatusEvaluatingRules
	return nil
}

// Complete seals the session as COMPLETED
func (s *ReconciliationSession) Complete() error {
	if !s.Status.IsActive() {
		return shared.ErrInvalidState
	}
	now := time.Now()
	s.Status = SessionStatusCompleted
	s.CompletedAt = &now
	s.AddDomainEvent(NewSessionCompletedEvent(s))
	return nil
}

// Fail seals the session as FAILED with the triggering error attached
func (s *ReconciliationSession) Fail(reason string) error {
	if !s.Status.IsActive() {
		return shared.ErrInvalidState
	}
	now := time.Now()
	s.Status = SessionStatusFailed
	s.CompletedAt = &now
	s.LastError = reason
	s.AddDomainEvent(NewSessionFailedEvent(s, reason))
	return nil
}

// Cancel cooperatively cancels an in-flight run. No further strategy or rule
// batches start after the flag is observed.
func (s *ReconciliationSession) Cancel() error {
	if !s.Status.IsActive() && s.Status != SessionStatusCreated {
		return shared.ErrInvalidState
	}
	now := time.Now()
	s.Status = SessionStatusCancelled
	s.CompletedAt = &now
	s.AddDomainEvent(NewSessionCancelledEvent(s))
	return nil
}
