package reconciliation

import (
	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MatchType identifies the strategy that produced a match
type MatchType string

const (
	MatchTypeExact      MatchType = "exact"
	MatchTypeFuzzy      MatchType = "fuzzy"
	MatchTypeCalculated MatchType = "calculated"
	MatchTypeInferred   MatchType = "inferred"
)

// IsValid checks if the match type is valid
func (t MatchType) IsValid() bool {
	switch t {
	case MatchTypeExact, MatchTypeFuzzy, MatchTypeCalculated, MatchTypeInferred:
		return true
	}
	return false
}

// String returns the string representation
func (t MatchType) String() string {
	return string(t)
}

// MatchStatus is the review status of a match
type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusApproved MatchStatus = "approved"
	MatchStatusRejected MatchStatus = "rejected"
	MatchStatusModified MatchStatus = "modified"
)

// IsValid checks if the match status is valid
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusPending, MatchStatusApproved, MatchStatusRejected, MatchStatusModified:
		return true
	}
	return false
}

// Match links exactly two financial records, possibly across document types
type Match struct {
	shared.BaseEntity
	SessionID           uuid.UUID
	Generation          int
	SourceRecordID      uuid.UUID
	TargetRecordID      uuid.UUID
	SourceDocumentType  DocumentType
	TargetDocumentType  DocumentType
	CanonicalAccountID  string
	MatchType           MatchType
	Confidence          float64
	AmountDifference    decimal.Decimal
	SourceAmount        decimal.Decimal
	TargetAmount        decimal.Decimal
	Tier                Tier
	Status              MatchStatus
	SuggestedResolution string
	Notes               string
}

// NewMatch creates a pending match between two records. Confidence is clamped
// to [0, 1].
func NewMatch(sessionID uuid.UUID, generation int, source, target *FinancialRecord, matchType MatchType, confidence float64) Match {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Match{
		BaseEntity:         shared.NewBaseEntity(),
		SessionID:          sessionID,
		Generation:         generation,
		SourceRecordID:     source.ID,
		TargetRecordID:     target.ID,
		SourceDocumentType: source.DocumentType,
		TargetDocumentType: target.DocumentType,
		CanonicalAccountID: source.CanonicalAccountID,
		MatchType:          matchType,
		Confidence:         confidence,
		AmountDifference:   source.Amount.Sub(target.Amount),
		SourceAmount:       source.Amount,
		TargetAmount:       target.Amount,
		Status:             MatchStatusPending,
	}
}

// Approve marks the match approved
func (m *Match) Approve(notes string) error {
	if m.Status == MatchStatusRejected {
		return shared.ErrInvalidState
	}
	m.Status = MatchStatusApproved
	if notes != "" {
		m.Notes = notes
	}
	return nil
}

// Reject marks the match rejected with a reason
func (m *Match) Reject(reason string) error {
	if reason == "" {
		return shared.NewDomainError("INVALID_INPUT", "Rejection requires a reason")
	}
	if m.Status == MatchStatusApproved {
		return shared.ErrInvalidState
	}
	m.Status = MatchStatusRejected
	m.Notes = reason
	return nil
}

// DiscrepancyType classifies what kind of inconsistency was detected
type DiscrepancyType string

const (
	DiscrepancyTypeMissingCorrespondence DiscrepancyType = "missing_correspondence"
	DiscrepancyTypeFormulaViolation      DiscrepancyType = "formula_violation"
	DiscrepancyTypeAmountMismatch        DiscrepancyType = "amount_mismatch"
	DiscrepancyTypeCovenantViolation     DiscrepancyType = "covenant_violation"
)

// Severity grades how serious a discrepancy is
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IsValid checks if the severity is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// SeverityForRisk maps an account risk class to a discrepancy severity
func SeverityForRisk(risk RiskClass) Severity {
	switch risk {
	case RiskClassCritical:
		return SeverityCritical
	case RiskClassHigh:
		return SeverityHigh
	case RiskClassLow:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// DiscrepancyStatus is the investigation status of a discrepancy
type DiscrepancyStatus string

const (
	DiscrepancyStatusOpen          DiscrepancyStatus = "open"
	DiscrepancyStatusInvestigating DiscrepancyStatus = "investigating"
	DiscrepancyStatusResolved      DiscrepancyStatus = "resolved"
	DiscrepancyStatusAccepted      DiscrepancyStatus = "accepted"
)

// IsValid checks if the discrepancy status is valid
func (s DiscrepancyStatus) IsValid() bool {
	switch s {
	case DiscrepancyStatusOpen, DiscrepancyStatusInvestigating,
		DiscrepancyStatusResolved, DiscrepancyStatusAccepted:
		return true
	}
	return false
}

// IsOpen returns true while the discrepancy still needs attention
func (s DiscrepancyStatus) IsOpen() bool {
	return s == DiscrepancyStatusOpen || s == DiscrepancyStatusInvestigating
}

// Discrepancy is a detected inconsistency, optionally linked to a match.
// RecordIDs lists the records involved; multi-record relationship failures
// reference all participants.
type Discrepancy struct {
	shared.BaseEntity
	SessionID       uuid.UUID
	Generation      int
	MatchID         *uuid.UUID
	Type            DiscrepancyType
	Severity        Severity
	Description     string
	RecordIDs       []uuid.UUID
	Amount          decimal.Decimal
	Status          DiscrepancyStatus
	ResolutionNotes string
	ResolvedValue   *decimal.Decimal
}

// NewDiscrepancy creates an open discrepancy
func NewDiscrepancy(sessionID uuid.UUID, generation int, dType DiscrepancyType, severity Severity, description string) Discrepancy {
	return Discrepancy{
		BaseEntity:  shared.NewBaseEntity(),
		SessionID:   sessionID,
		Generation:  generation,
		Type:        dType,
		Severity:    severity,
		Description: description,
		Status:      DiscrepancyStatusOpen,
	}
}

// Resolve closes the discrepancy with resolution notes. The reviewer may
// record the corrected value alongside the notes.
func (d *Discrepancy) Resolve(notes string, newValue *decimal.Decimal) error {
	if notes == "" {
		return shared.NewDomainError("INVALID_INPUT", "Resolution requires notes")
	}
	if !d.Status.IsOpen() {
		return shared.ErrInvalidState
	}
	d.Status = DiscrepancyStatusResolved
	d.ResolutionNotes = notes
	d.ResolvedValue = newValue
	return nil
}
