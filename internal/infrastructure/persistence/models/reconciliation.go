package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SessionModel is the persistence model for the ReconciliationSession aggregate root.
type SessionModel struct {
	AggregateModel
	PropertyID  uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex:idx_sessions_property_period,priority:1"`
	PeriodID    string                       `gorm:"type:varchar(7);not null;uniqueIndex:idx_sessions_property_period,priority:2"`
	Status      reconciliation.SessionStatus `gorm:"type:varchar(20);not null;index"`
	Generation  int                          `gorm:"not null;default:0"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	LastError   string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SessionModel) TableName() string {
	return "reconciliation_sessions"
}

// ToDomain converts the persistence model to a domain ReconciliationSession.
func (m *SessionModel) ToDomain() *reconciliation.ReconciliationSession {
	return &reconciliation.ReconciliationSession{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		PropertyID:  m.PropertyID,
		PeriodID:    m.PeriodID,
		Status:      m.Status,
		Generation:  m.Generation,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
		LastError:   m.LastError,
	}
}

// FromDomain populates the persistence model from a domain ReconciliationSession.
func (m *SessionModel) FromDomain(s *reconciliation.ReconciliationSession) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.PropertyID = s.PropertyID
	m.PeriodID = s.PeriodID
	m.Status = s.Status
	m.Generation = s.Generation
	m.StartedAt = s.StartedAt
	m.CompletedAt = s.CompletedAt
	m.LastError = s.LastError
}

// SessionModelFromDomain creates a new persistence model from a domain session.
func SessionModelFromDomain(s *reconciliation.ReconciliationSession) *SessionModel {
	m := &SessionModel{}
	m.FromDomain(s)
	return m
}

// FinancialRecordModel is the persistence model for ingested financial records.
type FinancialRecordModel struct {
	ID                 uuid.UUID                   `gorm:"type:uuid;primary_key"`
	DocumentType       reconciliation.DocumentType `gorm:"type:varchar(30);not null;index:idx_records_property_period_doc,priority:3"`
	AccountCode        string                      `gorm:"type:varchar(50)"`
	AccountName        string                      `gorm:"type:varchar(200);not null"`
	Amount             decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	PropertyID         uuid.UUID                   `gorm:"type:uuid;not null;index:idx_records_property_period_doc,priority:1"`
	PeriodID           string                      `gorm:"type:varchar(7);not null;index:idx_records_property_period_doc,priority:2"`
	CanonicalAccountID string                      `gorm:"type:varchar(100);index"`
	MappingConfidence  float64                     `gorm:"not null;default:0"`
	CreatedAt          time.Time                   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FinancialRecordModel) TableName() string {
	return "financial_records"
}

// ToDomain converts the persistence model to a domain FinancialRecord.
func (m *FinancialRecordModel) ToDomain() reconciliation.FinancialRecord {
	return reconciliation.FinancialRecord{
		ID:                 m.ID,
		DocumentType:       m.DocumentType,
		AccountCode:        m.AccountCode,
		AccountName:        m.AccountName,
		Amount:             m.Amount,
		PropertyID:         m.PropertyID,
		PeriodID:           m.PeriodID,
		CanonicalAccountID: m.CanonicalAccountID,
		MappingConfidence:  m.MappingConfidence,
	}
}

// FinancialRecordModelFromDomain creates a persistence model from a domain record.
func FinancialRecordModelFromDomain(r *reconciliation.FinancialRecord) *FinancialRecordModel {
	return &FinancialRecordModel{
		ID:                 r.ID,
		DocumentType:       r.DocumentType,
		AccountCode:        r.AccountCode,
		AccountName:        r.AccountName,
		Amount:             r.Amount,
		PropertyID:         r.PropertyID,
		PeriodID:           r.PeriodID,
		CanonicalAccountID: r.CanonicalAccountID,
		MappingConfidence:  r.MappingConfidence,
	}
}

// MatchModel is the persistence model for matches produced by an engine run.
type MatchModel struct {
	BaseModel
	SessionID           uuid.UUID                   `gorm:"type:uuid;not null;index:idx_matches_session_gen,priority:1"`
	Generation          int                         `gorm:"not null;index:idx_matches_session_gen,priority:2"`
	SourceRecordID      uuid.UUID                   `gorm:"type:uuid;not null"`
	TargetRecordID      uuid.UUID                   `gorm:"type:uuid;not null"`
	SourceDocumentType  reconciliation.DocumentType `gorm:"type:varchar(30);not null"`
	TargetDocumentType  reconciliation.DocumentType `gorm:"type:varchar(30);not null"`
	CanonicalAccountID  string                      `gorm:"type:varchar(100)"`
	MatchType           reconciliation.MatchType    `gorm:"type:varchar(20);not null;index"`
	Confidence          float64                     `gorm:"not null"`
	AmountDifference    decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	SourceAmount        decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	TargetAmount        decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	Tier                reconciliation.Tier         `gorm:"not null;index"`
	Status              reconciliation.MatchStatus  `gorm:"type:varchar(20);not null;index"`
	SuggestedResolution string                      `gorm:"type:text"`
	Notes               string                      `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (MatchModel) TableName() string {
	return "reconciliation_matches"
}

// ToDomain converts the persistence model to a domain Match.
func (m *MatchModel) ToDomain() reconciliation.Match {
	return reconciliation.Match{
		BaseEntity:          m.BaseModel.ToDomain(),
		SessionID:           m.SessionID,
		Generation:          m.Generation,
		SourceRecordID:      m.SourceRecordID,
		TargetRecordID:      m.TargetRecordID,
		SourceDocumentType:  m.SourceDocumentType,
		TargetDocumentType:  m.TargetDocumentType,
		CanonicalAccountID:  m.CanonicalAccountID,
		MatchType:           m.MatchType,
		Confidence:          m.Confidence,
		AmountDifference:    m.AmountDifference,
		SourceAmount:        m.SourceAmount,
		TargetAmount:        m.TargetAmount,
		Tier:                m.Tier,
		Status:              m.Status,
		SuggestedResolution: m.SuggestedResolution,
		Notes:               m.Notes,
	}
}

// FromDomain populates the persistence model from a domain Match.
func (m *MatchModel) FromDomain(match *reconciliation.Match) {
	m.FromDomainBaseEntity(match.BaseEntity)
	m.SessionID = match.SessionID
	m.Generation = match.Generation
	m.SourceRecordID = match.SourceRecordID
	m.TargetRecordID = match.TargetRecordID
	m.SourceDocumentType = match.SourceDocumentType
	m.TargetDocumentType = match.TargetDocumentType
	m.CanonicalAccountID = match.CanonicalAccountID
	m.MatchType = match.MatchType
	m.Confidence = match.Confidence
	m.AmountDifference = match.AmountDifference
	m.SourceAmount = match.SourceAmount
	m.TargetAmount = match.TargetAmount
	m.Tier = match.Tier
	m.Status = match.Status
	m.SuggestedResolution = match.SuggestedResolution
	m.Notes = match.Notes
}

// MatchModelFromDomain creates a new persistence model from a domain Match.
func MatchModelFromDomain(match *reconciliation.Match) *MatchModel {
	m := &MatchModel{}
	m.FromDomain(match)
	return m
}

// DiscrepancyModel is the persistence model for discrepancies.
type DiscrepancyModel struct {
	BaseModel
	SessionID       uuid.UUID                        `gorm:"type:uuid;not null;index:idx_discrepancies_session_gen,priority:1"`
	Generation      int                              `gorm:"not null;index:idx_discrepancies_session_gen,priority:2"`
	MatchID         *uuid.UUID                       `gorm:"type:uuid;index"`
	Type            reconciliation.DiscrepancyType   `gorm:"type:varchar(40);not null;index"`
	Severity        reconciliation.Severity          `gorm:"type:varchar(10);not null;index"`
	Description     string                           `gorm:"type:text;not null"`
	RecordIDs       []uuid.UUID                      `gorm:"serializer:json"`
	Amount          decimal.Decimal                  `gorm:"type:decimal(18,4);not null"`
	Status          reconciliation.DiscrepancyStatus `gorm:"type:varchar(20);not null;index"`
	ResolutionNotes string                           `gorm:"type:text"`
	ResolvedValue   *decimal.Decimal                 `gorm:"type:decimal(18,4)"`
}

// TableName returns the table name for GORM
func (DiscrepancyModel) TableName() string {
	return "discrepancies"
}

// ToDomain converts the persistence model to a domain Discrepancy.
func (m *DiscrepancyModel) ToDomain() reconciliation.Discrepancy {
	return reconciliation.Discrepancy{
		BaseEntity:      m.BaseModel.ToDomain(),
		SessionID:       m.SessionID,
		Generation:      m.Generation,
		MatchID:         m.MatchID,
		Type:            m.Type,
		Severity:        m.Severity,
		Description:     m.Description,
		RecordIDs:       m.RecordIDs,
		Amount:          m.Amount,
		Status:          m.Status,
		ResolutionNotes: m.ResolutionNotes,
		ResolvedValue:   m.ResolvedValue,
	}
}

// FromDomain populates the persistence model from a domain Discrepancy.
func (m *DiscrepancyModel) FromDomain(d *reconciliation.Discrepancy) {
	m.FromDomainBaseEntity(d.BaseEntity)
	m.SessionID = d.SessionID
	m.Generation = d.Generation
	m.MatchID = d.MatchID
	m.Type = d.Type
	m.Severity = d.Severity
	m.Description = d.Description
	m.RecordIDs = d.RecordIDs
	m.Amount = d.Amount
	m.Status = d.Status
	m.ResolutionNotes = d.ResolutionNotes
	m.ResolvedValue = d.ResolvedValue
}

// DiscrepancyModelFromDomain creates a new persistence model from a domain Discrepancy.
func DiscrepancyModelFromDomain(d *reconciliation.Discrepancy) *DiscrepancyModel {
	m := &DiscrepancyModel{}
	m.FromDomain(d)
	return m
}

// CalculatedRuleModel is the persistence model for calculated-rule versions.
type CalculatedRuleModel struct {
	BaseModel
	RuleID            string                        `gorm:"type:varchar(100);not null;uniqueIndex:idx_rules_rule_version,priority:1"`
	Version           int                           `gorm:"not null;uniqueIndex:idx_rules_rule_version,priority:2"`
	Name              string                        `gorm:"type:varchar(200);not null"`
	Formula           string                        `gorm:"type:text;not null"`
	DependsOn         []string                      `gorm:"serializer:json"`
	ToleranceAbsolute decimal.Decimal               `gorm:"type:decimal(18,4);not null"`
	TolerancePercent  decimal.Decimal               `gorm:"type:decimal(18,4);not null"`
	Severity          reconciliation.Severity       `gorm:"type:varchar(10);not null"`
	StatementScope    []reconciliation.DocumentType `gorm:"serializer:json"`
	PropertyID        *uuid.UUID                    `gorm:"type:uuid;index"`
	Active            bool                          `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (CalculatedRuleModel) TableName() string {
	return "calculated_rules"
}

// ToDomain converts the persistence model to a domain CalculatedRule.
func (m *CalculatedRuleModel) ToDomain() reconciliation.CalculatedRule {
	return reconciliation.CalculatedRule{
		BaseEntity:        m.BaseModel.ToDomain(),
		RuleID:            m.RuleID,
		Version:           m.Version,
		Name:              m.Name,
		Formula:           m.Formula,
		DependsOn:         m.DependsOn,
		ToleranceAbsolute: m.ToleranceAbsolute,
		TolerancePercent:  m.TolerancePercent,
		Severity:          m.Severity,
		StatementScope:    m.StatementScope,
		PropertyID:        m.PropertyID,
		Active:            m.Active,
	}
}

// FromDomain populates the persistence model from a domain CalculatedRule.
func (m *CalculatedRuleModel) FromDomain(rule *reconciliation.CalculatedRule) {
	m.FromDomainBaseEntity(rule.BaseEntity)
	m.RuleID = rule.RuleID
	m.Version = rule.Version
	m.Name = rule.Name
	m.Formula = rule.Formula
	m.DependsOn = rule.DependsOn
	m.ToleranceAbsolute = rule.ToleranceAbsolute
	m.TolerancePercent = rule.TolerancePercent
	m.Severity = rule.Severity
	m.StatementScope = rule.StatementScope
	m.PropertyID = rule.PropertyID
	m.Active = rule.Active
}

// CalculatedRuleModelFromDomain creates a new persistence model from a domain rule.
func CalculatedRuleModelFromDomain(rule *reconciliation.CalculatedRule) *CalculatedRuleModel {
	m := &CalculatedRuleModel{}
	m.FromDomain(rule)
	return m
}

// RuleResultModel is the persistence model for rule evaluation outcomes.
type RuleResultModel struct {
	BaseModel
	SessionID     uuid.UUID                 `gorm:"type:uuid;not null;index:idx_rule_results_session_gen,priority:1"`
	Generation    int                       `gorm:"not null;index:idx_rule_results_session_gen,priority:2"`
	RuleID        string                    `gorm:"type:varchar(100);not null"`
	Version       int                       `gorm:"not null"`
	Status        reconciliation.RuleStatus `gorm:"type:varchar(10);not null;index"`
	ExpectedValue decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	ActualValue   decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	Difference    decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	Message       string                    `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (RuleResultModel) TableName() string {
	return "rule_results"
}

// ToDomain converts the persistence model to a domain RuleEvaluationResult.
func (m *RuleResultModel) ToDomain() reconciliation.RuleEvaluationResult {
	return reconciliation.RuleEvaluationResult{
		BaseEntity:    m.BaseModel.ToDomain(),
		SessionID:     m.SessionID,
		Generation:    m.Generation,
		RuleID:        m.RuleID,
		Version:       m.Version,
		Status:        m.Status,
		ExpectedValue: m.ExpectedValue,
		ActualValue:   m.ActualValue,
		Difference:    m.Difference,
		Message:       m.Message,
	}
}

// RuleResultModelFromDomain creates a new persistence model from a domain result.
func RuleResultModelFromDomain(result *reconciliation.RuleEvaluationResult) *RuleResultModel {
	m := &RuleResultModel{}
	m.FromDomainBaseEntity(result.BaseEntity)
	m.SessionID = result.SessionID
	m.Generation = result.Generation
	m.RuleID = result.RuleID
	m.Version = result.Version
	m.Status = result.Status
	m.ExpectedValue = result.ExpectedValue
	m.ActualValue = result.ActualValue
	m.Difference = result.Difference
	m.Message = result.Message
	return m
}

// MaterialityConfigModel is the persistence model for materiality thresholds.
type MaterialityConfigModel struct {
	ID                   uuid.UUID                       `gorm:"type:uuid;primary_key"`
	Scope                reconciliation.MaterialityScope `gorm:"type:varchar(20);not null;index"`
	PropertyID           uuid.UUID                       `gorm:"type:uuid;index"`
	StatementType        reconciliation.DocumentType     `gorm:"type:varchar(30)"`
	AccountID            string                          `gorm:"type:varchar(100)"`
	AbsoluteThreshold    decimal.Decimal                 `gorm:"type:decimal(18,4);not null"`
	RelativeThresholdPct decimal.Decimal                 `gorm:"type:decimal(18,4);not null"`
	RiskClass            reconciliation.RiskClass        `gorm:"type:varchar(10);not null"`
	CreatedAt            time.Time                       `gorm:"not null"`
	UpdatedAt            time.Time                       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MaterialityConfigModel) TableName() string {
	return "materiality_configs"
}

// ToDomain converts the persistence model to a domain MaterialityConfig.
func (m *MaterialityConfigModel) ToDomain() reconciliation.MaterialityConfig {
	return reconciliation.MaterialityConfig{
		ID:                   m.ID,
		Scope:                m.Scope,
		PropertyID:           m.PropertyID,
		StatementType:        m.StatementType,
		AccountID:            m.AccountID,
		AbsoluteThreshold:    m.AbsoluteThreshold,
		RelativeThresholdPct: m.RelativeThresholdPct,
		RiskClass:            m.RiskClass,
	}
}

// MaterialityConfigModelFromDomain creates a new persistence model from a domain config.
func MaterialityConfigModelFromDomain(config *reconciliation.MaterialityConfig) *MaterialityConfigModel {
	return &MaterialityConfigModel{
		ID:                   config.ID,
		Scope:                config.Scope,
		PropertyID:           config.PropertyID,
		StatementType:        config.StatementType,
		AccountID:            config.AccountID,
		AbsoluteThreshold:    config.AbsoluteThreshold,
		RelativeThresholdPct: config.RelativeThresholdPct,
		RiskClass:            config.RiskClass,
	}
}

// HealthScoreModel is the persistence model for persona health scores.
type HealthScoreModel struct {
	BaseModel
	SessionID      uuid.UUID              `gorm:"type:uuid;not null;index:idx_scores_session_persona,priority:1"`
	PropertyID     uuid.UUID              `gorm:"type:uuid;not null;index:idx_scores_property_persona,priority:1"`
	PeriodID       string                 `gorm:"type:varchar(7);not null"`
	Generation     int                    `gorm:"not null"`
	Persona        reconciliation.Persona `gorm:"type:varchar(20);not null;index:idx_scores_session_persona,priority:2;index:idx_scores_property_persona,priority:2"`
	Score          float64                `gorm:"not null"`
	Breakdown      map[string]float64     `gorm:"serializer:json"`
	Blocked        bool                   `gorm:"not null"`
	BlockedReasons []string               `gorm:"serializer:json"`
}

// TableName returns the table name for GORM
func (HealthScoreModel) TableName() string {
	return "health_scores"
}

// ToDomain converts the persistence model to a domain HealthScore.
func (m *HealthScoreModel) ToDomain() reconciliation.HealthScore {
	return reconciliation.HealthScore{
		BaseEntity:     m.BaseModel.ToDomain(),
		SessionID:      m.SessionID,
		PropertyID:     m.PropertyID,
		PeriodID:       m.PeriodID,
		Generation:     m.Generation,
		Persona:        m.Persona,
		Score:          m.Score,
		Breakdown:      m.Breakdown,
		Blocked:        m.Blocked,
		BlockedReasons: m.BlockedReasons,
	}
}

// HealthScoreModelFromDomain creates a new persistence model from a domain score.
func HealthScoreModelFromDomain(score *reconciliation.HealthScore) *HealthScoreModel {
	m := &HealthScoreModel{}
	m.FromDomainBaseEntity(score.BaseEntity)
	m.SessionID = score.SessionID
	m.PropertyID = score.PropertyID
	m.PeriodID = score.PeriodID
	m.Generation = score.Generation
	m.Persona = score.Persona
	m.Score = score.Score
	m.Breakdown = score.Breakdown
	m.Blocked = score.Blocked
	m.BlockedReasons = score.BlockedReasons
	return m
}
