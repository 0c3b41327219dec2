package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReviewService provides the human review operations over a completed run:
// match approval and rejection, discrepancy resolution, and the filtered
// listings the review queues are built from.
type ReviewService struct {
	sessions      reconciliation.SessionRepository
	matches       reconciliation.MatchRepository
	discrepancies reconciliation.DiscrepancyRepository
	healthScores  reconciliation.HealthScoreRepository
	ruleResults   reconciliation.RuleResultRepository
}

// NewReviewService creates a ReviewService
func NewReviewService(
	sessions reconciliation.SessionRepository,
	matches reconciliation.MatchRepository,
	discrepancies reconciliation.DiscrepancyRepository,
	healthScores reconciliation.HealthScoreRepository,
	ruleResults reconciliation.RuleResultRepository,
) *ReviewService {
	return &ReviewService{
		sessions:      sessions,
		matches:       matches,
		discrepancies: discrepancies,
		healthScores:  healthScores,
		ruleResults:   ruleResults,
	}
}

// MatchResponse represents a match in API responses
type MatchResponse struct {
	ID                  uuid.UUID       `json:"id"`
	SessionID           uuid.UUID       `json:"session_id"`
	SourceRecordID      uuid.UUID       `json:"source_record_id"`
	TargetRecordID      uuid.UUID       `json:"target_record_id"`
	SourceDocumentType  string          `json:"source_document_type"`
	TargetDocumentType  string          `json:"target_document_type"`
	CanonicalAccountID  string          `json:"canonical_account_id,omitempty"`
	MatchType           string          `json:"match_type"`
	Confidence          float64         `json:"confidence"`
	AmountDifference    decimal.Decimal `json:"amount_difference"`
	SourceAmount        decimal.Decimal `json:"source_amount"`
	TargetAmount        decimal.Decimal `json:"target_amount"`
	Tier                int             `json:"tier"`
	TierLabel           string          `json:"tier_label"`
	Status              string          `json:"status"`
	SuggestedResolution string          `json:"suggested_resolution,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// DiscrepancyResponse represents a discrepancy in API responses
type DiscrepancyResponse struct {
	ID              uuid.UUID        `json:"id"`
	SessionID       uuid.UUID        `json:"session_id"`
	MatchID         *uuid.UUID       `json:"match_id,omitempty"`
	Type            string           `json:"type"`
	Severity        string           `json:"severity"`
	Description     string           `json:"description"`
	RecordIDs       []uuid.UUID      `json:"record_ids"`
	Amount          decimal.Decimal  `json:"amount"`
	Status          string           `json:"status"`
	ResolutionNotes string           `json:"resolution_notes,omitempty"`
	ResolvedValue   *decimal.Decimal `json:"resolved_value,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// HealthScoreResponse represents a persona's health score in API responses
type HealthScoreResponse struct {
	SessionID      uuid.UUID          `json:"session_id"`
	PropertyID     uuid.UUID          `json:"property_id"`
	PeriodID       string             `json:"period_id"`
	Persona        string             `json:"persona"`
	Score          float64            `json:"score"`
	Breakdown      map[string]float64 `json:"breakdown"`
	Blocked        bool               `json:"blocked"`
	BlockedReasons []string           `json:"blocked_reasons,omitempty"`
}

// RuleResultResponse represents one rule outcome in API responses
type RuleResultResponse struct {
	RuleID        string          `json:"rule_id"`
	Version       int             `json:"version"`
	Status        string          `json:"status"`
	ExpectedValue decimal.Decimal `json:"expected_value"`
	ActualValue   decimal.Decimal `json:"actual_value"`
	Difference    decimal.Decimal `json:"difference"`
	Message       string          `json:"message,omitempty"`
}

// MatchListFilter defines filtering options for match list queries
type MatchListFilter struct {
	Tier          *int     `form:"tier"`
	Status        string   `form:"status"`
	MatchType     string   `form:"match_type"`
	MinConfidence *float64 `form:"min_confidence" binding:"omitempty,gte=0,lte=1"`
	Page          int      `form:"page"`
	PageSize      int      `form:"page_size"`
}

// DiscrepancyListFilter defines filtering options for discrepancy list queries
type DiscrepancyListFilter struct {
	Type     string `form:"type"`
	Severity string `form:"severity"`
	OpenOnly bool   `form:"open_only"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// ReviewNoteRequest carries reviewer notes for approval or resolution
type ReviewNoteRequest struct {
	Notes string `json:"notes"`
}

// ResolveDiscrepancyRequest carries resolution notes and, optionally, the
// corrected value the reviewer settled on
type ResolveDiscrepancyRequest struct {
	Notes    string           `json:"notes"`
	NewValue *decimal.Decimal `json:"new_value,omitempty"`
}

// RejectMatchRequest carries the mandatory rejection reason
type RejectMatchRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ListMatches returns the current generation's matches for a session
func (s *ReviewService) ListMatches(ctx context.Context, sessionID uuid.UUID, filter MatchListFilter) (*shared.Paginated[MatchResponse], error) {
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	domainFilter := reconciliation.MatchFilter{Filter: pageFilter(filter.Page, filter.PageSize)}
	if filter.Tier != nil {
		tier := reconciliation.Tier(*filter.Tier)
		domainFilter.Tier = &tier
	}
	if filter.Status != "" {
		status := reconciliation.MatchStatus(filter.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Unknown match status "+filter.Status)
		}
		domainFilter.Status = &status
	}
	if filter.MatchType != "" {
		matchType := reconciliation.MatchType(filter.MatchType)
		if !matchType.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Unknown match type "+filter.MatchType)
		}
		domainFilter.MatchType = &matchType
	}
	domainFilter.MinConfidence = filter.MinConfidence

	page, err := s.matches.FindBySession(ctx, sessionID, session.Generation, domainFilter)
	if err != nil {
		return nil, err
	}
	out := shared.Paginated[MatchResponse]{
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
		Items:      make([]MatchResponse, len(page.Items)),
	}
	for i := range page.Items {
		out.Items[i] = *toMatchResponse(&page.Items[i])
	}
	return &out, nil
}

// ListDiscrepancies returns the current generation's discrepancies
func (s *ReviewService) ListDiscrepancies(ctx context.Context, sessionID uuid.UUID, filter DiscrepancyListFilter) (*shared.Paginated[DiscrepancyResponse], error) {
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	domainFilter := reconciliation.DiscrepancyFilter{
		Filter:   pageFilter(filter.Page, filter.PageSize),
		OpenOnly: filter.OpenOnly,
	}
	if filter.Type != "" {
		dType := reconciliation.DiscrepancyType(filter.Type)
		domainFilter.Type = &dType
	}
	if filter.Severity != "" {
		severity := reconciliation.Severity(filter.Severity)
		if !severity.IsValid() {
			return nil, shared.NewDomainError("INVALID_INPUT", "Unknown severity "+filter.Severity)
		}
		domainFilter.Severity = &severity
	}

	page, err := s.discrepancies.FindBySession(ctx, sessionID, session.Generation, domainFilter)
	if err != nil {
		return nil, err
	}
	out := shared.Paginated[DiscrepancyResponse]{
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
		Items:      make([]DiscrepancyResponse, len(page.Items)),
	}
	for i := range page.Items {
		out.Items[i] = *toDiscrepancyResponse(&page.Items[i])
	}
	return &out, nil
}

// ApproveMatch approves a pending or suggested match
func (s *ReviewService) ApproveMatch(ctx context.Context, matchID uuid.UUID, req ReviewNoteRequest) (*MatchResponse, error) {
	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Match not found")
	}
	if err := match.Approve(req.Notes); err != nil {
		return nil, err
	}
	if err := s.matches.Save(ctx, match); err != nil {
		return nil, err
	}
	return toMatchResponse(match), nil
}

// RejectMatch rejects a match with a mandatory reason
func (s *ReviewService) RejectMatch(ctx context.Context, matchID uuid.UUID, req RejectMatchRequest) (*MatchResponse, error) {
	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Match not found")
	}
	if err := match.Reject(req.Reason); err != nil {
		return nil, err
	}
	if err := s.matches.Save(ctx, match); err != nil {
		return nil, err
	}
	return toMatchResponse(match), nil
}

// ResolveDiscrepancy closes a discrepancy with resolution notes and an
// optional corrected value
func (s *ReviewService) ResolveDiscrepancy(ctx context.Context, discrepancyID uuid.UUID, req ResolveDiscrepancyRequest) (*DiscrepancyResponse, error) {
	discrepancy, err := s.discrepancies.FindByID(ctx, discrepancyID)
	if err != nil {
		return nil, err
	}
	if discrepancy == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Discrepancy not found")
	}
	if err := discrepancy.Resolve(req.Notes, req.NewValue); err != nil {
		return nil, err
	}
	if err := s.discrepancies.Save(ctx, discrepancy); err != nil {
		return nil, err
	}
	return toDiscrepancyResponse(discrepancy), nil
}

// GetHealthScore returns the stored score for a session and persona
func (s *ReviewService) GetHealthScore(ctx context.Context, sessionID uuid.UUID, persona string) (*HealthScoreResponse, error) {
	p := reconciliation.Persona(persona)
	if !p.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown persona "+persona)
	}
	score, err := s.healthScores.FindBySession(ctx, sessionID, p)
	if err != nil {
		return nil, err
	}
	if score == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "No health score for this session")
	}
	return &HealthScoreResponse{
		SessionID:      score.SessionID,
		PropertyID:     score.PropertyID,
		PeriodID:       score.PeriodID,
		Persona:        string(score.Persona),
		Score:          score.Score,
		Breakdown:      score.Breakdown,
		Blocked:        score.Blocked,
		BlockedReasons: score.BlockedReasons,
	}, nil
}

// ListRuleResults returns the current generation's rule outcomes
func (s *ReviewService) ListRuleResults(ctx context.Context, sessionID uuid.UUID) ([]RuleResultResponse, error) {
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	results, err := s.ruleResults.FindBySession(ctx, sessionID, session.Generation)
	if err != nil {
		return nil, err
	}
	out := make([]RuleResultResponse, len(results))
	for i, r := range results {
		out[i] = RuleResultResponse{
			RuleID:        r.RuleID,
			Version:       r.Version,
			Status:        string(r.Status),
			ExpectedValue: r.ExpectedValue,
			ActualValue:   r.ActualValue,
			Difference:    r.Difference,
			Message:       r.Message,
		}
	}
	return out, nil
}

func (s *ReviewService) findSession(ctx context.Context, sessionID uuid.UUID) (*reconciliation.ReconciliationSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Session not found")
	}
	return session, nil
}

func pageFilter(page, pageSize int) shared.Filter {
	filter := shared.DefaultFilter()
	if page > 0 {
		filter.Page = page
	}
	if pageSize > 0 {
		filter.PageSize = pageSize
	}
	return filter
}

func toMatchResponse(match *reconciliation.Match) *MatchResponse {
	return &MatchResponse{
		ID:                  match.ID,
		SessionID:           match.SessionID,
		SourceRecordID:      match.SourceRecordID,
		TargetRecordID:      match.TargetRecordID,
		SourceDocumentType:  match.SourceDocumentType.String(),
		TargetDocumentType:  match.TargetDocumentType.String(),
		CanonicalAccountID:  match.CanonicalAccountID,
		MatchType:           match.MatchType.String(),
		Confidence:          match.Confidence,
		AmountDifference:    match.AmountDifference,
		SourceAmount:        match.SourceAmount,
		TargetAmount:        match.TargetAmount,
		Tier:                int(match.Tier),
		TierLabel:           match.Tier.String(),
		Status:              string(match.Status),
		SuggestedResolution: match.SuggestedResolution,
		Notes:               match.Notes,
		CreatedAt:           match.CreatedAt,
	}
}

func toDiscrepancyResponse(d *reconciliation.Discrepancy) *DiscrepancyResponse {
	return &DiscrepancyResponse{
		ID:              d.ID,
		SessionID:       d.SessionID,
		MatchID:         d.MatchID,
		Type:            string(d.Type),
		Severity:        string(d.Severity),
		Description:     d.Description,
		RecordIDs:       d.RecordIDs,
		Amount:          d.Amount,
		Status:          string(d.Status),
		ResolutionNotes: d.ResolutionNotes,
		ResolvedValue:   d.ResolvedValue,
		CreatedAt:       d.CreatedAt,
	}
}
