package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// scoreHistoryPeriods is how many prior periods feed trend and volatility
const scoreHistoryPeriods = 12

// SessionService orchestrates the full reconciliation pipeline for one
// property and period: record loading, account normalization, the matching
// engine, tier classification, rule evaluation, health scoring, and the
// transactional generation replace.
type SessionService struct {
	sessions     reconciliation.SessionRepository
	records      reconciliation.RecordRepository
	rules        reconciliation.RuleRepository
	materiality  reconciliation.MaterialityRepository
	healthScores reconciliation.HealthScoreRepository
	tx           reconciliation.TransactionManager
	engine       *reconciliation.MatchingEngine
	evaluator    *reconciliation.RuleEvaluator
	mapper       *reconciliation.AccountMapper
	scores       ScoreCache
	publisher    shared.EventPublisher
	logger       *zap.Logger

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

// NewSessionService creates a SessionService
func NewSessionService(
	sessions reconciliation.SessionRepository,
	records reconciliation.RecordRepository,
	rules reconciliation.RuleRepository,
	materiality reconciliation.MaterialityRepository,
	healthScores reconciliation.HealthScoreRepository,
	tx reconciliation.TransactionManager,
	engine *reconciliation.MatchingEngine,
	evaluator *reconciliation.RuleEvaluator,
	mapper *reconciliation.AccountMapper,
	scores ScoreCache,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scores == nil {
		scores = NopScoreCache{}
	}
	return &SessionService{
		sessions:     sessions,
		records:      records,
		rules:        rules,
		materiality:  materiality,
		healthScores: healthScores,
		tx:           tx,
		engine:       engine,
		evaluator:    evaluator,
		mapper:       mapper,
		scores:       scores,
		publisher:    publisher,
		logger:       logger,
		cancels:      make(map[uuid.UUID]context.CancelFunc),
	}
}

// CreateSessionRequest represents a request to open a reconciliation session
type CreateSessionRequest struct {
	PropertyID uuid.UUID `json:"property_id" binding:"required"`
	PeriodID   string    `json:"period_id" binding:"required"`
}

// SessionResponse represents a session in API responses
type SessionResponse struct {
	ID          uuid.UUID  `json:"id"`
	PropertyID  uuid.UUID  `json:"property_id"`
	PeriodID    string     `json:"period_id"`
	Status      string     `json:"status"`
	Generation  int        `json:"generation"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RunRequest selects which strategies a run executes. A zero value runs
// everything.
type RunRequest struct {
	UseExact      *bool `json:"use_exact"`
	UseFuzzy      *bool `json:"use_fuzzy"`
	UseCalculated *bool `json:"use_calculated"`
	UseInferred   *bool `json:"use_inferred"`
	UseRules      *bool `json:"use_rules"`
}

func (r RunRequest) flags() reconciliation.StrategyFlags {
	flags := reconciliation.AllStrategies()
	apply := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&flags.UseExact, r.UseExact)
	apply(&flags.UseFuzzy, r.UseFuzzy)
	apply(&flags.UseCalculated, r.UseCalculated)
	apply(&flags.UseInferred, r.UseInferred)
	apply(&flags.UseRules, r.UseRules)
	return flags
}

// RunSummary is the outcome of a session run
type RunSummary struct {
	SessionID      uuid.UUID          `json:"session_id"`
	Generation     int                `json:"generation"`
	Status         string             `json:"status"`
	TotalRecords   int                `json:"total_records"`
	Matches        int                `json:"matches"`
	MatchesByTier  map[string]int     `json:"matches_by_tier"`
	AutoClosed     int                `json:"auto_closed"`
	Unmatched      int                `json:"unmatched"`
	Discrepancies  int                `json:"discrepancies"`
	RulesEvaluated int                `json:"rules_evaluated"`
	RulesPassed    int                `json:"rules_passed"`
	RulesFailed    int                `json:"rules_failed"`
	RulesSkipped   int                `json:"rules_skipped"`
	HealthScores   map[string]float64 `json:"health_scores"`
	Errors         []string           `json:"errors,omitempty"`
}

// CreateSession opens a session for a property and period. At most one
// session exists per pair; re-running an existing session replaces its
// results instead.
func (s *SessionService) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionResponse, error) {
	existing, err := s.sessions.FindByPropertyAndPeriod(ctx, req.PropertyID, req.PeriodID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS",
			fmt.Sprintf("A session for property %s period %s already exists", req.PropertyID, req.PeriodID))
	}

	session, err := reconciliation.NewReconciliationSession(req.PropertyID, req.PeriodID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return toSessionResponse(session), nil
}

// GetSession returns one session by ID
func (s *SessionService) GetSession(ctx context.Context, id uuid.UUID) (*SessionResponse, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Session not found")
	}
	return toSessionResponse(session), nil
}

// ListSessions returns sessions matching the filter
func (s *SessionService) ListSessions(ctx context.Context, filter shared.Filter) ([]SessionResponse, error) {
	sessions, err := s.sessions.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]SessionResponse, len(sessions))
	for i := range sessions {
		out[i] = *toSessionResponse(&sessions[i])
	}
	return out, nil
}

// Run executes the reconciliation pipeline synchronously and returns the run
// summary. A re-run opens a new generation whose results atomically replace
// the previous generation's.
func (s *SessionService) Run(ctx context.Context, sessionID uuid.UUID, req RunRequest) (*RunSummary, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Session not found")
	}
	if err := session.Start(); err != nil {
		if session.Status.IsActive() {
			return nil, shared.NewDomainError("CONCURRENCY_CONFLICT",
				"Session already has a run in flight")
		}
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Session is %s, a run cannot start", session.Status))
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.registerCancel(session.ID, cancel)
	defer s.unregisterCancel(session.ID)

	summary, err := s.run(runCtx, session, req.flags())
	if err != nil {
		s.seal(ctx, session, err)
		return nil, err
	}
	s.publishEvents(ctx, session)
	return summary, nil
}

// Cancel cooperatively cancels an in-flight run. Strategy and rule batches
// already running finish; no further batches start.
func (s *SessionService) Cancel(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	cancel, ok := s.cancels[sessionID]
	s.mu.Unlock()
	if !ok {
		return shared.NewDomainError("INVALID_STATE", "Session has no run in flight")
	}
	cancel()
	return nil
}

// run is the pipeline body. It operates on an already-started session.
func (s *SessionService) run(ctx context.Context, session *reconciliation.ReconciliationSession, flags reconciliation.StrategyFlags) (*RunSummary, error) {
	started := time.Now()

	workingSet, prior, err := s.loadRecords(ctx, session)
	if err != nil {
		return nil, shared.NewDomainError("DATA_UNAVAILABLE", err.Error())
	}

	configs, err := s.materiality.FindForProperty(ctx, session.PropertyID)
	if err != nil {
		return nil, shared.NewDomainError("DATA_UNAVAILABLE", err.Error())
	}
	resolver := reconciliation.NewMaterialityResolver(configs, s.logger)

	input := &reconciliation.StrategyInput{
		SessionID:   session.ID,
		Generation:  session.Generation,
		PropertyID:  session.PropertyID,
		PeriodID:    session.PeriodID,
		Records:     workingSet,
		Prior:       prior,
		Materiality: resolver,
		Mapper:      s.mapper,
		Claimed:     reconciliation.NewClaimSet(),
	}

	engineResult, err := s.engine.Run(ctx, input, flags)
	if err != nil {
		if ctx.Err() != nil {
			return s.sealCancelled(session)
		}
		return nil, err
	}
	s.classify(engineResult, resolver, session.PropertyID)

	var ruleResults []reconciliation.RuleEvaluationResult
	if flags.UseRules {
		if err := session.BeginRuleEvaluation(); err != nil {
			return nil, err
		}
		ruleResults, err = s.evaluateRules(ctx, session, workingSet, prior)
		if err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return s.sealCancelled(session)
		}
		engineResult.Discrepancies = append(engineResult.Discrepancies, s.ruleDiscrepancies(ctx, session, ruleResults)...)
	}

	scores := s.aggregateScores(ctx, session, engineResult, ruleResults)

	if err := session.Complete(); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, session, engineResult, ruleResults, scores); err != nil {
		return nil, shared.NewDomainError("PERSISTENCE_ERROR", err.Error())
	}
	s.cacheScores(ctx, session, scores)

	s.logger.Info("reconciliation run completed",
		zap.String("session_id", session.ID.String()),
		zap.Int("generation", session.Generation),
		zap.Int("matches", len(engineResult.Matches)),
		zap.Int("discrepancies", len(engineResult.Discrepancies)),
		zap.Int("rules", len(ruleResults)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return s.summarize(session, engineResult, ruleResults, scores), nil
}

// loadRecords pulls and normalizes the working set plus the prior period
func (s *SessionService) loadRecords(ctx context.Context, session *reconciliation.ReconciliationSession) (reconciliation.RecordSet, reconciliation.RecordSet, error) {
	raw, err := s.records.FindByPropertyAndPeriod(ctx, session.PropertyID, session.PeriodID)
	if err != nil {
		return nil, nil, err
	}
	if raw.Count() == 0 {
		return nil, nil, fmt.Errorf("no financial records for property %s period %s", session.PropertyID, session.PeriodID)
	}
	workingSet := s.normalize(raw)

	prior := reconciliation.RecordSet{}
	if priorPeriod, ok := reconciliation.PriorPeriod(session.PeriodID); ok {
		rawPrior, err := s.records.FindByPropertyAndPeriod(ctx, session.PropertyID, priorPeriod)
		if err != nil {
			// A missing prior period only disables the roll-forward checks.
			s.logger.Warn("prior period records unavailable",
				zap.String("period_id", priorPeriod),
				zap.Error(err),
			)
		} else {
			prior = s.normalize(rawPrior)
		}
	}
	return workingSet, prior, nil
}

func (s *SessionService) normalize(set reconciliation.RecordSet) reconciliation.RecordSet {
	normalized := make(reconciliation.RecordSet, len(set))
	for doc, records := range set {
		normalized[doc] = s.mapper.Normalize(records)
	}
	return normalized
}

// classify assigns a tier to every match. Tier 0 matches auto-approve.
func (s *SessionService) classify(result *reconciliation.EngineResult, resolver *reconciliation.MaterialityResolver, propertyID uuid.UUID) {
	for i := range result.Matches {
		match := &result.Matches[i]
		materiality := resolver.Resolve(propertyID, match.SourceDocumentType, match.CanonicalAccountID)

		risk := materiality.RiskClass
		if mapped := s.mapper.RiskClassFor(match.CanonicalAccountID); mapped == reconciliation.RiskClassCritical {
			risk = mapped
		}

		tier := reconciliation.ClassifyTier(reconciliation.TierInput{
			Confidence:           match.Confidence,
			AmountDifference:     match.AmountDifference,
			MaterialityThreshold: materiality.ThresholdFor(match.SourceAmount),
			RiskClass:            risk,
			SourceAmount:         match.SourceAmount,
			TargetAmount:         match.TargetAmount,
		})
		match.Tier = tier.Tier
		match.SuggestedResolution = tier.SuggestedResolution
		if tier.Tier == reconciliation.TierAutoClose {
			_ = match.Approve("")
		}
	}
}

// evaluateRules loads the active rule versions in scope and evaluates them
func (s *SessionService) evaluateRules(ctx context.Context, session *reconciliation.ReconciliationSession, workingSet, prior reconciliation.RecordSet) ([]reconciliation.RuleEvaluationResult, error) {
	active, err := s.rules.FindActive(ctx, session.PropertyID)
	if err != nil {
		return nil, shared.NewDomainError("DATA_UNAVAILABLE", err.Error())
	}
	applicable := make([]reconciliation.CalculatedRule, 0, len(active))
	for _, rule := range active {
		if rule.AppliesTo(session.PropertyID, workingSet) {
			applicable = append(applicable, rule)
		}
	}
	resolve := reconciliation.NewRecordFieldResolver(workingSet, prior)
	return s.evaluator.Evaluate(ctx, session.ID, session.Generation, applicable, resolve), nil
}

// ruleDiscrepancies converts failed rules into discrepancies. Covenant-style
// rules grade as covenant violations; equality ties as formula violations.
func (s *SessionService) ruleDiscrepancies(ctx context.Context, session *reconciliation.ReconciliationSession, results []reconciliation.RuleEvaluationResult) []reconciliation.Discrepancy {
	byID := s.activeRulesByID(ctx, session.PropertyID)
	var out []reconciliation.Discrepancy
	for _, result := range results {
		if result.Status != reconciliation.RuleStatusFail {
			continue
		}
		dType := reconciliation.DiscrepancyTypeFormulaViolation
		severity := reconciliation.SeverityMedium
		if rule, ok := byID[result.RuleID]; ok {
			severity = rule.Severity
			if rule.IsCovenant() {
				dType = reconciliation.DiscrepancyTypeCovenantViolation
			}
		}
		d := reconciliation.NewDiscrepancy(session.ID, session.Generation, dType, severity,
			fmt.Sprintf("Rule %s v%d failed: expected %s, actual %s",
				result.RuleID, result.Version,
				result.ExpectedValue.StringFixed(2), result.ActualValue.StringFixed(2)))
		d.Amount = result.Difference
		out = append(out, d)
	}
	return out
}

func (s *SessionService) activeRulesByID(ctx context.Context, propertyID uuid.UUID) map[string]reconciliation.CalculatedRule {
	byID := make(map[string]reconciliation.CalculatedRule)
	active, err := s.rules.FindActive(ctx, propertyID)
	if err != nil {
		return byID
	}
	for _, rule := range active {
		byID[rule.RuleID] = rule
	}
	return byID
}

// aggregateScores computes the health score for every persona
func (s *SessionService) aggregateScores(ctx context.Context, session *reconciliation.ReconciliationSession, result *reconciliation.EngineResult, ruleResults []reconciliation.RuleEvaluationResult) []reconciliation.HealthScore {
	personas := []reconciliation.Persona{
		reconciliation.PersonaController,
		reconciliation.PersonaAssetManager,
		reconciliation.PersonaLender,
	}
	scores := make([]reconciliation.HealthScore, 0, len(personas))
	for _, persona := range personas {
		priorScores := s.priorScores(ctx, session, persona)

		aggregator := reconciliation.NewHealthScoreAggregator(reconciliation.DefaultHealthScoreConfig(persona))
		scores = append(scores, aggregator.Score(session, reconciliation.HealthInputs{
			Matches:       result.Matches,
			Discrepancies: result.Discrepancies,
			RuleResults:   ruleResults,
			PriorScores:   priorScores,
		}))
	}
	return scores
}

// priorScores reads the prior-period score trendline, preferring the score
// cache and falling back to the repository on a miss or cache error
func (s *SessionService) priorScores(ctx context.Context, session *reconciliation.ReconciliationSession, persona reconciliation.Persona) []float64 {
	cached, err := s.scores.History(ctx, session.PropertyID, session.PeriodID, persona, scoreHistoryPeriods)
	if err != nil {
		s.logger.Warn("health score cache read failed",
			zap.String("persona", string(persona)),
			zap.Error(err),
		)
	}
	if len(cached) > 0 {
		return cached
	}

	history, err := s.healthScores.History(ctx, session.PropertyID, persona, session.PeriodID, scoreHistoryPeriods)
	if err != nil {
		s.logger.Warn("health score history unavailable",
			zap.String("persona", string(persona)),
			zap.Error(err),
		)
		return nil
	}
	priorScores := make([]float64, len(history))
	for i, h := range history {
		priorScores[i] = h.Score
	}
	return priorScores
}

// persist writes the run output and deletes the previous generation inside a
// single transaction, so readers switch generations atomically
func (s *SessionService) persist(ctx context.Context, session *reconciliation.ReconciliationSession, result *reconciliation.EngineResult, ruleResults []reconciliation.RuleEvaluationResult, scores []reconciliation.HealthScore) error {
	return s.tx.InTransaction(ctx, func(repos reconciliation.TxRepositories) error {
		generation := session.Generation
		if err := repos.Matches().DeleteByGeneration(ctx, session.ID, generation); err != nil {
			return err
		}
		if err := repos.Discrepancies().DeleteByGeneration(ctx, session.ID, generation); err != nil {
			return err
		}
		if err := repos.RuleResults().DeleteByGeneration(ctx, session.ID, generation); err != nil {
			return err
		}
		if err := repos.HealthScores().DeleteByGeneration(ctx, session.ID, generation); err != nil {
			return err
		}
		if err := repos.Matches().SaveBatch(ctx, result.Matches); err != nil {
			return err
		}
		if err := repos.Discrepancies().SaveBatch(ctx, result.Discrepancies); err != nil {
			return err
		}
		if err := repos.RuleResults().SaveBatch(ctx, ruleResults); err != nil {
			return err
		}
		if err := repos.HealthScores().SaveBatch(ctx, scores); err != nil {
			return err
		}
		return repos.Sessions().Save(ctx, session)
	})
}

func (s *SessionService) cacheScores(ctx context.Context, session *reconciliation.ReconciliationSession, scores []reconciliation.HealthScore) {
	for _, score := range scores {
		if err := s.scores.Put(ctx, session.PropertyID, session.PeriodID, score.Persona, score.Score); err != nil {
			s.logger.Warn("health score cache write failed", zap.Error(err))
		}
	}
}

// seal marks the session failed and persists the terminal state
func (s *SessionService) seal(ctx context.Context, session *reconciliation.ReconciliationSession, cause error) {
	if failErr := session.Fail(cause.Error()); failErr != nil {
		return
	}
	if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
		s.logger.Error("failed to persist failed session",
			zap.String("session_id", session.ID.String()),
			zap.Error(saveErr),
		)
	}
	s.publishEvents(ctx, session)
}

// sealCancelled marks the session cancelled and reports a summary instead of
// an error: cancellation is a legitimate outcome, not a failure
func (s *SessionService) sealCancelled(session *reconciliation.ReconciliationSession) (*RunSummary, error) {
	if err := session.Cancel(); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(context.WithoutCancel(context.Background()), session); err != nil {
		s.logger.Error("failed to persist cancelled session", zap.Error(err))
	}
	return &RunSummary{
		SessionID:  session.ID,
		Generation: session.Generation,
		Status:     session.Status.String(),
	}, nil
}

func (s *SessionService) summarize(session *reconciliation.ReconciliationSession, result *reconciliation.EngineResult, ruleResults []reconciliation.RuleEvaluationResult, scores []reconciliation.HealthScore) *RunSummary {
	summary := &RunSummary{
		SessionID:     session.ID,
		Generation:    session.Generation,
		Status:        session.Status.String(),
		TotalRecords:  result.TotalRecords,
		Matches:       len(result.Matches),
		MatchesByTier: make(map[string]int),
		Unmatched:     result.Unmatched,
		Discrepancies: len(result.Discrepancies),
		HealthScores:  make(map[string]float64),
	}
	for _, match := range result.Matches {
		summary.MatchesByTier[match.Tier.String()]++
		if match.Status == reconciliation.MatchStatusApproved {
			summary.AutoClosed++
		}
	}
	summary.RulesEvaluated = len(ruleResults)
	for _, r := range ruleResults {
		switch r.Status {
		case reconciliation.RuleStatusPass:
			summary.RulesPassed++
		case reconciliation.RuleStatusFail:
			summary.RulesFailed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("rule %s v%d failed", r.RuleID, r.Version))
		case reconciliation.RuleStatusSkipped:
			summary.RulesSkipped++
		}
	}
	for _, score := range scores {
		summary.HealthScores[string(score.Persona)] = score.Score
	}
	return summary
}

func (s *SessionService) registerCancel(id uuid.UUID, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = cancel
}

func (s *SessionService) unregisterCancel(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}

func (s *SessionService) publishEvents(ctx context.Context, session *reconciliation.ReconciliationSession) {
	if s.publisher == nil {
		return
	}
	for _, event := range session.GetDomainEvents() {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("domain event publish failed",
				zap.String("event_type", event.EventType()),
				zap.Error(err),
			)
		}
	}
	session.ClearDomainEvents()
}

func toSessionResponse(session *reconciliation.ReconciliationSession) *SessionResponse {
	return &SessionResponse{
		ID:          session.ID,
		PropertyID:  session.PropertyID,
		PeriodID:    session.PeriodID,
		Status:      session.Status.String(),
		Generation:  session.Generation,
		StartedAt:   session.StartedAt,
		CompletedAt: session.CompletedAt,
		LastError:   session.LastError,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
}
