package reconciliation

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/reims/backend/internal/domain/reconciliation"
	"github.com/reims/backend/internal/domain/shared"
)

// In-memory repository fakes. They implement just enough behavior for the
// service tests: storage by ID, the lookup methods the services call, and
// generation-scoped deletes.

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]reconciliation.ReconciliationSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]reconciliation.ReconciliationSession)}
}

func (r *fakeSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*reconciliation.ReconciliationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		copied := s
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindAll(_ context.Context, _ shared.Filter) ([]reconciliation.ReconciliationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reconciliation.ReconciliationSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeSessionRepo) Save(_ context.Context, s *reconciliation.ReconciliationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.sessions)), nil
}

func (r *fakeSessionRepo) FindByPropertyAndPeriod(_ context.Context, propertyID uuid.UUID, periodID string) (*reconciliation.ReconciliationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.PropertyID == propertyID && s.PeriodID == periodID {
			copied := s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindActive(ctx context.Context, propertyID uuid.UUID, periodID string) (*reconciliation.ReconciliationSession, error) {
	s, err := r.FindByPropertyAndPeriod(ctx, propertyID, periodID)
	if err != nil || s == nil || !s.Status.IsActive() {
		return nil, err
	}
	return s, nil
}

type fakeRecordRepo struct {
	mu      sync.Mutex
	records []reconciliation.FinancialRecord
}

func (r *fakeRecordRepo) FindByID(_ context.Context, id uuid.UUID) (*reconciliation.FinancialRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == id {
			copied := r.records[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRecordRepo) FindAll(_ context.Context, _ shared.Filter) ([]reconciliation.FinancialRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reconciliation.FinancialRecord(nil), r.records...), nil
}

func (r *fakeRecordRepo) Save(_ context.Context, record *reconciliation.FinancialRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeRecordRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeRecordRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.records)), nil
}

func (r *fakeRecordRepo) FindByPropertyAndPeriod(_ context.Context, propertyID uuid.UUID, periodID string) (reconciliation.RecordSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []reconciliation.FinancialRecord
	for _, record := range r.records {
		if record.PropertyID == propertyID && record.PeriodID == periodID {
			matched = append(matched, record)
		}
	}
	return reconciliation.NewRecordSet(matched), nil
}

func (r *fakeRecordRepo) SaveBatch(_ context.Context, records []reconciliation.FinancialRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return nil
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	matches map[uuid.UUID]reconciliation.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[uuid.UUID]reconciliation.Match)}
}

func (r *fakeMatchRepo) FindByID(_ context.Context, id uuid.UUID) (*reconciliation.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.matches[id]; ok {
		copied := m
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeMatchRepo) FindAll(_ context.Context, _ shared.Filter) ([]reconciliation.Match, error) {
	return r.all(), nil
}

func (r *fakeMatchRepo) Save(_ context.Context, m *reconciliation.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[m.ID] = *m
	return nil
}

func (r *fakeMatchRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matches, id)
	return nil
}

func (r *fakeMatchRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	return int64(len(r.all())), nil
}

func (r *fakeMatchRepo) FindBySession(_ context.Context, sessionID uuid.UUID, generation int, filter reconciliation.MatchFilter) (shared.Paginated[reconciliation.Match], error) {
	var items []reconciliation.Match
	for _, m := range r.all() {
		if m.SessionID != sessionID || m.Generation != generation {
			continue
		}
		if filter.Tier != nil && m.Tier != *filter.Tier {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		if filter.MatchType != nil && m.MatchType != *filter.MatchType {
			continue
		}
		items = append(items, m)
	}
	return shared.NewPaginated(items, int64(len(items)), 1, 20), nil
}

func (r *fakeMatchRepo) SaveBatch(_ context.Context, matches []reconciliation.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range matches {
		r.matches[m.ID] = m
	}
	return nil
}

func (r *fakeMatchRepo) DeleteByGeneration(_ context.Context, sessionID uuid.UUID, beforeGeneration int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.matches {
		if m.SessionID == sessionID && m.Generation < beforeGeneration {
			delete(r.matches, id)
		}
	}
	return nil
}

func (r *fakeMatchRepo) all() []reconciliation.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reconciliation.Match, 0, len(r.matches))
	for _, m := range r.matches {
		out = append(out, m)
	}
	return out
}

type fakeDiscrepancyRepo struct {
	mu            sync.Mutex
	discrepancies map[uuid.UUID]reconciliation.Discrepancy
}

func newFakeDiscrepancyRepo() *fakeDiscrepancyRepo {
	return &fakeDiscrepancyRepo{discrepancies: make(map[uuid.UUID]reconciliation.Discrepancy)}
}

func (r *fakeDiscrepancyRepo) FindByID(_ context.Context, id uuid.UUID) (*reconciliation.Discrepancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.discrepancies[id]; ok {
		copied := d
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeDiscrepancyRepo) FindAll(_ context.Context, _ shared.Filter) ([]reconciliation.Discrepancy, error) {
	return r.all(), nil
}

func (r *fakeDiscrepancyRepo) Save(_ context.Context, d *reconciliation.Discrepancy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discrepancies[d.ID] = *d
	return nil
}

func (r *fakeDiscrepancyRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.discrepancies, id)
	return nil
}

func (r *fakeDiscrepancyRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	return int64(len(r.all())), nil
}

func (r *fakeDiscrepancyRepo) FindBySession(_ context.Context, sessionID uuid.UUID, generation int, filter reconciliation.DiscrepancyFilter) (shared.Paginated[reconciliation.Discrepancy], error) {
	var items []reconciliation.Discrepancy
	for _, d := range r.all() {
		if d.SessionID != sessionID || d.Generation != generation {
			continue
		}
		if filter.Type != nil && d.Type != *filter.Type {
			continue
		}
		if filter.Severity != nil && d.Severity != *filter.Severity {
			continue
		}
		if filter.OpenOnly && !d.Status.IsOpen() {
			continue
		}
		items = append(items, d)
	}
	return shared.NewPaginated(items, int64(len(items)), 1, 20), nil
}

func (r *fakeDiscrepancyRepo) SaveBatch(_ context.Context, discrepancies []reconciliation.Discrepancy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range discrepancies {
		r.discrepancies[d.ID] = d
	}
	return nil
}

func (r *fakeDiscrepancyRepo) DeleteByGeneration(_ context.Context, sessionID uuid.UUID, beforeGeneration int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, d := range r.discrepancies {
		if d.SessionID == sessionID && d.Generation < beforeGeneration {
			delete(r.discrepancies, id)
		}
	}
	return nil
}

func (r *fakeDiscrepancyRepo) all() []reconciliation.Discrepancy {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reconciliation.Discrepancy, 0, len(r.discrepancies))
	for _, d := range r.discrepancies {
		out = append(out, d)
	}
	return out
}

type fakeRuleRepo struct {
	mu    sync.Mutex
	rules []reconciliation.CalculatedRule
}

func (r *fakeRuleRepo) FindByID(_ context.Context, id uuid.UUID) (*reconciliation.CalculatedRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == id {
			copied := r.rules[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRuleRepo) FindAll(_ context.Context, _ shared.Filter) ([]reconciliation.CalculatedRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reconciliation.CalculatedRule(nil), r.rules...), nil
}

func (r *fakeRuleRepo) Save(_ context.Context, rule *reconciliation.CalculatedRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == rule.ID {
			r.rules[i] = *rule
			return nil
		}
	}
	r.rules = append(r.rules, *rule)
	return nil
}

func (r *fakeRuleRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == id {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeRuleRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rules)), nil
}

func (r *fakeRuleRepo) FindActive(_ context.Context, propertyID uuid.UUID) ([]reconciliation.CalculatedRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []reconciliation.CalculatedRule
	for _, rule := range r.rules {
		if !rule.Active {
			continue
		}
		if rule.PropertyID != nil && *rule.PropertyID != propertyID {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r *fakeRuleRepo) FindVersions(_ context.Context, ruleID string) ([]reconciliation.CalculatedRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []reconciliation.CalculatedRule
	for _, rule := range r.rules {
		if rule.RuleID == ruleID {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

type fakeMaterialityRepo struct {
	mu      sync.Mutex
	configs []reconciliation.MaterialityConfig
}

func (r *fakeMaterialityRepo) FindForProperty(_ context.Context, propertyID uuid.UUID) ([]reconciliation.MaterialityConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []reconciliation.MaterialityConfig
	for _, cfg := range r.configs {
		if cfg.Scope == reconciliation.MaterialityScopeProperty && cfg.PropertyID != propertyID {
			continue
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (r *fakeMaterialityRepo) Save(_ context.Context, config *reconciliation.MaterialityConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, *config)
	return nil
}

type fakeRuleResultRepo struct {
	mu      sync.Mutex
	results []reconciliation.RuleEvaluationResult
}

func (r *fakeRuleResultRepo) FindBySession(_ context.Context, sessionID uuid.UUID, generation int) ([]reconciliation.RuleEvaluationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []reconciliation.RuleEvaluationResult
	for _, result := range r.results {
		if result.SessionID == sessionID && result.Generation == generation {
			out = append(out, result)
		}
	}
	return out, nil
}

func (r *fakeRuleResultRepo) SaveBatch(_ context.Context, results []reconciliation.RuleEvaluationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, results...)
	return nil
}

func (r *fakeRuleResultRepo) DeleteByGeneration(_ context.Context, sessionID uuid.UUID, beforeGeneration int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.results[:0]
	for _, result := range r.results {
		if result.SessionID == sessionID && result.Generation < beforeGeneration {
			continue
		}
		kept = append(kept, result)
	}
	r.results = kept
	return nil
}

type fakeHealthScoreRepo struct {
	mu           sync.Mutex
	scores       []reconciliation.HealthScore
	historyReads int
}

func (r *fakeHealthScoreRepo) FindBySession(_ context.Context, sessionID uuid.UUID, persona reconciliation.Persona) (*reconciliation.HealthScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, score := range r.scores {
		if score.SessionID == sessionID && score.Persona == persona {
			copied := score
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeHealthScoreRepo) History(_ context.Context, propertyID uuid.UUID, persona reconciliation.Persona, before string, limit int) ([]reconciliation.HealthScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historyReads++
	var out []reconciliation.HealthScore
	for _, score := range r.scores {
		if score.PropertyID == propertyID && score.Persona == persona && score.PeriodID < before {
			out = append(out, score)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodID < out[j].PeriodID })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *fakeHealthScoreRepo) SaveBatch(_ context.Context, scores []reconciliation.HealthScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = append(r.scores, scores...)
	return nil
}

func (r *fakeHealthScoreRepo) DeleteByGeneration(_ context.Context, sessionID uuid.UUID, beforeGeneration int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.scores[:0]
	for _, score := range r.scores {
		if score.SessionID == sessionID && score.Generation < beforeGeneration {
			continue
		}
		kept = append(kept, score)
	}
	r.scores = kept
	return nil
}

// fakeTxRepos runs the transaction body directly against the fakes
type fakeTxRepos struct {
	sessions      *fakeSessionRepo
	matches       *fakeMatchRepo
	discrepancies *fakeDiscrepancyRepo
	ruleResults   *fakeRuleResultRepo
	healthScores  *fakeHealthScoreRepo
}

func (f *fakeTxRepos) Sessions() reconciliation.SessionRepository          { return f.sessions }
func (f *fakeTxRepos) Matches() reconciliation.MatchRepository             { return f.matches }
func (f *fakeTxRepos) Discrepancies() reconciliation.DiscrepancyRepository { return f.discrepancies }
func (f *fakeTxRepos) RuleResults() reconciliation.RuleResultRepository    { return f.ruleResults }
func (f *fakeTxRepos) HealthScores() reconciliation.HealthScoreRepository  { return f.healthScores }

type fakeTxManager struct {
	repos *fakeTxRepos
}

func (m *fakeTxManager) InTransaction(_ context.Context, fn func(reconciliation.TxRepositories) error) error {
	return fn(m.repos)
}

type fakeScoreCache struct {
	mu           sync.Mutex
	puts         map[string]float64
	history      map[string][]float64
	historyReads int
	err          error
}

func newFakeScoreCache() *fakeScoreCache {
	return &fakeScoreCache{
		puts:    make(map[string]float64),
		history: make(map[string][]float64),
	}
}

func scoreCacheKey(propertyID uuid.UUID, persona reconciliation.Persona) string {
	return propertyID.String() + ":" + string(persona)
}

func (c *fakeScoreCache) Put(_ context.Context, propertyID uuid.UUID, periodID string, persona reconciliation.Persona, score float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.puts[scoreCacheKey(propertyID, persona)+":"+periodID] = score
	return nil
}

func (c *fakeScoreCache) History(_ context.Context, propertyID uuid.UUID, _ string, persona reconciliation.Persona, _ int) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.historyReads++
	if c.err != nil {
		return nil, c.err
	}
	return c.history[scoreCacheKey(propertyID, persona)], nil
}

type capturedEvents struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (c *capturedEvents) Publish(_ context.Context, events ...shared.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	return nil
}

func (c *capturedEvents) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.EventType()
	}
	return out
}
