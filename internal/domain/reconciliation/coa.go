package reconciliation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

// RiskClass classifies how sensitive an account is to misstatement
type RiskClass string

const (
	RiskClassLow      RiskClass = "low"
	RiskClassMedium   RiskClass = "medium"
	RiskClassHigh     RiskClass = "high"
	RiskClassCritical RiskClass = "critical"
)

// IsValid checks if the risk class is valid
func (r RiskClass) IsValid() bool {
	switch r {
	case RiskClassLow, RiskClassMedium, RiskClassHigh, RiskClassCritical:
		return true
	}
	return false
}

// String returns the string representation
func (r RiskClass) String() string {
	return string(r)
}

// MappingMethod identifies how a raw account resolved to a canonical account
type MappingMethod string

const (
	MappingMethodExactCode MappingMethod = "exact_code"
	MappingMethodSynonym   MappingMethod = "synonym"
	MappingMethodLearned   MappingMethod = "learned"
	MappingMethodUnmapped  MappingMethod = "unmapped"
)

// CanonicalAccount is a normalized chart-of-accounts identity
type CanonicalAccount struct {
	ID            string
	Name          string
	StatementType DocumentType
	RiskClass     RiskClass
}

// LearnedMapping is a historically observed raw-name to canonical mapping with
// an accumulated confidence
type LearnedMapping struct {
	CanonicalAccountID string
	Confidence         float64
}

// MappingResult is the outcome of resolving one raw account
type MappingResult struct {
	CanonicalAccountID string
	Confidence         float64
	Method             MappingMethod
}

// Confidence assigned per resolution method. Synonym hits are curated so they
// rank just below an exact code match; learned mappings carry their own weight.
const (
	exactCodeConfidence = 1.0
	synonymConfidence   = 0.95
)

// AccountMapper resolves raw account codes and names to canonical accounts.
// It is read-only: learning new synonyms is owned by the configuration store.
type AccountMapper struct {
	byCode   map[string]string         // account code -> canonical ID
	synonyms map[string]string         // normalized name -> canonical ID
	learned  map[string]LearnedMapping // normalized name -> learned mapping
	accounts map[string]CanonicalAccount
	fold     cases.Caser
}

// NewAccountMapper creates a mapper over the given canonical account registry
func NewAccountMapper(accounts []CanonicalAccount) *AccountMapper {
	m := &AccountMapper{
		byCode:   make(map[string]string),
		synonyms: make(map[string]string),
		learned:  make(map[string]LearnedMapping),
		accounts: make(map[string]CanonicalAccount, len(accounts)),
		fold:     cases.Fold(),
	}
	for _, a := range accounts {
		m.accounts[a.ID] = a
		// The canonical ID doubles as the account code and the display name
		// resolves as its own synonym, so a registry is usable before any
		// curated synonyms are added.
		m.byCode[a.ID] = a.ID
		if a.Name != "" {
			m.synonyms[m.normalize(a.Name)] = a.ID
		}
	}
	return m
}

// RegisterCode registers an exact account-code mapping
func (m *AccountMapper) RegisterCode(code, canonicalID string) {
	m.byCode[strings.TrimSpace(code)] = canonicalID
}

// RegisterSynonym registers a curated name synonym
func (m *AccountMapper) RegisterSynonym(name, canonicalID string) {
	m.synonyms[m.normalize(name)] = canonicalID
}

// RegisterLearned registers a historically learned mapping with its confidence
func (m *AccountMapper) RegisterLearned(name, canonicalID string, confidence float64) {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	m.learned[m.normalize(name)] = LearnedMapping{
		CanonicalAccountID: canonicalID,
		Confidence:         confidence,
	}
}

// Account returns the canonical account for an ID
func (m *AccountMapper) Account(canonicalID string) (CanonicalAccount, bool) {
	a, ok := m.accounts[canonicalID]
	return a, ok
}

// Map resolves a raw account code and name to a canonical account.
// Resolution order: exact code, synonym table, learned mapping, unmapped.
func (m *AccountMapper) Map(code, name string) MappingResult {
	if id, ok := m.byCode[strings.TrimSpace(code)]; ok {
		return MappingResult{CanonicalAccountID: id, Confidence: exactCodeConfidence, Method: MappingMethodExactCode}
	}
	key := m.normalize(name)
	if id, ok := m.synonyms[key]; ok {
		return MappingResult{CanonicalAccountID: id, Confidence: synonymConfidence, Method: MappingMethodSynonym}
	}
	if learned, ok := m.learned[key]; ok {
		return MappingResult{
			CanonicalAccountID: learned.CanonicalAccountID,
			Confidence:         learned.Confidence,
			Method:             MappingMethodLearned,
		}
	}
	return MappingResult{Method: MappingMethodUnmapped}
}

// Normalize applies the mapper's name normalization to a set of records,
// returning normalized copies. The input slice is never mutated.
func (m *AccountMapper) Normalize(records []FinancialRecord) []FinancialRecord {
	normalized := make([]FinancialRecord, len(records))
	for i, r := range records {
		result := m.Map(r.AccountCode, r.AccountName)
		r.CanonicalAccountID = result.CanonicalAccountID
		r.MappingConfidence = result.Confidence
		normalized[i] = r
	}
	return normalized
}

// RiskClassFor returns the risk class of a canonical account, defaulting to
// medium for unknown or unmapped accounts
func (m *AccountMapper) RiskClassFor(canonicalID string) RiskClass {
	if a, ok := m.accounts[canonicalID]; ok && a.RiskClass.IsValid() {
		return a.RiskClass
	}
	return RiskClassMedium
}

// normalize folds case and width and collapses whitespace so that extracted
// names like "NET  operating income" and "Net Operating Income" key identically
func (m *AccountMapper) normalize(name string) string {
	folded := m.fold.String(width.Fold.String(name))
	return strings.Join(strings.Fields(folded), " ")
}
