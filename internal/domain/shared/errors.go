package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// Reconciliation error taxonomy. These degrade gracefully where the component
// can fall back or skip instead of aborting the session.
var (
	ErrConfiguration     = NewDomainError("CONFIGURATION_ERROR", "Missing or invalid configuration, falling back to defaults")
	ErrDataUnavailable   = NewDomainError("DATA_UNAVAILABLE", "Required document type is not available for the period")
	ErrFormulaEvaluation = NewDomainError("FORMULA_EVALUATION_ERROR", "Rule formula could not be evaluated")
	ErrPersistence       = NewDomainError("PERSISTENCE_ERROR", "Failed to persist reconciliation results")
)
