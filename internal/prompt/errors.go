package prompt

import "errors"

// Collaborator failures. Callers wrap the underlying cause, e.g.
// fmt.Errorf("%w: %w", ErrExecution, err), so both stay inspectable.
var (
	ErrExecution      = errors.New("prompt execution failed")
	ErrEvaluation     = errors.New("output evaluation failed")
	ErrCategorization = errors.New("prompt categorization failed")
	ErrSearch         = errors.New("prompt search failed")

	// ErrInvalidCredential is the credential sub-case of ErrExecution. Errors
	// carrying it also match ErrExecution.
	ErrInvalidCredential = errors.New("invalid API credential")
)

// Local errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidVersion   = errors.New("invalid version")
	ErrAlreadyEvaluated = errors.New("test result already evaluated")
	ErrBusy             = errors.New("operation already in progress")
)
