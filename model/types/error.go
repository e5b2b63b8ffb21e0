package types

import (
	"errors"
	"fmt"
)

// Error kinds recognised across the close pipelines. Steps wrap their internal
// failures with one of these so callers can classify the outcome with
// errors.Is without matching message strings.
var (
	// ErrExtraction indicates a data-source collaborator failed to return data.
	ErrExtraction = errors.New("extraction error")

	// ErrValidation indicates a computed journal entry violated balance or
	// line invariants.
	ErrValidation = errors.New("validation error")

	// ErrReconciliation indicates an internal failure of the matching logic.
	ErrReconciliation = errors.New("reconciliation error")

	// ErrOracle indicates the classification call failed or returned a
	// malformed response. It is recovered locally via fallback classification
	// and never surfaces as a run failure on its own.
	ErrOracle = errors.New("oracle error")

	// ErrConfiguration indicates an unusable pipeline setup: unknown branch
	// key, missing required metadata, malformed graph. Fatal, aborts the run.
	ErrConfiguration = errors.New("configuration error")
)

// NewExtractionError wraps a collaborator failure for the named source.
func NewExtractionError(source string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrExtraction, source, err)
}

// NewValidationError reports one or more journal entry violations.
func NewValidationError(detail string) error {
	return fmt.Errorf("%w: %s", ErrValidation, detail)
}

// NewReconciliationError wraps an internal matching failure.
func NewReconciliationError(err error) error {
	return fmt.Errorf("%w: %v", ErrReconciliation, err)
}

// NewOracleError wraps a failed or unparseable classification call.
func NewOracleError(err error) error {
	return fmt.Errorf("%w: %v", ErrOracle, err)
}

// NewConfigurationError reports an unusable pipeline setup.
func NewConfigurationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
