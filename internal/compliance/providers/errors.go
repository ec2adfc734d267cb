package providers

import (
	"errors"
	"fmt"
)

// ErrorCategory normalizes provider failures.
type ErrorCategory string

const (
	// ErrorPanic indicates the provider panicked and was recovered.
	ErrorPanic ErrorCategory = "panic"

	// ErrorConfig indicates the jurisdiction config is invalid.
	ErrorConfig ErrorCategory = "config"

	// ErrorInternal indicates an unexpected internal error
	ErrorInternal ErrorCategory = "internal"
)

// ProviderError wraps provider failures with normalized categorization.
// The message is for logs; callers surface a generic internal error.
type ProviderError struct {
	Category     ErrorCategory
	Jurisdiction string
	Message      string
	Underlying   error
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.Jurisdiction, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.Jurisdiction, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

func NewProviderError(category ErrorCategory, jurisdiction, message string, underlying error) *ProviderError {
	return &ProviderError{
		Category:     category,
		Jurisdiction: jurisdiction,
		Message:      message,
		Underlying:   underlying,
	}
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// Recovered converts a recovered panic value into a ProviderError.
func Recovered(jurisdiction string, v any) *ProviderError {
	var underlying error
	if err, ok := v.(error); ok {
		underlying = err
	} else {
		underlying = fmt.Errorf("%v", v)
	}
	return NewProviderError(ErrorPanic, jurisdiction, "provider panicked", underlying)
}
