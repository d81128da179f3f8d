package brands

import (
	"errors"
	"fmt"
)

// Common brand extraction errors
var (
	// ErrCapabilityUnavailable is returned when the language model
	// call itself fails (timeout, transport error, API outage). This
	// marks the page failed, unlike a malformed answer.
	ErrCapabilityUnavailable = errors.New("language model capability unavailable")

	// ErrMalformedResponse marks an answer the extractor could not
	// parse. It is logged for diagnosis but surfaces as zero brands
	// detected, not as a page failure: a prompt/schema issue is not
	// retryable at this layer.
	ErrMalformedResponse = errors.New("malformed language model response")

	// ErrMissingAPIKey is returned when OPENAI_API_KEY is not configured.
	ErrMissingAPIKey = errors.New("missing OpenAI credentials: set OPENAI_API_KEY environment variable")
)

// BrandError wraps errors with context about the extraction failure.
type BrandError struct {
	// Op is the operation that failed (e.g., "ExtractBrands").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *BrandError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("brands: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("brands: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *BrandError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *BrandError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapBrandError wraps an error as a BrandError if it isn't already one.
func WrapBrandError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var brandErr *BrandError
	if errors.As(err, &brandErr) {
		return err // Already wrapped
	}

	return &BrandError{Op: op, Err: err, Details: details}
}
