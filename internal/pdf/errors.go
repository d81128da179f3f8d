package pdf

import (
	"errors"
	"fmt"
)

// Common PDF processing errors
var (
	// ErrInvalidPDF marks a file that is missing, empty or not a PDF.
	// The document is rejected before any page enters the pipeline.
	ErrInvalidPDF = errors.New("invalid or unreadable PDF file")

	// ErrSplitFailed is returned when a document cannot be decomposed
	// into single-page files.
	ErrSplitFailed = errors.New("PDF split failed")

	// ErrRasterizationFailed is returned when a page cannot be rendered
	// to an image. The affected page fails; other pages are unaffected.
	ErrRasterizationFailed = errors.New("page rasterization failed")
)

// PDFError wraps errors with context about the PDF operation that failed.
type PDFError struct {
	// Op is the operation that failed (e.g., "Split", "Rasterize").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *PDFError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("pdf: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("pdf: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *PDFError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *PDFError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapPDFError wraps an error as a PDFError if it isn't already one.
func WrapPDFError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var pdfErr *PDFError
	if errors.As(err, &pdfErr) {
		return err // Already wrapped
	}

	return &PDFError{Op: op, Err: err, Details: details}
}
