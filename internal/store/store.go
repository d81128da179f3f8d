// Package store persists documents, per-page brand detections,
// processing status snapshots and review flags.
//
// Review flags are keyed by (page number, brand name) independently of
// pipeline runs, so a human's verification work survives document
// reprocessing.
package store

import (
	"context"
	"errors"

	"brandscan/internal/models"
)

// ErrDocumentNotFound is returned when the requested document does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// ErrBrandNotFound is returned when a review flag is toggled for a
// brand that was never detected on the given page.
var ErrBrandNotFound = errors.New("brand not found on page")

// ResultStore is the persistence collaborator consumed by the
// orchestrator and the CLI.
type ResultStore interface {
	// CreateDocument stores a new document record.
	CreateDocument(ctx context.Context, doc *models.Document) error

	// GetDocument returns a document with its per-page results and
	// review flags folded in.
	GetDocument(ctx context.Context, id string) (*models.Document, error)

	// ListDocuments returns all stored documents, newest first,
	// without review flags folded in.
	ListDocuments(ctx context.Context) ([]*models.Document, error)

	// DeleteDocument removes a document together with its progress
	// snapshot and review flags.
	DeleteDocument(ctx context.Context, id string) error

	// UpdateDocumentStatus sets the document's overall status.
	UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error

	// SaveBrandDetection stores one page's terminal result.
	SaveBrandDetection(ctx context.Context, id string, detection models.BrandDetection) error

	// SaveProcessingStatus stores a progress snapshot for pollers.
	SaveProcessingStatus(ctx context.Context, status models.ProcessingStatus) error

	// GetReviewStatus returns all review flags of a document.
	GetReviewStatus(ctx context.Context, id string) (map[models.ReviewKey]bool, error)

	// SetReviewStatus toggles the review flag of one detected brand.
	SetReviewStatus(ctx context.Context, id string, pageNumber int, brand string, reviewed bool) error
}
