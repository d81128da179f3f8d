// Package models defines the persisted entities of the brand detection
// pipeline: documents, per-page brand detections and processing status.
package models

import (
	"strconv"
	"time"
)

// DocumentStatus is the terminal (or in-flight) state of a whole document.
type DocumentStatus string

const (
	// DocumentProcessing means at least one page has not reached a
	// terminal state yet.
	DocumentProcessing DocumentStatus = "processing"

	// DocumentCompleted means every page completed successfully.
	DocumentCompleted DocumentStatus = "completed"

	// DocumentCompletedWithErrors means processing finished but some
	// (not all) pages failed. Results of the successful pages are kept.
	DocumentCompletedWithErrors DocumentStatus = "completed_with_errors"

	// DocumentFailed means every page failed, or the document was
	// rejected before any page entered the pipeline.
	DocumentFailed DocumentStatus = "failed"

	// DocumentCancelled means cancellation was observed before natural
	// completion. Pages finished before the cancel keep their results.
	DocumentCancelled DocumentStatus = "cancelled"
)

// PageState tracks a single page through the processing state machine:
// pending -> extracting -> aggregating -> analyzing -> completed | failed.
type PageState string

const (
	PagePending     PageState = "pending"
	PageExtracting  PageState = "extracting"
	PageAggregating PageState = "aggregating"
	PageAnalyzing   PageState = "analyzing"
	PageCompleted   PageState = "completed"
	PageFailed      PageState = "failed"
	PageCancelled   PageState = "cancelled"
)

// Terminal reports whether the state is one a page cannot leave.
func (s PageState) Terminal() bool {
	return s == PageCompleted || s == PageFailed || s == PageCancelled
}

// Document is the master record for one processed PDF.
//
// Results is keyed by the decimal page number. String keys keep the
// map directly representable in Firestore and JSON.
type Document struct {
	ID         string                    `firestore:"id" json:"id"`
	Filename   string                    `firestore:"filename" json:"filename"`
	TotalPages int                       `firestore:"totalPages" json:"total_pages"`
	Status     DocumentStatus            `firestore:"status" json:"status"`
	CreatedAt  time.Time                 `firestore:"createdAt" json:"created_at"`
	Results    map[string]BrandDetection `firestore:"results" json:"results,omitempty"`
}

// PageKey converts a page number to its Results map key.
func PageKey(pageNumber int) string {
	return strconv.Itoa(pageNumber)
}

// PageResult returns the stored detection for a page, if present.
func (d *Document) PageResult(pageNumber int) (BrandDetection, bool) {
	detection, ok := d.Results[PageKey(pageNumber)]
	return detection, ok
}

// BrandDetection is the terminal per-page result of the pipeline.
type BrandDetection struct {
	PageNumber int `firestore:"pageNumber" json:"page_number"`

	// Brands holds distinct brand names in first-seen order with the
	// original casing preserved.
	Brands []string `firestore:"brands" json:"brands"`

	// Reviewed flags human verification per brand name. Review flags
	// are persisted independently of pipeline reruns; this field only
	// mirrors the store's view when a document is read back.
	Reviewed map[string]bool `firestore:"reviewed,omitempty" json:"reviewed,omitempty"`

	ProcessingTime time.Duration `firestore:"processingTime" json:"processing_time"`
	Status         PageState     `firestore:"status" json:"status"`
	ErrorMessage   string        `firestore:"errorMessage,omitempty" json:"error_message,omitempty"`
}

// ProcessingStatus is the read-only progress snapshot polled by
// external collaborators while a document is in flight.
type ProcessingStatus struct {
	DocumentID         string               `firestore:"documentId" json:"document_id"`
	Status             DocumentStatus       `firestore:"status" json:"status"`
	TotalPages         int                  `firestore:"totalPages" json:"total_pages"`
	ProcessedPages     int                  `firestore:"processedPages" json:"processed_pages"`
	FailedPages        int                  `firestore:"failedPages" json:"failed_pages"`
	ProgressPercentage float64              `firestore:"progressPercentage" json:"progress_percentage"`
	PageStatus         map[string]PageState `firestore:"pageStatus" json:"page_status"`
}

// ReviewKey identifies one review flag: a brand name on a page.
type ReviewKey struct {
	PageNumber int    `firestore:"pageNumber" json:"page_number"`
	Brand      string `firestore:"brand" json:"brand"`
}
