// Package pipeline orchestrates the brand detection flow: split a PDF
// into pages, fan pages and chunks out to bounded worker pools, and
// persist per-page detections, progress snapshots and the document's
// terminal status.
package pipeline

import (
	"sync"

	"brandscan/internal/models"
)

// Tracker is the concurrency-safe source of truth for page states while
// a document is in flight. Terminal states are sticky, so the progress
// it reports can only grow.
type Tracker struct {
	mu         sync.Mutex
	documentID string
	total      int
	states     map[int]models.PageState
}

// NewTracker creates a tracker with every page pending.
func NewTracker(documentID string, totalPages int) *Tracker {
	states := make(map[int]models.PageState, totalPages)
	for page := 1; page <= totalPages; page++ {
		states[page] = models.PagePending
	}
	return &Tracker{
		documentID: documentID,
		total:      totalPages,
		states:     states,
	}
}

// SetPageState records a page transition. Attempts to leave a terminal
// state are ignored.
func (t *Tracker) SetPageState(pageNumber int, state models.PageState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.states[pageNumber]; ok && current.Terminal() {
		return
	}
	t.states[pageNumber] = state
}

// PageState returns the current state of a page.
func (t *Tracker) PageState(pageNumber int) models.PageState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[pageNumber]
}

// Snapshot returns a point-in-time progress view. The percentage
// counts successfully processed pages only; failed and cancelled pages
// never advance it. Completed is a sticky state, so the percentage is
// monotonically non-decreasing.
func (t *Tracker) Snapshot(docStatus models.DocumentStatus) models.ProcessingStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := models.ProcessingStatus{
		DocumentID: t.documentID,
		Status:     docStatus,
		TotalPages: t.total,
		PageStatus: make(map[string]models.PageState, len(t.states)),
	}
	for page, state := range t.states {
		status.PageStatus[models.PageKey(page)] = state
		switch state {
		case models.PageCompleted:
			status.ProcessedPages++
		case models.PageFailed:
			status.FailedPages++
		}
	}
	if t.total > 0 {
		status.ProgressPercentage = float64(status.ProcessedPages) / float64(t.total) * 100
	}
	return status
}

// Finalize derives the document's terminal status from the page states.
// Cancellation takes precedence; otherwise all pages completed means
// completed, all pages failed means failed, and a mix keeps the
// successful pages under completed_with_errors.
func (t *Tracker) Finalize(cancelled bool) models.DocumentStatus {
	if cancelled {
		return models.DocumentCancelled
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	completed, failed := 0, 0
	for _, state := range t.states {
		switch state {
		case models.PageCompleted:
			completed++
		case models.PageFailed:
			failed++
		}
	}
	switch {
	case failed == 0:
		return models.DocumentCompleted
	case completed == 0:
		return models.DocumentFailed
	default:
		return models.DocumentCompletedWithErrors
	}
}
