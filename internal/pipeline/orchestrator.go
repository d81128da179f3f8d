package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"brandscan/internal/logger"
	"brandscan/internal/models"
	"brandscan/internal/store"
)

// Splitter decomposes a PDF into single-page files. *pdf.Ingestor
// satisfies it.
type Splitter interface {
	Split(path, workDir string) (int, []string, error)
}

// OrchestratorConfig configures document-level processing.
type OrchestratorConfig struct {
	// MaxConcurrentPages bounds pages in flight at once. Chunk
	// concurrency multiplies on top of this per page.
	MaxConcurrentPages int
}

// Orchestrator drives a whole document through the pipeline: split,
// per-page processing under a bounded pool, persistence and terminal
// status derivation.
type Orchestrator struct {
	splitter  Splitter
	pages     *PageProcessor
	results   store.ResultStore
	config    OrchestratorConfig
	log       zerolog.Logger
	cancelled atomic.Bool
}

// NewOrchestrator wires the document-level collaborators together.
func NewOrchestrator(splitter Splitter, pages *PageProcessor, results store.ResultStore, config OrchestratorConfig) *Orchestrator {
	if config.MaxConcurrentPages <= 0 {
		config.MaxConcurrentPages = 1
	}
	return &Orchestrator{
		splitter: splitter,
		pages:    pages,
		results:  results,
		config:   config,
		log:      logger.WithComponent("orchestrator"),
	}
}

// Cancel requests cooperative cancellation. Pages already in flight
// finish naturally and keep their results; pages not yet dispatched are
// marked cancelled. Safe to call from any goroutine, more than once.
func (o *Orchestrator) Cancel() {
	if o.cancelled.CompareAndSwap(false, true) {
		o.log.Info().Msg("Cancellation requested, in-flight pages will finish")
	}
}

// Process runs one PDF end to end and returns the stored document. A
// rejected file yields a failed document record and an error; page
// failures are absorbed into the document's terminal status instead.
func (o *Orchestrator) Process(ctx context.Context, pdfPath string) (*models.Document, error) {
	documentID := uuid.NewString()
	log := logger.WithDocument("orchestrator", documentID)

	doc := &models.Document{
		ID:        documentID,
		Filename:  filepath.Base(pdfPath),
		Status:    models.DocumentProcessing,
		CreatedAt: time.Now().UTC(),
		Results:   make(map[string]models.BrandDetection),
	}

	workDir, err := os.MkdirTemp("", "brandscan-*")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	pageCount, pagePaths, err := o.splitter.Split(pdfPath, workDir)
	if err != nil {
		doc.Status = models.DocumentFailed
		if storeErr := o.results.CreateDocument(ctx, doc); storeErr != nil {
			log.Error().Err(storeErr).Msg("Failed to store rejected document")
		}
		return doc, err
	}

	doc.TotalPages = pageCount
	if err := o.results.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("pipeline: failed to create document record: %w", err)
	}
	log.Info().Str("filename", doc.Filename).Int("pages", pageCount).Msg("Document processing started")

	tracker := NewTracker(documentID, pageCount)
	o.persistProgress(ctx, tracker, models.DocumentProcessing)

	eg := new(errgroup.Group)
	eg.SetLimit(o.config.MaxConcurrentPages)

	var resultsMu sync.Mutex
	dispatched := 0
	for pageNumber := 1; pageNumber <= pageCount; pageNumber++ {
		// Cancellation is observed only between page dispatches.
		if o.cancelled.Load() || ctx.Err() != nil {
			break
		}
		dispatched++
		pagePath := pagePaths[pageNumber-1]
		eg.Go(func() error {
			detection := o.pages.Process(ctx, pagePath, pageNumber, func(state models.PageState) {
				tracker.SetPageState(pageNumber, state)
				if !state.Terminal() {
					o.persistProgress(ctx, tracker, models.DocumentProcessing)
				}
			})
			if err := o.results.SaveBrandDetection(ctx, documentID, detection); err != nil {
				log.Error().Err(err).Int("page", pageNumber).Msg("Failed to persist page result")
			}
			resultsMu.Lock()
			doc.Results[models.PageKey(pageNumber)] = detection
			resultsMu.Unlock()
			o.persistProgress(ctx, tracker, models.DocumentProcessing)
			return nil
		})
	}
	_ = eg.Wait()

	cancelled := dispatched < pageCount
	for pageNumber := dispatched + 1; pageNumber <= pageCount; pageNumber++ {
		tracker.SetPageState(pageNumber, models.PageCancelled)
	}

	doc.Status = tracker.Finalize(cancelled)
	if err := o.results.UpdateDocumentStatus(ctx, documentID, doc.Status); err != nil {
		log.Error().Err(err).Msg("Failed to persist terminal document status")
	}
	o.persistProgress(ctx, tracker, doc.Status)

	log.Info().
		Str("status", string(doc.Status)).
		Int("pages", pageCount).
		Int("dispatched", dispatched).
		Msg("Document processing finished")
	return doc, nil
}

// persistProgress stores a progress snapshot. Snapshot persistence is
// advisory, so failures are logged and swallowed.
func (o *Orchestrator) persistProgress(ctx context.Context, tracker *Tracker, status models.DocumentStatus) {
	snapshot := tracker.Snapshot(status)
	if err := o.results.SaveProcessingStatus(ctx, snapshot); err != nil {
		o.log.Warn().Err(err).Str("document_id", snapshot.DocumentID).Msg("Failed to persist progress snapshot")
	}
}
