package ocr

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"brandscan/internal/logger"
	"brandscan/internal/retry"
)

// WorkerConfig configures chunk extraction.
type WorkerConfig struct {
	// LanguageHints are passed through to the OCR capability.
	LanguageHints []string

	// ConfidenceThreshold drops detections below it before aggregation.
	ConfidenceThreshold float32

	// RetryPolicy governs transient-failure recovery per chunk.
	RetryPolicy retry.Policy
}

// Worker invokes the OCR capability on single chunks. Many workers run
// concurrently over one page, so a Worker holds no mutable state.
type Worker struct {
	annotator Annotator
	config    WorkerConfig
	sleep     retry.SleepFunc
	log       zerolog.Logger
}

// NewWorker creates a chunk extraction worker.
func NewWorker(annotator Annotator, config WorkerConfig) *Worker {
	return NewWorkerWithSleep(annotator, config, retry.Sleep)
}

// NewWorkerWithSleep creates a worker with an explicit sleep function (for testing).
func NewWorkerWithSleep(annotator Annotator, config WorkerConfig, sleep retry.SleepFunc) *Worker {
	if config.RetryPolicy.MaxAttempts == 0 {
		config.RetryPolicy = retry.DefaultPolicy()
	}
	return &Worker{
		annotator: annotator,
		config:    config,
		sleep:     sleep,
		log:       logger.WithComponent("ocr-worker"),
	}
}

// ExtractChunk annotates one chunk, translating detection boxes into
// page coordinates and dropping low-confidence and empty detections.
//
// Transient failures are retried with exponential backoff; when all
// attempts are exhausted the worker degrades gracefully and returns an
// empty detection list, so a single unreadable chunk never fails its
// page. The failure is logged as the diagnostic signal.
func (w *Worker) ExtractChunk(ctx context.Context, chunk Chunk) []TextDetection {
	var detections []TextDetection

	err := retry.Do(ctx, w.config.RetryPolicy, w.sleep, func(ctx context.Context) error {
		raw, err := w.annotator.AnnotateImage(ctx, chunk.Image, w.config.LanguageHints)
		if err != nil {
			return err
		}
		detections = w.filterAndTranslate(raw, chunk)
		return nil
	})
	if err != nil {
		w.log.Warn().
			Err(err).
			Int("page", chunk.PageNumber).
			Str("chunk_origin", chunk.Origin.String()).
			Int("attempts", w.config.RetryPolicy.MaxAttempts).
			Msg("Chunk extraction exhausted all attempts, degrading to empty result")
		return nil
	}

	return detections
}

func (w *Worker) filterAndTranslate(raw []TextDetection, chunk Chunk) []TextDetection {
	detections := make([]TextDetection, 0, len(raw))
	for _, d := range raw {
		if d.Confidence < w.config.ConfidenceThreshold {
			continue
		}
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}
		detections = append(detections, TextDetection{
			Text:       text,
			Box:        d.Box.Add(chunk.Origin),
			Confidence: d.Confidence,
		})
	}
	return detections
}
