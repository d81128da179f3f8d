package ocr

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"brandscan/internal/retry"
)

// scriptedAnnotator fails a fixed number of times before returning its
// detections. Safe for concurrent use.
type scriptedAnnotator struct {
	mu         sync.Mutex
	failures   int
	calls      int
	detections []TextDetection
}

func (s *scriptedAnnotator) AnnotateImage(_ context.Context, _ image.Image, _ []string) ([]TextDetection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("ocr backend unavailable")
	}
	return s.detections, nil
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func testChunk(origin image.Point) Chunk {
	return Chunk{
		PageNumber: 1,
		Origin:     origin,
		Image:      image.NewGray(image.Rect(0, 0, 100, 100)),
		Overlap:    200,
	}
}

func TestExtractChunkRetriesThenSucceeds(t *testing.T) {
	annotator := &scriptedAnnotator{
		failures: 2,
		detections: []TextDetection{
			{Text: "ACME", Box: image.Rect(10, 10, 60, 30), Confidence: 0.9},
		},
	}
	sleeper := &recordingSleeper{}
	worker := NewWorkerWithSleep(annotator, WorkerConfig{
		RetryPolicy: retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2},
	}, sleeper.sleep)

	detections := worker.ExtractChunk(context.Background(), testChunk(image.Pt(0, 0)))
	if len(detections) != 1 || detections[0].Text != "ACME" {
		t.Fatalf("detections = %+v, want the third attempt's result", detections)
	}
	if annotator.calls != 3 {
		t.Errorf("annotator called %d times, want 3", annotator.calls)
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(sleeper.delays) != 2 || sleeper.delays[0] != want[0] || sleeper.delays[1] != want[1] {
		t.Errorf("backoff delays = %v, want %v", sleeper.delays, want)
	}
}

func TestExtractChunkDegradesGracefullyAfterExhaustion(t *testing.T) {
	annotator := &scriptedAnnotator{failures: 10}
	sleeper := &recordingSleeper{}
	worker := NewWorkerWithSleep(annotator, WorkerConfig{
		RetryPolicy: retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2},
	}, sleeper.sleep)

	detections := worker.ExtractChunk(context.Background(), testChunk(image.Pt(0, 0)))
	if len(detections) != 0 {
		t.Fatalf("detections = %+v, want empty on exhausted retries", detections)
	}
	if annotator.calls != 3 {
		t.Errorf("annotator called %d times, want 3", annotator.calls)
	}
}

func TestExtractChunkTranslatesBoxesToPageCoordinates(t *testing.T) {
	annotator := &scriptedAnnotator{
		detections: []TextDetection{
			{Text: "valve", Box: image.Rect(5, 8, 45, 28), Confidence: 0.8},
		},
	}
	worker := NewWorkerWithSleep(annotator, WorkerConfig{}, (&recordingSleeper{}).sleep)

	origin := image.Pt(824, 1648)
	detections := worker.ExtractChunk(context.Background(), testChunk(origin))
	if len(detections) != 1 {
		t.Fatalf("got %d detections, want 1", len(detections))
	}
	want := image.Rect(5+824, 8+1648, 45+824, 28+1648)
	if detections[0].Box != want {
		t.Errorf("box = %v, want %v (chunk-local translated by origin)", detections[0].Box, want)
	}
}

func TestExtractChunkFiltersLowConfidenceAndEmptyText(t *testing.T) {
	annotator := &scriptedAnnotator{
		detections: []TextDetection{
			{Text: "keep", Box: image.Rect(0, 0, 10, 10), Confidence: 0.9},
			{Text: "drop", Box: image.Rect(0, 20, 10, 30), Confidence: 0.1},
			{Text: "   ", Box: image.Rect(0, 40, 10, 50), Confidence: 0.9},
		},
	}
	worker := NewWorkerWithSleep(annotator, WorkerConfig{
		ConfidenceThreshold: 0.3,
	}, (&recordingSleeper{}).sleep)

	detections := worker.ExtractChunk(context.Background(), testChunk(image.Pt(0, 0)))
	if len(detections) != 1 || detections[0].Text != "keep" {
		t.Fatalf("detections = %+v, want only the confident non-empty one", detections)
	}
}
