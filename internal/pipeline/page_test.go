package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"brandscan/internal/models"
	"brandscan/internal/ocr"
)

// slowChunkWorker blocks until the context expires.
type slowChunkWorker struct{}

func (slowChunkWorker) ExtractChunk(ctx context.Context, _ ocr.Chunk) []ocr.TextDetection {
	<-ctx.Done()
	return nil
}

func TestPageProcessorTimeoutFailsPage(t *testing.T) {
	pages := NewPageProcessor(
		&fakeRasterizer{},
		slowChunkWorker{},
		ocr.NewAggregator(ocr.DefaultAggregatorConfig()),
		&fakeBrandExtractor{},
		PageConfig{MaxConcurrentChunks: 1, PageTimeout: 20 * time.Millisecond},
	)

	var states []models.PageState
	detection := pages.Process(context.Background(), "page-1.pdf", 1, func(s models.PageState) {
		states = append(states, s)
	})

	if detection.Status != models.PageFailed {
		t.Fatalf("status = %s, want failed after deadline", detection.Status)
	}
	if !strings.Contains(detection.ErrorMessage, "deadline") {
		t.Errorf("error = %q, want deadline mention", detection.ErrorMessage)
	}
	if states[len(states)-1] != models.PageFailed {
		t.Errorf("final observed state = %s, want failed", states[len(states)-1])
	}
}

func TestPageProcessorExtractionErrorFailsPage(t *testing.T) {
	pages := NewPageProcessor(
		&fakeRasterizer{},
		&fakeChunkWorker{textByPage: map[int]string{1: "ACME"}},
		ocr.NewAggregator(ocr.DefaultAggregatorConfig()),
		&fakeBrandExtractor{errs: map[int]error{1: errors.New("model outage")}},
		PageConfig{MaxConcurrentChunks: 1},
	)

	detection := pages.Process(context.Background(), "page-1.pdf", 1, func(models.PageState) {})
	if detection.Status != models.PageFailed {
		t.Fatalf("status = %s, want failed on extraction error", detection.Status)
	}
	if !strings.Contains(detection.ErrorMessage, "brand extraction") {
		t.Errorf("error = %q, want brand extraction failure", detection.ErrorMessage)
	}
}

func TestPageProcessorStateProgression(t *testing.T) {
	pages := NewPageProcessor(
		&fakeRasterizer{},
		&fakeChunkWorker{textByPage: map[int]string{1: "Bosch"}},
		ocr.NewAggregator(ocr.DefaultAggregatorConfig()),
		&fakeBrandExtractor{brands: map[int][]string{1: {"Bosch"}}},
		PageConfig{MaxConcurrentChunks: 1},
	)

	var states []models.PageState
	detection := pages.Process(context.Background(), "page-1.pdf", 1, func(s models.PageState) {
		states = append(states, s)
	})

	want := []models.PageState{models.PageExtracting, models.PageAggregating, models.PageAnalyzing, models.PageCompleted}
	if len(states) != len(want) {
		t.Fatalf("observed states %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("observed states %v, want %v", states, want)
		}
	}
	if detection.Status != models.PageCompleted {
		t.Errorf("status = %s, want completed", detection.Status)
	}
	if detection.ProcessingTime <= 0 {
		t.Errorf("ProcessingTime = %v, want > 0", detection.ProcessingTime)
	}
}

// Degraded chunks yield no detections; the page still completes with
// whatever the surviving chunks produced.
func TestPageProcessorToleratesDeadChunks(t *testing.T) {
	pages := NewPageProcessor(
		&fakeRasterizer{},
		&fakeChunkWorker{},
		ocr.NewAggregator(ocr.DefaultAggregatorConfig()),
		&fakeBrandExtractor{},
		PageConfig{MaxConcurrentChunks: 2},
	)

	detection := pages.Process(context.Background(), "page-1.pdf", 1, func(models.PageState) {})
	if detection.Status != models.PageCompleted {
		t.Errorf("status = %s, want completed with zero detections", detection.Status)
	}
	if detection.Brands == nil {
		t.Fatal("brands = nil, want an empty list so exports render [] not null")
	}
	if len(detection.Brands) != 0 {
		t.Errorf("brands = %v, want none", detection.Brands)
	}

	payload, err := json.Marshal(detection)
	if err != nil {
		t.Fatalf("marshal detection: %v", err)
	}
	if !strings.Contains(string(payload), `"brands":[]`) {
		t.Errorf("serialized detection %s, want empty brands array", payload)
	}
}
