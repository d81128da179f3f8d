package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"testing"

	"brandscan/internal/models"
	"brandscan/internal/ocr"
	"brandscan/internal/store"
)

// fakeSplitter pretends the PDF has a fixed number of pages. Page paths
// encode the page number so the other fakes can key off them.
type fakeSplitter struct {
	pages int
	err   error
}

func (f *fakeSplitter) Split(_, _ string) (int, []string, error) {
	if f.err != nil {
		return 0, nil, f.err
	}
	paths := make([]string, f.pages)
	for i := range paths {
		paths[i] = fmt.Sprintf("page-%d.pdf", i+1)
	}
	return f.pages, paths, nil
}

// fakeRasterizer returns a blank page, failing the paths it is told to.
type fakeRasterizer struct {
	failPaths map[string]bool
}

func (f *fakeRasterizer) Rasterize(_ context.Context, pagePath string) (image.Image, error) {
	if f.failPaths[pagePath] {
		return nil, errors.New("renderer crashed")
	}
	return image.NewGray(image.Rect(0, 0, 200, 100)), nil
}

// fakeChunkWorker yields one detection per chunk, texted by page number.
type fakeChunkWorker struct {
	textByPage map[int]string
}

func (f *fakeChunkWorker) ExtractChunk(ctx context.Context, chunk ocr.Chunk) []ocr.TextDetection {
	if ctx.Err() != nil {
		return nil
	}
	text, ok := f.textByPage[chunk.PageNumber]
	if !ok {
		return nil
	}
	return []ocr.TextDetection{{Text: text, Box: image.Rect(0, 0, 60, 20), Confidence: 0.9}}
}

// fakeBrandExtractor maps page numbers to brands or errors, with an
// optional per-page hook that runs before answering.
type fakeBrandExtractor struct {
	mu       sync.Mutex
	brands   map[int][]string
	errs     map[int]error
	onPage   func(pageNumber int)
	seenText map[int]string
}

func (f *fakeBrandExtractor) ExtractBrands(_ context.Context, pageNumber int, text string) ([]string, error) {
	if f.onPage != nil {
		f.onPage(pageNumber)
	}
	f.mu.Lock()
	if f.seenText == nil {
		f.seenText = make(map[int]string)
	}
	f.seenText[pageNumber] = text
	f.mu.Unlock()
	if err := f.errs[pageNumber]; err != nil {
		return nil, err
	}
	return f.brands[pageNumber], nil
}

func newTestOrchestrator(splitter Splitter, rasterizer *fakeRasterizer, worker ChunkExtractor, extractor BrandExtractor, results store.ResultStore) *Orchestrator {
	pages := NewPageProcessor(rasterizer, worker, ocr.NewAggregator(ocr.DefaultAggregatorConfig()), extractor, PageConfig{
		MaxConcurrentChunks: 2,
	})
	return NewOrchestrator(splitter, pages, results, OrchestratorConfig{MaxConcurrentPages: 2})
}

func TestProcessMultiPageDocumentCompletes(t *testing.T) {
	results := store.NewMemoryStore()
	orch := newTestOrchestrator(
		&fakeSplitter{pages: 3},
		&fakeRasterizer{},
		&fakeChunkWorker{textByPage: map[int]string{1: "ACME pump", 2: "no brands here", 3: "Bosch valve"}},
		&fakeBrandExtractor{brands: map[int][]string{1: {"ACME"}, 3: {"Bosch"}}},
		results,
	)

	doc, err := orch.Process(context.Background(), "plans.pdf")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if doc.Status != models.DocumentCompleted {
		t.Errorf("status = %s, want completed", doc.Status)
	}
	if len(doc.Results) != 3 {
		t.Fatalf("results for %d pages, want 3", len(doc.Results))
	}

	page1, _ := doc.PageResult(1)
	if len(page1.Brands) != 1 || page1.Brands[0] != "ACME" {
		t.Errorf("page 1 brands = %v, want [ACME]", page1.Brands)
	}
	page2, _ := doc.PageResult(2)
	if page2.Status != models.PageCompleted || len(page2.Brands) != 0 {
		t.Errorf("page 2 = %+v, want completed with zero brands", page2)
	}

	stored, err := results.GetDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if stored.Status != models.DocumentCompleted {
		t.Errorf("stored status = %s, want completed", stored.Status)
	}
	if len(stored.Results) != 3 {
		t.Errorf("stored results for %d pages, want 3", len(stored.Results))
	}
}

// A page whose chunks all degraded to empty results still completes:
// no text means no brands, not a failure.
func TestProcessDeadOCRPageStillCompletes(t *testing.T) {
	results := store.NewMemoryStore()
	extractor := &fakeBrandExtractor{brands: map[int][]string{1: {"ACME"}}}
	orch := newTestOrchestrator(
		&fakeSplitter{pages: 2},
		&fakeRasterizer{},
		&fakeChunkWorker{textByPage: map[int]string{1: "ACME valve model X"}},
		extractor,
		results,
	)

	doc, err := orch.Process(context.Background(), "plans.pdf")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if doc.Status != models.DocumentCompleted {
		t.Errorf("status = %s, want completed despite a text-less page", doc.Status)
	}
	page2, _ := doc.PageResult(2)
	if page2.Status != models.PageCompleted || len(page2.Brands) != 0 {
		t.Errorf("page 2 = %+v, want completed with zero brands", page2)
	}
	if got := extractor.seenText[2]; got != "" {
		t.Errorf("extractor saw %q for the dead page, want empty text", got)
	}
}

func TestProcessIsolatesPageFailures(t *testing.T) {
	results := store.NewMemoryStore()
	orch := newTestOrchestrator(
		&fakeSplitter{pages: 3},
		&fakeRasterizer{failPaths: map[string]bool{"page-2.pdf": true}},
		&fakeChunkWorker{textByPage: map[int]string{1: "ACME", 3: "Bosch"}},
		&fakeBrandExtractor{brands: map[int][]string{1: {"ACME"}, 3: {"Bosch"}}},
		results,
	)

	doc, err := orch.Process(context.Background(), "plans.pdf")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if doc.Status != models.DocumentCompletedWithErrors {
		t.Errorf("status = %s, want completed_with_errors", doc.Status)
	}

	page2, _ := doc.PageResult(2)
	if page2.Status != models.PageFailed {
		t.Errorf("page 2 status = %s, want failed", page2.Status)
	}
	if !strings.Contains(page2.ErrorMessage, "rasterization") {
		t.Errorf("page 2 error = %q, want rasterization failure", page2.ErrorMessage)
	}
	for _, page := range []int{1, 3} {
		detection, _ := doc.PageResult(page)
		if detection.Status != models.PageCompleted {
			t.Errorf("page %d status = %s, want completed despite sibling failure", page, detection.Status)
		}
	}
}

func TestProcessAllPagesFailedMeansDocumentFailed(t *testing.T) {
	results := store.NewMemoryStore()
	orch := newTestOrchestrator(
		&fakeSplitter{pages: 2},
		&fakeRasterizer{failPaths: map[string]bool{"page-1.pdf": true, "page-2.pdf": true}},
		&fakeChunkWorker{},
		&fakeBrandExtractor{},
		results,
	)

	doc, err := orch.Process(context.Background(), "plans.pdf")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if doc.Status != models.DocumentFailed {
		t.Errorf("status = %s, want failed when every page failed", doc.Status)
	}
}

func TestProcessRejectedDocumentFailsBeforePages(t *testing.T) {
	results := store.NewMemoryStore()
	splitErr := errors.New("not a PDF")
	orch := newTestOrchestrator(&fakeSplitter{err: splitErr}, &fakeRasterizer{}, &fakeChunkWorker{}, &fakeBrandExtractor{}, results)

	doc, err := orch.Process(context.Background(), "garbage.bin")
	if !errors.Is(err, splitErr) {
		t.Fatalf("err = %v, want the split error", err)
	}
	if doc.Status != models.DocumentFailed {
		t.Errorf("status = %s, want failed", doc.Status)
	}

	stored, err := results.GetDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("rejected document must still be recorded: %v", err)
	}
	if stored.Status != models.DocumentFailed || stored.TotalPages != 0 {
		t.Errorf("stored = %+v, want failed with zero pages", stored)
	}
}

func TestProcessCancellationStopsAtDispatchBoundary(t *testing.T) {
	results := store.NewMemoryStore()
	splitter := &fakeSplitter{pages: 3}
	rasterizer := &fakeRasterizer{}
	worker := &fakeChunkWorker{textByPage: map[int]string{1: "ACME", 2: "Bosch", 3: "Kohler"}}
	extractor := &fakeBrandExtractor{brands: map[int][]string{1: {"ACME"}, 2: {"Bosch"}, 3: {"Kohler"}}}

	pages := NewPageProcessor(rasterizer, worker, ocr.NewAggregator(ocr.DefaultAggregatorConfig()), extractor, PageConfig{MaxConcurrentChunks: 1})
	orch := NewOrchestrator(splitter, pages, results, OrchestratorConfig{MaxConcurrentPages: 1})

	// Cancel while page 1 is in flight. With a single page slot, page 2
	// may already be blocked on dispatch, but page 3's dispatch check
	// observes the flag.
	extractor.onPage = func(pageNumber int) {
		if pageNumber == 1 {
			orch.Cancel()
		}
	}

	doc, err := orch.Process(context.Background(), "plans.pdf")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if doc.Status != models.DocumentCancelled {
		t.Errorf("status = %s, want cancelled", doc.Status)
	}

	// The in-flight page finished naturally and kept its result.
	page1, ok := doc.PageResult(1)
	if !ok || page1.Status != models.PageCompleted {
		t.Errorf("page 1 = %+v, want completed result retained", page1)
	}

	// The last page was never dispatched.
	status, err := results.GetProcessingStatus(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetProcessingStatus: %v", err)
	}
	if got := status.PageStatus[models.PageKey(3)]; got != models.PageCancelled {
		t.Errorf("page 3 state = %s, want cancelled", got)
	}
	if _, ok := doc.PageResult(3); ok {
		t.Error("page 3 has a result despite never being dispatched")
	}
}

func TestProcessAggregatedTextReachesExtractor(t *testing.T) {
	results := store.NewMemoryStore()
	extractor := &fakeBrandExtractor{brands: map[int][]string{1: {"ACME"}}}
	orch := newTestOrchestrator(
		&fakeSplitter{pages: 1},
		&fakeRasterizer{},
		&fakeChunkWorker{textByPage: map[int]string{1: "ACME pump station"}},
		extractor,
		results,
	)

	if _, err := orch.Process(context.Background(), "plans.pdf"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := extractor.seenText[1]; !strings.Contains(got, "ACME pump station") {
		t.Errorf("extractor saw %q, want the aggregated chunk text", got)
	}
}
