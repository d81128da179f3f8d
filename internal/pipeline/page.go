package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"brandscan/internal/logger"
	"brandscan/internal/models"
	"brandscan/internal/ocr"
	"brandscan/internal/pdf"
)

// BrandExtractor is the language-model collaborator of the page
// processor. *brands.Extractor satisfies it; tests substitute a stub.
type BrandExtractor interface {
	ExtractBrands(ctx context.Context, pageNumber int, text string) ([]string, error)
}

// ChunkExtractor extracts text detections from one image chunk,
// translated to page coordinates. *ocr.Worker satisfies it.
type ChunkExtractor interface {
	ExtractChunk(ctx context.Context, chunk ocr.Chunk) []ocr.TextDetection
}

// PageConfig configures per-page processing.
type PageConfig struct {
	// ChunkConfig controls chunk dimensions and overlap.
	ChunkConfig ocr.ChunkConfig

	// MaxConcurrentChunks bounds in-flight OCR calls per page.
	MaxConcurrentChunks int

	// PageTimeout bounds one page's wall-clock time. Zero disables the
	// bound. A timed-out page fails without affecting its siblings.
	PageTimeout time.Duration

	// MaxImageSize caps the rasterized page's larger dimension before
	// chunking. Zero disables downscaling.
	MaxImageSize int
}

// PageProcessor runs one page through rasterization, chunked OCR,
// geometric aggregation and brand extraction.
type PageProcessor struct {
	rasterizer pdf.Rasterizer
	worker     ChunkExtractor
	aggregator *ocr.Aggregator
	extractor  BrandExtractor
	config     PageConfig
	log        zerolog.Logger
}

// NewPageProcessor wires the page-level collaborators together.
func NewPageProcessor(rasterizer pdf.Rasterizer, worker ChunkExtractor, aggregator *ocr.Aggregator, extractor BrandExtractor, config PageConfig) *PageProcessor {
	if config.MaxConcurrentChunks <= 0 {
		config.MaxConcurrentChunks = 1
	}
	if config.ChunkConfig.Width == 0 {
		config.ChunkConfig = ocr.DefaultChunkConfig()
	}
	return &PageProcessor{
		rasterizer: rasterizer,
		worker:     worker,
		aggregator: aggregator,
		extractor:  extractor,
		config:     config,
		log:        logger.WithComponent("page-processor"),
	}
}

// Process runs one page to a terminal detection. It never returns an
// error: page-level failures are absorbed into a failed detection so
// sibling pages are unaffected. onState observes state transitions.
func (p *PageProcessor) Process(ctx context.Context, pagePath string, pageNumber int, onState func(models.PageState)) models.BrandDetection {
	started := time.Now()
	if p.config.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.PageTimeout)
		defer cancel()
	}

	onState(models.PageExtracting)

	img, err := p.rasterizer.Rasterize(ctx, pagePath)
	if err != nil {
		return p.fail(pageNumber, started, onState, fmt.Sprintf("rasterization: %v", err))
	}
	img = pdf.Normalize(img, p.config.MaxImageSize)

	chunks := ocr.Slice(img, pageNumber, p.config.ChunkConfig)
	detections := p.extractChunks(ctx, chunks)

	if ctx.Err() != nil {
		// Timed out mid-extraction: the text is partial and the page
		// cannot be trusted, but the chunks that finished are logged
		// for diagnosis before the page is marked failed.
		text, _ := p.aggregator.Aggregate(detections)
		p.log.Warn().
			Int("page", pageNumber).
			Int("partial_detections", len(detections)).
			Int("partial_text_len", len(text)).
			Msg("Page deadline exceeded, recording failure with partial extraction")
		return p.fail(pageNumber, started, onState, fmt.Sprintf("page deadline exceeded: %v", ctx.Err()))
	}

	onState(models.PageAggregating)
	text, retained := p.aggregator.Aggregate(detections)
	p.log.Debug().
		Int("page", pageNumber).
		Int("chunks", len(chunks)).
		Int("detections", len(retained)).
		Msg("Page text aggregated")

	onState(models.PageAnalyzing)
	brandNames, err := p.extractor.ExtractBrands(ctx, pageNumber, text)
	if err != nil {
		return p.fail(pageNumber, started, onState, fmt.Sprintf("brand extraction: %v", err))
	}
	if brandNames == nil {
		// A completed page always carries a list, so exports render an
		// empty array instead of null.
		brandNames = []string{}
	}

	onState(models.PageCompleted)
	return models.BrandDetection{
		PageNumber:     pageNumber,
		Brands:         brandNames,
		ProcessingTime: time.Since(started),
		Status:         models.PageCompleted,
	}
}

// extractChunks fans chunks out to a bounded pool. Chunk extraction
// degrades gracefully (a dead chunk yields no detections), so the pool
// never propagates errors.
func (p *PageProcessor) extractChunks(ctx context.Context, chunks []ocr.Chunk) []ocr.TextDetection {
	results := make([][]ocr.TextDetection, len(chunks))

	eg := new(errgroup.Group)
	eg.SetLimit(p.config.MaxConcurrentChunks)
	for i, chunk := range chunks {
		eg.Go(func() error {
			results[i] = p.worker.ExtractChunk(ctx, chunk)
			return nil
		})
	}
	_ = eg.Wait()

	var detections []ocr.TextDetection
	for _, r := range results {
		detections = append(detections, r...)
	}
	return detections
}

func (p *PageProcessor) fail(pageNumber int, started time.Time, onState func(models.PageState), message string) models.BrandDetection {
	p.log.Error().Int("page", pageNumber).Str("error", message).Msg("Page processing failed")
	onState(models.PageFailed)
	return models.BrandDetection{
		PageNumber:     pageNumber,
		ProcessingTime: time.Since(started),
		Status:         models.PageFailed,
		ErrorMessage:   message,
	}
}
