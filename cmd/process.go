package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"brandscan/internal/brands"
	"brandscan/internal/config"
	"brandscan/internal/logger"
	"brandscan/internal/models"
	"brandscan/internal/ocr"
	"brandscan/internal/pdf"
	"brandscan/internal/pipeline"
	"brandscan/internal/retry"
	"brandscan/internal/store"
)

var processStoreBackend string

var processCmd = &cobra.Command{
	Use:   "process [pdf-file]",
	Short: "Run brand detection over every page of a PDF",
	Long: `Process rasterizes each page of the given PDF, extracts text with
Google Cloud Vision over overlapping image chunks, reassembles the text
in reading order and asks an OpenAI model for the brands mentioned.

Pages are processed concurrently; a failing page never affects its
siblings. Press Ctrl-C once for a graceful stop: pages already in
flight finish and keep their results, remaining pages are cancelled.

Required environment variables:
  OPENAI_API_KEY                 - OpenAI API key for brand extraction
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS             - Inline JSON credentials string
  GOOGLE_CLOUD_PROJECT           - Google Cloud project (Firestore backend)`,
	Example: `  # Process a document, persisting to Firestore
  brandscan process plans.pdf

  # Local dry run without Firestore
  brandscan process plans.pdf --store memory`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processStoreBackend, "store", "firestore", "Result store backend: firestore or memory")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process-cmd")
	pdfPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	results, cleanup, err := newResultStore(ctx, cfg, processStoreBackend)
	if err != nil {
		return err
	}
	defer cleanup()

	annotator, err := ocr.NewGoogleVisionAnnotator(ctx)
	if err != nil {
		return err
	}
	defer annotator.Close()

	extractor, err := brands.NewExtractor(brands.ExtractorConfig{
		Model:          cfg.OpenAIModel,
		Temperature:    cfg.OpenAITemperature,
		ExcludedBrands: cfg.ExcludedBrands,
	})
	if err != nil {
		return err
	}

	worker := ocr.NewWorker(annotator, ocr.WorkerConfig{
		LanguageHints:       cfg.LanguageHints(),
		ConfidenceThreshold: cfg.OCRConfidenceThreshold,
		RetryPolicy: retry.Policy{
			MaxAttempts: cfg.OCRMaxRetries,
			BaseDelay:   cfg.OCRRetryDelay,
			Multiplier:  2,
		},
	})
	aggregator := ocr.NewAggregator(ocr.AggregatorConfig{
		RowTolerance:    cfg.RowTolerance,
		OverlapFraction: 0.5,
	})
	rasterizer := pdf.NewCommandRasterizer(cfg.RasterizerCommand, cfg.PDFDPI)

	pages := pipeline.NewPageProcessor(rasterizer, worker, aggregator, extractor, pipeline.PageConfig{
		ChunkConfig: ocr.ChunkConfig{
			Width:   cfg.ChunkWidth,
			Height:  cfg.ChunkHeight,
			Overlap: cfg.ChunkOverlap,
		},
		MaxConcurrentChunks: cfg.MaxConcurrentChunks,
		PageTimeout:         cfg.PageTimeout,
		MaxImageSize:        cfg.MaxImageSize,
	})
	orch := pipeline.NewOrchestrator(pdf.NewIngestor(), pages, results, pipeline.OrchestratorConfig{
		MaxConcurrentPages: cfg.MaxConcurrentPages,
	})

	stop := notifyCancel(orch, log)
	defer stop()

	doc, err := orch.Process(ctx, pdfPath)
	if err != nil {
		return err
	}

	printSummary(doc)
	return nil
}

// notifyCancel converts the first interrupt into a cooperative cancel
// (in-flight pages finish and keep their results); a second interrupt
// aborts the process.
func notifyCancel(orch *pipeline.Orchestrator, log zerolog.Logger) func() {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt, requesting graceful stop (interrupt again to abort)")
			orch.Cancel()
		case <-done:
			return
		}
		select {
		case sig := <-sigChan:
			log.Error().
				Str("signal", sig.String()).
				Msg("Second interrupt, aborting")
			os.Exit(1)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

func newResultStore(ctx context.Context, cfg *config.Config, backend string) (store.ResultStore, func(), error) {
	switch backend {
	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	case "firestore":
		fs, err := store.NewFirestoreStore(ctx, cfg.GoogleCloudProject, cfg.FirestoreCollection)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() { fs.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q (want firestore or memory)", backend)
	}
}

func printSummary(doc *models.Document) {
	fmt.Printf("Document:  %s\n", doc.ID)
	fmt.Printf("File:      %s\n", doc.Filename)
	fmt.Printf("Status:    %s\n", doc.Status)
	fmt.Printf("Pages:     %d\n", doc.TotalPages)

	distinct := distinctBrands(doc)
	fmt.Printf("Brands:    %d distinct\n", len(distinct))
	if len(distinct) > 0 {
		fmt.Printf("           %s\n", strings.Join(distinct, ", "))
	}

	for page := 1; page <= doc.TotalPages; page++ {
		detection, ok := doc.PageResult(page)
		if !ok {
			continue
		}
		switch detection.Status {
		case models.PageFailed:
			fmt.Printf("  page %3d: failed (%s)\n", page, detection.ErrorMessage)
		default:
			fmt.Printf("  page %3d: %s\n", page, strings.Join(detection.Brands, ", "))
		}
	}
}

// distinctBrands folds per-page detections into a case-insensitively
// deduplicated, alphabetically sorted list.
func distinctBrands(doc *models.Document) []string {
	seen := make(map[string]string)
	for _, detection := range doc.Results {
		for _, brand := range detection.Brands {
			key := strings.ToLower(brand)
			if _, ok := seen[key]; !ok {
				seen[key] = brand
			}
		}
	}
	brandNames := make([]string, 0, len(seen))
	for _, brand := range seen {
		brandNames = append(brandNames, brand)
	}
	sort.Slice(brandNames, func(i, j int) bool {
		return strings.ToLower(brandNames[i]) < strings.ToLower(brandNames[j])
	})
	return brandNames
}
