// Package pdf validates uploaded documents, decomposes them into
// single-page files and renders pages to images for OCR chunking.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"brandscan/internal/logger"
)

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF")

// Ingestor validates a PDF and splits it into per-page files inside a
// caller-owned working directory.
type Ingestor struct {
	log zerolog.Logger
}

// NewIngestor creates a PDF ingestor.
func NewIngestor() *Ingestor {
	return &Ingestor{log: logger.WithComponent("pdf-ingestor")}
}

// relaxedConfig returns a pdfcpu configuration that tolerates the
// mildly out-of-spec PDFs CAD exporters tend to produce.
func relaxedConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Validate checks that the file exists, is a regular non-empty file and
// carries the PDF magic header. Failures wrap ErrInvalidPDF.
func (i *Ingestor) Validate(path string) error {
	const op = "Validate"

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return WrapPDFError(op, ErrInvalidPDF, fmt.Sprintf("file not found: %s", path))
		}
		return WrapPDFError(op, ErrInvalidPDF, fmt.Sprintf("cannot access %s: %v", path, err))
	}
	if !info.Mode().IsRegular() {
		return WrapPDFError(op, ErrInvalidPDF, fmt.Sprintf("not a regular file: %s", path))
	}
	if info.Size() == 0 {
		return WrapPDFError(op, ErrInvalidPDF, fmt.Sprintf("file is empty: %s", path))
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		i.log.Warn().Str("file", path).Msg("File does not have .pdf extension")
	}

	f, err := os.Open(path)
	if err != nil {
		return WrapPDFError(op, ErrInvalidPDF, fmt.Sprintf("cannot open %s: %v", path, err))
	}
	defer f.Close()

	header := make([]byte, len(pdfMagic))
	if _, err := f.Read(header); err != nil || !bytes.Equal(header, pdfMagic) {
		return WrapPDFError(op, ErrInvalidPDF, fmt.Sprintf("missing %%PDF header: %s", path))
	}
	return nil
}

// Split validates and optimizes the source PDF, then decomposes it into
// one file per page inside workDir. It returns the page count and the
// per-page file paths in page order (index 0 is page 1).
func (i *Ingestor) Split(path, workDir string) (int, []string, error) {
	const op = "Split"

	if err := i.Validate(path); err != nil {
		return 0, nil, err
	}

	conf := relaxedConfig()
	optimized := filepath.Join(workDir, "optimized.pdf")
	if err := api.OptimizeFile(path, optimized, conf); err != nil {
		return 0, nil, WrapPDFError(op, ErrInvalidPDF, fmt.Sprintf("optimize: %v", err))
	}

	pageCount, err := api.PageCountFile(optimized)
	if err != nil {
		return 0, nil, WrapPDFError(op, ErrInvalidPDF, fmt.Sprintf("page count: %v", err))
	}
	if pageCount == 0 {
		return 0, nil, WrapPDFError(op, ErrInvalidPDF, "document has no pages")
	}

	if err := api.SplitFile(optimized, workDir, 1, conf); err != nil {
		return 0, nil, WrapPDFError(op, ErrSplitFailed, err.Error())
	}

	// SplitFile names the output files <base>_<page>.pdf.
	base := strings.TrimSuffix(optimized, filepath.Ext(optimized))
	pages := make([]string, 0, pageCount)
	for page := 1; page <= pageCount; page++ {
		pagePath := fmt.Sprintf("%s_%d.pdf", base, page)
		if _, err := os.Stat(pagePath); err != nil {
			return 0, nil, WrapPDFError(op, ErrSplitFailed, fmt.Sprintf("missing page file %s", pagePath))
		}
		pages = append(pages, pagePath)
	}

	i.log.Info().
		Str("file", path).
		Int("pages", pageCount).
		Msg("PDF split into single-page files")
	return pageCount, pages, nil
}
