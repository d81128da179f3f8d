// Package ocr extracts text from page images in bounded pieces.
//
// A page image is split into overlapping rectangular chunks
// (ChunkSlicer), each chunk is sent to the OCR capability by a worker
// with retry/backoff (Worker), and the chunk-level detections are
// reassembled into one reading-ordered text block (Aggregator).
//
// The OCR capability itself is behind the Annotator interface; the
// production implementation uses Google Cloud Vision API's text
// detection with per-request language hints.
//
// Required Environment Variables (production annotator):
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT: Google Cloud project ID
package ocr

import (
	"context"
	"image"
)

// TextDetection is one recognized text fragment. Box is axis-aligned
// and, once a detection leaves the Worker, expressed in page
// coordinates (chunk-local coordinates translated by the chunk origin).
type TextDetection struct {
	Text       string          `json:"text"`
	Box        image.Rectangle `json:"box"`
	Confidence float32         `json:"confidence"`
}

// Chunk is a rectangular sub-region of a page image, processed
// independently. Chunks are ephemeral: they exist only for the
// duration of text extraction.
type Chunk struct {
	// PageNumber is the 1-based page this chunk was sliced from.
	PageNumber int

	// Origin is the chunk's top-left corner in page coordinates.
	Origin image.Point

	// Image is the pixel data of the chunk.
	Image image.Image

	// Overlap is the margin, in pixels, shared with neighboring chunks.
	Overlap int
}

// Bounds returns the chunk's rectangle in page coordinates.
func (c Chunk) Bounds() image.Rectangle {
	b := c.Image.Bounds()
	return image.Rectangle{
		Min: c.Origin,
		Max: c.Origin.Add(image.Pt(b.Dx(), b.Dy())),
	}
}

// Annotator is the OCR capability consumed by extraction workers.
// Implementations must be safe for concurrent use: many chunks are
// annotated in parallel.
type Annotator interface {
	// AnnotateImage recognizes text in one chunk image. Returned boxes
	// are chunk-local (origin at the chunk's top-left corner).
	AnnotateImage(ctx context.Context, img image.Image, languageHints []string) ([]TextDetection, error)
}
