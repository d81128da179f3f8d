package ocr

import (
	"image"
	"image/draw"
)

// ChunkConfig controls how a page image is sliced into chunks.
type ChunkConfig struct {
	// Width and Height are the target chunk dimensions in pixels.
	Width  int
	Height int

	// Overlap is the margin shared between adjacent chunks. Must be
	// smaller than both Width and Height.
	Overlap int
}

// DefaultChunkConfig matches the pipeline defaults: 1024x1024 chunks
// with a 200px overlap margin.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Width: 1024, Height: 1024, Overlap: 200}
}

// Slice splits a page image into a row-major sequence of overlapping
// chunks covering the full image with no gaps. Adjacent chunks overlap
// by exactly cfg.Overlap on the shared edge; the last chunk in each
// row and column is clipped to the image boundary rather than padded,
// so edge chunks may be smaller than the target size.
//
// Slice is a pure function of the image and parameters.
func Slice(img image.Image, pageNumber int, cfg ChunkConfig) []Chunk {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	// An overlap at or beyond the chunk size would make the step
	// non-positive and the sweep endless. Clamp to the smallest
	// forward step so the function stays total for any parameters.
	stepX := maxInt(cfg.Width-cfg.Overlap, 1)
	stepY := maxInt(cfg.Height-cfg.Overlap, 1)

	var chunks []Chunk
	for y := 0; ; y += stepY {
		for x := 0; ; x += stepX {
			rect := image.Rect(x, y, minInt(x+cfg.Width, w), minInt(y+cfg.Height, h))
			chunks = append(chunks, Chunk{
				PageNumber: pageNumber,
				Origin:     rect.Min,
				Image:      crop(img, rect.Add(bounds.Min)),
				Overlap:    cfg.Overlap,
			})
			if x+cfg.Width >= w {
				break
			}
		}
		if y+cfg.Height >= h {
			break
		}
	}
	return chunks
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// crop returns the sub-region of img described by rect (in img's own
// coordinate space). Shares pixels when the source supports SubImage.
func crop(img image.Image, rect image.Rectangle) image.Image {
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}
	dst := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
