package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"brandscan/internal/logger"
)

// Rasterizer renders a single-page PDF file to an image.
type Rasterizer interface {
	Rasterize(ctx context.Context, pagePath string) (image.Image, error)
}

// CommandRasterizer shells out to a poppler-style renderer (pdftoppm by
// default). No maintained pure-Go PDF renderer exists, so rendering is
// delegated to the same tool the rest of the document stack relies on.
type CommandRasterizer struct {
	command string
	dpi     int
	log     zerolog.Logger
}

// NewCommandRasterizer creates a rasterizer invoking the given command.
// An empty command defaults to pdftoppm; a non-positive DPI defaults to 300.
func NewCommandRasterizer(command string, dpi int) *CommandRasterizer {
	if command == "" {
		command = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &CommandRasterizer{
		command: command,
		dpi:     dpi,
		log:     logger.WithComponent("pdf-rasterizer"),
	}
}

// Rasterize renders the page to a PNG in a scratch directory and
// decodes it. The context bounds the external process.
func (r *CommandRasterizer) Rasterize(ctx context.Context, pagePath string) (image.Image, error) {
	const op = "Rasterize"

	scratch, err := os.MkdirTemp("", "brandscan-raster-*")
	if err != nil {
		return nil, WrapPDFError(op, ErrRasterizationFailed, err.Error())
	}
	defer os.RemoveAll(scratch)

	outPrefix := filepath.Join(scratch, "page")
	cmd := exec.CommandContext(ctx, r.command,
		"-png",
		"-r", strconv.Itoa(r.dpi),
		"-singlefile",
		pagePath,
		outPrefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WrapPDFError(op, ErrRasterizationFailed,
			fmt.Sprintf("%s %s: %v: %s", r.command, pagePath, err, stderr.String()))
	}

	f, err := os.Open(outPrefix + ".png")
	if err != nil {
		return nil, WrapPDFError(op, ErrRasterizationFailed, fmt.Sprintf("renderer produced no output: %v", err))
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, WrapPDFError(op, ErrRasterizationFailed, fmt.Sprintf("decode rendered page: %v", err))
	}

	r.log.Debug().
		Str("page", pagePath).
		Int("dpi", r.dpi).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("Page rasterized")
	return img, nil
}
