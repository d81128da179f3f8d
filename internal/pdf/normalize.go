package pdf

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Normalize prepares a rasterized page for OCR: grayscale conversion
// drops color noise from scanned plans, and pages larger than maxDim on
// either axis are downscaled proportionally so chunk counts stay bounded.
// A non-positive maxDim disables downscaling.
func Normalize(img image.Image, maxDim int) image.Image {
	gray := toGray(img)
	if maxDim <= 0 {
		return gray
	}

	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return gray
	}

	scale := float64(maxDim) / float64(w)
	if h > w {
		scale = float64(maxDim) / float64(h)
	}
	dstW := int(float64(w) * scale)
	dstH := int(float64(h) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewGray(image.Rect(0, 0, dstW, dstH))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), gray, bounds, xdraw.Over, nil)
	return dst
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(gray, gray.Bounds(), img, bounds.Min, xdraw.Src)
	return gray
}
