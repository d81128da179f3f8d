package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// GoogleVisionAnnotator implements Annotator using Google Cloud Vision
// API's TEXT_DETECTION feature. A single client is safe for concurrent
// annotation of many chunks.
type GoogleVisionAnnotator struct {
	client *vision.ImageAnnotatorClient
}

// NewGoogleVisionAnnotator creates an annotator with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewGoogleVisionAnnotator(ctx context.Context) (*GoogleVisionAnnotator, error) {
	const op = "NewGoogleVisionAnnotator"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &GoogleVisionAnnotator{client: client}, nil
}

// NewGoogleVisionAnnotatorWithClient creates an annotator with an explicit client (for testing).
func NewGoogleVisionAnnotatorWithClient(client *vision.ImageAnnotatorClient) *GoogleVisionAnnotator {
	return &GoogleVisionAnnotator{client: client}
}

// AnnotateImage recognizes text in one chunk image. Boxes in the
// returned detections are chunk-local.
func (g *GoogleVisionAnnotator) AnnotateImage(ctx context.Context, img image.Image, languageHints []string) ([]TextDetection, error) {
	const op = "AnnotateImage"

	// PNG preserves text edges better than lossy formats.
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, WrapOCRError(op, err, "failed to encode chunk as PNG")
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: buf.Bytes()},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{
					LanguageHints: languageHints,
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrAnnotationFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrEmptyResponse, "")
	}

	annotResp := resp.Responses[0]
	if annotResp.Error != nil {
		return nil, WrapOCRError(op, ErrAnnotationFailed, fmt.Sprintf("Vision API error: %s", annotResp.Error.Message))
	}

	return detectionsFromAnnotations(annotResp.TextAnnotations), nil
}

// detectionsFromAnnotations converts Vision entity annotations into
// TextDetections. The first annotation is the full-chunk text block and
// is skipped; the remainder are individual words.
func detectionsFromAnnotations(annotations []*visionpb.EntityAnnotation) []TextDetection {
	if len(annotations) <= 1 {
		return nil
	}

	detections := make([]TextDetection, 0, len(annotations)-1)
	for _, annotation := range annotations[1:] {
		if annotation.Description == "" {
			continue
		}
		confidence := annotation.Confidence
		if confidence == 0 {
			confidence = annotation.Score
		}
		detections = append(detections, TextDetection{
			Text:       annotation.Description,
			Box:        boundingBox(annotation.BoundingPoly),
			Confidence: confidence,
		})
	}
	return detections
}

// boundingBox converts a (possibly rotated) bounding polygon into the
// smallest axis-aligned rectangle containing it.
func boundingBox(poly *visionpb.BoundingPoly) image.Rectangle {
	if poly == nil || len(poly.Vertices) == 0 {
		return image.Rectangle{}
	}
	minX, minY := int(poly.Vertices[0].X), int(poly.Vertices[0].Y)
	maxX, maxY := minX, minY
	for _, v := range poly.Vertices[1:] {
		x, y := int(v.X), int(v.Y)
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	return image.Rect(minX, minY, maxX, maxY)
}

// Close closes the underlying Vision client.
func (g *GoogleVisionAnnotator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
