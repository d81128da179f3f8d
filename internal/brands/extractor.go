// Package brands identifies brand mentions in aggregated page text
// using an OpenAI chat completion with a fixed extraction instruction
// and a structured JSON answer.
package brands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"brandscan/internal/logger"
)

// ChatCompleter is the language-understanding capability consumed by
// the extractor. *openai.Client satisfies it; tests substitute a stub.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ExtractorConfig configures brand extraction.
type ExtractorConfig struct {
	// Model is the OpenAI model name (e.g. gpt-4o-mini).
	Model string

	// Temperature for the completion. Low values keep the structured
	// answer deterministic.
	Temperature float32

	// ExcludedBrands are never reported, matched case-insensitively
	// as substrings (the document owner's own brand, typically).
	ExcludedBrands []string

	// MaxTokens caps the completion length. Default 500.
	MaxTokens int
}

// Extractor asks the language model for brand mentions in page text.
type Extractor struct {
	client ChatCompleter
	config ExtractorConfig
	log    zerolog.Logger
}

// brandsResponse is the structured answer the model is instructed to return.
type brandsResponse struct {
	BrandsDetected []string `json:"brands_detected"`
	PageNumber     int      `json:"page_number"`
}

// NewExtractor creates an extractor with an OpenAI client from environment.
func NewExtractor(config ExtractorConfig) (*Extractor, error) {
	const op = "NewExtractor"

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, WrapBrandError(op, ErrMissingAPIKey, "")
	}

	return NewExtractorWithClient(openai.NewClient(apiKey), config), nil
}

// NewExtractorWithClient creates an extractor with an explicit completion client (for testing).
func NewExtractorWithClient(client ChatCompleter, config ExtractorConfig) *Extractor {
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 500
	}
	return &Extractor{
		client: client,
		config: config,
		log:    logger.WithComponent("brand-extractor"),
	}
}

// ExtractBrands returns the distinct brand names mentioned in the
// aggregated text of one page. Matching is case-insensitive but the
// reported names preserve their first-seen casing. Duplicates within
// the page are collapsed.
//
// A malformed or empty model answer yields zero brands and a nil
// error. A failed model call returns an error wrapping
// ErrCapabilityUnavailable: the page's entire analytical value is
// lost, so the failure is surfaced rather than silently degraded.
func (e *Extractor) ExtractBrands(ctx context.Context, pageNumber int, text string) ([]string, error) {
	const op = "ExtractBrands"

	if strings.TrimSpace(text) == "" {
		e.log.Debug().Int("page", pageNumber).Msg("No text on page, skipping language model call")
		return nil, nil
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.config.Model,
		Temperature: e.config.Temperature,
		MaxTokens:   e.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: e.buildPrompt(pageNumber, text),
			},
		},
	})
	if err != nil {
		return nil, WrapBrandError(op, ErrCapabilityUnavailable, fmt.Sprintf("page %d: %v", pageNumber, err))
	}
	if len(resp.Choices) == 0 {
		return nil, WrapBrandError(op, ErrCapabilityUnavailable, fmt.Sprintf("page %d: no response choices", pageNumber))
	}

	content := resp.Choices[0].Message.Content
	parsed, err := parseResponse(content)
	if err != nil {
		// A response we cannot parse is a prompt/schema problem, not a
		// transport failure. Report zero brands and keep the page.
		e.log.Warn().
			Err(err).
			Int("page", pageNumber).
			Str("response", truncate(content, 500)).
			Msg("Could not parse language model response, treating as zero brands")
		return nil, nil
	}

	brands := e.normalizeBrands(parsed.BrandsDetected)
	e.log.Info().
		Int("page", pageNumber).
		Int("brand_count", len(brands)).
		Strs("brands", brands).
		Msg("Brand extraction completed")
	return brands, nil
}

// parseResponse extracts the structured JSON answer, tolerating
// leading/trailing prose around the JSON object.
func parseResponse(content string) (*brandsResponse, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, WrapBrandError("parseResponse", ErrMalformedResponse, "no JSON object in response")
	}

	// Accept brands_detected as either a list or a single string.
	var raw struct {
		BrandsDetected json.RawMessage `json:"brands_detected"`
		PageNumber     int             `json:"page_number"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, WrapBrandError("parseResponse", ErrMalformedResponse, err.Error())
	}
	if raw.BrandsDetected == nil {
		return nil, WrapBrandError("parseResponse", ErrMalformedResponse, "missing brands_detected field")
	}

	resp := &brandsResponse{PageNumber: raw.PageNumber}
	if err := json.Unmarshal(raw.BrandsDetected, &resp.BrandsDetected); err != nil {
		var single string
		if err := json.Unmarshal(raw.BrandsDetected, &single); err != nil {
			return nil, WrapBrandError("parseResponse", ErrMalformedResponse, "brands_detected is neither list nor string")
		}
		resp.BrandsDetected = []string{single}
	}
	return resp, nil
}

// normalizeBrands trims, drops empties and excluded brands, and
// collapses case-insensitive duplicates keeping first-seen casing.
func (e *Extractor) normalizeBrands(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	brands := make([]string, 0, len(raw))
	for _, brand := range raw {
		brand = strings.TrimSpace(brand)
		if brand == "" || e.isExcluded(brand) {
			continue
		}
		key := strings.ToLower(brand)
		if seen[key] {
			continue
		}
		seen[key] = true
		brands = append(brands, brand)
	}
	return brands
}

func (e *Extractor) isExcluded(brand string) bool {
	lower := strings.ToLower(brand)
	for _, excluded := range e.config.ExcludedBrands {
		if excluded == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(excluded)) {
			return true
		}
	}
	return false
}

const systemPrompt = `You are a careful reader of technical documents (architectural plans, specifications, equipment schedules). You identify commercial brand names mentioned as text and answer only with valid JSON.`

func (e *Extractor) buildPrompt(pageNumber int, text string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The following is the OCR-extracted text of page %d of a technical document.\n\n", pageNumber)
	b.WriteString("Identify ALL commercial brand names mentioned anywhere in the text, including:\n")
	b.WriteString("- technical specifications\n")
	b.WriteString("- notes and annotations\n")
	b.WriteString("- legends and symbol tables\n")
	b.WriteString("- section titles and equipment/material details\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Match brand names case-insensitively, but report them exactly as written in the text.\n")
	b.WriteString("- Report only brand names, never generic product descriptions.\n")
	b.WriteString("- If no brands are mentioned, return an empty list.\n")

	b.WriteString("\nText:\n")
	b.WriteString(text)

	fmt.Fprintf(&b, "\n\nAnswer ONLY with JSON in this exact shape, no additional text:\n")
	fmt.Fprintf(&b, "{\n  \"brands_detected\": [\"Brand one\", \"Brand two\"],\n  \"page_number\": %d\n}\n", pageNumber)

	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
