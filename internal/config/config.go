// Package config loads the environment-driven configuration surface of
// the brand detection pipeline. Every knob governing chunking, OCR,
// retries, concurrency and persistence lives here so the effective
// behavior of a deployment is reviewable in one place.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"brandscan/internal/logger"
)

type Config struct {
	// OpenAI Configuration
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float32

	// Google Cloud Configuration
	GoogleCloudProject  string
	FirestoreCollection string

	// OCR Processing
	OCRLanguages          string  // comma-separated language hints, e.g. "es,en"
	OCRConfidenceThreshold float32 // detections below this are dropped before aggregation
	OCRMaxRetries         int
	OCRRetryDelay         time.Duration // base backoff delay, doubles per failed attempt

	// Chunking
	ChunkWidth   int
	ChunkHeight  int
	ChunkOverlap int // overlap margin between adjacent chunks, pixels
	RowTolerance int // vertical binning tolerance for reading-order reconstruction

	// Concurrency. The two bounds compose multiplicatively: the OCR
	// concurrency ceiling is MaxConcurrentPages * MaxConcurrentChunks.
	MaxConcurrentPages  int
	MaxConcurrentChunks int
	PageTimeout         time.Duration // 0 = no per-page deadline

	// PDF ingestion
	PDFDPI            int
	MaxImageSize      int // pages larger than this on either axis are downscaled
	RasterizerCommand string

	// Brand filtering
	ExcludedBrands []string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITemperature: float32(getFloatEnv("OPENAI_TEMPERATURE", 0.1)),

		GoogleCloudProject:  getEnv("GOOGLE_CLOUD_PROJECT", ""),
		FirestoreCollection: getEnv("FIRESTORE_COLLECTION", "documents"),

		OCRLanguages:           getEnv("OCR_LANGUAGES", "es,en"),
		OCRConfidenceThreshold: float32(getFloatEnv("OCR_CONFIDENCE_THRESHOLD", 0.3)),
		OCRMaxRetries:          getIntEnv("OCR_MAX_RETRIES", 3),
		OCRRetryDelay:          getDurationEnv("OCR_RETRY_DELAY", time.Second),

		ChunkWidth:   getIntEnv("CHUNK_WIDTH", 1024),
		ChunkHeight:  getIntEnv("CHUNK_HEIGHT", 1024),
		ChunkOverlap: getIntEnv("CHUNK_OVERLAP", 200),
		RowTolerance: getIntEnv("ROW_TOLERANCE", 50),

		MaxConcurrentPages:  getIntEnv("MAX_CONCURRENT_PAGES", 8),
		MaxConcurrentChunks: getIntEnv("MAX_CONCURRENT_CHUNKS", 8),
		PageTimeout:         getDurationEnv("PAGE_TIMEOUT", 0),

		PDFDPI:            getIntEnv("PDF_DPI", 300),
		MaxImageSize:      getIntEnv("MAX_IMAGE_SIZE", 20000),
		RasterizerCommand: getEnv("RASTERIZER_COMMAND", "pdftoppm"),

		ExcludedBrands: getListEnv("EXCLUDED_BRANDS"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:     getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.ChunkOverlap >= c.ChunkWidth || c.ChunkOverlap >= c.ChunkHeight {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than chunk dimensions (%dx%d)",
			c.ChunkOverlap, c.ChunkWidth, c.ChunkHeight)
	}
	if c.OCRMaxRetries < 1 {
		return fmt.Errorf("OCR_MAX_RETRIES must be at least 1")
	}
	if c.MaxConcurrentPages < 1 || c.MaxConcurrentChunks < 1 {
		return fmt.Errorf("concurrency bounds must be at least 1")
	}
	if c.OCRConfidenceThreshold < 0 || c.OCRConfidenceThreshold > 1 {
		return fmt.Errorf("OCR_CONFIDENCE_THRESHOLD must be in [0,1]")
	}
	return nil
}

// LanguageHints returns the configured OCR languages as a list.
func (c *Config) LanguageHints() []string {
	var hints []string
	for _, lang := range strings.Split(c.OCRLanguages, ",") {
		if lang = strings.TrimSpace(lang); lang != "" {
			hints = append(hints, lang)
		}
	}
	return hints
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		// Bare numbers are accepted as seconds, matching older deployments.
		if secs, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
