// File path: internal/data/orchestrator/config.go
package orchestrator

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nicodishanthj/pentestgpt/internal/files"
	"github.com/nicodishanthj/pentestgpt/internal/tokens"
)

// Config controls the shared plumbing the orchestrator builds for the
// routes: outbound HTTP, file chunking and token counting.
type Config struct {
	HTTPTimeout   time.Duration
	ChunkSize     int
	ChunkOverlap  int
	TokenEncoding string
}

// DefaultConfig returns the baseline configuration used when no overrides are
// supplied.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:   30 * time.Second,
		ChunkSize:     files.DefaultChunkSize,
		ChunkOverlap:  files.DefaultChunkOverlap,
		TokenEncoding: tokens.DefaultEncoding,
	}
}

// LoadConfig builds a Config from defaults and environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if value := strings.TrimSpace(os.Getenv("PENTESTGPT_HTTP_TIMEOUT")); value != "" {
		dur, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse PENTESTGPT_HTTP_TIMEOUT: %w", err)
		}
		cfg.HTTPTimeout = dur
	}
	if value := strings.TrimSpace(os.Getenv("PENTESTGPT_CHUNK_SIZE")); value != "" {
		size, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse PENTESTGPT_CHUNK_SIZE: %w", err)
		}
		cfg.ChunkSize = size
	}
	if value := strings.TrimSpace(os.Getenv("PENTESTGPT_CHUNK_OVERLAP")); value != "" {
		overlap, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse PENTESTGPT_CHUNK_OVERLAP: %w", err)
		}
		cfg.ChunkOverlap = overlap
	}
	if value := strings.TrimSpace(os.Getenv("PENTESTGPT_TOKEN_ENCODING")); value != "" {
		cfg.TokenEncoding = value
	}
	return applyDefaults(cfg), nil
}

func applyDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaults.HTTPTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = defaults.ChunkOverlap
	}
	if strings.TrimSpace(cfg.TokenEncoding) == "" {
		cfg.TokenEncoding = defaults.TokenEncoding
	}
	return cfg
}

func (c Config) validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be smaller than the chunk size")
	}
	return nil
}
