// Package config loads and holds all scrubcli/process configuration.
// Settings are layered: defaults → scrubber-config.json → environment
// variables (env vars win). LLM endpoint/model/key and the cache file
// path are process-level settings; the ScrubberConfig block is exactly
// the configuration surface a caller can hand straight to scrubber.New.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// ScrubberConfig is the sparse, overridable configuration surface of a
// Scrubber. Every field has a documented default; the zero value of the
// struct is NOT valid on its own
// — use Defaults() or Load() to get a fully populated config, then
// selectively override fields as needed.
type ScrubberConfig struct {
	// Detection
	EnableRegex bool `json:"enableRegex"`
	EnableLLM   bool `json:"enableLLM"`

	// LLM
	Model              string `json:"model"`
	Temperature        float32 `json:"temperature"`
	BaseTimeoutMs      int    `json:"baseTimeoutMs"`
	TimeoutPerKbMs     int    `json:"timeoutPerKbMs"`
	MaxTimeoutMs       int    `json:"maxTimeoutMs"`
	UseAdaptiveTimeout bool   `json:"useAdaptiveTimeout"`
	MaxRetries         int    `json:"maxRetries"`
	SystemPrompt       string `json:"systemPrompt"` // empty uses the detector's built-in prompt

	// Chunking
	EnableChunking      bool `json:"enableChunking"`
	ChunkThreshold      int  `json:"chunkThreshold"`
	MaxChunkSize        int  `json:"maxChunkSize"`
	OverlapSize         int  `json:"overlapSize"`
	PreserveBoundaries  bool `json:"preserveBoundaries"`
	MaxConcurrentChunks int  `json:"maxConcurrentChunks"`

	// Redaction
	Strategy string `json:"strategy"` // replace|hash|mask|remove
	HashKey  string `json:"hashKey"`  // hex-encoded; required for strategy=hash

	// Audit
	Version              string `json:"version"`
	IncludeEntityDetails bool   `json:"includeEntityDetails"`

	// Short-circuit
	MinLengthChars int `json:"minLengthChars"`
}

// Config holds everything a scrubcli process needs beyond the core's own
// configuration surface: where the LLM lives, how to authenticate to it,
// where the optional LLM detection cache lives on disk, and how verbosely
// to log.
type Config struct {
	Scrubber ScrubberConfig `json:"scrubber"`

	LLMBaseURL string `json:"llmBaseUrl"`
	LLMAPIKey  string `json:"llmApiKey"`

	CacheFile string `json:"cacheFile"` // path to bbolt LLM-detection cache; empty = in-memory only
	LogLevel  string `json:"logLevel"`
}

// Load returns config with defaults overridden by scrubber-config.json and
// env vars.
func Load() *Config {
	return LoadFrom("scrubber-config.json")
}

// LoadFrom is like Load but reads the JSON layer from an explicit path
// instead of the default "scrubber-config.json".
func LoadFrom(path string) *Config {
	cfg := defaults()
	loadFile(cfg, path)
	loadEnv(cfg)
	return cfg
}

// Defaults returns a ScrubberConfig populated with its documented default
// values, for callers that only need the core's configuration surface
// (e.g. tests, or an embedder that doesn't use Config/Load at all).
func Defaults() ScrubberConfig {
	return defaults().Scrubber
}

func defaults() *Config {
	return &Config{
		Scrubber: ScrubberConfig{
			EnableRegex: true,
			EnableLLM:   true,

			Model:              "gpt-4o-mini",
			Temperature:        0,
			BaseTimeoutMs:      30_000,
			TimeoutPerKbMs:     10_000,
			MaxTimeoutMs:       600_000,
			UseAdaptiveTimeout: true,
			MaxRetries:         2,

			EnableChunking:      true,
			ChunkThreshold:      5_000,
			MaxChunkSize:        5_000,
			OverlapSize:         500,
			PreserveBoundaries:  true,
			MaxConcurrentChunks: 5,

			Strategy: "replace",

			Version:              "1.0.0",
			IncludeEntityDetails: true,

			MinLengthChars: 20,
		},
		LogLevel: "info",
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G703: path is a controlled config file path, not user input
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Scrubber.Model = v
	}
	if v := os.Getenv("ENABLE_LLM"); v == "false" {
		cfg.Scrubber.EnableLLM = false
	}
	if v := os.Getenv("ENABLE_REGEX"); v == "false" {
		cfg.Scrubber.EnableRegex = false
	}
	if v := os.Getenv("REDACTION_STRATEGY"); v != "" {
		cfg.Scrubber.Strategy = v
	}
	if v := os.Getenv("MAX_CONCURRENT_CHUNKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scrubber.MaxConcurrentChunks = n
		}
	}
	if v := os.Getenv("CHUNK_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scrubber.ChunkThreshold = n
		}
	}
	if v := os.Getenv("CACHE_FILE"); v != "" {
		cfg.CacheFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
