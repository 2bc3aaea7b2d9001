// Package config loads gateway configuration from JSONC files, a .env file,
// and environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
)

// Config holds all gateway settings.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `json:"addr"`

	// Model settings for the agent runtime and title summarizer.
	// BaseURL may point at any OpenAI-compatible endpoint.
	APIKey    string `json:"apiKey"`
	BaseURL   string `json:"baseUrl"`
	Model     string `json:"model"`
	MaxTokens int    `json:"maxTokens"`

	// BackendURL is the base URL for outbound tool calls made on the
	// agent's behalf.
	BackendURL string `json:"backendUrl"`

	// StoreURL is the base URL of the REST table-store holding sessions
	// and messages. StoreKey is its service credential.
	StoreURL string `json:"storeUrl"`
	StoreKey string `json:"storeKey"`

	// JWTSecret verifies client bearer tokens (HS512).
	JWTSecret string `json:"jwtSecret"`

	// ChunkDelay paces streamed chunks for typewriter effect. Zero
	// disables pacing.
	ChunkDelay time.Duration `json:"-"`
	// ChunkDelayMS is the JSON-facing form of ChunkDelay.
	ChunkDelayMS int `json:"chunkDelayMs"`

	// EnableCORS toggles permissive CORS on the HTTP surface.
	EnableCORS bool `json:"enableCors"`

	// LogLevel and LogPretty configure the process logger.
	LogLevel  string `json:"logLevel"`
	LogPretty bool   `json:"logPretty"`
}

// Default returns the baseline configuration before files and environment
// are applied.
func Default() *Config {
	return &Config{
		Addr:         ":8081",
		Model:        "qwen-plus",
		BaseURL:      "https://dashscope.aliyuncs.com/compatible-mode/v1",
		MaxTokens:    4096,
		ChunkDelayMS: 10,
		EnableCORS:   true,
		LogLevel:     "info",
	}
}

// Load builds the configuration: defaults, then an optional JSONC file, then
// .env, then environment variables (highest priority).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		// Conventional locations, first match wins.
		for _, p := range []string{"concierge.json", "concierge.jsonc"} {
			if _, err := os.Stat(p); err == nil {
				if err := loadFile(p, cfg); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	// .env is optional; missing files are not an error.
	_ = godotenv.Load()

	applyEnv(cfg)

	cfg.ChunkDelay = time.Duration(cfg.ChunkDelayMS) * time.Millisecond

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("config: API_KEY not set")
	}
	return cfg, nil
}

// loadFile merges one JSONC config file into cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", filepath.Clean(path), err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", filepath.Clean(path), err)
	}
	return nil
}

// applyEnv overrides cfg from environment variables. Names follow the
// original deployment's .env contract.
func applyEnv(cfg *Config) {
	set := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set("CONCIERGE_ADDR", &cfg.Addr)
	set("API_KEY", &cfg.APIKey)
	set("MODEL_BASE_URL", &cfg.BaseURL)
	set("MODEL_ID", &cfg.Model)
	set("BACKEND_URL", &cfg.BackendURL)
	set("STORE_URL", &cfg.StoreURL)
	set("STORE_KEY", &cfg.StoreKey)
	set("JWT_SECRET", &cfg.JWTSecret)
	set("LOG_LEVEL", &cfg.LogLevel)

	if v := os.Getenv("CHUNK_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ChunkDelayMS = n
		}
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.LogPretty = v == "1" || v == "true"
	}
}
