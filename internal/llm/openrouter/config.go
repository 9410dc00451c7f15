package openrouter

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Config for the OpenRouter client.
type Config struct {
	APIKey         string  // if empty, falls back to env OPENROUTER_API_KEY
	BaseURL        string  // default https://openrouter.ai/api/v1
	PrimaryModel   string  // e.g. "qwen/qwen2.5-vl-72b-instruct"
	SecondaryModel string  // fallback model, may be empty
	Temperature    float32 // 0..2
	MaxTokens      int
	Timeout        time.Duration // http client timeout
	MaxRetries     int           // per-model retry budget in SendJSON
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.PrimaryModel == "" {
		cfg.PrimaryModel = "qwen/qwen2.5-vl-72b-instruct"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}
