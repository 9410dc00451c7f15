package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Lexicon  LexiconConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN         string
	DialTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Addr          string
	RatePerSecond float64
	RateBurst     int64
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TesseractLang string
	TessdataDir   string
	DPI           int
	MaxPages      int
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	PrimaryModel   string
	SecondaryModel string
	APIKey         string
	BaseURL        string
	Temperature    float32
	Timeout        time.Duration
	MaxRetries     int
}

// LexiconConfig points at the rule/glossary tables. Empty paths mean
// the embedded defaults are used.
type LexiconConfig struct {
	ActsPath     string
	GlossaryPath string
	RulesPath    string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:         getEnv("DB_URL", ""),
			DialTimeout: getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			Addr:          getEnv("HTTP_ADDR", ":8080"),
			RatePerSecond: getEnvAsFloat64("RATE_PER_SECOND", 3),
			RateBurst:     int64(getEnvAsInt("RATE_BURST", 1000)),
		},
		OCR: OCRConfig{
			TesseractLang: getEnv("TESSERACT_LANG", "fra"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
		},
		LLM: LLMConfig{
			PrimaryModel:   getEnv("MODEL_PRIMARY", "qwen/qwen2.5-vl-72b-instruct"),
			SecondaryModel: getEnv("MODEL_SECONDARY", "mistralai/mistral-small-3.1-24b-instruct"),
			APIKey:         getEnv("OPENROUTER_API_KEY", ""),
			BaseURL:        getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			Temperature:    getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			MaxRetries:     getEnvAsInt("LLM_MAX_RETRIES", 3),
		},
		Lexicon: LexiconConfig{
			ActsPath:     getEnv("LEXICON_ACTES", ""),
			GlossaryPath: getEnv("LEXICON_MEDICAMENTS", ""),
			RulesPath:    getEnv("LEXICON_REGLES", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENROUTER_API_KEY is required", ErrInvalidInput)
	}
	return nil
}
