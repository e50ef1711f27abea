// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Operating modes for the credit gate.
const (
	// ModeOpen bypasses API key validation entirely (development).
	ModeOpen = "open"
	// ModeGated enforces the credit ledger on every request (production).
	ModeGated = "gated"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Mode       string
	Sessions   SessionsConfig
	Admission  AdmissionConfig
	Generation GenerationConfig
	DocDB      DocDBConfig
	Cache      CacheConfig
	LLM        CollaboratorConfig
	Vision     CollaboratorConfig
	Synth      CollaboratorConfig
	Encryption EncryptionConfig
	Log        LogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host    string
	Port    int
	GinMode string
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionsConfig holds conversational session store configuration.
type SessionsConfig struct {
	IdleTTL         time.Duration
	CleanupInterval time.Duration
	HistoryCeiling  int
}

// AdmissionConfig holds admission controller configuration.
type AdmissionConfig struct {
	// WaitTimeout bounds how long a request waits for the generation slot.
	// Zero means block until the context is cancelled.
	WaitTimeout time.Duration
}

// GenerationConfig holds generation pipeline configuration.
type GenerationConfig struct {
	// Cost is the number of credits debited per generation.
	Cost int64
	// TestMode replaces the synthesis collaborator with a silence stub
	// while still exercising the admission controller.
	TestMode bool
	// BypassLLM skips the decision engine and builds directives directly
	// from caller-supplied fields.
	BypassLLM bool
	// FallbackDuration is the length of the silence substituted when the
	// synthesis collaborator fails.
	FallbackDuration time.Duration
}

// DocDBConfig holds document database configuration.
type DocDBConfig struct {
	URI      string
	Database string
}

// CacheConfig holds cache-related configuration.
type CacheConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

// CollaboratorConfig holds the endpoint of one external inference collaborator.
type CollaboratorConfig struct {
	URL     string
	Timeout time.Duration
}

// EncryptionConfig holds the at-rest encryption configuration.
type EncryptionConfig struct {
	Key string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvAsInt("SERVER_PORT", 8000),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		Mode: getEnv("MODE", ModeOpen),
		Sessions: SessionsConfig{
			IdleTTL:         time.Duration(getEnvAsInt("SESSION_IDLE_TTL_SECONDS", 3600)) * time.Second,
			CleanupInterval: time.Duration(getEnvAsInt("SESSION_CLEANUP_INTERVAL_SECONDS", 3600)) * time.Second,
			HistoryCeiling:  getEnvAsInt("SESSION_HISTORY_CEILING", 9),
		},
		Admission: AdmissionConfig{
			WaitTimeout: time.Duration(getEnvAsInt("ADMISSION_WAIT_TIMEOUT_SECONDS", 0)) * time.Second,
		},
		Generation: GenerationConfig{
			Cost:             int64(getEnvAsInt("GENERATION_COST", 1)),
			TestMode:         getEnvAsBool("IS_TEST", false),
			BypassLLM:        getEnvAsBool("BYPASS_LLM", false),
			FallbackDuration: time.Duration(getEnvAsInt("FALLBACK_SILENCE_SECONDS", 4)) * time.Second,
		},
		DocDB: DocDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "obsidian_neural"),
		},
		Cache: CacheConfig{
			Enabled:  getEnvAsBool("CACHE_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 86400)) * time.Second,
		},
		LLM: CollaboratorConfig{
			URL:     getEnv("LLM_SERVICE_URL", "http://localhost:8081"),
			Timeout: time.Duration(getEnvAsInt("LLM_SERVICE_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Vision: CollaboratorConfig{
			URL:     getEnv("VISION_SERVICE_URL", "http://localhost:8082"),
			Timeout: time.Duration(getEnvAsInt("VISION_SERVICE_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Synth: CollaboratorConfig{
			URL:     getEnv("SYNTH_SERVICE_URL", "http://localhost:8083"),
			Timeout: time.Duration(getEnvAsInt("SYNTH_SERVICE_TIMEOUT_SECONDS", 300)) * time.Second,
		},
		Encryption: EncryptionConfig{
			Key: getEnv("SECRETS_ENCRYPTION_KEY", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Mode != ModeOpen && cfg.Mode != ModeGated {
		return nil, fmt.Errorf("invalid MODE %q: must be %q or %q", cfg.Mode, ModeOpen, ModeGated)
	}
	if cfg.Sessions.HistoryCeiling < 3 {
		return nil, fmt.Errorf("SESSION_HISTORY_CEILING must be at least 3, got %d", cfg.Sessions.HistoryCeiling)
	}

	return cfg, nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
