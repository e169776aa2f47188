// Package config provides configuration loading for campusd.
//
// Configuration is read from an optional YAML file and overridden by
// environment variables. See LoadWithFile for precedence rules.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete campusd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	Index         IndexConfig         `koanf:"index"`
	Database      DatabaseConfig      `koanf:"database"`
	Study         StudyConfig         `koanf:"study"`
	Auth          AuthConfig          `koanf:"auth"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// RateLimit is the per-client chat request rate in requests per second. 0 disables limiting.
	RateLimit      float64  `koanf:"rate_limit"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is one of fastembed, tei, openai, ollama or hash.
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	APIKey    Secret `koanf:"api_key"`
	CacheDir  string `koanf:"cache_dir"`
	BatchSize int    `koanf:"batch_size"`
	// Dimension is only used by the hash provider.
	Dimension int `koanf:"dimension"`
}

// IndexConfig controls where the chunk index lives and how it is served.
type IndexConfig struct {
	Dir      string   `koanf:"dir"`
	TopK     int      `koanf:"top_k"`
	Watch    bool     `koanf:"watch"`
	Debounce Duration `koanf:"debounce"`
}

// DatabaseConfig configures the Postgres connection used for campus records
// and study documents. An empty DSN selects the in-memory stores.
type DatabaseConfig struct {
	DSN      string `koanf:"dsn"`
	Password Secret `koanf:"password"`
	Debug    bool   `koanf:"debug"`
}

// StudyConfig configures study document handling.
type StudyConfig struct {
	UploadDir        string `koanf:"upload_dir"`
	DefaultQuestions int    `koanf:"default_questions"`
	MaxUploadBytes   int64  `koanf:"max_upload_bytes"`
}

// AuthConfig configures how callers are identified.
type AuthConfig struct {
	// Header is a trusted header carrying the user id, used when no token matches.
	Header string `koanf:"header"`
	// Tokens maps bearer tokens to user ids.
	Tokens map[string]string `koanf:"tokens"`
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Service name is empty (when telemetry is enabled)
//   - Embedding provider is unknown
//   - Index directory or top_k is unset
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit must be >= 0, got %v", c.Server.RateLimit)
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	switch c.Embeddings.Provider {
	case "fastembed", "tei", "openai", "ollama", "hash":
	default:
		return fmt.Errorf("unknown embeddings provider %q", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize < 1 {
		return fmt.Errorf("embeddings batch size must be >= 1, got %d", c.Embeddings.BatchSize)
	}

	if c.Index.Dir == "" {
		return errors.New("index dir is required")
	}
	if c.Index.TopK < 1 {
		return fmt.Errorf("index top_k must be >= 1, got %d", c.Index.TopK)
	}

	if c.Study.DefaultQuestions < 1 {
		return fmt.Errorf("study default_questions must be >= 1, got %d", c.Study.DefaultQuestions)
	}

	return nil
}
