// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.kbase/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Knowledge: corpus directory and recognized file extension
//   - Embedding: model, endpoint, output dimension, timeouts, batching
//   - Retrieval: vector top-K, search deadline, fallback limits
//   - Storage: PostgreSQL connection (see storage.go)
//   - Serve: HTTP listen address, rate limiting, request timeout
//
// Security: sensitive values (database password, API key) are masked in
// MarshalJSON and String. Validation happens immediately after load so
// a misconfigured process fails fast instead of hanging on first use.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the embedding service API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidEmbedderModel indicates the embedder model name is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbeddingDimension indicates the embedding dimension is out of range.
	ErrInvalidEmbeddingDimension = errors.New("invalid embedding dimension")

	// ErrInvalidChunking indicates chunk size/overlap values are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidTopK indicates the vector search top-K value is out of range.
	ErrInvalidTopK = errors.New("invalid vector top-k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default but supports
	// truncation via OutputDimensionality; the passages table stores 768.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbeddingEndpoint is the Gemini embedContent API base URL.
	// The model name and API key are appended per request.
	DefaultEmbeddingEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

	// DefaultEmbeddingDimension matches the vector(768) column in db/migrations.
	DefaultEmbeddingDimension = 768

	// DefaultVectorTopK is the number of nearest chunks fetched per query.
	DefaultVectorTopK = 4

	// DefaultVectorTimeoutSecs bounds the whole vector retrieval path.
	DefaultVectorTimeoutSecs = 10

	// DefaultFallbackMaxResults caps the lexical fallback result set.
	DefaultFallbackMaxResults = 3

	// DefaultFallbackMinTermLength drops query terms this short or shorter.
	DefaultFallbackMinTermLength = 3
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Knowledge corpus
	KnowledgeDir string `mapstructure:"knowledge_dir" json:"knowledge_dir"`
	KnowledgeExt string `mapstructure:"knowledge_ext" json:"knowledge_ext"`

	// Chunking
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Embedding service
	EmbedderModel        string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbeddingEndpoint    string `mapstructure:"embedding_endpoint" json:"embedding_endpoint"`
	EmbeddingDimension   int    `mapstructure:"embedding_dimension" json:"embedding_dimension"`
	EmbeddingTimeoutSecs int    `mapstructure:"embedding_timeout_secs" json:"embedding_timeout_secs"`
	EmbeddingBatchSize   int    `mapstructure:"embedding_batch_size" json:"embedding_batch_size"`
	GoogleAPIKey         string `mapstructure:"google_api_key" json:"google_api_key"` // SENSITIVE: masked in MarshalJSON

	// Retrieval
	VectorTopK            int     `mapstructure:"vector_top_k" json:"vector_top_k"`
	VectorTimeoutSecs     int     `mapstructure:"vector_timeout_secs" json:"vector_timeout_secs"`
	VectorMinSimilarity   float32 `mapstructure:"vector_min_similarity" json:"vector_min_similarity"`
	FallbackMaxResults    int     `mapstructure:"fallback_max_results" json:"fallback_max_results"`
	FallbackMinTermLength int     `mapstructure:"fallback_min_term_length" json:"fallback_min_term_length"`

	// Storage configuration (see storage.go for DSN helpers)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP serve mode
	ServeAddr           string  `mapstructure:"serve_addr" json:"serve_addr"`
	RequestTimeoutSecs  int     `mapstructure:"request_timeout_secs" json:"request_timeout_secs"`
	RateLimitPerSecond  float64 `mapstructure:"rate_limit_per_second" json:"rate_limit_per_second"`
	RateLimitBurst      int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
	TrustProxy          bool    `mapstructure:"trust_proxy" json:"trust_proxy"`
	MaxSearchQueryBytes int     `mapstructure:"max_search_query_bytes" json:"max_search_query_bytes"`

	// Logging
	LogLevel     string `mapstructure:"log_level" json:"log_level"`
	LogJSON      bool   `mapstructure:"log_json" json:"log_json"`
	LogAddSource bool   `mapstructure:"log_add_source" json:"log_add_source"`
}

// SlogLevel maps the configured log level name to a slog.Level.
// Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".kbase")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Knowledge defaults
	viper.SetDefault("knowledge_dir", "knowledge")
	viper.SetDefault("knowledge_ext", ".md")

	// Chunking defaults
	viper.SetDefault("chunk_size", 1000)
	viper.SetDefault("chunk_overlap", 200)

	// Embedding defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedding_endpoint", DefaultEmbeddingEndpoint)
	viper.SetDefault("embedding_dimension", DefaultEmbeddingDimension)
	viper.SetDefault("embedding_timeout_secs", 30)
	viper.SetDefault("embedding_batch_size", 5)

	// Retrieval defaults
	viper.SetDefault("vector_top_k", DefaultVectorTopK)
	viper.SetDefault("vector_timeout_secs", DefaultVectorTimeoutSecs)
	viper.SetDefault("vector_min_similarity", 0.0) // accept any nearest neighbor
	viper.SetDefault("fallback_max_results", DefaultFallbackMaxResults)
	viper.SetDefault("fallback_min_term_length", DefaultFallbackMinTermLength) // terms this short or shorter are dropped

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "kbase")
	viper.SetDefault("postgres_password", "kbase_dev_password")
	viper.SetDefault("postgres_db_name", "kbase")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Serve defaults
	viper.SetDefault("serve_addr", "127.0.0.1:3500")
	viper.SetDefault("request_timeout_secs", 20)
	viper.SetDefault("rate_limit_per_second", 5.0)
	viper.SetDefault("rate_limit_burst", 10)
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("max_search_query_bytes", 1000)

	// Logging
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)
	viper.SetDefault("log_add_source", false)
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Embedding service credentials
	mustBind("google_api_key", "GOOGLE_API_KEY")

	// Runtime overrides
	mustBind("knowledge_dir", "KBASE_KNOWLEDGE_DIR")
	mustBind("embedder_model", "KBASE_EMBEDDER_MODEL")
	mustBind("embedding_endpoint", "KBASE_EMBEDDING_ENDPOINT")
	mustBind("serve_addr", "KBASE_SERVE_ADDR")
	mustBind("trust_proxy", "KBASE_TRUST_PROXY")
	mustBind("log_level", "KBASE_LOG_LEVEL")

	// NOTE: DATABASE_URL is parsed separately in parseDatabaseURL and takes
	// priority over the individual postgres_* settings.
}

// EmbeddingTimeout returns the per-call embedding timeout as a duration.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.EmbeddingTimeoutSecs) * time.Second
}

// VectorTimeout returns the vector search deadline as a duration.
func (c *Config) VectorTimeout() time.Duration {
	return time.Duration(c.VectorTimeoutSecs) * time.Second
}

// RequestTimeout returns the end-to-end HTTP request deadline.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 bytes
// or fewer are fully masked so the output never contains a substring of
// the real value; longer secrets keep the first and last two characters
// for debugging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - GoogleAPIKey
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.GoogleAPIKey = maskSecret(a.GoogleAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
