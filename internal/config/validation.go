package config

import (
	"fmt"
	"log/slog"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. API key validation (required for every embedding call)
	if c.GoogleAPIKey == "" {
		return fmt.Errorf("%w: GOOGLE_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	// 2. Embedding configuration validation
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.EmbeddingEndpoint == "" {
		return fmt.Errorf("%w: embedding_endpoint cannot be empty", ErrInvalidEmbedderModel)
	}

	// The passages table stores vector(768); any other dimension must come
	// with a matching migration. gemini-embedding-001 supports truncation
	// between 128 and 3072 dimensions.
	if c.EmbeddingDimension < 128 || c.EmbeddingDimension > 3072 {
		return fmt.Errorf("%w: must be between 128 and 3072, got %d",
			ErrInvalidEmbeddingDimension, c.EmbeddingDimension)
	}

	if c.EmbeddingBatchSize < 1 || c.EmbeddingBatchSize > 100 {
		return fmt.Errorf("%w: embedding_batch_size must be between 1 and 100, got %d",
			ErrInvalidEmbedderModel, c.EmbeddingBatchSize)
	}

	if c.EmbeddingTimeoutSecs < 1 {
		return fmt.Errorf("%w: embedding_timeout_secs must be positive, got %d",
			ErrInvalidEmbedderModel, c.EmbeddingTimeoutSecs)
	}

	// 3. Chunking validation: overlap must leave forward progress
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d",
			ErrInvalidChunking, c.ChunkOverlap)
	}

	// 4. Retrieval validation
	if c.VectorTopK <= 0 || c.VectorTopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidTopK, c.VectorTopK)
	}
	if c.VectorMinSimilarity < 0 || c.VectorMinSimilarity > 1 {
		return fmt.Errorf("%w: vector_min_similarity must be in [0, 1], got %.2f",
			ErrInvalidTopK, c.VectorMinSimilarity)
	}

	// 5. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "kbase_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
