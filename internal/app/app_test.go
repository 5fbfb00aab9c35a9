package app

import (
	"context"
	"errors"
	"testing"

	"github.com/koopa0/kbase/internal/config"
	"github.com/koopa0/kbase/internal/log"
)

func TestApp_Close(t *testing.T) {
	tests := []struct {
		name string
		app  *App
	}{
		{
			name: "minimal app",
			app:  &App{},
		},
		{
			name: "app with logger only",
			app:  &App{Logger: log.NewNop()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.app.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
	}
}

func TestSetup_InvalidConfigFailsFast(t *testing.T) {
	// Missing API key must fail before any connection attempt
	cfg := &config.Config{
		KnowledgeDir:       "knowledge",
		EmbedderModel:      config.DefaultEmbedderModel,
		EmbeddingEndpoint:  config.DefaultEmbeddingEndpoint,
		EmbeddingDimension: config.DefaultEmbeddingDimension,
	}

	_, err := Setup(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected setup to fail without an API key")
	}
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Errorf("error = %v, want ErrMissingAPIKey", err)
	}
}
