package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/synapse/internal/profile"
)

func TestNewConfigFromProfile(t *testing.T) {
	prof := &profile.Profile{
		EmbeddingBaseURL:    "http://localhost:11434/v1",
		EmbeddingAPIKey:     "ollama",
		EmbeddingModel:      "nomic-embed-text",
		EmbeddingDimensions: 768,
	}

	cfg := NewConfigFromProfile(prof)
	assert.Equal(t, "http://localhost:11434/v1", cfg.BaseURL)
	assert.Equal(t, "ollama", cfg.APIKey)
	assert.Equal(t, "nomic-embed-text", cfg.Model)
	assert.Equal(t, 768, cfg.Dimensions)
	assert.Equal(t, DefaultMaxInputChars, cfg.MaxInputChars)
	require.NoError(t, cfg.Validate())
}

func TestEmbeddingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EmbeddingConfig
		wantErr bool
	}{
		{"valid", EmbeddingConfig{BaseURL: "http://x", Model: "m", Dimensions: 3}, false},
		{"missing base url", EmbeddingConfig{Model: "m", Dimensions: 3}, true},
		{"missing model", EmbeddingConfig{BaseURL: "http://x", Dimensions: 3}, true},
		{"zero dimensions", EmbeddingConfig{BaseURL: "http://x", Model: "m"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
