package chat

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrInvalidModelConfig indicates unusable generation-model configuration.
var ErrInvalidModelConfig = errors.New("invalid generation model configuration")

// ModelConfig configures the answer-generation model.
type ModelConfig struct {
	// BaseURL is the base URL of the OpenAI-compatible chat API.
	BaseURL string `koanf:"base_url"`

	// Model is the generation model identifier, e.g. gpt-4o-mini.
	Model string `koanf:"model"`

	// APIKey authenticates against the provider.
	APIKey string `koanf:"api_key"`
}

// Validate validates the configuration.
func (c ModelConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidModelConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidModelConfig)
	}
	return nil
}

// NewModel creates a streaming-capable generation model from cfg via
// langchaingo's OpenAI client.
func NewModel(cfg ModelConfig) (llms.Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "unused"
	}

	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return model, nil
}
