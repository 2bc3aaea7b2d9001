// Package provider builds the Eino chat model the agent and title
// summarizer run on.
package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Config holds connection settings for an OpenAI-compatible endpoint.
// DashScope, Ollama and vLLM all speak this protocol, so one provider
// covers them via BaseURL.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewChatModel constructs a tool-calling chat model from the config,
// falling back to OPENAI_API_KEY / OPENAI_MODEL_ID when fields are unset.
func NewChatModel(ctx context.Context, cfg Config) (model.ToolCallingChatModel, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("provider: no API key configured")
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = os.Getenv("OPENAI_MODEL_ID")
	}
	if modelID == "" {
		return nil, fmt.Errorf("provider: no model id configured")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	mcfg := &openai.ChatModelConfig{
		APIKey:              apiKey,
		Model:               modelID,
		MaxCompletionTokens: &maxTokens,
	}
	if cfg.BaseURL != "" {
		mcfg.BaseURL = cfg.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, mcfg)
	if err != nil {
		return nil, fmt.Errorf("provider: create chat model: %w", err)
	}
	return chatModel, nil
}
