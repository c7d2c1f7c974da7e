package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicEngine implements Engine using the Anthropic Messages API.
type AnthropicEngine struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// AnthropicConfig configures the Anthropic client.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// NewAnthropicEngine creates the engine client. When APIKey is empty the
// SDK falls back to the ANTHROPIC_API_KEY environment variable.
func NewAnthropicEngine(cfg AnthropicConfig) *AnthropicEngine {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-20241022"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}

	var client anthropic.Client
	if cfg.APIKey != "" {
		client = anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	} else {
		client = anthropic.NewClient()
	}

	return &AnthropicEngine{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// RunStage implements Engine.RunStage. Role, goal and backstory become the
// system prompt; the task is sent as the user message.
func (e *AnthropicEngine) RunStage(ctx context.Context, req StageRequest) (string, error) {
	system := fmt.Sprintf("You are the %s.\nGoal: %s\n%s", req.Role, req.Goal, req.Backstory)

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: int64(e.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Task)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var textParts []string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}
	return strings.Join(textParts, ""), nil
}

// Name implements Engine.Name.
func (e *AnthropicEngine) Name() string {
	return "anthropic"
}

// Model implements Engine.Model.
func (e *AnthropicEngine) Model() string {
	return e.model
}
