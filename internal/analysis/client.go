package analysis

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/advisorloop/autoengine/internal/config"
	"github.com/advisorloop/autoengine/internal/logger"
)

// LLMClient classifies symbol trends through an OpenAI-compatible chat
// endpoint (DeepSeek by default).
type LLMClient struct {
	client *openai.Client
	model  string
	cfg    *config.Config
	logger *logger.Logger
}

func NewLLMClient(cfg *config.Config, log *logger.Logger) *LLMClient {
	ocfg := openai.DefaultConfig(cfg.Analysis.APIKey)
	ocfg.BaseURL = cfg.Analysis.BaseURL

	return &LLMClient{
		client: openai.NewClientWithConfig(ocfg),
		model:  cfg.Analysis.Model,
		cfg:    cfg,
		logger: log,
	}
}

// Analyze returns the trend classification for one symbol plus the raw model
// response for auditing.
func (c *LLMClient) Analyze(ctx context.Context, snap *Snapshot) (*Result, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AnalysisTimeout())
	defer cancel()

	userPrompt := BuildUserPrompt(snap)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("analysis API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, "", fmt.Errorf("analysis returned no choices")
	}

	rawResponse := resp.Choices[0].Message.Content
	c.logger.Debug("analysis raw response", "symbol", snap.Symbol, "content", rawResponse)

	result, err := ParseResult(rawResponse)
	if err != nil {
		return nil, rawResponse, fmt.Errorf("parse analysis response: %w", err)
	}
	if result.Symbol == "" {
		result.Symbol = snap.Symbol
	}

	return result, rawResponse, nil
}
