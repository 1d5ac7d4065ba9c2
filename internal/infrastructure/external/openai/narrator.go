package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/expense-screening/internal/application/port"
)

// ErrEmptyResponse is returned when the model produced no usable text
var ErrEmptyResponse = errors.New("no response from OpenAI")

// Config holds narrator settings
type Config struct {
	APIKey      string
	BaseURL     string // empty for the public API
	Model       string
	Temperature float32 // overrides the prompt's temperature when > 0
	MaxTokens   int     // overrides the prompt's max_tokens when > 0
	Timeout     time.Duration
	PromptsPath string
}

// Narrator implements port.Narrator using chat completions
type Narrator struct {
	client  *openai.Client
	prompt  Prompt
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewNarrator creates a narrator from cfg
func NewNarrator(cfg Config, logger *zap.Logger) (*Narrator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api_key is required")
	}

	prompts, err := LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}
	prompt := prompts.RunNarrative
	if cfg.Temperature > 0 {
		prompt.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		prompt.MaxTokens = cfg.MaxTokens
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &Narrator{
		client:  openai.NewClientWithConfig(clientCfg),
		prompt:  prompt,
		model:   model,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Narrate asks the model for a short narrative of the run digest
func (n *Narrator) Narrate(ctx context.Context, digest port.RunDigest) (string, error) {
	user, err := renderTemplate(n.prompt.UserTemplate, digest)
	if err != nil {
		return "", err
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       n.model,
		Temperature: n.prompt.Temperature,
		MaxTokens:   n.prompt.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: n.prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		n.logger.Error("OpenAI API call failed", zap.String("run_id", digest.RunID), zap.Error(err))
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	narrative := strings.TrimSpace(resp.Choices[0].Message.Content)
	if narrative == "" {
		return "", ErrEmptyResponse
	}

	n.logger.Info("Run narrative generated",
		zap.String("run_id", digest.RunID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return narrative, nil
}

var _ port.Narrator = (*Narrator)(nil)
