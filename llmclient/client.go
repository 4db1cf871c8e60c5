package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"

	"filechat/config"
	apperrors "filechat/errors"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// Client wraps a stateless chat-completion model behind fixed generation
// parameters. The provider holds no conversation state between calls; every
// call carries the full message context it should see.
type Client struct {
	model    llms.Model
	callOpts []llms.CallOption
	logger   *zap.Logger
}

// New builds the configured provider's model. Providers that need an API key
// fail here, before any network call is attempted.
func New(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	model, err := newModel(cfg)
	if err != nil {
		return nil, err
	}

	callOpts := []llms.CallOption{
		llms.WithTemperature(cfg.LLMTemperature),
		llms.WithTopK(cfg.LLMTopK),
		llms.WithTopP(cfg.LLMTopP),
		llms.WithMaxTokens(cfg.LLMMaxTokens),
	}

	logger.Info("LLM client initialized",
		zap.String("provider", cfg.LLMProvider),
		zap.String("model", cfg.LLMModel))

	return &Client{model: model, callOpts: callOpts, logger: logger}, nil
}

// NewWithModel wraps an already-constructed model. Callers that assemble
// their own provider, or substitute one in tests, inject it here.
func NewWithModel(model llms.Model, callOpts []llms.CallOption, logger *zap.Logger) *Client {
	return &Client{model: model, callOpts: callOpts, logger: logger}
}

func newModel(cfg *config.Config) (llms.Model, error) {
	switch cfg.LLMProvider {
	case "", "ollama":
		return ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
	case "openai":
		if cfg.LLMAPIKey == "" {
			return nil, apperrors.WrapError(apperrors.ErrModelNotConfigured, "openai provider requires LLM_API_KEY")
		}
		return openai.New(
			openai.WithToken(cfg.LLMAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
	case "anthropic":
		if cfg.LLMAPIKey == "" {
			return nil, apperrors.WrapError(apperrors.ErrModelNotConfigured, "anthropic provider requires LLM_API_KEY")
		}
		return anthropic.New(
			anthropic.WithToken(cfg.LLMAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
	default:
		return nil, apperrors.WrapErrorf(apperrors.ErrModelNotConfigured, "unknown LLM provider %q", cfg.LLMProvider)
	}
}

// generate issues one model call and returns the first choice's text.
func (c *Client) generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	if c.model == nil {
		return "", apperrors.WrapError(apperrors.ErrModelNotConfigured, "no model configured")
	}

	resp, err := c.model.GenerateContent(ctx, messages, c.callOpts...)
	if err != nil {
		return "", classifyModelError(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.WrapError(apperrors.ErrNoData, "model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func classifyModelError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.WrapError(apperrors.ErrNetwork, err.Error())
	}
	return fmt.Errorf("model call failed: %w", err)
}
