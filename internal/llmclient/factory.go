// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/api/schemas"
	"github.com/xkilldash9x/courier-cli/internal/config"
)

// New builds the configured generation backend, wrapped in the local rate
// limiter. The content pipeline treats the returned client as optional: with
// no client configured it composes from templates alone.
func New(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	var (
		client schemas.LLMClient
		err    error
	)
	switch strings.ToLower(cfg.Provider) {
	case "groq":
		client, err = NewGroqClient(cfg, logger)
	case "gemini":
		client, err = NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, schemas.NewConfigError("llm", "unknown provider %q (supported: groq, gemini)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewLimited(client, cfg.RequestsPerMinute, logger), nil
}
