// internal/llmclient/limiter.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

// limitedClient throttles an inner client to a requests-per-minute budget.
// Providers enforce their own quotas server-side; throttling locally keeps
// a long batch from burning the quota in its first minute.
type limitedClient struct {
	inner   schemas.LLMClient
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewLimited wraps client with an rpm ceiling. rpm <= 0 disables throttling.
func NewLimited(client schemas.LLMClient, rpm int, logger *zap.Logger) schemas.LLMClient {
	if rpm <= 0 {
		return client
	}
	return &limitedClient{
		inner:   client,
		limiter: rate.NewLimiter(rate.Limit(rpm)/60.0, 1),
		logger:  logger.Named("llmclient.limiter"),
	}
}

func (l *limitedClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	if l.limiter.Tokens() < 1 {
		l.logger.Debug("Generation request waiting on rate limiter.")
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for generation slot: %w", err)
	}
	return l.inner.Generate(ctx, req)
}

func (l *limitedClient) Close() error { return l.inner.Close() }
