// internal/llmclient/gemini.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/courier-cli/api/schemas"
	"github.com/xkilldash9x/courier-cli/internal/config"
)

// GeminiClient implements schemas.LLMClient on the official genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger

	backoffFactory func() backoff.BackOff
}

// NewGeminiClient initializes the SDK client. No request is made until
// Generate.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (hint: set COURIER_LLM_API_KEY)")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		logger: logger.Named("llmclient.gemini"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// Generate produces a completion with retries on transient API failures.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	genCfg := &genai.GenerateContentConfig{
		CandidateCount: 1,
	}
	if req.Options.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(req.Options.Temperature))
	}
	if req.Options.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	start := time.Now()
	var result *schemas.GenerationResult

	operation := func() error {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.UserPrompt), genCfg)
		if err != nil {
			return c.classifyError(err)
		}

		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
			return backoff.Permanent(fmt.Errorf("gemini API blocked the request (reason: %s)", resp.Candidates[0].FinishReason))
		}

		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return fmt.Errorf("gemini API returned empty text")
		}

		tokens := 0
		if resp.UsageMetadata != nil {
			tokens = int(resp.UsageMetadata.TotalTokenCount)
		}
		result = &schemas.GenerationResult{
			Text:       text,
			Model:      c.model,
			TokensUsed: tokens,
			Duration:   time.Since(start),
		}

		c.logger.Info("LLM generation complete.",
			zap.String("model", c.model),
			zap.Duration("duration", result.Duration),
			zap.Int("total_tokens", tokens),
		)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

// classifyError separates transient API conditions from permanent ones.
func (c *GeminiClient) classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code/100 == 5 {
			c.logger.Warn("Transient Gemini API error, retrying.", zap.Int("status", apiErr.Code))
			return err
		}
		return backoff.Permanent(fmt.Errorf("gemini API error: %w", err))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		c.logger.Warn("Network error during LLM request, retrying.", zap.Error(err))
		return err
	}
	return err
}

// Close is a no-op; the SDK client holds no long-lived resources.
func (c *GeminiClient) Close() error { return nil }
