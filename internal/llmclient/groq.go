// internal/llmclient/groq.go
package llmclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/api/schemas"
	"github.com/xkilldash9x/courier-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultGroqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// GroqClient implements schemas.LLMClient against Groq's OpenAI-compatible
// chat completions API.
type GroqClient struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *zap.Logger

	// Swapped out in tests to avoid real retry delays.
	backoffFactory func() backoff.BackOff
}

// -- Chat Completions Request/Response Structures (Internal to this file) --

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewGroqClient initializes the client. The API key is mandatory.
func NewGroqClient(cfg config.LLMConfig, logger *zap.Logger) (*GroqClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq API key is required (hint: set COURIER_LLM_API_KEY)")
	}

	endpoint := defaultGroqEndpoint
	if cfg.BaseURL != "" {
		endpoint = strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions"
	}

	return &GroqClient{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		model:    cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.Named("llmclient.groq"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// Generate sends the prompts to the chat completions endpoint with retries on
// transient failures.
func (c *GroqClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	payload := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: req.Options.Temperature,
		MaxTokens:   req.Options.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling chat completion request: %w", err)
	}

	start := time.Now()
	var result *schemas.GenerationResult

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying.", zap.Error(err))
			return fmt.Errorf("executing HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var completion chatCompletionResponse
		if err := json.Unmarshal(respBody, &completion); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding chat completion response: %w", err))
		}
		if len(completion.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("groq API returned no choices"))
		}

		choice := completion.Choices[0]
		text := strings.TrimSpace(choice.Message.Content)
		if text == "" {
			if choice.FinishReason == "content_filter" {
				return backoff.Permanent(fmt.Errorf("groq API filtered the completion (finish_reason: %s)", choice.FinishReason))
			}
			return fmt.Errorf("groq API returned empty content (finish_reason: %s)", choice.FinishReason)
		}

		model := completion.Model
		if model == "" {
			model = c.model
		}
		result = &schemas.GenerationResult{
			Text:       text,
			Model:      model,
			TokensUsed: completion.Usage.TotalTokens,
			Duration:   time.Since(start),
		}

		c.logger.Info("LLM generation complete.",
			zap.String("model", model),
			zap.Duration("duration", result.Duration),
			zap.Int("prompt_tokens", completion.Usage.PromptTokens),
			zap.Int("completion_tokens", completion.Usage.CompletionTokens),
			zap.Int("total_tokens", completion.Usage.TotalTokens),
		)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

// handleAPIError decides whether a non-200 status is worth retrying.
func (c *GroqClient) handleAPIError(statusCode int, body []byte) error {
	err := fmt.Errorf("groq API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusGatewayTimeout:
		c.logger.Error("Groq API returned transient error status.", zap.Int("status", statusCode))
		return err
	default:
		c.logger.Error("Groq API returned permanent error status.",
			zap.Int("status", statusCode), zap.String("response", string(body)))
		return backoff.Permanent(err)
	}
}

// Close releases idle connections.
func (c *GroqClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
