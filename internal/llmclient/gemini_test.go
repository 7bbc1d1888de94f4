package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/courier-cli/internal/config"
)

func geminiTestConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider: "gemini",
		Model:    "gemini-2.0-flash",
		APIKey:   "AIza-test",
	}
}

func TestNewGeminiClientRequiresAPIKey(t *testing.T) {
	cfg := geminiTestConfig()
	cfg.APIKey = ""

	client, err := NewGeminiClient(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestNewGeminiClient(t *testing.T) {
	client, err := NewGeminiClient(context.Background(), geminiTestConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", client.model)
	assert.NotNil(t, client.backoffFactory)
	assert.NoError(t, client.Close())
}

func TestGeminiClassifyError(t *testing.T) {
	client, err := NewGeminiClient(context.Background(), geminiTestConfig(), zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		name          string
		in            error
		wantPermanent bool
	}{
		{name: "quota exhausted", in: genai.APIError{Code: 429}, wantPermanent: false},
		{name: "server error", in: genai.APIError{Code: 500}, wantPermanent: false},
		{name: "bad gateway", in: genai.APIError{Code: 502}, wantPermanent: false},
		{name: "invalid key", in: genai.APIError{Code: 401}, wantPermanent: true},
		{name: "bad request", in: genai.APIError{Code: 400}, wantPermanent: true},
		{name: "plain network error", in: errors.New("connection reset"), wantPermanent: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := client.classifyError(tc.in)
			var perm *backoff.PermanentError
			assert.Equal(t, tc.wantPermanent, errors.As(got, &perm))
		})
	}
}
