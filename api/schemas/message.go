package schemas

import "time"

// -- Message Schemas --

// MessageSource records where a note's text came from.
type MessageSource string

const (
	// SourceAI marks text produced by the remote generation backend.
	SourceAI MessageSource = "ai"
	// SourceTemplate marks text produced by the deterministic fallback bank.
	SourceTemplate MessageSource = "template"
)

// GeneratedMessage is the output of the content pipeline. Provenance fields
// are always populated so every sent note can be traced to its origin.
type GeneratedMessage struct {
	Text       string        `json:"text"`
	Source     MessageSource `json:"source"`
	Model      string        `json:"model,omitempty"`
	Template   string        `json:"template,omitempty"`
	TokensUsed int           `json:"tokens_used,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// -- LLM Client Schemas --

// GenerationOptions controls the text generation process of the backend.
type GenerationOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// GenerationRequest encapsulates one complete request to the generation
// backend: the persona instructions and the prospect-specific prompt.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Options      GenerationOptions `json:"options"`
}

// GenerationResult carries the backend reply together with usage metadata.
type GenerationResult struct {
	Text       string        `json:"text"`
	Model      string        `json:"model"`
	TokensUsed int           `json:"tokens_used"`
	Duration   time.Duration `json:"duration"`
}
