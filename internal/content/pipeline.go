// internal/content/pipeline.go
// Package content composes the personalized note attached to each connection
// request. Composition is a two-stage pipeline with a validation gate: AI
// generation first, and on any failure or rubric rejection a deterministic
// template. The template branch cannot fail, so a prospect with a name always
// gets a note.
package content

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/api/schemas"
	"github.com/xkilldash9x/courier-cli/internal/config"
)

// Pipeline turns prospect context into an outgoing note.
type Pipeline struct {
	client schemas.LLMClient // nil means template-only composition
	cfg    config.ContentConfig
	llm    config.LLMConfig
	logger *zap.Logger
	rng    *rand.Rand
}

// NewPipeline wires the composition stages. client may be nil to run without
// a generation backend; rng may be nil to self-seed.
func NewPipeline(client schemas.LLMClient, cfg config.ContentConfig, llm config.LLMConfig, logger *zap.Logger, rng *rand.Rand) *Pipeline {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		client: client,
		cfg:    cfg,
		llm:    llm,
		logger: logger.Named("content"),
		rng:    rng,
	}
}

// Compose produces the note for one prospect. It returns ContentError only
// when the prospect record cannot personalize even a template; AI
// unavailability always lands on the template branch instead.
func (p *Pipeline) Compose(ctx context.Context, prospect schemas.Prospect) (*schemas.GeneratedMessage, error) {
	if strings.TrimSpace(prospect.Name) == "" {
		return nil, &schemas.ContentError{
			Reason: fmt.Sprintf("prospect %s has no name to personalize with", prospect.ProfileURL),
		}
	}

	start := time.Now()

	if p.client != nil {
		msg, err := p.composeAI(ctx, prospect, start)
		if err == nil {
			return msg, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("AI generation rejected, falling back to template.",
			zap.String("prospect", prospect.Name),
			zap.Error(err))
	}

	text, template := templateMessage(prospect, p.rng)
	msg := &schemas.GeneratedMessage{
		Text:     p.optimize(text, prospect),
		Source:   schemas.SourceTemplate,
		Template: template,
		Duration: time.Since(start),
	}
	p.logger.Debug("Composed note from template.",
		zap.String("prospect", prospect.Name),
		zap.String("template", template))
	return msg, nil
}

// composeAI runs the generation backend under the configured hard timeout and
// gates the result through the quality rubric.
func (p *Pipeline) composeAI(ctx context.Context, prospect schemas.Prospect, start time.Time) (*schemas.GeneratedMessage, error) {
	timeout := p.llm.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	system, user := buildPrompt(prospect, p.cfg.MaxLength)
	result, err := p.client.Generate(genCtx, schemas.GenerationRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Options: schemas.GenerationOptions{
			Temperature: p.llm.Temperature,
			MaxTokens:   p.llm.MaxTokens,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := validateMessage(result.Text, prospect, p.cfg); err != nil {
		return nil, fmt.Errorf("quality validation: %w", err)
	}

	return &schemas.GeneratedMessage{
		Text:       p.optimize(strings.TrimSpace(result.Text), prospect),
		Source:     schemas.SourceAI,
		Model:      result.Model,
		TokensUsed: result.TokensUsed,
		Duration:   time.Since(start),
	}, nil
}

// ctaPhrases mark a note as already carrying an invitation to engage.
var ctaPhrases = []string{"connect", "network", "collaborate", "discuss", "chat", "exchange"}

const callToAction = " I'd love to connect and exchange insights."

// optimize applies the final polish: a greeting, an optional call to action,
// and the hard length guard. The guard runs last so nothing appended can push
// the note over the site limit.
func (p *Pipeline) optimize(text string, prospect schemas.Prospect) string {
	if !strings.HasPrefix(text, "Hi") && !strings.HasPrefix(text, "Hello") && !strings.HasPrefix(text, "Hey") {
		text = fmt.Sprintf("Hi %s, %s", prospect.FirstName(), text)
	}

	if p.cfg.AppendCallToAction && !containsAny(strings.ToLower(text), ctaPhrases) {
		if utf8.RuneCountInString(text)+utf8.RuneCountInString(callToAction) <= p.cfg.MaxLength {
			text += callToAction
		}
	}

	if utf8.RuneCountInString(text) > p.cfg.MaxLength {
		text = truncateRunes(text, p.cfg.MaxLength-3) + "..."
	}
	return text
}
