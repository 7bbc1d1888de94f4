package schemas

import (
	"context"
	"time"
)

// -- Browser Control Interface --

// PageDriver is the minimal browser-control surface the outreach engine
// consumes. The chromedp implementation lives in internal/browser; tests use
// in-memory fakes.
type PageDriver interface {
	// Navigate loads a URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until an element matching the strategy is present and
	// visible, or the timeout elapses.
	WaitVisible(ctx context.Context, s Strategy, timeout time.Duration) error
	// Click clicks the element previously resolved for a role.
	Click(ctx context.Context, el ResolvedElement) error
	// Fill replaces the content of the resolved input element with text.
	Fill(ctx context.Context, el ResolvedElement, text string) error
	// PageText returns the page's visible text for marker scans.
	PageText(ctx context.Context) (string, error)
	// OuterHTML returns the serialized DOM for offline extraction.
	OuterHTML(ctx context.Context) (string, error)
}

// -- LLM Client Interface --

// LLMClient abstracts the remote generation backend (Groq, Gemini).
type LLMClient interface {
	// Generate produces a completion for the request. Implementations retry
	// transient failures internally and respect ctx deadlines.
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
	// Close releases any resources held by the client.
	Close() error
}

// -- History Store Interface --

// HistoryStore persists finished runs for later inspection. Implementations
// must be safe to call best-effort: a store failure never aborts a run.
type HistoryStore interface {
	RecordRun(ctx context.Context, summary RunSummary) error
	RecordOutcomes(ctx context.Context, runID string, outcomes []Outcome) error
}
