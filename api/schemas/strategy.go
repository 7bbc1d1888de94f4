package schemas

import (
	"fmt"
	"time"
)

// -- Selector Strategy Schemas --

// StrategyKind names the lookup mechanism a strategy uses against the live page.
type StrategyKind string

const (
	// KindCSS locates an element with a CSS selector.
	KindCSS StrategyKind = "css"
	// KindXPath locates an element with an XPath expression.
	KindXPath StrategyKind = "xpath"
	// KindText locates an element whose visible text contains a pattern. The
	// strategy expression scopes the search to a tag (e.g. "button").
	KindText StrategyKind = "text"
)

// Strategy is one way of finding a UI element. Strategies for a role are tried
// in declaration order; the first that resolves wins.
type Strategy struct {
	Kind        StrategyKind `json:"kind" yaml:"kind"`
	Expression  string       `json:"expression" yaml:"expression"`
	TextPattern string       `json:"text_pattern,omitempty" yaml:"text_pattern,omitempty"`
}

// Validate checks that the strategy is well formed for its kind.
func (s Strategy) Validate() error {
	switch s.Kind {
	case KindCSS, KindXPath:
		if s.Expression == "" {
			return fmt.Errorf("%s strategy requires an expression", s.Kind)
		}
	case KindText:
		if s.TextPattern == "" {
			return fmt.Errorf("text strategy requires a text_pattern")
		}
	default:
		return fmt.Errorf("unknown strategy kind %q", s.Kind)
	}
	return nil
}

// String renders the strategy compactly for logs and attempt records.
func (s Strategy) String() string {
	if s.Kind == KindText {
		scope := s.Expression
		if scope == "" {
			scope = "*"
		}
		return fmt.Sprintf("text(%s~%q)", scope, s.TextPattern)
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Expression)
}

// RetryPolicy governs the resolver's outer retry loop. Between full passes the
// resolver waits BaseDelay * BackoffFactor^(attempt-1).
type RetryPolicy struct {
	MaxRetries      int           `json:"max_retries" yaml:"max_retries"`
	BaseDelay       time.Duration `json:"base_delay" yaml:"base_delay"`
	BackoffFactor   float64       `json:"backoff_factor" yaml:"backoff_factor"`
	StrategyTimeout time.Duration `json:"strategy_timeout" yaml:"strategy_timeout"`
}

// DefaultRetryPolicy mirrors the production selector file shipped with the
// engine: three passes, one second base delay, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		BackoffFactor:   2.0,
		StrategyTimeout: 3 * time.Second,
	}
}

// Validate rejects policies the resolver cannot run.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be >= 1, got %d", p.MaxRetries)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("base_delay must be positive, got %v", p.BaseDelay)
	}
	if p.BackoffFactor < 1.0 {
		return fmt.Errorf("backoff_factor must be >= 1.0, got %v", p.BackoffFactor)
	}
	if p.StrategyTimeout <= 0 {
		return fmt.Errorf("strategy_timeout must be positive, got %v", p.StrategyTimeout)
	}
	return nil
}

// ResolvedElement names the strategy that located an element so later actions
// (click, fill) reuse the exact locator that worked.
type ResolvedElement struct {
	Role     string
	Strategy Strategy
}

// AttemptRecord captures a single strategy attempt inside a resolver pass.
// The slice of records accompanies ElementNotFoundError for diagnostics.
type AttemptRecord struct {
	Pass     int           `json:"pass"`
	Strategy Strategy      `json:"strategy"`
	Elapsed  time.Duration `json:"elapsed"`
	Cause    string        `json:"cause"`
}
