package schemas

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// -- Error Taxonomy --
//
// The engine classifies every failure into one of the types below. Components
// return them directly; the outreach state machine maps them onto terminal
// outcomes in exactly one place.

// ConfigError reports invalid or missing configuration. It is raised during
// startup validation, before any browser session exists.
type ConfigError struct {
	Section string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("config: %s", e.Reason)
	}
	return fmt.Sprintf("config %s: %s", e.Section, e.Reason)
}

// NewConfigError builds a ConfigError for the given section.
func NewConfigError(section, format string, args ...any) *ConfigError {
	return &ConfigError{Section: section, Reason: fmt.Sprintf(format, args...)}
}

// DataIntegrityError reports a prospect record that violates the input
// contract (missing name, unparseable URL).
type DataIntegrityError struct {
	Field  string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: field %q: %s", e.Field, e.Reason)
}

// ElementNotFoundError reports resolver exhaustion for a role. Attempts holds
// one record per strategy attempt across all passes, in execution order.
type ElementNotFoundError struct {
	Role     string
	Attempts []AttemptRecord
}

func (e *ElementNotFoundError) Error() string {
	passes := 0
	for _, a := range e.Attempts {
		if a.Pass > passes {
			passes = a.Pass
		}
	}
	return fmt.Sprintf("element %q not found after %d attempts across %d passes",
		e.Role, len(e.Attempts), passes)
}

// AttemptLog renders the attempt history for logs and error reports.
func (e *ElementNotFoundError) AttemptLog() string {
	var b strings.Builder
	for i, a := range e.Attempts {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "pass %d %s after %v: %s", a.Pass, a.Strategy, a.Elapsed.Round(10*time.Millisecond), a.Cause)
	}
	return b.String()
}

// ContentError reports a composition failure caused by missing substitution
// data. Generation-backend unavailability is never a ContentError; the
// pipeline falls back to templates instead.
type ContentError struct {
	Reason string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content: %s", e.Reason)
}

// RateLimitSignal indicates the site is pushing back. It is a control signal
// rather than a defect: the batch coordinator responds with long cool-downs
// and the prospect is skipped, not failed.
type RateLimitSignal struct {
	Indicator string
}

func (e *RateLimitSignal) Error() string {
	return fmt.Sprintf("rate limit signal: matched %q", e.Indicator)
}

// SubmissionError reports a browser interaction failure while driving the
// connect flow. Step names the action that failed.
type SubmissionError struct {
	Step  string
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed at %s: %v", e.Step, e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// IsRateLimit reports whether err carries a RateLimitSignal anywhere in its
// chain.
func IsRateLimit(err error) bool {
	var sig *RateLimitSignal
	return errors.As(err, &sig)
}

// IsConfigError reports whether err is a configuration failure.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
