package schemas

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// -- Prospect Schemas --

// Prospect is a single outreach target loaded from the prospect list. Name and
// ProfileURL are mandatory; the optional fields feed message personalization.
type Prospect struct {
	Name       string `json:"name"`
	ProfileURL string `json:"linkedin_url"`
	JobTitle   string `json:"job_title,omitempty"`
	Company    string `json:"company,omitempty"`
	Industry   string `json:"industry,omitempty"`
	Headline   string `json:"headline,omitempty"`
}

// FirstName returns the leading token of the prospect's name, used for
// greetings and personalization checks.
func (p Prospect) FirstName() string {
	fields := strings.Fields(p.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Validate enforces the integrity rules for a prospect record. Violations are
// reported as a DataIntegrityError naming the offending field.
func (p Prospect) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &DataIntegrityError{Field: "name", Reason: "required field is empty"}
	}
	if strings.TrimSpace(p.ProfileURL) == "" {
		return &DataIntegrityError{Field: "linkedin_url", Reason: "required field is empty"}
	}
	u, err := url.Parse(p.ProfileURL)
	if err != nil {
		return &DataIntegrityError{Field: "linkedin_url", Reason: fmt.Sprintf("not a valid URL: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &DataIntegrityError{Field: "linkedin_url", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &DataIntegrityError{Field: "linkedin_url", Reason: "missing host"}
	}
	return nil
}

// -- Outcome Schemas --

// OutcomeStatus is the terminal status of one prospect attempt.
type OutcomeStatus string

const (
	StatusSent    OutcomeStatus = "sent"
	StatusSkipped OutcomeStatus = "skipped"
	StatusFailed  OutcomeStatus = "failed"
)

// OutcomeReason explains a terminal status beyond a plain send: why a
// prospect was skipped, or which stage a failure belongs to.
type OutcomeReason string

const (
	SkipAlreadyConnected OutcomeReason = "already_connected"
	SkipInvitePending    OutcomeReason = "invite_pending"
	SkipRateLimited      OutcomeReason = "rate_limited"
	SkipLimitReached     OutcomeReason = "limit_reached"
	SkipCancelled        OutcomeReason = "cancelled"

	FailedElement    OutcomeReason = "failed_element"
	FailedContent    OutcomeReason = "failed_content"
	FailedSubmission OutcomeReason = "failed_submission"
	FailedData       OutcomeReason = "failed_data"
)

// Outcome records the terminal result of one prospect attempt. A batch run
// produces exactly one Outcome per input prospect, in input order.
type Outcome struct {
	Prospect   Prospect          `json:"prospect"`
	Status     OutcomeStatus     `json:"status"`
	Reason     OutcomeReason     `json:"reason,omitempty"`
	Error      string            `json:"error,omitempty"`
	Message    *GeneratedMessage `json:"message,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Sent reports whether the attempt consumed send budget.
func (o Outcome) Sent() bool { return o.Status == StatusSent }

// RunSummary aggregates a finished batch for reporting and persistence.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Total         int       `json:"total"`
	Sent          int       `json:"sent"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	RateLimitHits int       `json:"rate_limit_hits"`
	EndedEarly    bool      `json:"ended_early"`
}

// Summarize folds a slice of outcomes into a RunSummary. RunID and timestamps
// are left to the caller.
func Summarize(outcomes []Outcome) RunSummary {
	var s RunSummary
	s.Total = len(outcomes)
	for _, o := range outcomes {
		switch o.Status {
		case StatusSent:
			s.Sent++
		case StatusSkipped:
			s.Skipped++
			if o.Reason == SkipRateLimited {
				s.RateLimitHits++
			}
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
