// internal/outreach/machine.go
package outreach

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

// -- Element Roles --

// Roles the outreach flow resolves. A selector registry must define all of
// them; the validate command checks this before any browser session starts.
const (
	RoleConnectButton   = "connect_button"
	RoleAddNoteButton   = "add_note_button"
	RoleNoteInput       = "note_input"
	RoleSendButton      = "send_button"
	RoleConnectedMarker = "connected_marker"
	RolePendingMarker   = "pending_marker"
	RoleMessageButton   = "message_button"
)

// RequiredRoles returns every role the machine resolves during an attempt.
func RequiredRoles() []string {
	return []string{
		RoleConnectButton,
		RoleAddNoteButton,
		RoleNoteInput,
		RoleSendButton,
		RoleConnectedMarker,
		RolePendingMarker,
		RoleMessageButton,
	}
}

// -- Attempt States --

type state string

const (
	stateIdle       state = "idle"
	stateResolving  state = "resolving"
	stateComposing  state = "composing"
	stateSubmitting state = "submitting"
	stateSent       state = "sent"
	stateSkipped    state = "skipped"
	stateFailed     state = "failed"
)

// legalMoves lists the permitted transitions. Terminal states have none.
var legalMoves = map[state][]state{
	stateIdle:       {stateResolving, stateFailed},
	stateResolving:  {stateComposing, stateSkipped, stateFailed},
	stateComposing:  {stateSubmitting, stateSkipped, stateFailed},
	stateSubmitting: {stateSent, stateSkipped, stateFailed},
}

// -- Collaborator Interfaces --

// ElementResolver locates page elements by role. The selector resolver is the
// production implementation.
type ElementResolver interface {
	Resolve(ctx context.Context, role string) (schemas.ResolvedElement, error)
	ResolveQuick(ctx context.Context, role string, wait time.Duration) (schemas.ResolvedElement, bool, error)
}

// MessageComposer produces the personalized note for a prospect.
type MessageComposer interface {
	Compose(ctx context.Context, prospect schemas.Prospect) (*schemas.GeneratedMessage, error)
}

const (
	// defaultProbeWait bounds the cheap single-pass status marker probes.
	defaultProbeWait = 2 * time.Second

	// bookkeepingGrace bounds post-send bookkeeping when the batch context
	// died while the send was in flight. The request already went out at that
	// point, so the outcome must still be recorded accurately.
	bookkeepingGrace = 15 * time.Second
)

// MachineConfig carries the tunables for one machine.
type MachineConfig struct {
	// RateLimitIndicators are phrases scanned for in page text,
	// case-insensitively. A match turns the attempt into a rate-limit skip.
	RateLimitIndicators []string
	// DryRun drives the full flow but suppresses the final send click.
	DryRun bool
	// SendWithoutNote sends the bare invite: no composition, no note, the
	// dialog's send button clicked directly.
	SendWithoutNote bool
	// ProbeWait bounds the connected/pending marker probes. Zero means the
	// default.
	ProbeWait time.Duration
}

// Machine drives one prospect through
// idle -> resolving -> composing -> submitting -> {sent, skipped, failed}.
// Every attempt produces a terminal Outcome; raw errors never escape. A
// machine handles one prospect at a time and is not safe for concurrent use.
type Machine struct {
	driver   schemas.PageDriver
	resolver ElementResolver
	composer MessageComposer
	health   *SessionHealth
	logger   *zap.Logger

	indicators  []string
	dryRun      bool
	withoutNote bool
	probeWait   time.Duration

	state state
}

// NewMachine wires a machine to its collaborators.
func NewMachine(
	driver schemas.PageDriver,
	resolver ElementResolver,
	composer MessageComposer,
	health *SessionHealth,
	cfg MachineConfig,
	logger *zap.Logger,
) (*Machine, error) {
	if driver == nil {
		return nil, errors.New("outreach: page driver must not be nil")
	}
	if resolver == nil {
		return nil, errors.New("outreach: element resolver must not be nil")
	}
	if composer == nil {
		return nil, errors.New("outreach: message composer must not be nil")
	}
	if health == nil {
		return nil, errors.New("outreach: session health must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	probeWait := cfg.ProbeWait
	if probeWait <= 0 {
		probeWait = defaultProbeWait
	}
	return &Machine{
		driver:      driver,
		resolver:    resolver,
		composer:    composer,
		health:      health,
		logger:      logger.Named("outreach"),
		indicators:  cfg.RateLimitIndicators,
		dryRun:      cfg.DryRun,
		withoutNote: cfg.SendWithoutNote,
		probeWait:   probeWait,
		state:       stateIdle,
	}, nil
}

// Attempt drives prospect to a terminal outcome. Cancelling ctx aborts
// outstanding waits and yields a cancelled skip; a request that was already
// clicked through is still recorded as sent.
func (m *Machine) Attempt(ctx context.Context, prospect schemas.Prospect) schemas.Outcome {
	started := time.Now()
	log := m.logger.With(zap.String("profile_url", prospect.ProfileURL))
	m.state = stateIdle

	if err := prospect.Validate(); err != nil {
		log.Warn("Prospect rejected before navigation.", zap.Error(err))
		return m.conclude(ctx, log, prospect, started, nil, err)
	}

	// -- Resolving --

	m.transition(log, stateResolving)

	if err := m.driver.Navigate(ctx, prospect.ProfileURL); err != nil {
		return m.conclude(ctx, log, prospect, started, nil,
			&schemas.SubmissionError{Step: "navigate_profile", Cause: err})
	}
	if sig := m.scanRateLimit(ctx, log); sig != nil {
		return m.conclude(ctx, log, prospect, started, nil, sig)
	}

	reason, err := m.probeStatus(ctx)
	if err != nil {
		return m.conclude(ctx, log, prospect, started, nil, err)
	}
	if reason != "" {
		return m.terminalize(log, prospect, started, schemas.StatusSkipped, reason, nil, nil)
	}

	connectEl, err := m.resolver.Resolve(ctx, RoleConnectButton)
	if err != nil {
		// A missing connect button can mean the site started throttling the
		// session instead of rendering the profile. The page text is the
		// tiebreaker.
		var notFound *schemas.ElementNotFoundError
		if errors.As(err, &notFound) {
			if sig := m.scanRateLimit(ctx, log); sig != nil {
				err = sig
			}
		}
		return m.conclude(ctx, log, prospect, started, nil, err)
	}

	// -- Composing --

	m.transition(log, stateComposing)

	var msg *schemas.GeneratedMessage
	if m.withoutNote {
		log.Debug("Sending the bare invite, skipping composition.")
	} else {
		msg, err = m.composer.Compose(ctx, prospect)
		if err != nil {
			return m.conclude(ctx, log, prospect, started, nil, err)
		}
		log.Debug("Note composed.",
			zap.String("source", string(msg.Source)),
			zap.String("text", msg.Text))
	}

	// -- Submitting --

	m.transition(log, stateSubmitting)

	if err := m.submit(ctx, log, connectEl, msg); err != nil {
		return m.conclude(ctx, log, prospect, started, msg, err)
	}

	// The flow clicked through. Bookkeeping must finish even if the batch
	// context died while the send was in flight.
	scanCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(context.Background(), bookkeepingGrace)
		defer cancel()
	}
	if !m.dryRun {
		if sig := m.scanRateLimit(scanCtx, log); sig != nil {
			return m.terminalize(log, prospect, started,
				schemas.StatusSkipped, schemas.SkipRateLimited, msg, sig)
		}
	}
	return m.terminalize(log, prospect, started, schemas.StatusSent, "", msg, nil)
}

// probeStatus runs one cheap pass of the status markers. An existing
// connection or a pending invite makes the prospect a no-op.
func (m *Machine) probeStatus(ctx context.Context) (schemas.OutcomeReason, error) {
	if _, ok, err := m.resolver.ResolveQuick(ctx, RoleConnectedMarker, m.probeWait); err != nil {
		return "", err
	} else if ok {
		return schemas.SkipAlreadyConnected, nil
	}
	if _, ok, err := m.resolver.ResolveQuick(ctx, RolePendingMarker, m.probeWait); err != nil {
		return "", err
	} else if ok {
		return schemas.SkipInvitePending, nil
	}
	// A profile offering a Message action instead of Connect is a connection
	// the distance badge failed to betray.
	if _, ok, err := m.resolver.ResolveQuick(ctx, RoleMessageButton, m.probeWait); err != nil {
		return "", err
	} else if ok {
		return schemas.SkipAlreadyConnected, nil
	}
	return "", nil
}

// submit drives the connect dialog. A nil msg sends the bare invite. Step
// names pinpoint where the flow broke.
func (m *Machine) submit(ctx context.Context, log *zap.Logger, connectEl schemas.ResolvedElement, msg *schemas.GeneratedMessage) error {
	if err := m.driver.Click(ctx, connectEl); err != nil {
		return &schemas.SubmissionError{Step: "click_connect", Cause: err}
	}
	if msg != nil {
		noteEl, err := m.resolver.Resolve(ctx, RoleAddNoteButton)
		if err != nil {
			return &schemas.SubmissionError{Step: "resolve_add_note", Cause: err}
		}
		if err := m.driver.Click(ctx, noteEl); err != nil {
			return &schemas.SubmissionError{Step: "click_add_note", Cause: err}
		}
		inputEl, err := m.resolver.Resolve(ctx, RoleNoteInput)
		if err != nil {
			return &schemas.SubmissionError{Step: "resolve_note_input", Cause: err}
		}
		if err := m.driver.Fill(ctx, inputEl, msg.Text); err != nil {
			return &schemas.SubmissionError{Step: "fill_note", Cause: err}
		}
	}
	sendEl, err := m.resolver.Resolve(ctx, RoleSendButton)
	if err != nil {
		return &schemas.SubmissionError{Step: "resolve_send", Cause: err}
	}
	if m.dryRun {
		log.Info("Dry run, suppressing the send click.")
		return nil
	}
	if err := m.driver.Click(ctx, sendEl); err != nil {
		return &schemas.SubmissionError{Step: "click_send", Cause: err}
	}
	return nil
}

// scanRateLimit reads the page text and reports a RateLimitSignal when any
// configured indicator phrase appears. Scan failures are inconclusive, not
// fatal: the surrounding flow surfaces the real problem on its own.
func (m *Machine) scanRateLimit(ctx context.Context, log *zap.Logger) error {
	if len(m.indicators) == 0 {
		return nil
	}
	text, err := m.driver.PageText(ctx)
	if err != nil {
		log.Debug("Page text scan failed.", zap.Error(err))
		return nil
	}
	lower := strings.ToLower(text)
	for _, indicator := range m.indicators {
		if indicator == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(indicator)) {
			log.Warn("Rate limit indicator present on page.", zap.String("indicator", indicator))
			return &schemas.RateLimitSignal{Indicator: indicator}
		}
	}
	return nil
}

// conclude classifies err and terminalizes the attempt.
func (m *Machine) conclude(
	ctx context.Context,
	log *zap.Logger,
	prospect schemas.Prospect,
	started time.Time,
	msg *schemas.GeneratedMessage,
	err error,
) schemas.Outcome {
	status, reason := classify(ctx, err)
	return m.terminalize(log, prospect, started, status, reason, msg, err)
}

// terminalize moves the machine into its terminal state, updates the session
// health counters, and builds the outcome record.
func (m *Machine) terminalize(
	log *zap.Logger,
	prospect schemas.Prospect,
	started time.Time,
	status schemas.OutcomeStatus,
	reason schemas.OutcomeReason,
	msg *schemas.GeneratedMessage,
	err error,
) schemas.Outcome {
	outcome := schemas.Outcome{
		Prospect:   prospect,
		Status:     status,
		Reason:     reason,
		Message:    msg,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err != nil {
		outcome.Error = err.Error()
	}

	switch status {
	case schemas.StatusSent:
		m.transition(log, stateSent)
		m.health.RecordSent()
		source := ""
		if msg != nil {
			source = string(msg.Source)
		}
		log.Info("Connection request sent.",
			zap.String("content_source", source),
			zap.Duration("took", outcome.FinishedAt.Sub(started)))
	case schemas.StatusSkipped:
		m.transition(log, stateSkipped)
		if reason == schemas.SkipRateLimited {
			m.health.RecordRateLimit()
		}
		log.Info("Prospect skipped.",
			zap.String("reason", string(reason)),
			zap.NamedError("cause", err))
	case schemas.StatusFailed:
		m.transition(log, stateFailed)
		m.health.RecordFailure()
		log.Warn("Prospect failed.",
			zap.String("reason", string(reason)),
			zap.Error(err))
	}
	return outcome
}

// transition moves the machine to next. An illegal move is a programming
// error: it panics in development builds and is logged and forced in
// production so bookkeeping still terminates.
func (m *Machine) transition(log *zap.Logger, next state) {
	if !legalMove(m.state, next) {
		log.DPanic("Illegal state transition.",
			zap.String("from", string(m.state)),
			zap.String("to", string(next)))
	}
	log.Debug("State transition.",
		zap.String("from", string(m.state)),
		zap.String("to", string(next)))
	m.state = next
}

func legalMove(from, to state) bool {
	for _, allowed := range legalMoves[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
