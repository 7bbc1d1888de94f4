// internal/outreach/machine_test.go
package outreach

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

// -- Fakes --

type fakeDriver struct {
	mu        sync.Mutex
	navigated []string
	navErr    error

	// texts are returned by successive PageText calls; the last one repeats.
	texts     []string
	textCalls int

	clicked    []string
	clickErrs  map[string]error
	clickHooks map[string]func()

	filled  map[string]string
	fillErr error
}

func newFakeDriver(texts ...string) *fakeDriver {
	return &fakeDriver{
		texts:      texts,
		clickErrs:  map[string]error{},
		clickHooks: map[string]func(){},
		filled:     map[string]string{},
	}
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.navErr != nil {
		return d.navErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *fakeDriver) WaitVisible(ctx context.Context, s schemas.Strategy, timeout time.Duration) error {
	return errors.New("the machine must locate elements through the resolver")
}

func (d *fakeDriver) Click(ctx context.Context, el schemas.ResolvedElement) error {
	d.mu.Lock()
	d.clicked = append(d.clicked, el.Role)
	hook := d.clickHooks[el.Role]
	err := d.clickErrs[el.Role]
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (d *fakeDriver) Fill(ctx context.Context, el schemas.ResolvedElement, text string) error {
	if d.fillErr != nil {
		return d.fillErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filled[el.Role] = text
	return nil
}

func (d *fakeDriver) PageText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.texts) == 0 {
		return "", nil
	}
	i := d.textCalls
	d.textCalls++
	if i >= len(d.texts) {
		i = len(d.texts) - 1
	}
	return d.texts[i], nil
}

func (d *fakeDriver) OuterHTML(ctx context.Context) (string, error) {
	return "<html></html>", nil
}

type fakeResolver struct {
	mu         sync.Mutex
	quick      map[string]bool
	quickErr   map[string]error
	quickCalls []string
	resolveErr map[string]error
	resolved   []string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		quick:      map[string]bool{},
		quickErr:   map[string]error{},
		resolveErr: map[string]error{},
	}
}

func (r *fakeResolver) Resolve(ctx context.Context, role string) (schemas.ResolvedElement, error) {
	r.mu.Lock()
	r.resolved = append(r.resolved, role)
	err := r.resolveErr[role]
	r.mu.Unlock()
	if err != nil {
		return schemas.ResolvedElement{}, err
	}
	return schemas.ResolvedElement{
		Role:     role,
		Strategy: schemas.Strategy{Kind: schemas.KindCSS, Expression: "#" + role},
	}, nil
}

func (r *fakeResolver) ResolveQuick(ctx context.Context, role string, wait time.Duration) (schemas.ResolvedElement, bool, error) {
	r.mu.Lock()
	r.quickCalls = append(r.quickCalls, role)
	err := r.quickErr[role]
	found := r.quick[role]
	r.mu.Unlock()
	if err != nil {
		return schemas.ResolvedElement{}, false, err
	}
	if found {
		return schemas.ResolvedElement{Role: role}, true, nil
	}
	return schemas.ResolvedElement{}, false, nil
}

type fakeComposer struct {
	msg   *schemas.GeneratedMessage
	err   error
	hook  func(ctx context.Context) (*schemas.GeneratedMessage, error)
	calls int
}

func (c *fakeComposer) Compose(ctx context.Context, prospect schemas.Prospect) (*schemas.GeneratedMessage, error) {
	c.calls++
	if c.hook != nil {
		return c.hook(ctx)
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.msg, nil
}

// -- Harness --

var testIndicators = []string{"rate limit", "too many requests", "unusual activity"}

func testProspect() schemas.Prospect {
	return schemas.Prospect{
		Name:       "Priya Sharma",
		ProfileURL: "https://www.linkedin.com/in/priya-sharma",
		JobTitle:   "Staff Engineer",
		Company:    "Acme Robotics",
	}
}

func testMessage() *schemas.GeneratedMessage {
	return &schemas.GeneratedMessage{
		Text:   "Hi Priya, your robotics work at Acme caught my eye. I'd love to connect.",
		Source: schemas.SourceTemplate,
	}
}

type machineHarness struct {
	driver   *fakeDriver
	resolver *fakeResolver
	composer *fakeComposer
	health   *SessionHealth
	machine  *Machine
	logs     *observer.ObservedLogs
}

func newMachineHarness(t *testing.T, cfg MachineConfig, driver *fakeDriver) *machineHarness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	resolver := newFakeResolver()
	composer := &fakeComposer{msg: testMessage()}
	health := NewSessionHealth()
	if cfg.RateLimitIndicators == nil {
		cfg.RateLimitIndicators = testIndicators
	}
	m, err := NewMachine(driver, resolver, composer, health, cfg, zap.New(core))
	require.NoError(t, err)
	return &machineHarness{
		driver:   driver,
		resolver: resolver,
		composer: composer,
		health:   health,
		machine:  m,
		logs:     logs,
	}
}

// -- Tests --

func TestNewMachineValidatesDependencies(t *testing.T) {
	driver := newFakeDriver()
	resolver := newFakeResolver()
	composer := &fakeComposer{}
	health := NewSessionHealth()

	_, err := NewMachine(nil, resolver, composer, health, MachineConfig{}, nil)
	require.Error(t, err)
	_, err = NewMachine(driver, nil, composer, health, MachineConfig{}, nil)
	require.Error(t, err)
	_, err = NewMachine(driver, resolver, nil, health, MachineConfig{}, nil)
	require.Error(t, err)
	_, err = NewMachine(driver, resolver, composer, nil, MachineConfig{}, nil)
	require.Error(t, err)

	m, err := NewMachine(driver, resolver, composer, health, MachineConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultProbeWait, m.probeWait)
}

func TestRequiredRolesCoverTheFlow(t *testing.T) {
	roles := RequiredRoles()
	assert.Len(t, roles, 7)
	assert.Contains(t, roles, RoleConnectButton)
	assert.Contains(t, roles, RoleNoteInput)
	assert.Contains(t, roles, RoleSendButton)
	assert.Contains(t, roles, RoleMessageButton)
}

func TestAttemptHappyPathSends(t *testing.T) {
	driver := newFakeDriver("a perfectly ordinary profile page")
	h := newMachineHarness(t, MachineConfig{}, driver)

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusSent, out.Status)
	assert.Empty(t, out.Reason)
	assert.Empty(t, out.Error)
	require.NotNil(t, out.Message)
	assert.Equal(t, h.composer.msg.Text, out.Message.Text)
	assert.False(t, out.StartedAt.IsZero())
	assert.False(t, out.FinishedAt.Before(out.StartedAt))

	assert.Equal(t, []string{"https://www.linkedin.com/in/priya-sharma"}, driver.navigated)
	assert.Equal(t, []string{RoleConnectedMarker, RolePendingMarker, RoleMessageButton}, h.resolver.quickCalls)
	assert.Equal(t,
		[]string{RoleConnectButton, RoleAddNoteButton, RoleNoteInput, RoleSendButton},
		h.resolver.resolved)
	assert.Equal(t,
		[]string{RoleConnectButton, RoleAddNoteButton, RoleSendButton},
		driver.clicked)
	assert.Equal(t, h.composer.msg.Text, driver.filled[RoleNoteInput])

	snap := h.health.Snapshot()
	assert.Equal(t, 1, snap.Sent)
	assert.Equal(t, 0, snap.ConsecutiveFailures)

	trail := h.logs.FilterMessage("State transition.").All()
	require.Len(t, trail, 4)
	assert.Equal(t, "resolving", trail[0].ContextMap()["to"])
	assert.Equal(t, "composing", trail[1].ContextMap()["to"])
	assert.Equal(t, "submitting", trail[2].ContextMap()["to"])
	assert.Equal(t, "sent", trail[3].ContextMap()["to"])
}

func TestAttemptSkipsAlreadyConnected(t *testing.T) {
	driver := newFakeDriver("profile")
	h := newMachineHarness(t, MachineConfig{}, driver)
	h.resolver.quick[RoleConnectedMarker] = true

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusSkipped, out.Status)
	assert.Equal(t, schemas.SkipAlreadyConnected, out.Reason)
	assert.Nil(t, out.Message)
	assert.Zero(t, h.composer.calls)
	assert.Empty(t, driver.clicked)
	assert.Equal(t, 0, h.health.Snapshot().Sent)
}

func TestAttemptSkipsInvitePending(t *testing.T) {
	driver := newFakeDriver("profile")
	h := newMachineHarness(t, MachineConfig{}, driver)
	h.resolver.quick[RolePendingMarker] = true

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusSkipped, out.Status)
	assert.Equal(t, schemas.SkipInvitePending, out.Reason)
	assert.Empty(t, h.resolver.resolved, "no full resolution after a pending probe")
}

func TestAttemptSkipsWhenOnlyMessageButtonPresent(t *testing.T) {
	driver := newFakeDriver("profile")
	h := newMachineHarness(t, MachineConfig{}, driver)
	h.resolver.quick[RoleMessageButton] = true

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusSkipped, out.Status)
	assert.Equal(t, schemas.SkipAlreadyConnected, out.Reason)
	assert.Zero(t, h.composer.calls)
}

func TestAttemptSkipsOnRateLimitPage(t *testing.T) {
	driver := newFakeDriver("You've sent too many requests from this account. Try again later.")
	h := newMachineHarness(t, MachineConfig{}, driver)

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusSkipped, out.Status)
	assert.Equal(t, schemas.SkipRateLimited, out.Reason)
	assert.Contains(t, out.Error, "too many requests")
	assert.Empty(t, h.resolver.quickCalls, "probes never run on a throttled page")
	assert.Zero(t, h.composer.calls)

	snap := h.health.Snapshot()
	assert.Equal(t, 1, snap.RateLimitHits)
	assert.False(t, snap.LastRateLimit.IsZero())
	assert.Equal(t, 0, snap.ConsecutiveFailures)
}

func TestAttemptFailsWhenConnectButtonMissing(t *testing.T) {
	driver := newFakeDriver("an ordinary profile")
	h := newMachineHarness(t, MachineConfig{}, driver)
	h.resolver.resolveErr[RoleConnectButton] = &schemas.ElementNotFoundError{Role: RoleConnectButton}

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusFailed, out.Status)
	assert.Equal(t, schemas.FailedElement, out.Reason)
	assert.Zero(t, h.composer.calls)
	assert.Equal(t, 1, h.health.Snapshot().ConsecutiveFailures)
}

func TestAttemptRescanAfterMissingButtonFindsRateLimit(t *testing.T) {
	driver := newFakeDriver(
		"an ordinary profile",
		"We noticed unusual activity on your account. Please verify your identity.",
	)
	h := newMachineHarness(t, MachineConfig{}, driver)
	h.resolver.resolveErr[RoleConnectButton] = &schemas.ElementNotFoundError{Role: RoleConnectButton}

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusSkipped, out.Status)
	assert.Equal(t, schemas.SkipRateLimited, out.Reason)

	snap := h.health.Snapshot()
	assert.Equal(t, 0, snap.ConsecutiveFailures, "throttling is not a session defect")
	assert.Equal(t, 1, snap.RateLimitHits)
}

func TestAttemptFailsOnContentError(t *testing.T) {
	driver := newFakeDriver("profile")
	h := newMachineHarness(t, MachineConfig{}, driver)
	h.composer.msg = nil
	h.composer.err = &schemas.ContentError{Reason: "prospect has no name to personalize with"}

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusFailed, out.Status)
	assert.Equal(t, schemas.FailedContent, out.Reason)
	assert.Empty(t, driver.clicked, "no submission without a note")
}

func TestAttemptWrapsSubmitFailure(t *testing.T) {
	driver := newFakeDriver("profile")
	driver.clickErrs[RoleSendButton] = errors.New("node detached")
	h := newMachineHarness(t, MachineConfig{}, driver)

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusFailed, out.Status)
	assert.Equal(t, schemas.FailedSubmission, out.Reason)
	assert.Contains(t, out.Error, "click_send")
	require.NotNil(t, out.Message, "the composed note travels with the failure record")
	assert.Equal(t, 1, h.health.Snapshot().ConsecutiveFailures)
}

func TestAttemptDemotesSendOnPostSubmitRateLimit(t *testing.T) {
	driver := newFakeDriver(
		"an ordinary profile",
		"You have reached the rate limit for invitations this week.",
	)
	h := newMachineHarness(t, MachineConfig{}, driver)

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusSkipped, out.Status)
	assert.Equal(t, schemas.SkipRateLimited, out.Reason)
	require.NotNil(t, out.Message)

	snap := h.health.Snapshot()
	assert.Equal(t, 0, snap.Sent, "a demoted send never counts against the budget")
	assert.Equal(t, 1, snap.RateLimitHits)
}

func TestAttemptDryRunSuppressesSendClick(t *testing.T) {
	driver := newFakeDriver("profile")
	h := newMachineHarness(t, MachineConfig{DryRun: true}, driver)

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusSent, out.Status)
	assert.Equal(t, []string{RoleConnectButton, RoleAddNoteButton}, driver.clicked)
	assert.Equal(t, h.composer.msg.Text, driver.filled[RoleNoteInput])
	assert.Equal(t, 1, driver.textCalls, "no post-submit scan without a real send")
	assert.Equal(t, 1, h.health.Snapshot().Sent)
}

func TestAttemptWithoutNoteSendsBareInvite(t *testing.T) {
	driver := newFakeDriver("profile")
	h := newMachineHarness(t, MachineConfig{SendWithoutNote: true}, driver)

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusSent, out.Status)
	assert.Nil(t, out.Message)
	assert.Zero(t, h.composer.calls)
	assert.Equal(t, []string{RoleConnectButton, RoleSendButton}, driver.clicked)
	assert.Equal(t,
		[]string{RoleConnectButton, RoleSendButton},
		h.resolver.resolved, "note dialog roles stay untouched")
	assert.Empty(t, driver.filled)
	assert.Equal(t, 1, h.health.Snapshot().Sent)
}

func TestAttemptCancelledMidCompose(t *testing.T) {
	driver := newFakeDriver("profile")
	h := newMachineHarness(t, MachineConfig{}, driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.composer.hook = func(composeCtx context.Context) (*schemas.GeneratedMessage, error) {
		cancel()
		return nil, composeCtx.Err()
	}

	out := h.machine.Attempt(ctx, testProspect())

	assert.Equal(t, schemas.StatusSkipped, out.Status)
	assert.Equal(t, schemas.SkipCancelled, out.Reason)
	assert.Empty(t, driver.clicked)
	assert.Equal(t, 0, h.health.Snapshot().ConsecutiveFailures, "cancellation is not a failure")
}

func TestAttemptRecordsSentWhenCancelLandsAfterSend(t *testing.T) {
	driver := newFakeDriver("an ordinary profile")
	h := newMachineHarness(t, MachineConfig{}, driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	driver.clickHooks[RoleSendButton] = cancel

	out := h.machine.Attempt(ctx, testProspect())

	assert.Equal(t, schemas.StatusSent, out.Status)
	assert.Equal(t, 1, h.health.Snapshot().Sent)
}

func TestAttemptPostSubmitScanUsesGraceContext(t *testing.T) {
	driver := newFakeDriver(
		"an ordinary profile",
		"Too many requests. Slow down.",
	)
	h := newMachineHarness(t, MachineConfig{}, driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	driver.clickHooks[RoleSendButton] = cancel

	out := h.machine.Attempt(ctx, testProspect())

	// The batch context died with the click, yet the post-submit scan still
	// ran and caught the throttle page.
	assert.Equal(t, schemas.StatusSkipped, out.Status)
	assert.Equal(t, schemas.SkipRateLimited, out.Reason)
}

func TestAttemptRejectsInvalidProspect(t *testing.T) {
	driver := newFakeDriver()
	h := newMachineHarness(t, MachineConfig{}, driver)

	out := h.machine.Attempt(context.Background(), schemas.Prospect{
		ProfileURL: "https://www.linkedin.com/in/ghost",
	})

	assert.Equal(t, schemas.StatusFailed, out.Status)
	assert.Equal(t, schemas.FailedData, out.Reason)
	assert.Empty(t, driver.navigated, "no navigation for a rejected record")
}

func TestAttemptNavigationFailureIsSubmissionError(t *testing.T) {
	driver := newFakeDriver()
	driver.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	h := newMachineHarness(t, MachineConfig{}, driver)

	out := h.machine.Attempt(context.Background(), testProspect())

	assert.Equal(t, schemas.StatusFailed, out.Status)
	assert.Equal(t, schemas.FailedSubmission, out.Reason)
	assert.Contains(t, out.Error, "navigate_profile")
}

func TestTransitionPanicsOnIllegalMoveInDevelopment(t *testing.T) {
	driver := newFakeDriver()
	core, _ := observer.New(zap.DebugLevel)
	m, err := NewMachine(driver, newFakeResolver(), &fakeComposer{msg: testMessage()},
		NewSessionHealth(), MachineConfig{}, zap.New(core, zap.Development()))
	require.NoError(t, err)

	m.state = stateSent
	assert.Panics(t, func() {
		m.transition(m.logger, stateResolving)
	})
}
