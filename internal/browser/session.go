// internal/browser/session.go
// Session is the single authenticated tab the outreach engine drives. It
// implements schemas.PageDriver over chromedp.
//
// When humanoid pacing is enabled, interactions are wrapped in cognitive
// pauses and typed character by character; with pacing off the methods fall
// back to direct chromedp actions. Each method manages its own operational
// timeout so a stuck action never kills the session.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/api/schemas"
	"github.com/xkilldash9x/courier-cli/internal/config"
	"github.com/xkilldash9x/courier-cli/internal/humanoid"
)

// Session wraps one chromedp tab. Create it through Manager.Start.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger
	pacer  *humanoid.Humanoid
	feed   string
}

// SetFeedURL overrides the signed-in landing page used for session checks.
// An empty value keeps the default.
func (s *Session) SetFeedURL(u string) {
	if u != "" {
		s.feed = u
	}
}

// feedURL is the signed-in landing page. Loading it while logged out
// redirects to an auth wall, which is how the session checks itself.
const feedURL = "https://www.linkedin.com/feed/"

// loginMarkers appear in the location after an auth redirect.
var loginMarkers = []string{"/login", "/uas/", "/checkpoint", "/authwall"}

// opContext derives an operation context from the session's tab context (so
// chromedp keeps its target wiring) while still honoring the caller's
// cancellation and the operation timeout.
func (s *Session) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, opCancel := context.WithTimeout(s.ctx, timeout)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			opCancel()
		case <-opCtx.Done():
		case <-done:
		}
	}()

	var once sync.Once
	return opCtx, func() {
		once.Do(func() { close(done) })
		opCancel()
	}
}

// run executes chromedp actions under an operational timeout. The returned
// error is prioritized: caller cancellation first, then session death, then
// the raw action error.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opCtx, cancel := s.opContext(ctx, timeout)
	defer cancel()

	err := chromedp.Run(opCtx, actions...)
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case s.ctx.Err() != nil:
		return fmt.Errorf("browser session closed: %w", s.ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	}
	return err
}

// pause runs a humanoid cognitive pause on a tab-derived context. A pause is
// pacing, not correctness: its own failure matters only when a context died.
func (s *Session) pause(ctx context.Context) error {
	if s.pacer == nil {
		return nil
	}
	pauseCtx, cancel := s.opContext(ctx, 2*time.Minute)
	defer cancel()

	if err := s.pacer.Pause(pauseCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.ctx.Err() != nil {
			return fmt.Errorf("browser session closed: %w", s.ctx.Err())
		}
		s.logger.Debug("Cognitive pause interrupted.", zap.Error(err))
	}
	return nil
}

// Navigate loads the URL, waits for the document, then lets the page settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating.", zap.String("url", url))

	err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("navigation to %s timed out after %v: %w", url, s.cfg.NavigationTimeout, err)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	// Settle: dynamic feeds keep mutating after document ready.
	if s.pacer != nil {
		return s.pause(ctx)
	}
	if s.cfg.PostLoadWait > 0 {
		return s.run(ctx, s.cfg.PostLoadWait+time.Second, chromedp.Sleep(s.cfg.PostLoadWait))
	}
	return nil
}

// WaitVisible blocks until an element matching the strategy is visible or the
// timeout elapses. The resolver calls this once per strategy per pass.
func (s *Session) WaitVisible(ctx context.Context, strat schemas.Strategy, timeout time.Duration) error {
	sel, by, err := toQuery(strat)
	if err != nil {
		return err
	}
	return s.run(ctx, timeout, chromedp.WaitVisible(sel, by))
}

// Click pauses like a person deciding, then clicks the resolved element.
func (s *Session) Click(ctx context.Context, el schemas.ResolvedElement) error {
	sel, by, err := toQuery(el.Strategy)
	if err != nil {
		return err
	}
	if err := s.pause(ctx); err != nil {
		return err
	}

	s.logger.Debug("Clicking element.",
		zap.String("role", el.Role),
		zap.Stringer("strategy", el.Strategy))
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Click(sel, by)); err != nil {
		return fmt.Errorf("clicking %s: %w", el.Role, err)
	}
	return nil
}

// Fill replaces the content of the resolved input with text. With pacing on,
// the text is typed rune by rune into the focused element.
func (s *Session) Fill(ctx context.Context, el schemas.ResolvedElement, text string) error {
	sel, by, err := toQuery(el.Strategy)
	if err != nil {
		return err
	}

	if err := s.run(ctx, s.cfg.ActionTimeout,
		chromedp.WaitVisible(sel, by),
		chromedp.Click(sel, by),
		chromedp.Clear(sel, by),
	); err != nil {
		return fmt.Errorf("focusing %s: %w", el.Role, err)
	}

	if s.pacer == nil {
		if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.SendKeys(sel, text, by)); err != nil {
			return fmt.Errorf("filling %s: %w", el.Role, err)
		}
		return nil
	}

	typeCtx, cancel := s.opContext(ctx, s.typingBudget(text))
	defer cancel()
	if err := s.pacer.TypeText(typeCtx, text); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("typing into %s: %w", el.Role, err)
	}
	return nil
}

// typingBudget bounds a paced typing run: generous per-rune allowance plus
// slack so fatigue never trips the deadline.
func (s *Session) typingBudget(text string) time.Duration {
	perRune := 2 * time.Duration(s.cfg.Humanoid.KeystrokeMeanMs+4*s.cfg.Humanoid.KeystrokeStdDevMs) * time.Millisecond
	if perRune <= 0 {
		perRune = time.Second
	}
	return time.Duration(len([]rune(text)))*perRune + 10*time.Second
}

// PageText returns the page's visible text. The rate-limit scanner and the
// status probes read it.
func (s *Session) PageText(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page text: %w", err)
	}
	return text, nil
}

// OuterHTML returns the serialized DOM for offline extraction.
func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading outer html: %w", err)
	}
	return html, nil
}

// Location returns the tab's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return loc, nil
}

// SignedIn loads the feed and reports whether the session still holds its
// authentication, i.e. no redirect to an auth wall happened.
func (s *Session) SignedIn(ctx context.Context) (bool, error) {
	feed := s.feed
	if feed == "" {
		feed = feedURL
	}
	if err := s.Navigate(ctx, feed); err != nil {
		return false, err
	}
	loc, err := s.Location(ctx)
	if err != nil {
		return false, err
	}
	lower := strings.ToLower(loc)
	for _, marker := range loginMarkers {
		if strings.Contains(lower, marker) {
			s.logger.Warn("Session is signed out.", zap.String("location", loc))
			return false, nil
		}
	}
	return true, nil
}

// Refresh reloads the feed, typically after a rate-limit cool-down, and fails
// when the session has been signed out in the meantime.
func (s *Session) Refresh(ctx context.Context) error {
	ok, err := s.SignedIn(ctx)
	if err != nil {
		return fmt.Errorf("refreshing session: %w", err)
	}
	if !ok {
		return errors.New("refreshing session: signed out, re-export cookies and restart")
	}
	s.logger.Info("Session refreshed.")
	return nil
}

// Idle keeps the session occupied for roughly d. With a pacer attached the
// cursor drifts the way an unattended hand does; otherwise it plainly waits.
// Cancelling ctx cuts the wait short.
func (s *Session) Idle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if s.pacer == nil {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	idleCtx, cancel := s.opContext(ctx, d+time.Minute)
	defer cancel()
	if err := s.pacer.Hesitate(idleCtx, d); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.ctx.Err() != nil {
			return fmt.Errorf("browser session closed: %w", s.ctx.Err())
		}
		// Drift is texture, not correctness; a dispatch hiccup ends the wait.
		s.logger.Debug("Idle drift interrupted.", zap.Error(err))
	}
	return nil
}

// Close tears the tab down. The manager's Shutdown handles the browser
// process itself.
func (s *Session) Close() {
	s.cancel()
}
