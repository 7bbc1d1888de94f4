// internal/browser/browser.go
package browser

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/internal/browser/stealth"
	"github.com/xkilldash9x/courier-cli/internal/config"
	"github.com/xkilldash9x/courier-cli/internal/humanoid"
)

const shutdownTimeout = 15 * time.Second

// Manager owns the Chrome process lifecycle. Start launches the browser and
// hands back the single Session; Shutdown waits for the process to exit.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

// NewManager prepares a manager. No process is spawned until Start.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, logger: logger.Named("browser")}
}

// execOptions translates the browser config into chromedp allocator options.
func execOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// Required on hardened systems where the Chrome sandbox cannot start.
		chromedp.NoSandbox,
		// Recommended for stability in containers and headless environments.
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	return opts
}

// Start launches Chrome, applies the stealth persona, imports the session
// cookies, and returns the Session the rest of the engine drives. The session
// lives until Shutdown; the passed context only bounds startup.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	if m.tabCtx != nil {
		return nil, fmt.Errorf("browser already started")
	}

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), execOptions(m.cfg)...)
	m.tabCtx, m.tabCancel = chromedp.NewContext(m.allocCtx)

	startup := make([]chromedp.Action, 0, 3)
	if m.cfg.Stealth {
		startup = append(startup, stealth.Apply(stealth.DefaultPersona, m.logger))
	}
	if m.cfg.ViewportWidth > 0 && m.cfg.ViewportHeight > 0 {
		startup = append(startup, chromedp.EmulateViewport(int64(m.cfg.ViewportWidth), int64(m.cfg.ViewportHeight)))
	}
	if len(startup) == 0 {
		// Running with no actions still forces the process to launch.
		startup = append(startup, chromedp.ActionFunc(func(context.Context) error { return nil }))
	}

	startCtx, cancel := context.WithTimeout(m.tabCtx, m.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(startCtx, startup...); err != nil {
		m.teardown()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("browser startup aborted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	if m.cfg.CookiesFile != "" {
		if err := importCookies(startCtx, m.cfg.CookiesFile, m.logger); err != nil {
			m.teardown()
			return nil, err
		}
	}

	session := &Session{
		ctx:    m.tabCtx,
		cancel: m.tabCancel,
		cfg:    m.cfg,
		logger: m.logger.Named("session"),
	}
	if m.cfg.Humanoid.Enabled {
		pacer := humanoid.New(humanoid.Config{
			CognitiveMeanMs:   m.cfg.Humanoid.CognitiveMeanMs,
			CognitiveStdDevMs: m.cfg.Humanoid.CognitiveStdDevMs,
			DriftAmplitudePx:  m.cfg.Humanoid.DriftAmplitudePx,
			KeystrokeMeanMs:   m.cfg.Humanoid.KeystrokeMeanMs,
			KeystrokeStdDevMs: m.cfg.Humanoid.KeystrokeStdDevMs,
		}, humanoid.NewCDPExecutor(), m.logger)
		// Anchor the virtual cursor somewhere plausible mid-page.
		w, h := m.cfg.ViewportWidth, m.cfg.ViewportHeight
		if w <= 0 || h <= 0 {
			w, h = 1280, 800
		}
		pacer.SetPosition(
			float64(w/4+rand.Intn(w/2)),
			float64(h/4+rand.Intn(h/2)),
		)
		session.pacer = pacer
	}

	m.logger.Info("Browser session ready.",
		zap.Bool("headless", m.cfg.Headless),
		zap.Bool("stealth", m.cfg.Stealth),
		zap.Bool("humanoid", m.cfg.Humanoid.Enabled))
	return session, nil
}

// Shutdown closes the tab and waits for the Chrome process to exit.
// chromedp.Cancel blocks until the browser is gone, so it runs under its own
// timeout in a goroutine; the allocator cancel is the forceful fallback.
func (m *Manager) Shutdown(ctx context.Context) {
	if m.tabCtx == nil {
		return
	}
	m.logger.Debug("Shutting down browser.")

	waitCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Cancel(m.tabCtx)
	}()

	select {
	case err := <-done:
		if err != nil && m.tabCtx.Err() == nil {
			m.logger.Warn("Graceful browser shutdown reported an error.", zap.Error(err))
		}
	case <-waitCtx.Done():
		m.logger.Warn("Browser shutdown timed out, killing process.",
			zap.Duration("timeout", shutdownTimeout))
	}

	m.teardown()
	m.logger.Debug("Browser shutdown complete.")
}

func (m *Manager) teardown() {
	if m.tabCancel != nil {
		m.tabCancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.tabCtx, m.tabCancel = nil, nil
	m.allocCtx, m.allocCancel = nil, nil
}
