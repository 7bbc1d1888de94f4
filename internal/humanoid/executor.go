// -- internal/humanoid/executor.go --
package humanoid

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// Executor is the browser surface the pacing engine drives. Keeping it
// narrow lets tests run against an in-memory fake with no browser.
type Executor interface {
	// Sleep pauses execution, respecting context cancellation.
	Sleep(ctx context.Context, d time.Duration) error

	// DispatchMouseEvent sends a low-level mouse event.
	DispatchMouseEvent(ctx context.Context, data MouseEventData) error

	// SendKeys types the given keys into the currently focused element.
	SendKeys(ctx context.Context, keys string) error
}

// CDPExecutor is the production Executor. The context passed to its methods
// must be a chromedp tab context.
type CDPExecutor struct{}

func NewCDPExecutor() *CDPExecutor { return &CDPExecutor{} }

func (e *CDPExecutor) Sleep(ctx context.Context, d time.Duration) error {
	return chromedp.Sleep(d).Do(ctx)
}

func (e *CDPExecutor) DispatchMouseEvent(ctx context.Context, data MouseEventData) error {
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
		WithButton(input.MouseButton(data.Button))
	if data.ClickCount > 0 {
		p = p.WithClickCount(int64(data.ClickCount))
	}
	return p.Do(ctx)
}

func (e *CDPExecutor) SendKeys(ctx context.Context, keys string) error {
	return chromedp.SendKeys("document.activeElement", keys, chromedp.ByJSPath).Do(ctx)
}
