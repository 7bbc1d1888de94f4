// -- internal/humanoid/humanoid.go --
package humanoid

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
	"unicode"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"
)

// perlinFrequency scales elapsed seconds into perlin noise space for idle
// cursor drift.
const perlinFrequency = 0.8

// Config defines the pacing persona for one browser session.
type Config struct {
	// CognitiveMeanMs and CognitiveStdDevMs shape the normal distribution the
	// thinking pauses are drawn from.
	CognitiveMeanMs   float64
	CognitiveStdDevMs float64
	// DriftAmplitudePx bounds the idle cursor drift.
	DriftAmplitudePx float64
	// KeystrokeMeanMs and KeystrokeStdDevMs shape inter-key delays.
	KeystrokeMeanMs   float64
	KeystrokeStdDevMs float64
	// Rng overrides the time-seeded source. Tests inject a fixed seed.
	Rng *rand.Rand
}

func (c *Config) setDefaults() {
	if c.CognitiveMeanMs <= 0 {
		c.CognitiveMeanMs = 900
	}
	if c.CognitiveStdDevMs <= 0 {
		c.CognitiveStdDevMs = 300
	}
	if c.DriftAmplitudePx <= 0 {
		c.DriftAmplitudePx = 4
	}
	if c.KeystrokeMeanMs <= 0 {
		c.KeystrokeMeanMs = 120
	}
	if c.KeystrokeStdDevMs <= 0 {
		c.KeystrokeStdDevMs = 40
	}
}

// Humanoid paces browser interactions like a person: noisy pauses, idle
// cursor drift, uneven typing. One instance serves one session.
type Humanoid struct {
	cfg      Config
	executor Executor
	logger   *zap.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	currentPos Vector2D

	// fatigueLevel ranges 0.0 (rested) to 1.0 (exhausted); it stretches every
	// subsequent pause and keystroke.
	fatigueLevel float64

	noiseX *perlin.Perlin
	noiseY *perlin.Perlin
}

// New builds a Humanoid over the given executor. Zero config fields fall back
// to the package defaults.
func New(cfg Config, executor Executor, logger *zap.Logger) *Humanoid {
	cfg.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	seed := time.Now().UnixNano()
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(seed))
	}

	alpha, beta, n := 2.0, 2.0, int32(3)
	return &Humanoid{
		cfg:      cfg,
		executor: executor,
		logger:   logger.Named("humanoid"),
		rng:      rng,
		noiseX:   perlin.NewPerlin(alpha, beta, n, seed),
		noiseY:   perlin.NewPerlin(alpha, beta, n, seed+1),
	}
}

// SetPosition records where the cursor notionally sits after an external
// action (navigation, click) so drift starts from a plausible point.
func (h *Humanoid) SetPosition(x, y float64) {
	h.mu.Lock()
	h.currentPos = Vector2D{X: x, Y: y}
	h.mu.Unlock()
}

// Pause runs a cognitive pause with the session's configured distribution.
func (h *Humanoid) Pause(ctx context.Context) error {
	return h.CognitivePause(ctx, h.cfg.CognitiveMeanMs, h.cfg.CognitiveStdDevMs)
}

// CognitivePause waits a normally distributed interval, stretched by fatigue.
// Longer pauses idle the cursor instead of freezing it.
func (h *Humanoid) CognitivePause(ctx context.Context, meanMs, stdDevMs float64) error {
	h.mu.Lock()
	fatigueFactor := 1.0 + h.fatigueLevel
	sample := meanMs + h.rng.NormFloat64()*stdDevMs
	h.mu.Unlock()

	duration := time.Duration(fatigueFactor*sample) * time.Millisecond
	if duration <= 0 {
		return nil
	}

	h.recoverFatigue(duration)

	if duration > 100*time.Millisecond {
		return h.Hesitate(ctx, duration)
	}
	return h.executor.Sleep(ctx, duration)
}

// Hesitate idles for duration while drifting the cursor on perlin noise
// around its current position.
func (h *Humanoid) Hesitate(ctx context.Context, duration time.Duration) error {
	h.mu.Lock()
	start := h.currentPos
	amplitude := h.cfg.DriftAmplitudePx
	h.mu.Unlock()

	var elapsed time.Duration
	for elapsed < duration {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		t := elapsed.Seconds() * perlinFrequency
		target := start.Add(Vector2D{
			X: h.noiseX.Noise1D(t) * amplitude,
			Y: h.noiseY.Noise1D(t) * amplitude,
		})
		if err := h.executor.DispatchMouseEvent(ctx, MouseEventData{
			Type:   MouseMove,
			X:      target.X,
			Y:      target.Y,
			Button: ButtonNone,
		}); err != nil {
			return err
		}

		h.mu.Lock()
		h.currentPos = target
		step := time.Duration(50+h.rng.Intn(100)) * time.Millisecond
		h.mu.Unlock()

		if elapsed+step > duration {
			step = duration - elapsed
		}
		if step <= 0 {
			break
		}
		if err := h.executor.Sleep(ctx, step); err != nil {
			return err
		}
		elapsed += step
	}
	return nil
}

// TypeText types text one rune at a time with human inter-key rhythm: slower
// after spaces and sentence punctuation, stretched by fatigue. The focused
// element receives the keys.
func (h *Humanoid) TypeText(ctx context.Context, text string) error {
	runes := []rune(text)
	h.updateFatigue(float64(len(runes)) * 0.002)

	for i, r := range runes {
		if err := h.keyPause(ctx, runes, i); err != nil {
			return err
		}
		if err := h.executor.SendKeys(ctx, string(r)); err != nil {
			return fmt.Errorf("typing rune %d: %w", i, err)
		}
	}
	return nil
}

// keyPause sleeps the inter-key delay before the rune at index.
func (h *Humanoid) keyPause(ctx context.Context, runes []rune, index int) error {
	h.mu.Lock()
	mean := h.cfg.KeystrokeMeanMs
	stdDev := h.cfg.KeystrokeStdDevMs
	fatigueFactor := 1.0 + h.fatigueLevel
	sample := h.rng.NormFloat64()
	h.mu.Unlock()

	factor := 1.0
	if index > 0 {
		switch prev := runes[index-1]; {
		case prev == '.' || prev == '!' || prev == '?':
			factor = 2.2
		case unicode.IsSpace(prev):
			factor = 1.5
		}
	}

	delayMs := (mean + sample*stdDev) * factor * fatigueFactor
	minMs := mean * 0.25
	if delayMs < minMs {
		delayMs = minMs
	}
	return h.executor.Sleep(ctx, time.Duration(delayMs)*time.Millisecond)
}

// updateFatigue raises the fatigue level in proportion to action intensity.
func (h *Humanoid) updateFatigue(intensity float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fatigueLevel = math.Min(1.0, h.fatigueLevel+0.05*intensity)
}

// recoverFatigue lowers the fatigue level in proportion to rest time.
func (h *Humanoid) recoverFatigue(duration time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fatigueLevel = math.Max(0.0, h.fatigueLevel-0.01*duration.Seconds())
}
