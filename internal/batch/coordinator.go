// internal/batch/coordinator.go
package batch

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/api/schemas"
	"github.com/xkilldash9x/courier-cli/internal/config"
	"github.com/xkilldash9x/courier-cli/internal/outreach"
)

// -- Collaborator Interfaces --

// AttemptRunner drives one prospect to a terminal outcome. The outreach
// machine is the production implementation.
type AttemptRunner interface {
	Attempt(ctx context.Context, prospect schemas.Prospect) schemas.Outcome
}

// OutcomeSink receives each outcome the moment it is final, and the summary
// once the batch ends. The results writer is the production implementation.
// Sinks are best-effort: they cannot stop a batch.
type OutcomeSink interface {
	Record(outcome schemas.Outcome)
	Finish(summary schemas.RunSummary)
}

// SessionRefresher reloads the authenticated session after a rate-limit
// cool-down.
type SessionRefresher interface {
	Refresh(ctx context.Context) error
}

// Hooks are the optional collaborators of a batch run. Any field may be nil.
type Hooks struct {
	Sink      OutcomeSink
	Store     schemas.HistoryStore
	Refresher SessionRefresher

	// Sleep overrides the pacing wait. Nil means a plain timer; the browser
	// wiring installs the session's humanoid idle drift here.
	Sleep func(ctx context.Context, d time.Duration) error
	// Rand drives the delay jitter. Nil means time-seeded.
	Rand *rand.Rand
}

const (
	// defaultFailureThreshold trips the systemic-block assumption when the
	// config carries no explicit value.
	defaultFailureThreshold = 3

	// storeGrace bounds best-effort persistence once the batch context died.
	storeGrace = 10 * time.Second
)

// Coordinator walks a prospect list through the outreach machine, enforcing
// the send budget, pacing delays, and rate-limit defenses. One coordinator
// drives one session; prospects are strictly sequential.
type Coordinator struct {
	machine   AttemptRunner
	health    *outreach.SessionHealth
	cfg       config.OutreachConfig
	logger    *zap.Logger
	sink      OutcomeSink
	store     schemas.HistoryStore
	refresher SessionRefresher

	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

// New wires a coordinator to the machine and the session health it reads for
// the failure streak.
func New(
	machine AttemptRunner,
	health *outreach.SessionHealth,
	cfg config.OutreachConfig,
	hooks Hooks,
	logger *zap.Logger,
) (*Coordinator, error) {
	if machine == nil {
		return nil, errors.New("batch: attempt runner must not be nil")
	}
	if health == nil {
		return nil, errors.New("batch: session health must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := hooks.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	sleep := hooks.Sleep
	if sleep == nil {
		sleep = waitFor
	}
	return &Coordinator{
		machine:   machine,
		health:    health,
		cfg:       cfg,
		logger:    logger.Named("batch"),
		sink:      hooks.Sink,
		store:     hooks.Store,
		refresher: hooks.Refresher,
		rng:       rng,
		sleep:     sleep,
		newID:     uuid.NewString,
	}, nil
}

// Run drives prospects sequentially until the send budget is exhausted, a
// systemic block is assumed, or ctx is cancelled. It returns exactly one
// outcome per prospect, in input order, no matter how the batch ends.
// Cancellation is honored between prospects; an in-flight prospect reaches
// its own terminal outcome first.
func (c *Coordinator) Run(ctx context.Context, prospects []schemas.Prospect, maxRequests int) []schemas.Outcome {
	if maxRequests <= 0 {
		maxRequests = c.cfg.MaxRequests
	}
	runID := c.newID()
	log := c.logger.With(zap.String("run_id", runID))
	started := time.Now()
	log.Info("Batch starting.",
		zap.Int("prospects", len(prospects)),
		zap.Int("max_requests", maxRequests))

	outcomes := make([]schemas.Outcome, 0, len(prospects))
	var (
		sent              int
		attempted         int
		consecutiveLimits int
		halted            bool
		haltReason        schemas.OutcomeReason
	)

	for _, prospect := range prospects {
		if !halted && ctx.Err() != nil {
			halted, haltReason = true, schemas.SkipCancelled
			log.Warn("Batch cancelled, passing over the remaining prospects.",
				zap.Error(ctx.Err()))
		}
		if !halted && sent >= maxRequests {
			halted, haltReason = true, schemas.SkipLimitReached
			log.Info("Send budget exhausted.", zap.Int("sent", sent))
		}
		if halted {
			outcome := passOver(prospect, haltReason)
			outcomes = append(outcomes, outcome)
			c.emit(ctx, log, runID, outcome)
			continue
		}

		if attempted > 0 {
			if err := c.pace(ctx, log); err != nil {
				halted, haltReason = true, schemas.SkipCancelled
				log.Warn("Batch cancelled during pacing delay.", zap.Error(err))
				outcome := passOver(prospect, haltReason)
				outcomes = append(outcomes, outcome)
				c.emit(ctx, log, runID, outcome)
				continue
			}
		}
		attempted++

		outcome := c.machine.Attempt(ctx, prospect)
		outcomes = append(outcomes, outcome)
		c.emit(ctx, log, runID, outcome)

		switch {
		case outcome.Sent():
			sent++
			consecutiveLimits = 0
		case outcome.Reason == schemas.SkipRateLimited:
			consecutiveLimits++
			c.coolDown(ctx, log, consecutiveLimits)
		case outcome.Status == schemas.StatusFailed:
			streak := c.health.Snapshot().ConsecutiveFailures
			if streak >= c.failureThreshold() {
				halted, haltReason = true, schemas.SkipRateLimited
				log.Error("Consecutive failure threshold reached, assuming a systemic block.",
					zap.Int("streak", streak),
					zap.Int("threshold", c.failureThreshold()))
			}
		}
	}

	summary := schemas.Summarize(outcomes)
	summary.RunID = runID
	summary.StartedAt = started
	summary.FinishedAt = time.Now()
	summary.EndedEarly = halted

	c.finish(ctx, log, summary)
	return outcomes
}

// pace waits the randomized inter-prospect delay.
func (c *Coordinator) pace(ctx context.Context, log *zap.Logger) error {
	d := c.jitter(c.cfg.MinDelay, c.cfg.MaxDelay)
	if d <= 0 {
		return ctx.Err()
	}
	log.Debug("Pacing before the next prospect.", zap.Duration("delay", d))
	return c.sleep(ctx, d)
}

// coolDown backs off after a rate-limit hit. The wait grows linearly with
// the number of consecutive hits, then the session is refreshed when a
// refresher is wired.
func (c *Coordinator) coolDown(ctx context.Context, log *zap.Logger, streak int) {
	d := c.jitter(c.cfg.RateLimitWaitMin, c.cfg.RateLimitWaitMax) * time.Duration(streak)
	if d <= 0 {
		return
	}
	log.Warn("Rate limit encountered, cooling down.",
		zap.Duration("cool_down", d),
		zap.Int("consecutive_hits", streak))
	if err := c.sleep(ctx, d); err != nil {
		log.Warn("Cool-down interrupted.", zap.Error(err))
		return
	}
	if c.refresher != nil {
		if err := c.refresher.Refresh(ctx); err != nil {
			log.Warn("Session refresh after cool-down failed.", zap.Error(err))
		}
	}
}

// jitter draws a uniform duration from [min, max].
func (c *Coordinator) jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(c.rng.Int63n(int64(max-min)))
}

// emit streams one outcome to the sink and the history store. Persistence is
// best-effort and survives batch cancellation under a short grace budget.
func (c *Coordinator) emit(ctx context.Context, log *zap.Logger, runID string, outcome schemas.Outcome) {
	if c.sink != nil {
		c.sink.Record(outcome)
	}
	if c.store == nil {
		return
	}
	storeCtx, cancel := c.graceful(ctx)
	defer cancel()
	if err := c.store.RecordOutcomes(storeCtx, runID, []schemas.Outcome{outcome}); err != nil {
		log.Warn("History store rejected an outcome.", zap.Error(err))
	}
}

// finish closes the run record everywhere.
func (c *Coordinator) finish(ctx context.Context, log *zap.Logger, summary schemas.RunSummary) {
	log.Info("Batch finished.",
		zap.Int("total", summary.Total),
		zap.Int("sent", summary.Sent),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("rate_limit_hits", summary.RateLimitHits),
		zap.Bool("ended_early", summary.EndedEarly),
		zap.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)))

	if c.sink != nil {
		c.sink.Finish(summary)
	}
	if c.store != nil {
		storeCtx, cancel := c.graceful(ctx)
		defer cancel()
		if err := c.store.RecordRun(storeCtx, summary); err != nil {
			log.Warn("History store rejected the run summary.", zap.Error(err))
		}
	}
}

// graceful returns ctx while it lives, or a short background-derived budget
// once it died so final bookkeeping still lands.
func (c *Coordinator) graceful(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.Background(), storeGrace)
}

func (c *Coordinator) failureThreshold() int {
	if c.cfg.ConsecutiveFailureThreshold >= 1 {
		return c.cfg.ConsecutiveFailureThreshold
	}
	return defaultFailureThreshold
}

// passOver records a prospect the batch never attempted.
func passOver(prospect schemas.Prospect, reason schemas.OutcomeReason) schemas.Outcome {
	now := time.Now()
	return schemas.Outcome{
		Prospect:   prospect,
		Status:     schemas.StatusSkipped,
		Reason:     reason,
		StartedAt:  now,
		FinishedAt: now,
	}
}

// waitFor is the default sleeper: a plain interruptible timer.
func waitFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
