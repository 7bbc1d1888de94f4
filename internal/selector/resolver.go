package selector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

// errPassExhausted marks a pass in which every strategy failed; the backoff
// loop treats it as transient and schedules another pass.
var errPassExhausted = errors.New("all strategies failed this pass")

// Resolver locates UI elements by role. Strategies are tried in registry
// order with a bounded wait each; a fully failed pass is retried under the
// registry's exponential backoff policy.
type Resolver struct {
	registry *Registry
	driver   schemas.PageDriver
	logger   *zap.Logger

	// newBackOff builds the retry schedule for one resolution. Tests swap it
	// for an instant schedule.
	newBackOff func(schemas.RetryPolicy) backoff.BackOff
}

// NewResolver wires a resolver to a registry and a live page driver.
func NewResolver(registry *Registry, driver schemas.PageDriver, logger *zap.Logger) (*Resolver, error) {
	if registry == nil {
		return nil, errors.New("selector: registry must not be nil")
	}
	if driver == nil {
		return nil, errors.New("selector: page driver must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		registry:   registry,
		driver:     driver,
		logger:     logger.Named("resolver"),
		newBackOff: policyBackOff,
	}, nil
}

// policyBackOff translates a RetryPolicy into the backoff schedule the
// resolver sleeps on between passes: BaseDelay, BaseDelay*Factor,
// BaseDelay*Factor^2, ... with no jitter, capped at MaxRetries passes total.
func policyBackOff(p schemas.RetryPolicy) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.BackoffFactor
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(p.MaxRetries-1))
}

// Resolve locates the element for role. On success it returns the strategy
// that matched so callers act through the exact locator that worked. On
// exhaustion it returns an ElementNotFoundError carrying the full attempt
// log. An unknown role surfaces the registry's ConfigError untouched.
func (r *Resolver) Resolve(ctx context.Context, role string) (schemas.ResolvedElement, error) {
	strategies, err := r.registry.StrategiesFor(role)
	if err != nil {
		return schemas.ResolvedElement{}, err
	}

	policy := r.registry.Policy()
	log := r.logger.With(zap.String("role", role))

	var (
		attempts []schemas.AttemptRecord
		resolved schemas.ResolvedElement
		pass     int
	)

	operation := func() error {
		pass++
		for _, s := range strategies {
			start := time.Now()
			waitErr := r.driver.WaitVisible(ctx, s, policy.StrategyTimeout)
			elapsed := time.Since(start)

			if waitErr == nil {
				resolved = schemas.ResolvedElement{Role: role, Strategy: s}
				log.Debug("Element resolved.",
					zap.Stringer("strategy", s),
					zap.Int("pass", pass),
					zap.Duration("elapsed", elapsed))
				return nil
			}

			attempts = append(attempts, schemas.AttemptRecord{
				Pass:     pass,
				Strategy: s,
				Elapsed:  elapsed,
				Cause:    attemptCause(waitErr),
			})
			log.Debug("Strategy failed.",
				zap.Stringer("strategy", s),
				zap.Int("pass", pass),
				zap.Duration("elapsed", elapsed),
				zap.String("cause", attemptCause(waitErr)))

			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
		}
		log.Debug("Pass exhausted, scheduling retry.",
			zap.Int("pass", pass),
			zap.Int("strategies", len(strategies)))
		return errPassExhausted
	}

	err = backoff.Retry(operation, backoff.WithContext(r.newBackOff(policy), ctx))
	if err == nil {
		return resolved, nil
	}

	// Cancellation outranks exhaustion: callers must see the context error.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return schemas.ResolvedElement{}, fmt.Errorf("resolving %q: %w", role, ctxErr)
	}

	notFound := &schemas.ElementNotFoundError{Role: role, Attempts: attempts}
	log.Warn("Element resolution exhausted.",
		zap.Int("passes", pass),
		zap.Int("attempts", len(attempts)),
		zap.String("attempt_log", notFound.AttemptLog()))
	return schemas.ResolvedElement{}, notFound
}

// ResolveQuick runs a single pass with a short per-strategy wait. The status
// probes use it for cheap marker checks that must not pay the full retry
// schedule.
func (r *Resolver) ResolveQuick(ctx context.Context, role string, wait time.Duration) (schemas.ResolvedElement, bool, error) {
	strategies, err := r.registry.StrategiesFor(role)
	if err != nil {
		return schemas.ResolvedElement{}, false, err
	}
	for _, s := range strategies {
		if err := r.driver.WaitVisible(ctx, s, wait); err == nil {
			return schemas.ResolvedElement{Role: role, Strategy: s}, true, nil
		}
		if ctx.Err() != nil {
			return schemas.ResolvedElement{}, false, ctx.Err()
		}
	}
	return schemas.ResolvedElement{}, false, nil
}

func attemptCause(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}
