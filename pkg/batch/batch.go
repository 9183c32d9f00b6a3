package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultRetryDelay = time.Second

var ErrRetriesExhausted = errors.New("retries exhausted")

// Task produces the result for one item. attempt starts at 1. Returning a
// non-nil error re-queues the item for the next wave unless it is wrapped
// with Permanent.
type Task[K comparable, R any] func(ctx context.Context, item K, attempt int) (R, error)

// Options tune a Runner. The zero value retries forever with DefaultRetryDelay
// and no concurrency limit.
type Options struct {
	// MaxConcurrency caps attempts in flight at once, 0 means unbounded.
	MaxConcurrency int
	// RetryDelay is the pause between a failed attempt and re-queueing.
	RetryDelay time.Duration
	// NewBackOff overrides RetryDelay with a per-item backoff policy. An item
	// whose backoff returns backoff.Stop is given up.
	NewBackOff func() backoff.BackOff
	// MaxAttempts gives up an item after that many failures, 0 retries forever.
	MaxAttempts int
	Logger      *zap.SugaredLogger
}

// Runner executes one task per item in waves: every pending item is
// dispatched, the wave is awaited as a whole, and failed items form the next
// wave.
type Runner[K comparable, R any] struct {
	opts   Options
	logger *zap.SugaredLogger
}

func NewRunner[K comparable, R any](opts Options) *Runner[K, R] {
	if opts.MaxConcurrency < 0 {
		opts.MaxConcurrency = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.NewBackOff == nil {
		delay := opts.RetryDelay
		opts.NewBackOff = func() backoff.BackOff {
			return backoff.NewConstantBackOff(delay)
		}
	}
	l := opts.Logger
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	return &Runner[K, R]{opts: opts, logger: l}
}

type outcome[K comparable, R any] struct {
	item   K
	result R
	err    error
	ran    bool
}

// Run returns once every item has a result. Results are only merged by the
// calling goroutine after a wave has settled. Failed items wait out their
// backoff between waves, outside the pool. On context cancellation the
// results gathered so far are returned with ctx.Err().
func (r *Runner[K, R]) Run(ctx context.Context, items []K, task Task[K, R]) (map[K]R, error) {
	var (
		runID    = uuid.NewString()
		pending  = dedup(items)
		total    = len(pending)
		done     = make(map[K]R, total)
		attempts = make(map[K]int, total)
		backoffs = make(map[K]backoff.BackOff)
		failed   = make(map[K]error)
		start    = time.Now()
	)

	pool := pond.NewPool(r.opts.MaxConcurrency, pond.WithContext(ctx))
	defer pool.StopAndWait()

	r.logger.Infow("starting batch", "run_id", runID, "items", total, "max_concurrency", r.opts.MaxConcurrency)

	for wave := 1; len(pending) > 0; wave++ {
		if err := ctx.Err(); err != nil {
			r.logger.Warnw("batch cancelled", "run_id", runID, "wave", wave, "completed", len(done), "remaining", len(pending))
			return done, err
		}

		outcomes := make([]outcome[K, R], len(pending))
		tasks := make([]pond.Task, len(pending))
		for i, item := range pending {
			attempts[item]++
			var (
				slot    = &outcomes[i]
				attempt = attempts[item]
			)
			slot.item = item
			tasks[i] = pool.Submit(func() {
				res, err := task(ctx, item, attempt)
				slot.result, slot.err, slot.ran = res, err, true
			})
		}
		for i, t := range tasks {
			if err := t.Wait(); err != nil && !outcomes[i].ran {
				outcomes[i].err = err
			}
		}

		var (
			next = make([]K, 0, len(pending))
			wait time.Duration
		)
		for _, o := range outcomes {
			switch {
			case o.err == nil:
				done[o.item] = o.result
				continue
			case IsPermanent(o.err):
				r.logger.Errorw("batch aborted", "run_id", runID, "item", o.item, "error", o.err)
				return done, fmt.Errorf("item %v: %w", o.item, o.err)
			case r.opts.MaxAttempts > 0 && attempts[o.item] >= r.opts.MaxAttempts:
				r.logger.Warnw("giving up item", "run_id", runID, "item", o.item, "attempts", attempts[o.item], "error", o.err)
				failed[o.item] = o.err
				continue
			}

			b, ok := backoffs[o.item]
			if !ok {
				b = r.opts.NewBackOff()
				backoffs[o.item] = b
			}
			delay := b.NextBackOff()
			if delay == backoff.Stop {
				r.logger.Warnw("giving up item", "run_id", runID, "item", o.item, "attempts", attempts[o.item], "error", o.err)
				failed[o.item] = o.err
				continue
			}
			r.logger.Debugw("attempt failed", "run_id", runID, "item", o.item, "attempt", attempts[o.item], "retry_in", delay, "error", o.err)
			wait = max(wait, delay)
			next = append(next, o.item)
		}
		pending = next

		r.logger.Infow("wave completed",
			"run_id", runID,
			"wave", wave,
			"completed", len(done),
			"remaining", len(pending),
			"total", total,
		)
		if len(pending) > 0 {
			sleep(ctx, wait)
		}
	}

	r.logger.Infow("batch finished", "run_id", runID, "items", total, "elapsed", time.Since(start))
	if len(failed) > 0 {
		return done, &RetryError[K]{Failed: failed}
	}
	return done, nil
}

// RetryError lists the items given up under a capped retry policy.
type RetryError[K comparable] struct {
	Failed map[K]error
}

func (e *RetryError[K]) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for item, err := range e.Failed {
		parts = append(parts, fmt.Sprintf("%v: %v", item, err))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s for %d items: %s", ErrRetriesExhausted, len(e.Failed), strings.Join(parts, "; "))
}

func (e *RetryError[K]) Unwrap() error {
	return ErrRetriesExhausted
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the runner stops and returns it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func dedup[K comparable](items []K) []K {
	seen := make(map[K]struct{}, len(items))
	out := make([]K, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
