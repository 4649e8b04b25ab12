package resilience

import (
	"context"
	"time"
)

// PollState is the terminal state of a bounded poll.
type PollState string

const (
	PollReady    PollState = "ready"
	PollTimedOut PollState = "timed_out"
	PollFailed   PollState = "failed"
)

// AttemptResult is the three-way classification an operation returns to
// the poller. The operation owns error interpretation: only it can tell a
// "not ready yet" response apart from a definitively broken one.
type AttemptResult[T any] struct {
	ready   bool
	payload T
	fatal   bool
	cause   error
}

// Ready signals the remote task finished and carries its payload.
func Ready[T any](payload T) AttemptResult[T] {
	return AttemptResult[T]{ready: true, payload: payload}
}

// NotYet signals the remote task is still running.
func NotYet[T any]() AttemptResult[T] {
	return AttemptResult[T]{}
}

// Fatal signals the task can never succeed; remaining attempts are wasted
// work and must be skipped.
func Fatal[T any](cause error) AttemptResult[T] {
	return AttemptResult[T]{fatal: true, cause: cause}
}

// PollConfig bounds a poll loop by attempt count and wall-clock time.
// Both caps are enforced; whichever trips first terminates the loop, so a
// remote that answers slowly cannot stretch the total budget even with
// attempts to spare.
type PollConfig struct {
	MaxAttempts int
	Interval    time.Duration
	MaxElapsed  time.Duration
}

// PollOutcome reports how a poll loop ended.
type PollOutcome[T any] struct {
	State        PollState
	Payload      T
	Cause        error
	AttemptsUsed int
	Elapsed      time.Duration
}

// Poll drives op until it reports ready or fatal, attempts run out, or
// the elapsed budget is spent. The interval wait is skipped before the
// first attempt and after the last; a ready result returns immediately
// with no further waiting. Cancellation during the interval wait ends the
// poll as Failed with the context error; the remote task is simply left
// unobserved.
func Poll[T any](ctx context.Context, cfg PollConfig, op func(ctx context.Context) AttemptResult[T]) PollOutcome[T] {
	start := time.Now()

	outcome := func(state PollState, res AttemptResult[T], attempts int) PollOutcome[T] {
		return PollOutcome[T]{
			State:        state,
			Payload:      res.payload,
			Cause:        res.cause,
			AttemptsUsed: attempts,
			Elapsed:      time.Since(start),
		}
	}

	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(cfg.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return outcome(PollFailed, Fatal[T](ctx.Err()), attempt-1)
			case <-timer.C:
			}
		}

		res := op(ctx)
		switch {
		case res.ready:
			return outcome(PollReady, res, attempt)
		case res.fatal:
			return outcome(PollFailed, res, attempt)
		}

		if attempt >= cfg.MaxAttempts || time.Since(start) >= cfg.MaxElapsed {
			return outcome(PollTimedOut, res, attempt)
		}
	}
}
