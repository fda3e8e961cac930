package common

import (
	"context"
	"time"
)

// createWaitForEventHandler subscribes to the given events on emitter
// and resolves the returned channel with the first event whose data
// passes predicate. The returned cancel function must be called to
// unsubscribe; it is safe to call more than once.
func createWaitForEventHandler(
	emitter EventEmitter,
	events []string,
	predicate func(data any) bool,
) (<-chan any, context.CancelFunc) {
	evCh := make(chan any, 1)
	removes := make([]func(), 0, len(events))

	handler := func(data any) {
		if !predicate(data) {
			return
		}
		select {
		case evCh <- data:
		default:
			// A match was already delivered; the waiter is one-shot.
		}
	}
	for _, event := range events {
		removes = append(removes, emitter.on(event, handler))
	}

	cancel := func() {
		for _, remove := range removes {
			remove()
		}
	}
	return evCh, cancel
}

// waitForEvent blocks until an event on evCh passes, ctx ends, or
// timeout elapses. A non-positive timeout falls back to
// DefaultTimeout. On timeout the subscription is removed before
// returning, so no handler outlives its waiter.
func waitForEvent(ctx context.Context, evCh <-chan any, evCancel context.CancelFunc, timeout time.Duration, what string) (any, error) {
	defer evCancel()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-evCh:
		return ev, nil
	case <-ctx.Done():
		// Surfaces ErrConnectionClosed when the context died with the
		// connection.
		return nil, context.Cause(ctx)
	case <-timer.C:
		return nil, &TimeoutError{What: what, Timeout: timeout}
	}
}

// pollUntil calls probe every interval until it reports done, ctx
// ends, or timeout elapses. The first probe runs immediately, before
// any deadline check, so a condition that already holds succeeds even
// with a zero timeout.
func pollUntil(ctx context.Context, probe func() (bool, error), interval, timeout time.Duration, what string) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		done, err := probe()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return &TimeoutError{What: what, Timeout: timeout}
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}
