package common

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors of the transport and the screencast state machine.
// Server-reported failures of individual commands surface as the
// *cdproto.Error carried by the response message, verbatim.
var (
	// ErrConnectionClosed is returned by every call that was still
	// pending when the connection was torn down, and by any call
	// issued afterwards.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrScreencastRunning is returned by Screencast.Start while a
	// recording is in progress.
	ErrScreencastRunning = errors.New("screencast already recording")

	// ErrScreencastStopped is returned by Screencast.Stop when no
	// recording is in progress.
	ErrScreencastStopped = errors.New("screencast not recording")
)

// TimeoutError is returned when a wait primitive's deadline elapses
// before the awaited condition is met. What names the awaited thing
// (an event, a selector, a URL pattern).
type TimeoutError struct {
	What    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.What)
}
