package common

import "time"

// TimeoutSettings resolves effective timeouts for waits and
// navigations. Settings chain through parents so a page inherits its
// browser's defaults until it overrides them.
type TimeoutSettings struct {
	parent                   *TimeoutSettings
	defaultTimeout           *time.Duration
	defaultNavigationTimeout *time.Duration
}

// NewTimeoutSettings creates a new timeout settings object.
func NewTimeoutSettings(parent *TimeoutSettings) *TimeoutSettings {
	t := &TimeoutSettings{
		parent:                   parent,
		defaultTimeout:           nil,
		defaultNavigationTimeout: nil,
	}
	return t
}

// SetDefaultTimeout overrides the timeout used by waits on this level
// of the chain.
func (t *TimeoutSettings) SetDefaultTimeout(timeout time.Duration) {
	t.defaultTimeout = &timeout
}

// SetDefaultNavigationTimeout overrides the timeout used by
// navigations on this level of the chain.
func (t *TimeoutSettings) SetDefaultNavigationTimeout(timeout time.Duration) {
	t.defaultNavigationTimeout = &timeout
}

// normalize maps a non-positive per-call timeout to the configured
// wait default.
func (t *TimeoutSettings) normalize(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	return t.timeout()
}

// normalizeNavigation maps a non-positive per-call timeout to the
// configured navigation default.
func (t *TimeoutSettings) normalizeNavigation(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	return t.navigationTimeout()
}

func (t *TimeoutSettings) navigationTimeout() time.Duration {
	if t.defaultNavigationTimeout != nil {
		return *t.defaultNavigationTimeout
	}
	if t.defaultTimeout != nil {
		return *t.defaultTimeout
	}
	if t.parent != nil {
		return t.parent.navigationTimeout()
	}
	return DefaultTimeout
}

func (t *TimeoutSettings) timeout() time.Duration {
	if t.defaultTimeout != nil {
		return *t.defaultTimeout
	}
	if t.parent != nil {
		return t.parent.timeout()
	}
	return DefaultTimeout
}
