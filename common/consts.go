package common

import "time"

const (
	// Defaults

	DefaultTimeout      time.Duration = 30 * time.Second
	DefaultPollInterval time.Duration = 100 * time.Millisecond

	DefaultScreencastQuality int64 = 80
)
