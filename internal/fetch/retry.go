package fetch

import (
	"time"

	"allthatstax/internal/services"
)

// Default retry settings.
const (
	DefaultMaxAttempts    = 4
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 8 * time.Second
)

// Policy bounds retries of a single call.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy returns the retry policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// Next decides, after attempt (1-based) failed with an error of the given
// kind, whether to try again and how long to wait first. Only transient
// failures are retried; the delay doubles per attempt up to MaxBackoff.
func (p Policy) Next(attempt int, kind services.ErrorKind) (bool, time.Duration) {
	if kind != services.KindTransient {
		return false, 0
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if attempt >= maxAttempts {
		return false, 0
	}
	initial := p.initial()
	ceiling := p.Ceiling()
	if attempt < 1 {
		attempt = 1
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling {
			return true, ceiling
		}
	}
	return true, delay
}

// Ceiling is the longest delay the policy waits between attempts. Server
// hints such as Retry-After are clamped to it.
func (p Policy) Ceiling() time.Duration {
	if p.MaxBackoff < p.initial() {
		return p.initial()
	}
	return p.MaxBackoff
}

func (p Policy) initial() time.Duration {
	if p.InitialBackoff <= 0 {
		return DefaultInitialBackoff
	}
	return p.InitialBackoff
}
