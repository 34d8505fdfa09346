package fetch

import (
	"log/slog"

	"allthatstax/internal/config"
)

// FromConfig builds a fetcher for one configured source with its own rate
// limiter. Every worker must share the returned fetcher so the source's pace
// holds across them.
func FromConfig(source string, src config.Source, userAgent string, logger *slog.Logger) *Fetcher {
	return New(source,
		WithLimiter(NewRateLimiter(src.MinInterval())),
		WithPolicy(Policy{
			MaxAttempts:    src.MaxAttempts,
			InitialBackoff: src.Backoff(),
			MaxBackoff:     src.MaxBackoff(),
		}),
		WithTimeout(src.Timeout()),
		WithUserAgent(userAgent),
		WithLogger(logger),
	)
}
