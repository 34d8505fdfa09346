// Package fetch provides the HTTP plumbing shared by every external card
// source: a per-source RateLimiter, a pure retry Policy and the Fetcher that
// combines them around single GET requests.
//
// Fetcher classifies failures with the services error markers: timeouts,
// connection errors, 429 and 5xx responses are transient and retried with
// exponential backoff; 404 is a permanent not-found; cancellation is never
// retried. Callers share one RateLimiter per source so the request pace holds
// regardless of worker count.
package fetch
