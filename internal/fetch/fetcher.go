package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"allthatstax/internal/logging"
	"allthatstax/internal/services"
)

const (
	defaultTimeout  = 20 * time.Second
	maxBodyBytes    = 32 << 20
	errorSnippetLen = 200
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Doer executes GET requests against one external source. Fetcher is the
// production implementation; tests substitute their own.
type Doer interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*Response, error)
	GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error
}

// Fetcher wraps single HTTP requests with source pacing, a per-call timeout,
// and bounded retries with exponential backoff on transient failures.
type Fetcher struct {
	source     string
	httpClient *http.Client
	limiter    *RateLimiter
	policy     Policy
	timeout    time.Duration
	userAgent  string
	header     http.Header
	logger     *slog.Logger
}

var _ Doer = (*Fetcher)(nil)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithLimiter shares a rate limiter with other fetchers of the same source.
func WithLimiter(limiter *RateLimiter) Option {
	return func(f *Fetcher) {
		if limiter != nil {
			f.limiter = limiter
		}
	}
}

// WithPolicy overrides the retry policy.
func WithPolicy(policy Policy) Option {
	return func(f *Fetcher) {
		f.policy = policy
	}
}

// WithTimeout sets the per-call timeout. Each retry gets a fresh budget.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(userAgent string) Option {
	return func(f *Fetcher) {
		if ua := strings.TrimSpace(userAgent); ua != "" {
			f.userAgent = ua
		}
	}
}

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) Option {
	return func(f *Fetcher) {
		f.header.Set(key, value)
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a fetcher for the named source.
func New(source string, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:     strings.TrimSpace(source),
		httpClient: &http.Client{},
		policy:     DefaultPolicy(),
		timeout:    defaultTimeout,
		userAgent:  "AllThatStax/1.0",
		header:     make(http.Header),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(logging.String(logging.FieldSource, f.source))
	return f
}

// Source returns the source name used in errors and logs.
func (f *Fetcher) Source() string {
	return f.source
}

// Get issues a rate-limited GET, retrying transient failures. Non-2xx
// responses are returned as classified errors.
func (f *Fetcher) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := f.attempt(ctx, rawURL, header)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrCancelled, f.source, "get", "request aborted", ctx.Err())
		}
		retry, delay := f.policy.Next(attempt, services.KindOf(err))
		if !retry {
			return nil, err
		}
		if resp != nil {
			if hinted := retryAfter(resp.Header); hinted > delay {
				delay = min(hinted, f.policy.Ceiling())
				if hinted > delay {
					f.logger.Info("retry-after hint exceeds backoff ceiling, clamping",
						logging.String("url", rawURL),
						logging.Duration("hinted", hinted),
						logging.Duration("backoff", delay),
					)
				}
			}
		}
		logging.WithContext(ctx, f.logger).Warn("transient request failure, retrying",
			logging.String("url", rawURL),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", f.policy.MaxAttempts),
			logging.Duration("backoff", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "fetch_retry"),
			logging.String(logging.FieldErrorHint, "source is slow or rate limiting; retry continues automatically"),
		)
		if err := SleepWithContext(ctx, delay); err != nil {
			return nil, services.Wrap(services.ErrCancelled, f.source, "get", "request aborted", err)
		}
	}
}

// GetJSON issues Get and decodes the body into out. A body that is not valid
// JSON is reported as a parse error.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	if h.Get("Accept") == "" {
		h.Set("Accept", "application/json")
	}
	resp, err := f.Get(ctx, rawURL, h)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return services.Wrap(services.ErrParse, f.source, "decode", rawURL, err)
	}
	return nil
}

// attempt performs one request. On a classified HTTP failure the response is
// returned alongside the error so callers can inspect headers.
func (f *Fetcher) attempt(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, services.Wrap(services.ErrCancelled, f.source, "rate limit", "wait aborted", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, f.source, "build request", rawURL, err)
	}
	for key, values := range f.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for key, values := range header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, services.Wrap(services.ErrCancelled, f.source, "get", rawURL, ctx.Err())
		}
		return nil, services.Wrap(services.ErrTransient, f.source, "get", fmt.Sprintf("%s (latency=%s)", rawURL, time.Since(start).Round(time.Millisecond)), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, f.source, "read body", rawURL, err)
	}
	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body, URL: rawURL}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return out, nil
	}
	return out, classifyStatus(f.source, rawURL, resp.StatusCode, body)
}

func classifyStatus(source, rawURL string, status int, body []byte) error {
	detail := fmt.Sprintf("%s returned %d", rawURL, status)
	if snippet := strings.TrimSpace(string(body)); snippet != "" {
		if len(snippet) > errorSnippetLen {
			snippet = snippet[:errorSnippetLen]
		}
		detail += ": " + snippet
	}
	switch {
	case status == http.StatusNotFound, status == http.StatusGone:
		return services.Wrap(services.ErrNotFound, source, "get", detail, nil)
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return services.Wrap(services.ErrTransient, source, "get", detail, nil)
	default:
		return fmt.Errorf("%s: get: %s", source, detail)
	}
}

func retryAfter(header http.Header) time.Duration {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		return time.Until(when)
	}
	return 0
}
