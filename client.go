// Package netguard issues the client's outbound API and model-service
// requests safely: every dispatch is sanitized, trust-checked against the
// runtime policy, cached when asked to, retried on transient failure, and
// actively defended against hostile or accidental HTTP redirection.
package netguard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evdnx/golog"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/GamePathAi/gamepathai-sub000/cache"
	"github.com/GamePathAi/gamepathai-sub000/credstore"
	"github.com/GamePathAi/gamepathai-sub000/policy"
)

// contextKey is a private type for context values.
type contextKey string

// requestIDKey is the context key used to store a request ID.
const requestIDKey contextKey = "requestID"

// WithRequestID returns a context carrying an explicit request ID for log
// correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func getRequestID(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return uuid.New().String()
}

const maxResponseBody = 10 * 1024 * 1024 // 10 MiB

// Client is the composition root: it wires the URL policy, the response
// cache, the credential store and the retry controller around one HTTP
// transport. Construct it once with New and share it; all methods are safe
// for concurrent use.
type Client struct {
	httpClient     *http.Client
	transport      http.RoundTripper
	policy         *policy.Policy
	cache          *cache.Cache
	creds          credstore.Store
	baseURL        string
	timeout        time.Duration
	retryCount     int
	retryDelay     time.Duration
	maxBackoff     time.Duration
	defaultHeaders map[string]string
	limiter        *rate.Limiter
	logger         *golog.Logger
	telemetry      TelemetryCollector
	breaker        *CircuitBreaker
}

// New creates a Client applying any supplied Options. With no options it runs
// the built-in strict production policy, a fresh cache and a 10s per-attempt
// timeout.
func New(opts ...Option) *Client {
	c := &Client{
		policy:         policy.Default(policy.ModeStrict),
		cache:          cache.New(),
		timeout:        10 * time.Second,
		retryCount:     2,
		retryDelay:     500 * time.Millisecond,
		maxBackoff:     30 * time.Second,
		defaultHeaders: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.httpClient = &http.Client{Transport: base}
	if c.policy.Mode == policy.ModeStrict {
		// Server-issued redirects are a hard error in strict mode; the
		// transport never follows them.
		c.httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return newRedirectError(via[0].URL.String(), req.URL.String(), nil)
		}
	}
	return c
}

// Policy exposes the client's trust policy, mainly for diagnostics.
func (c *Client) Policy() *policy.Policy { return c.policy }

// Cache exposes the response cache so callers can invalidate after writes.
func (c *Client) Cache() *cache.Cache { return c.cache }

// Dispatch executes one logical request: sanitize, trust-check, consult the
// cache for GETs with a TTL, then run the guarded network attempt under the
// retry controller. The returned bytes are the raw response body; a 204
// yields an empty slice.
func (c *Client) Dispatch(ctx context.Context, rawURL string, opts Options) ([]byte, error) {
	opts = c.normalize(opts)

	sanitized := c.policy.Sanitize(rawURL)
	if err := c.precheck(sanitized, opts.Privileged); err != nil {
		c.logInfo("request blocked pre-flight", getRequestID(ctx),
			golog.String("url", sanitized))
		if c.telemetry != nil {
			c.telemetry.IncFailures(opts.Method, sanitized, KindOf(err))
		}
		return nil, err
	}

	attempt := func(ctx context.Context) ([]byte, error) {
		return c.runWithRetry(ctx, rawURL, opts)
	}
	if opts.Method == http.MethodGet && opts.TTL > 0 && c.cache != nil {
		key := opts.Method + " " + sanitized
		return c.cache.GetOrFetch(ctx, key, attempt, cache.Options{
			TTL:          opts.TTL,
			ForceRefresh: opts.ForceRefresh,
		})
	}
	return attempt(ctx)
}

// DispatchJSON dispatches and unmarshals the response body into out. An
// empty body (204 or nil out) is not an error.
func (c *Client) DispatchJSON(ctx context.Context, rawURL string, opts Options, out any) error {
	data, err := c.Dispatch(ctx, rawURL, opts)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}
	return nil
}

// Get fetches a JSON endpoint with the given cache TTL (zero disables
// caching) and decodes into out.
func (c *Client) Get(ctx context.Context, rawURL string, ttl time.Duration, out any) error {
	return c.DispatchJSON(ctx, rawURL, Options{TTL: ttl}, out)
}

// Post sends payload as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, rawURL string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}
	return c.DispatchJSON(ctx, rawURL, Options{Method: http.MethodPost, Body: body}, out)
}

// normalize applies the client defaults to the zero fields of opts.
func (c *Client) normalize(opts Options) Options {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	} else {
		opts.Method = strings.ToUpper(opts.Method)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = c.timeout
	}
	switch {
	case opts.RetryCount < 0:
		opts.RetryCount = 0
	case opts.RetryCount == 0:
		opts.RetryCount = c.retryCount
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = c.retryDelay
	}
	return opts
}

// precheck is the pre-flight trust gate: a URL that looks like a redirect
// attempt is blocked in every mode, and strict mode additionally refuses any
// destination outside the trust domain set. No network call is made for a
// blocked request.
func (c *Client) precheck(sanitized string, privileged bool) error {
	if c.policy.LooksLikeRedirectAttempt(sanitized, privileged) {
		return newBlockedError(sanitized, "URL matches a redirect pattern")
	}
	if c.policy.Mode == policy.ModeStrict && !c.policy.IsTrustedDomain(sanitized) {
		return newBlockedError(sanitized, "destination host is not in the trust domain set")
	}
	return nil
}

// runWithRetry wraps the full sanitize + trust-check + network attempt in the
// retry controller and applies the exhaustion re-classification.
func (c *Client) runWithRetry(ctx context.Context, rawURL string, opts Options) ([]byte, error) {
	op := func(ctx context.Context) ([]byte, error) {
		sanitized := c.policy.Sanitize(rawURL)
		if err := c.precheck(sanitized, opts.Privileged); err != nil {
			return nil, err
		}
		return c.dispatchOnce(ctx, sanitized, opts)
	}
	data, err := WithRetry(ctx, op, RetryOptions{
		Count:      opts.RetryCount,
		Delay:      opts.RetryDelay,
		UseBackoff: opts.UseBackoff,
		MaxDelay:   c.maxBackoff,
		OnRetry: func(attempt int, err error) {
			c.logInfo("retrying request", getRequestID(ctx),
				golog.String("url", rawURL),
				golog.Int("attempt", attempt),
				golog.String("error", err.Error()))
			if c.telemetry != nil {
				c.telemetry.IncRetries(opts.Method, rawURL, attempt)
			}
		},
	})
	if err != nil {
		return nil, c.finalize(opts.Method, rawURL, err)
	}
	return data, nil
}

// finalize re-classifies an exhausted failure: redirect-class errors are
// already the distinguished redirect result and pass through; everything else
// is reported to the telemetry collector and returned unchanged.
func (c *Client) finalize(method, rawURL string, err error) error {
	if redirectClass(err) {
		return err
	}
	if c.telemetry != nil {
		c.telemetry.IncFailures(method, rawURL, KindOf(err))
	}
	return err
}

// dispatchOnce performs exactly one network attempt against the sanitized
// URL, with header injection, timeout and the mode-dependent redirect policy.
func (c *Client) dispatchOnce(ctx context.Context, sanitized string, opts Options) ([]byte, error) {
	full, err := c.resolveURL(sanitized)
	if err != nil {
		return nil, err
	}

	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, newTransientError(full, 0, err)
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, newTransientError(full, 0, err)
		}
	}

	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(reqCtx, opts.Method, full, body)
	if err != nil {
		return nil, &Error{Kind: KindOther, Message: "building request", URL: full, Err: err}
	}
	c.injectHeaders(req, opts)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure()
		var ngErr *Error
		if errors.As(err, &ngErr) {
			// Strict-mode CheckRedirect surfaced through the transport.
			return nil, ngErr
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, newTimeoutError(full, time.Since(start), err)
		}
		return nil, newTransientError(full, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		c.recordFailure()
		return nil, newTransientError(full, resp.StatusCode, err)
	}

	// Relaxed mode follows server redirects; the final URL still has to pass
	// the known-bad-host check.
	if resp.Request != nil && resp.Request.URL != nil {
		final := resp.Request.URL.String()
		if final != full {
			c.logInfo("followed server redirect", getRequestID(ctx),
				golog.String("url", full),
				golog.String("final_url", final))
			if c.policy.IsKnownBadHost(final) {
				c.recordFailure()
				return nil, newRedirectError(full, final, nil)
			}
		}
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		c.recordSuccess(opts.Method, full, start)
		return nil, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		c.recordFailure()
		return nil, newTransientError(full, resp.StatusCode, nil)
	case resp.StatusCode >= 400:
		c.recordFailure()
		return nil, newStatusError(full, resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		c.recordFailure()
		return nil, newHTMLResponseError(full, resp.StatusCode)
	}

	c.recordSuccess(opts.Method, full, start)
	c.logInfo("request completed", getRequestID(ctx),
		golog.String("method", opts.Method),
		golog.String("url", full),
		golog.Int("status", resp.StatusCode))
	return data, nil
}

// injectHeaders builds the outbound header set: client defaults first, then
// the anti-redirect markers, then per-request headers, then credentials.
func (c *Client) injectHeaders(req *http.Request, opts Options) {
	for k, v := range c.defaultHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-No-Redirect", "1")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Accept", "application/json")
	if len(opts.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.Privileged {
		req.Header.Set("X-ML-Operation", "1")
	}
	if !opts.SkipAuth {
		if tok := credstore.AuthToken(c.creds); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
}

// resolveURL joins relative API paths onto the configured base URL. Absolute
// URLs pass through untouched; fragment-only URLs have no network meaning.
func (c *Client) resolveURL(sanitized string) (string, error) {
	if strings.HasPrefix(sanitized, "#") {
		return "", &Error{Kind: KindOther, Message: "cannot dispatch a fragment-only URL", URL: sanitized}
	}
	if strings.HasPrefix(sanitized, "/") {
		if c.baseURL == "" {
			return "", &Error{Kind: KindOther, Message: "no base URL configured for relative path", URL: sanitized}
		}
		return strings.TrimRight(c.baseURL, "/") + sanitized, nil
	}
	return sanitized, nil
}

func (c *Client) recordSuccess(method, url string, start time.Time) {
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	if c.telemetry != nil {
		c.telemetry.IncRequests(method, url)
		c.telemetry.ObserveLatency(method, url, time.Since(start))
	}
}

func (c *Client) recordFailure() {
	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
}

func (c *Client) logInfo(msg string, requestID string, fields ...golog.Field) {
	if c.logger != nil {
		c.logger.Info(msg, append([]golog.Field{golog.String("requestID", requestID)}, fields...)...)
	}
}
