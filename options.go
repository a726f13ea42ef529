package netguard

import (
	"net/http"
	"time"

	"github.com/evdnx/golog"
	"golang.org/x/time/rate"

	"github.com/GamePathAi/gamepathai-sub000/cache"
	"github.com/GamePathAi/gamepathai-sub000/credstore"
	"github.com/GamePathAi/gamepathai-sub000/policy"
)

// Options configures a single Dispatch call. The zero value is a sane GET:
// no caching, client-default retry count and delay, auth header included.
type Options struct {
	// Method defaults to GET.
	Method string
	// Headers are merged over the client defaults and the injected
	// anti-redirect headers.
	Headers map[string]string
	// Body is sent as-is; a JSON content type is assumed unless overridden.
	Body []byte
	// TTL enables response caching for GET requests. Zero means never cache.
	TTL time.Duration
	// ForceRefresh bypasses a valid cache entry and refetches.
	ForceRefresh bool
	// RetryCount is the number of retries after the first attempt. Zero
	// means the client default; negative disables retries.
	RetryCount int
	// RetryDelay is the wait between retries. Zero means the client default.
	RetryDelay time.Duration
	// UseBackoff doubles RetryDelay on each successive retry.
	UseBackoff bool
	// SkipAuth leaves the Authorization header out.
	SkipAuth bool
	// Timeout bounds one network attempt. Zero means the client default.
	Timeout time.Duration
	// Privileged marks a model-backend call, which gets the stricter trust
	// checks and the X-ML-Operation marker header.
	Privileged bool
}

// Option configures a Client.
type Option func(*Client)

// WithPolicy replaces the trust policy. The policy's mode also selects the
// redirect-following behavior of the underlying transport.
func WithPolicy(p *policy.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithCache injects the response cache. Pass nil to disable caching.
func WithCache(cc *cache.Cache) Option {
	return func(c *Client) { c.cache = cc }
}

// WithCredentials injects the credential store the Authorization header is
// read from.
func WithCredentials(s credstore.Store) Option {
	return func(c *Client) { c.creds = s }
}

// WithBaseURL sets the origin that relative API paths are resolved against.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMaxRetries sets the default retry count.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.retryCount = n }
}

// WithRetryDelay sets the default wait between retries.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithMaxBackoff caps the exponential backoff growth.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) { c.maxBackoff = d }
}

// WithTransport replaces the underlying round tripper. Tests use this to mock
// the network.
func WithTransport(tr http.RoundTripper) Option {
	return func(c *Client) {
		if tr == nil {
			tr = http.DefaultTransport
		}
		c.transport = tr
	}
}

// WithDefaultHeader adds a header to every outbound request.
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) { c.defaultHeaders[key] = value }
}

// WithGologLogger attaches a structured logger.
func WithGologLogger(l *golog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTelemetry attaches a telemetry collector.
func WithTelemetry(t TelemetryCollector) Option {
	return func(c *Client) { c.telemetry = t }
}

// WithRateLimit throttles outbound attempts client-side.
func WithRateLimit(limit float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(limit), burst) }
}

// WithCircuitBreaker stops dispatching after failureThreshold consecutive
// failures until resetTimeout has passed.
func WithCircuitBreaker(failureThreshold int, resetTimeout time.Duration) Option {
	return func(c *Client) { c.breaker = NewCircuitBreaker(failureThreshold, resetTimeout) }
}
