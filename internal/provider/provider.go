package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/internal/ratelimit"
)

// DefaultTimeout bounds every provider HTTP call
const DefaultTimeout = 10 * time.Second

// DefaultRateLimitDelay is how long an adapter waits before its single retry
// after a 429
const DefaultRateLimitDelay = 2 * time.Second

// PollAdapter fetches the latest position of one vessel on demand
type PollAdapter interface {
	Name() string
	FetchByVesselID(ctx context.Context, vesselID string) (models.PositionReport, error)
}

// StreamAdapter pushes reports for every vessel inside a bounding box.
// Subscribe blocks while the connection is alive and returns when it drops,
// so the caller decides whether and when to reconnect.
type StreamAdapter interface {
	Name() string
	Subscribe(ctx context.Context, bbox models.BoundingBox, emit func(models.PositionReport)) error
}

type options struct {
	httpClient     *http.Client
	timeout        time.Duration
	rateLimitDelay time.Duration
	limiter        ratelimit.Acquirer
	now            func() time.Time
}

// Option configures a REST adapter
type Option func(*options)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRateLimitDelay sets the wait before retrying a 429 once
func WithRateLimitDelay(d time.Duration) Option {
	return func(o *options) { o.rateLimitDelay = d }
}

// WithLimiter makes every request, the 429 retry included, wait for a slot
// from l first. Pass the same limiter to every adapter that shares an API key.
func WithLimiter(l ratelimit.Acquirer) Option {
	return func(o *options) { o.limiter = l }
}

// WithClock overrides the ingestion clock used for unparseable timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		timeout:        DefaultTimeout,
		rateLimitDelay: DefaultRateLimitDelay,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}
	return o
}
