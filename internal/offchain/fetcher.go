package offchain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"liquidity-event-evaluator/internal/domain"
	"liquidity-event-evaluator/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 3 * time.Second
	maxBodyBytes      = 4 << 20
)

// Fetcher performs GET requests with a fixed number of retries and a fixed
// delay between attempts. Any failure counts: transport errors, non-2xx
// statuses, and payloads the decode callback rejects.
type Fetcher struct {
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger
	metrics    *observability.Metrics
	requests   atomic.Uint64
}

// FetcherOption configures Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// WithMaxRetries sets how many attempts follow the first one.
func WithMaxRetries(n int) FetcherOption {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithRetryDelay sets the fixed delay between attempts.
func WithRetryDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(logger zerolog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithMetrics records attempts on m.
func WithMetrics(m *observability.Metrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewFetcher creates a Fetcher with 2 retries spaced 3 seconds apart.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Requests returns the number of HTTP attempts made so far.
func (f *Fetcher) Requests() uint64 {
	return f.requests.Load()
}

// Get fetches url and hands the body to decode, retrying the whole
// fetch-decode sequence on any error. After the last attempt the failure is
// returned as *domain.TransientFetchError wrapping the final cause.
func (f *Fetcher) Get(ctx context.Context, service, url string, decode func(body []byte) error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.retryDelay), uint64(f.maxRetries)),
		ctx,
	)

	attempts := 0
	operation := func() error {
		attempts++
		err := f.once(ctx, url, decode)
		f.metrics.RecordOffChainAttempt(service, err)
		return err
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn().
			Err(err).
			Str("service", service).
			Int("attempt", attempts).
			Dur("retry_in", wait).
			Msg("off-chain lookup failed, retrying")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.TransientFetchError{Service: service, Attempts: attempts, Err: err}
	}
	return nil
}

func (f *Fetcher) once(ctx context.Context, url string, decode func(body []byte) error) error {
	f.requests.Add(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	return decode(body)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
