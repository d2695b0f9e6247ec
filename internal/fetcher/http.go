package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MaxBodyBytes caps how much of a response body Download hands back.
const MaxBodyBytes = 64 << 20

const (
	defaultHostRate rate.Limit = 20
	maxRetryWait               = 30 * time.Second
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// MaxRetries is the total number of attempts per request. Values below 1
	// mean a single attempt.
	MaxRetries int
	// RateLimits maps a host to its requests per second. Other hosts get 20/s.
	RateLimits map[string]rate.Limit
}

// HTTPFetcher implements Fetcher over net/http. Requests are paced per host,
// and 429 and 5xx responses are retried up to MaxRetries attempts.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu    sync.Mutex
	hosts map[string]*hostLimiter

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "farecast/1.0"
	}
	hosts := make(map[string]*hostLimiter, len(opts.RateLimits))
	for host, r := range opts.RateLimits {
		hosts[host] = newHostLimiter(r)
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:  opts,
		hosts: hosts,
		sleep: sleepCtx,
	}
}

// Download fetches rawURL and returns the response body, capped at
// MaxBodyBytes. The caller closes it. Any status other than 200 is an error;
// URLs in errors and logs have their token redacted.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	lim := f.limiter(req.URL.Host)
	logURL := RedactURL(req.URL)

	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxRetries; attempt++ {
		if err := lim.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrapf(ctx.Err(), "get %s", logURL)
			}
			lastErr = eris.Wrapf(err, "get %s", logURL)
			zap.L().Warn("http request failed",
				zap.String("url", logURL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if attempt < f.opts.MaxRetries {
				f.pause(ctx, attempt, 0)
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			lim.speedUp()
			return limitBody(resp.Body), nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			drain(resp.Body)
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, logURL)
			wait := retryAfter(resp.Header.Get("Retry-After"))
			if resp.StatusCode == http.StatusTooManyRequests {
				lim.slowDown()
			}
			zap.L().Warn("retryable http status",
				zap.String("url", logURL),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt),
				zap.Duration("retry_after", wait),
			)
			if attempt < f.opts.MaxRetries {
				f.pause(ctx, attempt, wait)
			}

		default:
			drain(resp.Body)
			return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, logURL)
		}
	}

	if f.opts.MaxRetries > 1 {
		return nil, eris.Wrapf(lastErr, "download: gave up after %d attempts", f.opts.MaxRetries)
	}
	return nil, eris.Wrap(lastErr, "download")
}

func (f *HTTPFetcher) limiter(host string) *hostLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.hosts[host]
	if !ok {
		lim = newHostLimiter(defaultHostRate)
		f.hosts[host] = lim
	}
	return lim
}

// pause waits before the next attempt: the server's Retry-After when given,
// otherwise exponential backoff from one second with jitter.
func (f *HTTPFetcher) pause(ctx context.Context, attempt int, hint time.Duration) {
	d := hint
	if d <= 0 {
		d = time.Second << min(attempt-1, 5)
		d += rand.N(d / 2)
	}
	f.sleep(ctx, min(d, maxRetryWait))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// retryAfter parses a Retry-After header in either seconds or HTTP-date form.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(time.Until(at), 0)
	}
	return 0
}

// RedactURL renders u with the token query parameter masked.
func RedactURL(u *url.URL) string {
	q := u.Query()
	if q.Get("token") == "" {
		return u.String()
	}
	q.Set("token", "REDACTED")
	cp := *u
	cp.RawQuery = q.Encode()
	return cp.String()
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
	_ = body.Close()
}

type limitedBody struct {
	io.Reader
	io.Closer
}

func limitBody(body io.ReadCloser) io.ReadCloser {
	return limitedBody{Reader: io.LimitReader(body, MaxBodyBytes), Closer: body}
}

// hostLimiter paces requests to one host. A 429 halves the rate, down to a
// quarter of the configured rate; each success recovers 20% of it, up to
// the configured rate.
type hostLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	ceiling rate.Limit
	floor   rate.Limit
}

func newHostLimiter(r rate.Limit) *hostLimiter {
	return &hostLimiter{
		limiter: rate.NewLimiter(r, max(1, int(r))),
		ceiling: r,
		floor:   r / 4,
	}
}

func (h *hostLimiter) wait(ctx context.Context) error {
	return h.limiter.Wait(ctx)
}

func (h *hostLimiter) speedUp() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.limiter.SetLimit(min(h.limiter.Limit()*1.2, h.ceiling))
}

func (h *hostLimiter) slowDown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.limiter.SetLimit(max(h.limiter.Limit()/2, h.floor))
}

func (h *hostLimiter) current() rate.Limit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.limiter.Limit()
}
