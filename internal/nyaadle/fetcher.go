package nyaadle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "nyaadle/1.0 (+https://github.com/sigman78/nyaadle)"

// maxRedirects bounds redirect chains when resolving download names.
const maxRedirects = 10

const maxBackoff = 60 * time.Second

// Content is an open download stream together with the name it is saved as.
type Content struct {
	Name string
	URL  *url.URL // final URL after redirects
	Size int64    // -1 when unknown
	Body io.ReadCloser
}

// FetcherOptions configures a Fetcher. Zero values select defaults.
type FetcherOptions struct {
	Timeout      time.Duration // per request (default 120 s)
	RatePerMin   int           // requests per minute, <= 0 disables the limiter
	MaxRetries   int           // retries on throttle / 5xx
	RetryBackoff time.Duration // first backoff step (default 5 s)
	UserAgent    string
}

// Fetcher retrieves download content over HTTP. Requests are rate limited
// and retried on 429 / 5xx with exponential backoff.
type Fetcher struct {
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	userAgent  string
}

// NewFetcher returns a Fetcher configured by opts.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 5 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerMin > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMin)), 5)
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		limiter:    lim,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		userAgent:  opts.UserAgent,
	}
}

// retryDelay returns how long to wait before the next attempt.
// It honours the Retry-After header when present, otherwise uses
// exponential backoff from base, capped at 60 s.
func retryDelay(attempt int, resp *http.Response, base time.Duration) time.Duration {
	if resp != nil {
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				d := time.Duration(secs) * time.Second
				if d > 120*time.Second {
					d = 120 * time.Second
				}
				return d
			}
		}
	}
	if attempt > 10 {
		return maxBackoff
	}
	d := base << uint(attempt)
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func isRetriable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

// do performs one request, retrying throttled and 5xx responses.
// Any other status is handed back to the caller with its body open.
func (f *Fetcher) do(ctx context.Context, method, target string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", f.userAgent)
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http %s: %w", method, err)
		}
		if !isRetriable(resp.StatusCode) {
			return resp, nil
		}
		if attempt >= f.maxRetries {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("HTTP %d after %d retries for %s", resp.StatusCode, f.maxRetries, target)
		}

		delay := retryDelay(attempt, resp, f.backoff)
		_ = resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Resolve follows redirects for target and returns the file name the
// content would be saved under. It issues a HEAD request and falls back to
// GET on any non-2xx answer, since some hosts only sign or serve GET.
func (f *Fetcher) Resolve(ctx context.Context, target string) (string, error) {
	resp, err := f.do(ctx, http.MethodHead, target)
	if err != nil {
		return "", err
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp, err = f.do(ctx, http.MethodGet, target)
		if err != nil {
			return "", err
		}
		_ = resp.Body.Close()
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d for %s", resp.StatusCode, target)
	}
	return RemoteFileName(resp.Request.URL), nil
}

// Get opens target for download. The caller must close Content.Body.
func (f *Fetcher) Get(ctx context.Context, target string) (*Content, error) {
	resp, err := f.do(ctx, http.MethodGet, target)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, target)
	}
	return &Content{
		Name: RemoteFileName(resp.Request.URL),
		URL:  resp.Request.URL,
		Size: resp.ContentLength,
		Body: resp.Body,
	}, nil
}
