// Package fetch implements the HTTP client used for all portal traffic:
// randomized browser identity, cookie-jar sessions, proxy rotation,
// polite per-host rate limiting, and retry with backoff on transient
// failures.
package fetch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/sells-group/adscout/internal/resilience"
	"github.com/sells-group/adscout/internal/useragent"
)

// Options configures a Client. Zero values get explicit defaults; the
// tool never relies on implicit library defaults for timeout or retries.
type Options struct {
	// Timeout bounds a single request, connect through body read.
	// Default: 15s.
	Timeout time.Duration

	// Retry is the backoff policy for transient failures. Defaults to
	// resilience.DefaultRetryConfig (3 attempts).
	Retry resilience.RetryConfig

	// UserAgents overrides the built-in User-Agent pool.
	UserAgents []string

	// CookiesFile is an optional browser-exported cookie JSON file. When
	// set, requests carry the session and fragment requests carry the
	// derived csrf-token header.
	CookiesFile string

	// SiteURL scopes loaded cookies and seeds Referer/Origin when those
	// are not set explicitly.
	SiteURL string

	// Proxies rotates outbound requests across the given proxy URLs.
	Proxies []string

	// PerHostRPS throttles requests per host. Default: 1 rps, burst 2.
	PerHostRPS float64
	Burst      int

	// MaxBodyBytes caps how much of a page body is read. Default: 10 MiB.
	MaxBodyBytes int64

	// Referer and Origin override the values derived from SiteURL.
	Referer string
	Origin  string
}

// Response is the outcome of a completed fetch.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string
	FetchedAt  time.Time

	// UserAgent is the exact User-Agent value sent with the request that
	// produced this response.
	UserAgent string
}

// Client issues portal requests. Safe for concurrent use.
type Client struct {
	http    *http.Client
	pool    *useragent.Pool
	retry   resilience.RetryConfig
	csrf    string
	referer string
	origin  string
	maxBody int64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New builds a Client from opts.
func New(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	if opts.PerHostRPS <= 0 {
		opts.PerHostRPS = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}

	rot, err := newProxyRotator(opts.Proxies)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy:               rot.proxyFunc,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	hc := &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}

	var csrf string
	if opts.CookiesFile != "" {
		site := opts.SiteURL
		if site == "" {
			return nil, eris.New("fetch: cookies file requires a site url")
		}
		jar, token, err := loadCookieJar(opts.CookiesFile, site)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
		csrf = token
	}

	referer := opts.Referer
	origin := opts.Origin
	if referer == "" && opts.SiteURL != "" {
		referer = strings.TrimSuffix(opts.SiteURL, "/") + "/"
	}

	return &Client{
		http:     hc,
		pool:     useragent.NewPool(opts.UserAgents),
		retry:    opts.Retry,
		csrf:     csrf,
		referer:  referer,
		origin:   origin,
		maxBody:  opts.MaxBodyBytes,
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(opts.PerHostRPS),
		burst:    opts.Burst,
	}, nil
}

// Fetch issues a GET for a top-level page and returns the response with
// the body read in full. Transient failures are retried; the final error
// of an exhausted retry is returned as-is so callers can classify it with
// resilience.IsNetworkError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, rawURL, ProfileDocument)
}

// FetchFragment issues a GET with XHR headers, used for pagination
// fragment endpoints that return JSON or HTML snippets.
func (c *Client) FetchFragment(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, rawURL, ProfileFragment)
}

func (c *Client) do(ctx context.Context, rawURL string, profile Profile) (*Response, error) {
	lim := c.limiterFor(rawURL)

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Response, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: create request %s", rawURL)
		}
		ua := c.prepare(req, profile)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: get %s", rawURL)
		}
		defer func() { _ = resp.Body.Close() }()

		if resilience.RetryableStatus(resp.StatusCode) {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, resilience.NewTransientError(
				eris.Errorf("fetch: http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
		}

		body, err := c.readBody(resp)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: read body %s", rawURL)
		}

		finalURL := rawURL
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}

		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
			FinalURL:   finalURL,
			FetchedAt:  time.Now().UTC(),
			UserAgent:  ua,
		}, nil
	})
}

// prepare applies profile headers and a freshly drawn User-Agent,
// returning the agent string actually set.
func (c *Client) prepare(req *http.Request, profile Profile) string {
	applyProfile(req.Header, profile, c.referer, c.origin)
	if c.csrf != "" && profile == ProfileFragment {
		req.Header.Set("Csrf-Token", c.csrf)
	}
	ua := c.pool.Random()
	req.Header.Set("User-Agent", ua)
	return ua
}

// readBody reads up to maxBody bytes, converting legacy charsets to
// UTF-8 when the Content-Type declares one.
func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = io.LimitReader(resp.Body, c.maxBody)

	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "html") || strings.Contains(ct, "xml") {
		cr, err := charset.NewReader(r, ct)
		if err == nil {
			r = cr
		}
	}

	return io.ReadAll(r)
}

// Download opens a streaming GET for an asset URL. The caller owns the
// returned body. Non-200 responses are an error; transient failures are
// retried before the stream is handed over.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	lim := c.limiterFor(rawURL)

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*http.Response, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: create request %s", rawURL)
		}
		c.prepare(req, ProfileMedia)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: get %s", rawURL)
		}
		if resilience.RetryableStatus(resp.StatusCode) {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			return nil, resilience.NewTransientError(
				eris.Errorf("fetch: http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, eris.Errorf("fetch: download %s: unexpected status %d", rawURL, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) limiterFor(rawURL string) *rate.Limiter {
	host := hostOf(rawURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(c.rps, c.burst)
		c.limiters[host] = lim
	}
	return lim
}

func hostOf(rawURL string) string {
	// Good enough for limiter keying; a malformed URL fails later in
	// http.NewRequest with a real error.
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
