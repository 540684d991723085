package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	logx "ticketwatch/pkg/logx"
)

// Config tunes the HTTP client used for polling upstream storefronts.
type Config struct {
	// Timeout bounds a whole request including body read.
	Timeout time.Duration
	// RebuildAfter is the request count after which the underlying
	// transport is torn down and replaced, forcing fresh connections.
	// Zero disables rotation.
	RebuildAfter int64
	// MaxBody caps the response body size read into memory.
	MaxBody int64
}

const (
	defaultTimeout = 5 * time.Second
	defaultMaxBody = 4 << 20
)

// Client is an HTTP fetcher for polling JSON endpoints. Redirects are
// never followed: storefronts redirect to login or risk-control pages
// when a session goes stale, and treating that as data would poison the
// baseline. Any non-200 status is an error.
//
// The underlying transport is rebuilt after every RebuildAfter requests
// so long-running watchers do not pin a single upstream connection.
type Client struct {
	cfg Config
	log logx.Logger

	mu   sync.RWMutex
	http *http.Client

	requests atomic.Int64
}

func New(cfg Config, log logx.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = defaultMaxBody
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Client{cfg: cfg, log: log}
	c.http = c.build()
	return c
}

func (c *Client) build() *http.Client {
	return &http.Client{
		Timeout: c.cfg.Timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   c.cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   c.cfg.Timeout,
			ResponseHeaderTimeout: c.cfg.Timeout,
			MaxIdleConns:          16,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Rotate tears down the current transport and installs a fresh one.
// In-flight requests finish on the old transport.
func (c *Client) Rotate() {
	fresh := c.build()
	c.mu.Lock()
	old := c.http
	c.http = fresh
	c.mu.Unlock()

	if t, ok := old.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	c.requests.Store(0)
	c.log.Debug("http transport rotated")
}

// Requests reports how many requests have completed since the last rotation.
func (c *Client) Requests() int64 { return c.requests.Load() }

func (c *Client) maybeRotate() {
	n := c.requests.Add(1)
	if c.cfg.RebuildAfter > 0 && n >= c.cfg.RebuildAfter {
		// Rotation runs off the request path so teardown never delays
		// the tick that tripped the threshold.
		go c.Rotate()
	}
}

// Get fetches url and returns the response body. Headers and cookies are
// applied as given; a nil map is fine. Any redirect or non-200 response
// is an error.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string, cookies []*http.Cookie) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	c.mu.RLock()
	hc := c.http
	c.mu.RUnlock()

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	defer c.maybeRotate()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused, then fail.
		_, _ = io.CopyN(io.Discard, resp.Body, 1024)
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBody))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}
	return body, nil
}
