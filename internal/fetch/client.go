package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// checkTimeout bounds the connectivity check. It is short because a
// reachable site answers the first request quickly even when rendering is slow.
const checkTimeout = 15 * time.Second

// maxRedirects prevents redirect loops while allowing CDN redirects.
const maxRedirects = 10

// Response is a fully read HTTP response.
type Response struct {
	// URL is the final URL after redirects.
	URL string

	// ContentType is the Content-Type header value.
	ContentType string

	// Body is the response body.
	Body []byte
}

// Client downloads resources over plain HTTP(S).
type Client struct {
	httpClient  *http.Client
	userAgent   string
	maxBodySize int64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxBodySize limits the size of a response body. Zero disables the limit.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		c.maxBodySize = n
	}
}

// WithHTTPClient replaces the underlying http.Client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithProxy sends every request through the SOCKS5 proxy at address
// ("host:port"). An empty address keeps direct connections.
//
// Design decision: the dialer is created without authentication because
// local SOCKS proxies (ssh -D, Tor) do not require it.
func WithProxy(address string) Option {
	return func(c *Client) {
		if address == "" {
			return
		}
		transport, ok := c.httpClient.Transport.(*http.Transport)
		if !ok {
			return
		}
		dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
		if err != nil {
			return
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return
		}
		transport.DialContext = contextDialer.DialContext
	}
}

// NewClient creates a Client.
//
// Design decision: the transport sets Proxy to nil instead of
// http.ProxyFromEnvironment so HTTP(S)_PROXY variables are ignored.
func NewClient(opts ...Option) *Client {
	transport := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get downloads rawURL. Responses with a status of 400 or above are
// returned as errors wrapping ErrHTTPStatus.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s returned %d", ErrHTTPStatus, rawURL, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if c.maxBodySize > 0 {
		reader = io.LimitReader(resp.Body, c.maxBodySize+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	if c.maxBodySize > 0 && int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, rawURL, c.maxBodySize)
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// CheckConnection reports whether rawURL answers at all. Any HTTP status
// counts as reachable; only transport failures do not.
func (c *Client) CheckConnection(ctx context.Context, rawURL string) Status {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	resp, err := c.do(ctx, rawURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return StatusTimeout
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return StatusTimeout
		}
		return StatusCannotConnect
	}
	_ = resp.Body.Close()
	return StatusOK
}

func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request for %s: %w", rawURL, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}
