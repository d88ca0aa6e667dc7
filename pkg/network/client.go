package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// MaxRetries is the number of extra attempts after a network error or a 5xx.
const MaxRetries = 3

// Client wraps http.Client with retry logic and rate limiting.
type Client struct {
	HTTPClient  *http.Client
	RateLimiter *RateLimiter
	UserAgent   string
}

// NewClient creates a Client whose connection pool scales with concurrency.
// rateLimit is in requests per second (0 = unlimited).
func NewClient(timeout time.Duration, proxyURL string, concurrency int, rateLimit float64) *Client {
	if concurrency < 1 {
		concurrency = 1
	}

	transport := &http.Transport{
		// Targets are usually local test servers with self-signed certificates.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		MaxIdleConns:        concurrency * 2,
		MaxIdleConnsPerHost: max(concurrency/2, 10),
		MaxConnsPerHost:     concurrency,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if proxyURL != "" {
		if pURL, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(pURL)
		}
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// A redirect from the introspection page is a finding, not something to follow.
			return http.ErrUseLastResponse
		},
	}

	return &Client{
		HTTPClient:  httpClient,
		RateLimiter: NewRateLimiter(rateLimit),
	}
}

// Do sends req, retrying network errors and 5xx responses with exponential
// backoff (100ms, 200ms, 400ms). Requests with a body are retried only when
// req.GetBody is set.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := c.RateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	retries := MaxRetries
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		retries = 0
	}

	var resp *http.Response
	var err error

	for i := 0; i <= retries; i++ {
		if i > 0 {
			backoff := time.Duration(100<<(i-1)) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}

			if req.GetBody != nil {
				body, gerr := req.GetBody()
				if gerr != nil {
					return nil, gerr
				}
				req.Body = body
			}
		}

		resp, err = c.HTTPClient.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if ctx.Err() != nil {
			if resp != nil {
				resp.Body.Close()
			}
			return nil, ctx.Err()
		}

		// Keep the last 5xx response to return it if every retry fails.
		if resp != nil && i < retries {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d retries: %w", retries, err)
	}
	return resp, nil
}

// Get is a convenience wrapper building a GET request with extra headers.
func (c *Client) Get(ctx context.Context, target string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.Do(req)
}
