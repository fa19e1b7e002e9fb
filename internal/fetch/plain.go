package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBodyBytes caps how much of a response we keep. Result pages and artist
// profiles are well under this.
const maxBodyBytes = 8 << 20

// defaultTransport returns an http.Transport tuned for scraping: connection
// pooling, keep-alive, and TLS handshake caching.
func defaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
}

// browserHeaders mimic a real navigation so origin servers serve the same
// HTML they would to a person.
func browserHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
	}
}

// PlainClient fetches pages over plain HTTP with a pooled transport.
type PlainClient struct {
	client    *http.Client
	userAgent string
}

// NewPlainClient creates a plain HTTP fetcher. Timeouts come from the
// caller's context, not the client.
func NewPlainClient() *PlainClient {
	return &PlainClient{
		client:    &http.Client{Transport: defaultTransport()},
		userAgent: defaultUserAgent,
	}
}

// Fetch retrieves one page. Redirects are followed; the result carries the
// final URL. Block, rate-limit, and not-found responses come back as
// classified errors instead of results.
func (c *PlainClient) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range browserHeaders(c.userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, wrapFetchErr(ctx, pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, wrapFetchErr(ctx, pageURL, err)
	}

	if err := ClassifyResponse(resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")), string(body)); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	return &Result{
		Status:   resp.StatusCode,
		Body:     string(body),
		FinalURL: resp.Request.URL.String(),
	}, nil
}

// parseRetryAfter handles the delta-seconds form of the header. The HTTP
// date form is rare on the hosts we hit and falls back to zero.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
