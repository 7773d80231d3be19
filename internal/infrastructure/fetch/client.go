// Package fetch retrieves statistics pages over HTTP.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"statswatch/internal/ports"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Client fetches raw page HTML with a bounded timeout.
type Client struct {
	http *resty.Client
}

var _ ports.PageFetcher = (*Client)(nil)

// NewClient builds a fetcher; timeout defaults to 10 seconds.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)

	return &Client{http: client}
}

// Fetch returns the body of the page at pageURL. Timeouts and non-200
// statuses surface as errors; the caller treats them as per-source failures.
func (c *Client) Fetch(ctx context.Context, pageURL string) (string, error) {
	resp, err := c.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", pageURL, resp.Status())
	}

	return resp.String(), nil
}
