package feed

import (
	"context"
	"net/http"
	"time"
)

// Client wraps an http.Client with the configured User-Agent. It performs
// no automatic retries; recovery belongs to the next scheduled pass.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

func NewClient(userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: userAgent,
	}
}

// Get issues a GET request and returns the open response. The caller owns
// the body. Non-2xx statuses are returned as a *FetchError with the body
// already closed.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	return resp, nil
}

// Probe fetches only the response headers for a URL, discarding the body.
// Used by the scheduler to obtain Last-Modified without a full read.
func (c *Client) Probe(ctx context.Context, url string) (http.Header, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp.Header, nil
}
