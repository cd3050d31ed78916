// internal/common/http/client.go
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, body)
}

// Client is a JSON client with a per-request timeout and retries on transport errors and 5xx.
type Client struct {
	r *resty.Client
}

func NewClient(baseURL string, timeout time.Duration, retries int) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{r: r}
}

// SetAuthToken sends a bearer token with every request.
func (c *Client) SetAuthToken(token string) *Client {
	if token != "" {
		c.r.SetAuthToken(token)
	}
	return c
}

// PostJSON sends body as JSON and returns the raw response body.
func (c *Client) PostJSON(ctx context.Context, path string, body interface{}) ([]byte, error) {
	resp, err := c.r.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return resp.Body(), nil
}

// GetJSON fetches path and returns the raw response body.
func (c *Client) GetJSON(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.r.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return resp.Body(), nil
}
