// Package billapi is the HTTP client of the remote purchase-bill API.
package billapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/odyssey-erp/billdesk/internal/platform/httpx"
)

const maxErrorBody = 64 << 10

// Client wraps interactions with the purchase-bill API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs a new client. token is sent as a bearer token when set.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type request struct {
	op      string
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

// do executes req and decodes a 2xx body into out. A 204, or an empty body,
// leaves out untouched.
func (c *Client) do(ctx context.Context, req request, out any) error {
	var payload io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("billapi: %s: encode: %w", req.op, err)
		}
		payload = bytes.NewReader(data)
	}

	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("billapi: %s: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("billapi: %s: %w: %w", req.op, httpx.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(req.op, resp)
	}
	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("billapi: %s: read body: %w: %w", req.op, httpx.ErrUpstream, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("billapi: %s: decode body: %w: %w", req.op, httpx.ErrUpstream, err)
	}
	return nil
}

// Get fetches path and decodes it into T.
func Get[T any](ctx context.Context, c *Client, op, path string, query url.Values) (T, error) {
	var out T
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: path, query: query}, &out)
	return out, err
}

// Send issues a write request with a JSON body and decodes the response into T.
func Send[T any](ctx context.Context, c *Client, op, method, path string, body any) (T, error) {
	var out T
	err := c.do(ctx, request{op: op, method: method, path: path, body: body}, &out)
	return out, err
}

// Delete issues a DELETE request.
func Delete(ctx context.Context, c *Client, op, path string) error {
	return c.do(ctx, request{op: op, method: http.MethodDelete, path: path}, nil)
}

// Ping checks that the API answers at all; any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/purchase-bills", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("billing api returned status %d", resp.StatusCode)
	}
	return nil
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
