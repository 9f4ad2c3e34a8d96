package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

type HttpClient struct {
	BaseURL    string
	HTTPClient *http.Client

	token string
}

func NewHttpClient(baseURL string) *HttpClient {
	return &HttpClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// RequestOption adjusts an outgoing request before it is sent.
type RequestOption func(*http.Request)

func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// WithIdempotencyKey makes a mutating request safe to retry.
func WithIdempotencyKey(key string) RequestOption {
	return WithHeader("Idempotency-Key", key)
}

type Response struct {
	*http.Response
	Body []byte
}

// ErrorBody is the failure envelope returned by the API.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (r *Response) DecodeJSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

// Error decodes the failure envelope. It returns nil for 2xx responses.
func (r *Response) Error() *ErrorBody {
	if r.StatusCode < http.StatusBadRequest {
		return nil
	}
	var body ErrorBody
	if err := r.DecodeJSON(&body); err != nil {
		return &ErrorBody{Message: fmt.Sprintf("undecodable error body: %v", err)}
	}
	return &body
}

// SetToken attaches a bearer token to every subsequent request.
func (c *HttpClient) SetToken(token string) {
	c.token = token
}

func (c *HttpClient) GET(path string, opts ...RequestOption) (*Response, error) {
	return c.Do(context.Background(), http.MethodGet, path, nil, opts...)
}

func (c *HttpClient) POST(path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(context.Background(), http.MethodPost, path, body, opts...)
}

func (c *HttpClient) PUT(path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(context.Background(), http.MethodPut, path, body, opts...)
}

func (c *HttpClient) DELETE(path string, opts ...RequestOption) (*Response, error) {
	return c.Do(context.Background(), http.MethodDelete, path, nil, opts...)
}

// Do sends body as JSON (a []byte is sent verbatim) and reads the whole
// response.
func (c *HttpClient) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	var reqBody io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reqBody = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{Response: resp, Body: respBody}, nil
}

// WaitForHealthy polls /health until it answers 200 or maxWait elapses.
func (c *HttpClient) WaitForHealthy(maxWait time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maxWait)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if resp, err := c.Do(ctx, http.MethodGet, "/health", nil); err == nil && resp.StatusCode == http.StatusOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("service did not become healthy within %v", maxWait)
		case <-ticker.C:
		}
	}
}

func GetErrorMessage(resp *Response) string {
	body := resp.Error()
	if body == nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Code
}

// GetErrorCode returns the machine-readable code of an error envelope.
func GetErrorCode(resp *Response) string {
	if body := resp.Error(); body != nil {
		return body.Code
	}
	return ""
}
