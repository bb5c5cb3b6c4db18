package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPCollector reads log lines from the body of an HTTP response
type HTTPCollector struct {
	BaseCollector
	url     string
	method  string
	headers map[string]string
	client  *http.Client
}

// NewHTTPCollector creates a new HTTP collector
func NewHTTPCollector(url string) (*HTTPCollector, error) {
	// Basic validation
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("invalid HTTP URL: %s", url)
	}

	return &HTTPCollector{
		BaseCollector: BaseCollector{
			name:   fmt.Sprintf("http-%s", url),
			source: url,
		},
		url:     url,
		method:  http.MethodGet,
		headers: make(map[string]string),
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// WithMethod sets the HTTP method
func (hc *HTTPCollector) WithMethod(method string) *HTTPCollector {
	hc.method = method
	return hc
}

// WithHeader adds an HTTP header
func (hc *HTTPCollector) WithHeader(key, value string) *HTTPCollector {
	hc.headers[key] = value
	return hc
}

// WithClient replaces the HTTP client
func (hc *HTTPCollector) WithClient(client *http.Client) *HTTPCollector {
	hc.client = client
	return hc
}

// Open implements the Collector interface. The response body is streamed,
// so a pipeline that stops early doesn't download the rest.
func (hc *HTTPCollector) Open(ctx context.Context) (io.ReadCloser, error) {
	// Create a new request
	req, err := http.NewRequestWithContext(ctx, hc.method, hc.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Add headers
	for key, value := range hc.headers {
		req.Header.Add(key, value)
	}

	// Execute the request
	resp, err := hc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	// Check status code
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request returned non-success status: %d", resp.StatusCode)
	}

	return resp.Body, nil
}
