package execution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Request is an outbound call composed by the step runner.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

// Response is what came back.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

// Client sends requests for the step runner.
type Client interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// ErrNetwork wraps transport failures: refused connections, DNS errors, resets.
var ErrNetwork = errors.New("network error")

// ErrRequestTimeout is returned when a request exceeds its timeout.
var ErrRequestTimeout = errors.New("request timeout")

// HTTPClient is the net/http implementation of Client.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient returns a client using transport, or the default transport when nil.
func NewHTTPClient(transport http.RoundTripper) *HTTPClient {
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &HTTPClient{client: &http.Client{Transport: transport}}
}

func (c *HTTPClient) Do(ctx context.Context, r *Request) (*Response, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var body io.Reader
	if r.Body != nil {
		body = strings.NewReader(string(r.Body))
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for _, k := range sortedKeys(r.Headers) {
		req.Header.Set(k, r.Headers[k])
	}

	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrNetwork, err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       data,
		Duration:   time.Since(start),
	}, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrRequestTimeout, err)
	}

	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
