package perf

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxBodyBytes is the default cap on response bytes kept for checks.
const DefaultMaxBodyBytes = 1 << 20

// RequestDescriptor defines the HTTP request every iteration issues.
type RequestDescriptor struct {
	// HTTP method, defaults to GET
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	URL string `json:"url" yaml:"url"`

	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// Timeout for this specific request (optional)
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

func (d *RequestDescriptor) clone() RequestDescriptor {
	c := *d
	if d.Headers != nil {
		c.Headers = make(map[string]string, len(d.Headers))
		for k, v := range d.Headers {
			c.Headers[k] = v
		}
	}
	return c
}

// Response is the part of an HTTP response that checks can inspect.
// Predicates must treat it as read-only.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte

	// Duration covers sending the request through reading the body
	Duration time.Duration

	// Truncated is set when the body exceeded the executor's read limit
	Truncated bool

	// BytesReceived counts every body byte read, including discarded ones
	BytesReceived int64
}

// Executor performs a single request. Implementations must not retry and
// must abort promptly when ctx is cancelled.
type Executor interface {
	Execute(ctx context.Context, req *RequestDescriptor) (*Response, error)
}

// HTTPClientConfig contains HTTP client configuration.
type HTTPClientConfig struct {
	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host. Zero means
	// one connection per VU.
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives
	DisableKeepAlives bool

	// DisableCompression disables automatic decompression
	DisableCompression bool

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool

	// MaxBodyBytes caps the body bytes kept for checks
	MaxBodyBytes int64

	// UserAgent is sent when the request has no User-Agent header
	UserAgent string
}

// DefaultHTTPClientConfig returns sensible defaults for load testing.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		MaxBodyBytes:        DefaultMaxBodyBytes,
		UserAgent:           "vuload/1.0",
	}
}

// HTTPExecutor executes requests with a shared *http.Client.
type HTTPExecutor struct {
	client       *http.Client
	maxBodyBytes int64
	userAgent    string
}

// NewHTTPExecutor creates an executor with a transport built from cfg.
func NewHTTPExecutor(cfg HTTPClientConfig) *HTTPExecutor {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
		DisableCompression:  cfg.DisableCompression,
		ForceAttemptHTTP2:   true,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in for test targets
	}

	return NewHTTPExecutorWithClient(&http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, cfg)
}

// NewHTTPExecutorWithClient wraps an existing client. Only the body limit
// and user agent are taken from cfg.
func NewHTTPExecutorWithClient(client *http.Client, cfg HTTPClientConfig) *HTTPExecutor {
	limit := cfg.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return &HTTPExecutor{
		client:       client,
		maxBodyBytes: limit,
		userAgent:    cfg.UserAgent,
	}
}

// Client returns the underlying HTTP client.
func (e *HTTPExecutor) Client() *http.Client {
	return e.client
}

// CloseIdleConnections closes idle keep-alive connections.
func (e *HTTPExecutor) CloseIdleConnections() {
	e.client.CloseIdleConnections()
}

// Execute sends req and reads the response. Transport failures are
// returned as *TransportError.
func (e *HTTPExecutor) Execute(ctx context.Context, req *RequestDescriptor) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := e.buildRequest(ctx, req)
	if err != nil {
		return nil, &TransportError{Kind: ErrKindOther, Err: fmt.Errorf("failed to build request: %w", err)}
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()

	// Read up to the limit for checks, then drain the rest so the
	// connection can be reused.
	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodyBytes))
	if err != nil {
		return nil, newTransportError(fmt.Errorf("failed to read response body: %w", err))
	}
	discarded, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return nil, newTransportError(fmt.Errorf("failed to read response body: %w", err))
	}

	return &Response{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Headers:       resp.Header,
		Body:          body,
		Duration:      time.Since(start),
		Truncated:     discarded > 0,
		BytesReceived: int64(len(body)) + discarded,
	}, nil
}

// buildRequest builds an HTTP request from the descriptor.
func (e *HTTPExecutor) buildRequest(ctx context.Context, req *RequestDescriptor) (*http.Request, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if e.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}

	return httpReq, nil
}
