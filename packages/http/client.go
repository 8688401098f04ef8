package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"time"
)

// Connection pool and redirect limits used unless an option overrides them.
const (
	DefaultMaxRedirects        = 10
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second
)

// Client sends one request at a time on behalf of a run and buffers each
// response in full.
type Client struct {
	hc      *http.Client
	headers map[string]string
}

type clientSettings struct {
	timeout      time.Duration
	noRedirects  bool
	maxRedirects int
	insecure     bool
	proxy        string
	headers      map[string]string
}

type ClientOption func(*clientSettings)

// NewClient creates a client. Without WithTimeout a request may block for as
// long as the server keeps the connection open.
func NewClient(opts ...ClientOption) *Client {
	s := clientSettings{
		maxRedirects: DefaultMaxRedirects,
		headers:      map[string]string{},
	}
	for _, opt := range opts {
		opt(&s)
	}

	return &Client{
		hc: &http.Client{
			Transport:     s.transport(),
			Timeout:       s.timeout,
			CheckRedirect: s.checkRedirect,
		},
		headers: s.headers,
	}
}

func (s *clientSettings) transport() *http.Transport {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
	if s.insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	// an unparsable proxy falls back to the environment
	if s.proxy != "" {
		if u, err := neturl.Parse(s.proxy); err == nil {
			t.Proxy = http.ProxyURL(u)
		}
	}
	return t
}

func (s *clientSettings) checkRedirect(_ *http.Request, via []*http.Request) error {
	if s.noRedirects || len(via) >= s.maxRedirects {
		return http.ErrUseLastResponse
	}
	return nil
}

// WithTimeout bounds every request. Zero disables the limit.
func WithTimeout(d time.Duration) ClientOption {
	return func(s *clientSettings) { s.timeout = d }
}

// WithFollowRedirects controls whether 3xx responses are followed or returned as is.
func WithFollowRedirects(follow bool) ClientOption {
	return func(s *clientSettings) { s.noRedirects = !follow }
}

func WithMaxRedirects(n int) ClientOption {
	return func(s *clientSettings) {
		if n > 0 {
			s.maxRedirects = n
		}
	}
}

// WithDefaultHeaders sets headers sent with every request unless the request overrides them
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(s *clientSettings) {
		for k, v := range headers {
			s.headers[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(s *clientSettings) { s.insecure = !validate }
}

// WithProxy routes all requests through proxyURL instead of the environment's proxy.
func WithProxy(proxyURL string) ClientOption {
	return func(s *clientSettings) { s.proxy = proxyURL }
}

// Do sends req and reads the whole response body.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    flattenHeader(httpResp.Header),
		Body:       body,
		Duration:   elapsed,
	}, nil
}

// Get issues a bodyless GET with the client's default headers plus headers.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, URL: url, Headers: headers})
}

func (c *Client) prepare(ctx context.Context, req *Request) (*http.Request, error) {
	if err := ValidateURL(req.URL); err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}

	// request headers win over defaults
	for _, set := range []map[string]string{c.headers, req.Headers} {
		for k, v := range set {
			httpReq.Header.Set(k, v)
		}
	}
	return httpReq, nil
}

// flattenHeader keeps the first value of every response header.
func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	switch {
	case err != nil:
		return fmt.Errorf("invalid URL: %v", err)
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("unsupported URL scheme %q: only http and https are allowed", u.Scheme)
	case u.Host == "":
		return fmt.Errorf("URL %q has no host", rawURL)
	}
	return nil
}
