package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"golang.org/x/time/rate"

	"github.com/beralt/caldav/davurl"
	davxml "github.com/beralt/caldav/internal/xml"
)

// DepthInfinity is sent as "Depth: infinity".
const DepthInfinity = -1

// HttpClientWrapper wraps http.Client with CalDAV-specific functionality
type HttpClientWrapper interface {
	// Request performs one call without interpreting the status.
	Request(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error)
	DoPROPFIND(ctx context.Context, url string, depth int, props ...davxml.PropName) (*davxml.MultistatusResponse, error)
	DoPROPPATCH(ctx context.Context, url string, set ...davxml.Property) (*davxml.MultistatusResponse, error)
	DoREPORT(ctx context.Context, url string, depth int, body *etree.Document) (*davxml.MultistatusResponse, error)
	DoMKCALENDAR(ctx context.Context, url string, set ...davxml.Property) error
	DoGET(ctx context.Context, url string) (data []byte, etag string, err error)
	DoPUT(ctx context.Context, url string, etag string, data []byte) (newEtag string, err error)
	DoDELETE(ctx context.Context, url string, etag string) error
	// BaseURL is the URL relative references are resolved against.
	BaseURL() *url.URL
}

// Response is the raw result of Request.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Proxy routes every request of a client through Host. A zero Port means
// the scheme's default; Scheme is "http" (default), "https" or "socks5".
type Proxy struct {
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string
}

// URL returns the proxy URL handed to http.Transport.
func (p Proxy) URL() (*url.URL, error) {
	if p.Host == "" {
		return nil, fmt.Errorf("proxy host is required")
	}
	scheme := p.Scheme
	if scheme == "" {
		scheme = "http"
	}
	switch scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", scheme)
	}
	host := p.Host
	if p.Port != 0 {
		host += ":" + strconv.Itoa(p.Port)
	}
	u := &url.URL{Scheme: scheme, Host: host}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return davurl.Normalize(u.String())
}

// Options configures the client built by New.
type Options struct {
	// HTTPClient, when set, is used as is; Proxy, Timeout and the
	// transport options are then ignored.
	HTTPClient *http.Client
	Username   string
	Password   string
	Proxy      *Proxy
	Timeout    time.Duration
	// RateLimit caps requests per second when positive.
	RateLimit float64
	Burst     int
	UserAgent string
	Logger    *slog.Logger
}

type httpClientWrapper struct {
	client    *http.Client
	baseURL   url.URL
	logger    *slog.Logger
	userAgent string
}

// NewHttpClientWrapper wraps an existing client.
func NewHttpClientWrapper(client *http.Client, baseURL url.URL, logger *slog.Logger) (HttpClientWrapper, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &httpClientWrapper{client: client, baseURL: baseURL, logger: logger}, nil
}

// New builds the transport chain described by opts: proxy, then rate
// limit, then basic auth.
func New(baseURL *url.URL, opts Options) (HttpClientWrapper, error) {
	if baseURL == nil {
		return nil, fmt.Errorf("base URL is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	client := opts.HTTPClient
	if client == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		if opts.Proxy != nil {
			proxyURL, err := opts.Proxy.URL()
			if err != nil {
				return nil, fmt.Errorf("invalid proxy: %w", err)
			}
			base.Proxy = http.ProxyURL(proxyURL)
			logger.Debug("routing through proxy", "proxy", proxyURL.Redacted())
		}

		var transport http.RoundTripper = base
		if opts.RateLimit > 0 {
			transport = NewRateLimitTransport(rate.Limit(opts.RateLimit), opts.Burst, transport)
		}
		if opts.Username != "" {
			transport = NewBasicAuthTransport(opts.Username, opts.Password, transport, logger)
		}
		client = &http.Client{Transport: transport, Timeout: opts.Timeout}
	}

	return &httpClientWrapper{
		client:    client,
		baseURL:   *baseURL,
		logger:    logger,
		userAgent: opts.UserAgent,
	}, nil
}

func (c *httpClientWrapper) BaseURL() *url.URL {
	u := c.baseURL
	return &u
}

// resolveURL resolves a URL string against the base URL
func (c *httpClientWrapper) resolveURL(urlStr string) (*url.URL, error) {
	ref, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %q: %w", urlStr, err)
	}
	return c.baseURL.ResolveReference(ref), nil
}

// Request performs a single WebDAV call and reads the whole body.
func (c *httpClientWrapper) Request(ctx context.Context, method, urlStr string, header http.Header, body []byte) (*Response, error) {
	resolvedURL, err := c.resolveURL(urlStr)
	if err != nil {
		c.logger.Debug("failed to resolve URL", "url", urlStr, "error", err)
		return nil, fmt.Errorf("failed to resolve URL %q: %w", urlStr, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolvedURL.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "url", resolvedURL.String(), "error", err)
		return nil, fmt.Errorf("failed to send %s request: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}
	c.logger.Debug("received response",
		"method", method,
		"url", resolvedURL.String(),
		"status", resp.Status,
		"body_length", len(data))

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func depthHeader(depth int) string {
	if depth == DepthInfinity {
		return "infinity"
	}
	return strconv.Itoa(depth)
}

func xmlHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/xml; charset=utf-8")
	return h
}
