package httpclient

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// BasicAuthTransport implements http.RoundTripper and adds Basic Auth
// authentication to outgoing requests.
type BasicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// NewBasicAuthTransport creates a new BasicAuthTransport with the given
// credentials and optional underlying transport. If transport is nil,
// http.DefaultTransport will be used.
func NewBasicAuthTransport(username, password string, transport http.RoundTripper, logger *slog.Logger) *BasicAuthTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BasicAuthTransport{
		Username:  username,
		Password:  password,
		Transport: transport,
		Logger:    logger,
	}
}

// RoundTrip adds the credentials and logs the exchange at debug level.
func (t *BasicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Username == "" {
		return nil, errors.New("basic auth username cannot be empty")
	}
	if t.Transport == nil {
		return nil, errors.New("transport cannot be nil")
	}

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)

	if t.Logger.Enabled(req.Context(), slog.LevelDebug) {
		t.Logger.Debug("outgoing request",
			"method", req.Method,
			"url", req.URL.String(),
			"depth", req.Header.Get("Depth"),
			"body", peekBody(&req.Body))
	}

	resp, err := t.Transport.RoundTrip(req)

	if err == nil && resp != nil && t.Logger.Enabled(req.Context(), slog.LevelDebug) {
		t.Logger.Debug("incoming response",
			"status", resp.Status,
			"etag", resp.Header.Get("ETag"),
			"body", peekBody(&resp.Body))
	}

	return resp, err
}

// peekBody reads *body for logging and puts an equivalent reader back.
func peekBody(body *io.ReadCloser) string {
	if *body == nil || *body == http.NoBody {
		return ""
	}
	data, err := io.ReadAll(*body)
	(*body).Close()
	*body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return string(data)
}

// RateLimitTransport delays requests so that at most Limit per second reach
// the server.
type RateLimitTransport struct {
	Limiter   *rate.Limiter
	Transport http.RoundTripper
}

// NewRateLimitTransport allows limit requests per second with the given
// burst, which is raised to 1 when lower.
func NewRateLimitTransport(limit rate.Limit, burst int, transport http.RoundTripper) *RateLimitTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitTransport{Limiter: rate.NewLimiter(limit, burst), Transport: transport}
}

// RoundTrip waits for the limiter or the request's context.
func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.Transport.RoundTrip(req)
}
