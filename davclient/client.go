// Package davclient is the CalDAV resource model: a client bound to a
// server, principals, calendar collections and the calendar objects they
// hold.
package davclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/beralt/caldav/davurl"
	"github.com/beralt/caldav/internal/httpclient"
	davxml "github.com/beralt/caldav/internal/xml"
)

// Property names and values as read from and written to the server.
type (
	PropName = davxml.PropName
	Property = davxml.Property
	PropMap  = davxml.PropMap
)

// Proxy routes every request of a client through another host.
type Proxy = httpclient.Proxy

// Common properties
var (
	DisplayName          = davxml.DisplayName
	ResourceType         = davxml.ResourceType
	GetETag              = davxml.GetETag
	GetContentType       = davxml.GetContentType
	CurrentUserPrincipal = davxml.CurrentUserPrincipal
	CalendarHomeSet      = davxml.CalendarHomeSet
	CalendarData         = davxml.CalendarData
	CalendarDescription  = davxml.CalendarDescription
	CalendarColor        = davxml.CalendarColor
	GetCTag              = davxml.GetCTag
)

// NewTextProperty returns a property with a text value, ready for
// SetProperties.
func NewTextProperty(name PropName, text string) Property {
	return davxml.NewTextProperty(name, text)
}

// Options configures a DAVClient. The zero value talks to the server
// directly, without credentials, timeout or throttling.
type Options struct {
	// HTTPClient replaces the client built from the options below.
	HTTPClient *http.Client
	Username   string
	Password   string
	// Proxy is fixed for the lifetime of the client.
	Proxy   *Proxy
	Timeout time.Duration
	// RateLimit caps requests per second when positive.
	RateLimit float64
	Burst     int
	UserAgent string
	Logger    *slog.Logger
}

// DAVClient carries the transport and base URL shared by every resource
// object created from it.
type DAVClient struct {
	http    httpclient.HttpClientWrapper
	baseURL *url.URL
	logger  *slog.Logger
}

// NewDAVClient creates a client for the server at baseURL.
func NewDAVClient(baseURL string, opts Options) (*DAVClient, error) {
	u, err := davurl.Normalize(baseURL)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	wrapper, err := httpclient.New(u, httpclient.Options{
		HTTPClient: opts.HTTPClient,
		Username:   opts.Username,
		Password:   opts.Password,
		Proxy:      opts.Proxy,
		Timeout:    opts.Timeout,
		RateLimit:  opts.RateLimit,
		Burst:      opts.Burst,
		UserAgent:  opts.UserAgent,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return newDAVClient(wrapper, logger), nil
}

func newDAVClient(wrapper httpclient.HttpClientWrapper, logger *slog.Logger) *DAVClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DAVClient{http: wrapper, baseURL: wrapper.BaseURL(), logger: logger}
}

// URL returns the base URL of the client.
func (c *DAVClient) URL() *url.URL {
	u := *c.baseURL
	return &u
}

// resolve turns an href or URL string into an absolute URL.
func (c *DAVClient) resolve(ref string) (*url.URL, error) {
	return davurl.Join(c.baseURL, ref)
}

// Principal finds the current user's principal, starting from the base URL.
// Servers that do not report current-user-principal are assumed to serve
// the principal at the base URL itself.
func (c *DAVClient) Principal(ctx context.Context) (*Principal, error) {
	u, err := c.findPrincipal(ctx, c.baseURL.String())
	if err != nil {
		return nil, err
	}
	if u == nil {
		c.logger.Debug("no current-user-principal, using base URL", "url", c.baseURL.String())
		u = c.URL()
	}
	p := &Principal{DAVObject: DAVObject{client: c, url: u, state: StatePersisted}}
	return p, nil
}

// findPrincipal asks location for DAV:current-user-principal. A nil URL
// with a nil error means the server answered without one.
func (c *DAVClient) findPrincipal(ctx context.Context, location string) (*url.URL, error) {
	ms, err := c.http.DoPROPFIND(ctx, location, 0, CurrentUserPrincipal)
	if err != nil {
		return nil, fmt.Errorf("failed to find current-user-principal: %w", err)
	}
	base, err := c.resolve(location)
	if err != nil {
		return nil, err
	}
	for _, resp := range ms.Responses {
		res, ok := resp.Props()[CurrentUserPrincipal]
		if !ok || res.IsError() {
			continue
		}
		prop := res.MustGet()
		href, ok := prop.Href()
		if !ok {
			continue
		}
		return davurl.Join(base, href)
	}
	return nil, nil
}
