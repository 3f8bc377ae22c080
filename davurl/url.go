// Package davurl normalizes, joins and compares WebDAV resource URLs.
package davurl

import (
	"net"
	"net/url"
	"path"
	"strings"

	"github.com/beralt/caldav/daverr"
)

var defaultPorts = map[string]string{
	"http":   "80",
	"https":  "443",
	"socks5": "1080",
}

// Normalize parses raw and returns its canonical form: lowercase scheme and
// host, no default port, no fragment, a cleaned path that is at least "/".
// A trailing slash is kept since it marks a collection.
func Normalize(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, daverr.Wrap(daverr.KindMalformedURL, err, "parse %q", raw)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, daverr.New(daverr.KindMalformedURL, "%q is not an absolute URL", raw)
	}
	return canonical(u), nil
}

// Join resolves segment against base following RFC 3986 reference
// resolution. An absolute segment is returned canonicalized and base is
// ignored.
func Join(base *url.URL, segment string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(segment))
	if err != nil {
		return nil, daverr.Wrap(daverr.KindMalformedURL, err, "parse %q", segment)
	}
	if ref.IsAbs() {
		return Normalize(segment)
	}
	if base == nil {
		return nil, daverr.New(daverr.KindMalformedURL, "relative URL %q without a base", segment)
	}
	return canonical(base.ResolveReference(ref)), nil
}

// JoinPath appends one path segment to base, treating base as a collection
// even when its path lacks the trailing slash. The segment is taken
// literally, it is never parsed as a URL reference.
func JoinPath(base *url.URL, segment string) (*url.URL, error) {
	if base == nil {
		return nil, daverr.New(daverr.KindMalformedURL, "no base URL for segment %q", segment)
	}
	segment = strings.Trim(segment, "/")
	if segment == "" {
		return nil, daverr.New(daverr.KindMalformedURL, "empty path segment")
	}
	dir := *base
	if !strings.HasSuffix(dir.Path, "/") {
		dir.Path += "/"
	}
	dir.Path += segment
	dir.RawPath = ""
	dir.RawQuery = ""
	return canonical(&dir), nil
}

// Equal reports whether a and b name the same resource. Scheme and host
// compare case-insensitively, an unspecified port equals the scheme's
// default, and a trailing slash on the path is ignored.
func Equal(a, b *url.URL) bool {
	if a == nil || b == nil {
		return a == b
	}
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		Port(a) == Port(b) &&
		comparablePath(a.Path) == comparablePath(b.Path)
}

// EqualString is Equal for raw URL strings; unparsable input is never equal.
func EqualString(a, b string) bool {
	ua, err := Normalize(a)
	if err != nil {
		return false
	}
	ub, err := Normalize(b)
	if err != nil {
		return false
	}
	return Equal(ua, ub)
}

// Port returns the effective port of u, falling back to the scheme default.
func Port(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	return defaultPorts[strings.ToLower(u.Scheme)]
}

// IsCollection reports whether u's path ends with a slash.
func IsCollection(u *url.URL) bool {
	return strings.HasSuffix(u.Path, "/")
}

// Dir returns the URL of the collection containing u.
func Dir(u *url.URL) *url.URL {
	d := *u
	p := strings.TrimSuffix(u.Path, "/")
	d.Path = path.Dir(p)
	if !strings.HasSuffix(d.Path, "/") {
		d.Path += "/"
	}
	d.RawPath = ""
	return &d
}

func canonical(u *url.URL) *url.URL {
	c := *u
	c.Scheme = strings.ToLower(c.Scheme)
	host := strings.ToLower(c.Hostname())
	port := c.Port()
	if port == defaultPorts[c.Scheme] {
		port = ""
	}
	switch {
	case port != "":
		c.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		c.Host = "[" + host + "]"
	default:
		c.Host = host
	}
	c.Path = cleanPath(c.Path)
	c.RawPath = ""
	c.Fragment = ""
	c.RawFragment = ""
	return &c
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

func comparablePath(p string) string {
	p = cleanPath(p)
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
