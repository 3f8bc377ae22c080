package davclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/beralt/caldav/daverr"
	"github.com/beralt/caldav/davurl"
)

// DNSResolver looks up the SRV and TXT records of RFC 6764 service
// discovery. *net.Resolver implements it.
type DNSResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (cname string, addrs []*net.SRV, err error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Discover finds the principal of the account behind location, which may be
// the principal itself, any URL on the server or just the server's root. It
// tries, in order, the location itself, DNS SRV records, the well-known
// CalDAV URL and the server root. A nil resolver means net.DefaultResolver.
func Discover(ctx context.Context, location string, opts Options, resolver DNSResolver) (*Principal, error) {
	base, err := davurl.Normalize(location)
	if err != nil {
		return nil, err
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, daverr.New(daverr.KindMalformedURL, "unsupported scheme %q", base.Scheme)
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	client, err := NewDAVClient(base.String(), opts)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, candidate := range candidateLocations(ctx, client, resolver) {
		client.logger.Debug("trying principal discovery", "location", candidate)
		u, err := client.findPrincipal(ctx, candidate)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			continue
		}
		if u == nil {
			continue
		}
		client.logger.Debug("found principal", "location", candidate, "principal", u.String())
		return &Principal{DAVObject: DAVObject{client: client, url: u, state: StatePersisted}}, nil
	}

	if lastErr != nil {
		return nil, daverr.Wrap(daverr.KindNotFound, lastErr, "no current-user-principal at %s", location)
	}
	return nil, daverr.New(daverr.KindNotFound, "no current-user-principal at %s", location)
}

// FindCalendars discovers the principal behind location and lists its
// calendars.
func FindCalendars(ctx context.Context, location string, opts Options) ([]*Calendar, error) {
	p, err := Discover(ctx, location, opts, nil)
	if err != nil {
		return nil, err
	}
	return p.Calendars(ctx)
}

func candidateLocations(ctx context.Context, client *DAVClient, resolver DNSResolver) []string {
	base := client.baseURL
	var locations []string

	if base.Path != "/" && base.Path != "" {
		locations = append(locations, base.String())
	}

	for _, service := range []struct {
		name   string
		scheme string
	}{
		{"_caldavs._tcp.", "https"},
		{"_caldav._tcp.", "http"},
	} {
		host := service.name + base.Hostname()
		_, addrs, err := resolver.LookupSRV(ctx, "", "", host)
		if err != nil {
			var dnsErr *net.DNSError
			if !errors.As(err, &dnsErr) || !dnsErr.IsNotFound {
				client.logger.Debug("SRV lookup failed", "name", host, "error", err)
			}
			continue
		}

		path := "/"
		if txts, err := resolver.LookupTXT(ctx, host); err == nil {
			for _, txt := range txts {
				if p, ok := strings.CutPrefix(txt, "path="); ok && p != "" {
					path = p
					break
				}
			}
		}

		for _, addr := range addrs {
			target := strings.TrimSuffix(addr.Target, ".")
			if target == "" {
				continue
			}
			locations = append(locations, fmt.Sprintf("%s://%s%s",
				service.scheme,
				net.JoinHostPort(target, strconv.Itoa(int(addr.Port))),
				path))
		}
	}

	if wellKnown, err := davurl.Join(base, "/.well-known/caldav"); err == nil {
		locations = append(locations, wellKnown.String())
	}
	if root, err := davurl.Join(base, "/"); err == nil {
		locations = append(locations, root.String())
	}
	return locations
}
