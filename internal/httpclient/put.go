package httpclient

import (
	"context"
	"net/http"

	"github.com/emersion/go-ical"

	"github.com/beralt/caldav/daverr"
)

// CreateOnly is the etag argument of DoPUT that only creates: the request
// carries If-None-Match: * and fails if something already exists at the URL.
const CreateOnly = "*"

// DoPUT stores data at urlStr. A non-empty etag is sent as If-Match, or
// CreateOnly as If-None-Match, and a 412 answer becomes a conflict error.
func (c *httpClientWrapper) DoPUT(ctx context.Context, urlStr string, etag string, data []byte) (newEtag string, err error) {
	c.logger.Debug("starting PUT request",
		"url", urlStr,
		"etag", etag,
		"data_length", len(data))

	header := http.Header{}
	switch etag {
	case "":
	case CreateOnly:
		header.Set("If-None-Match", "*")
	default:
		header.Set("If-Match", etag)
	}
	header.Set("Content-Type", ical.MIMEType+"; charset=utf-8")

	resp, err := c.Request(ctx, http.MethodPut, urlStr, header, data)
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusPreconditionFailed:
		c.logger.Debug("precondition failed", "url", urlStr, "etag", etag)
		if etag == CreateOnly {
			return "", daverr.Wrap(daverr.KindConflict, statusError(resp), "PUT %s: resource already exists", urlStr)
		}
		return "", daverr.Wrap(daverr.KindConflict, statusError(resp), "PUT %s with If-Match %s", urlStr, etag)
	case !isSuccess(resp.StatusCode):
		c.logger.Debug("unexpected status code",
			"status_code", resp.StatusCode,
			"status", resp.Status)
		return "", statusError(resp)
	}

	newEtag = resp.Header.Get("ETag")
	c.logger.Debug("PUT request complete",
		"status", resp.Status,
		"new_etag", newEtag)
	return newEtag, nil
}
