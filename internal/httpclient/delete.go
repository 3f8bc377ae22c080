package httpclient

import (
	"context"
	"net/http"

	"github.com/beralt/caldav/daverr"
)

// DoDELETE sends a DELETE request with If-Match header for optimistic locking.
// A resource that is already gone counts as deleted.
func (c *httpClientWrapper) DoDELETE(ctx context.Context, urlStr string, etag string) error {
	c.logger.Debug("starting DELETE request",
		"url", urlStr,
		"etag", etag)

	var header http.Header
	if etag != "" {
		header = http.Header{}
		header.Set("If-Match", etag)
	}

	resp, err := c.Request(ctx, http.MethodDelete, urlStr, header, nil)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		c.logger.Debug("resource already gone", "url", urlStr, "status", resp.Status)
		return nil
	case resp.StatusCode == http.StatusPreconditionFailed:
		return daverr.Wrap(daverr.KindConflict, statusError(resp), "DELETE %s with If-Match %s", urlStr, etag)
	case !isSuccess(resp.StatusCode):
		c.logger.Debug("unexpected status code",
			"status_code", resp.StatusCode,
			"status", resp.Status)
		return statusError(resp)
	}

	c.logger.Debug("DELETE request complete", "status", resp.Status)
	return nil
}
