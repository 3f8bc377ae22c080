package httpclient

import (
	"context"
	"net/http"

	"github.com/emersion/go-ical"
)

// DoGET fetches a calendar object and its ETag.
func (c *httpClientWrapper) DoGET(ctx context.Context, urlStr string) (data []byte, etag string, err error) {
	c.logger.Debug("starting GET request", "url", urlStr)

	header := http.Header{}
	header.Set("Accept", ical.MIMEType)

	resp, err := c.Request(ctx, http.MethodGet, urlStr, header, nil)
	if err != nil {
		return nil, "", err
	}
	if !isSuccess(resp.StatusCode) {
		c.logger.Debug("unexpected status code",
			"status_code", resp.StatusCode,
			"status", resp.Status)
		return nil, "", statusError(resp)
	}

	etag = resp.Header.Get("ETag")
	c.logger.Debug("GET request complete",
		"status", resp.Status,
		"etag", etag,
		"data_length", len(resp.Body))
	return resp.Body, etag, nil
}
