package httpclient

import (
	"context"
	"fmt"

	davxml "github.com/beralt/caldav/internal/xml"
)

// DoMKCALENDAR creates a calendar collection. Properties are sent in the
// request body; without any the body is omitted.
func (c *httpClientWrapper) DoMKCALENDAR(ctx context.Context, urlStr string, set ...davxml.Property) error {
	c.logger.Debug("starting MKCALENDAR request",
		"url", urlStr,
		"property_count", len(set))

	var body []byte
	header := xmlHeader()
	if len(set) > 0 {
		req := &davxml.MkcalendarRequest{Set: set}
		data, err := req.ToXML().WriteToBytes()
		if err != nil {
			return fmt.Errorf("failed to build MKCALENDAR body: %w", err)
		}
		body = data
	} else {
		header = nil
	}

	resp, err := c.Request(ctx, "MKCALENDAR", urlStr, header, body)
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		c.logger.Debug("unexpected status code",
			"status_code", resp.StatusCode,
			"status", resp.Status)
		return statusError(resp)
	}

	c.logger.Debug("MKCALENDAR request complete", "status", resp.Status)
	return nil
}
