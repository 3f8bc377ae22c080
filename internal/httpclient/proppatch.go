package httpclient

import (
	"context"
	"fmt"

	"github.com/beralt/caldav/daverr"
	davxml "github.com/beralt/caldav/internal/xml"
)

// DoPROPPATCH sets properties on a resource. A property the server refused
// fails the whole call with its propstat status.
func (c *httpClientWrapper) DoPROPPATCH(ctx context.Context, urlStr string, set ...davxml.Property) (*davxml.MultistatusResponse, error) {
	c.logger.Debug("starting PROPPATCH request",
		"url", urlStr,
		"property_count", len(set))

	req := &davxml.ProppatchRequest{Set: set}
	body, err := req.ToXML().WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to build PROPPATCH body: %w", err)
	}

	resp, err := c.Request(ctx, "PROPPATCH", urlStr, xmlHeader(), body)
	if err != nil {
		return nil, err
	}
	ms, err := multistatus(resp)
	if err != nil {
		return nil, err
	}

	for _, r := range ms.Responses {
		for _, ps := range r.PropStats {
			code, err := davxml.ParseStatus(ps.Status)
			if err != nil || isSuccess(code) {
				continue
			}
			c.logger.Debug("property update rejected", "href", r.Href, "status", ps.Status)
			return ms, &daverr.HTTPStatusError{Code: code, Status: ps.Status, Body: resp.Body}
		}
	}

	c.logger.Debug("PROPPATCH request complete", "status", resp.Status)
	return ms, nil
}
