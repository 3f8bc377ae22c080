package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/beralt/caldav/daverr"
	davxml "github.com/beralt/caldav/internal/xml"
)

// DoPROPFIND performs a PROPFIND request. Without props the server is asked
// for allprop.
func (c *httpClientWrapper) DoPROPFIND(ctx context.Context, urlStr string, depth int, props ...davxml.PropName) (*davxml.MultistatusResponse, error) {
	c.logger.Debug("starting PROPFIND request",
		"url", urlStr,
		"depth", depth,
		"properties", props)

	req := &davxml.PropfindRequest{Props: props}
	body, err := req.ToXML().WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to build PROPFIND body: %w", err)
	}

	header := xmlHeader()
	header.Set("Depth", depthHeader(depth))

	resp, err := c.Request(ctx, "PROPFIND", urlStr, header, body)
	if err != nil {
		return nil, err
	}
	ms, err := multistatus(resp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("PROPFIND request complete", "response_count", len(ms.Responses))
	return ms, nil
}

// multistatus checks for a 207 and parses its body.
func multistatus(resp *Response) (*davxml.MultistatusResponse, error) {
	if resp.StatusCode != http.StatusMultiStatus {
		return nil, statusError(resp)
	}
	return davxml.ParseMultistatus(resp.Body)
}

func statusError(resp *Response) *daverr.HTTPStatusError {
	return &daverr.HTTPStatusError{Code: resp.StatusCode, Status: resp.Status, Body: resp.Body}
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
