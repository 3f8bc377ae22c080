package httpclient

import (
	"context"
	"fmt"

	"github.com/beevik/etree"

	davxml "github.com/beralt/caldav/internal/xml"
)

// DoREPORT executes a CalDAV REPORT request
func (c *httpClientWrapper) DoREPORT(ctx context.Context, urlStr string, depth int, query *etree.Document) (*davxml.MultistatusResponse, error) {
	c.logger.Debug("starting REPORT request",
		"url", urlStr,
		"depth", depth)

	if query == nil || query.Root() == nil {
		return nil, fmt.Errorf("REPORT needs a request body")
	}
	body, err := query.WriteToBytes()
	if err != nil {
		c.logger.Debug("failed to marshal query", "error", err)
		return nil, fmt.Errorf("failed to marshal REPORT query: %w", err)
	}

	header := xmlHeader()
	header.Set("Depth", depthHeader(depth))

	resp, err := c.Request(ctx, "REPORT", urlStr, header, body)
	if err != nil {
		return nil, err
	}
	ms, err := multistatus(resp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("REPORT request complete",
		"response_count", len(ms.Responses))
	return ms, nil
}
