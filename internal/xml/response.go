package xml

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/samber/mo"

	"github.com/beralt/caldav/daverr"
)

// MultistatusResponse represents a multistatus response
type MultistatusResponse struct {
	Responses []Response
}

// Response represents a single response within a multistatus
type Response struct {
	Href      string
	PropStats []PropStat
	Error     *Error
	Status    string
}

// PropStat represents property status in a response
type PropStat struct {
	Props  []Property
	Status string
}

// ParseMultistatus parses a 207 body.
func ParseMultistatus(data []byte) (*MultistatusResponse, error) {
	doc, err := ReadDocument(data)
	if err != nil {
		return nil, daverr.Wrap(daverr.KindParse, err, "multistatus")
	}
	m := &MultistatusResponse{}
	if err := m.Parse(doc); err != nil {
		return nil, err
	}
	return m, nil
}

// Parse parses a multistatus response from an XML document
func (m *MultistatusResponse) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return daverr.New(daverr.KindParse, "empty document")
	}

	root := doc.Root()
	if !Matches(root, DAV, TagMultistatus) {
		return daverr.New(daverr.KindParse, "invalid root tag: %s", root.FullTag())
	}

	m.Responses = nil

	for _, respElem := range FindChildren(root, DAV, TagResponse) {
		resp := Response{}

		if hrefElem := FindChild(respElem, DAV, TagHref); hrefElem != nil {
			resp.Href = strings.TrimSpace(hrefElem.Text())
		}
		if statusElem := FindChild(respElem, DAV, TagStatus); statusElem != nil {
			resp.Status = strings.TrimSpace(statusElem.Text())
		}

		if errorElem := FindChild(respElem, DAV, TagError); errorElem != nil {
			if child := errorElem.ChildElements(); len(child) > 0 {
				resp.Error = &Error{
					Tag:       child[0].Tag,
					Namespace: child[0].NamespaceURI(),
					Message:   strings.TrimSpace(child[0].Text()),
				}
			}
		}

		for _, propstatElem := range FindChildren(respElem, DAV, TagPropstat) {
			propstat := PropStat{}
			if propElem := FindChild(propstatElem, DAV, TagProp); propElem != nil {
				for _, prop := range propElem.ChildElements() {
					property := Property{}
					property.FromElement(prop)
					propstat.Props = append(propstat.Props, property)
				}
			}
			if statusElem := FindChild(propstatElem, DAV, TagStatus); statusElem != nil {
				propstat.Status = strings.TrimSpace(statusElem.Text())
			}
			resp.PropStats = append(resp.PropStats, propstat)
		}

		m.Responses = append(m.Responses, resp)
	}

	return nil
}

// Hrefs returns the response hrefs in document order.
func (m *MultistatusResponse) Hrefs() []string {
	hrefs := make([]string, 0, len(m.Responses))
	for _, r := range m.Responses {
		hrefs = append(hrefs, r.Href)
	}
	return hrefs
}

// PropMaps returns the properties of every response keyed by href.
func (m *MultistatusResponse) PropMaps() map[string]PropMap {
	out := make(map[string]PropMap, len(m.Responses))
	for _, r := range m.Responses {
		out[r.Href] = r.Props()
	}
	return out
}

// Props flattens the propstats of r. Properties reported under a non-2xx
// status map to an error carrying that status.
func (r *Response) Props() PropMap {
	props := make(PropMap)
	for _, ps := range r.PropStats {
		code, _ := ParseStatus(ps.Status)
		for _, p := range ps.Props {
			if code == 0 || (code >= 200 && code < 300) {
				props[p.PropName()] = mo.Ok(p)
				continue
			}
			props[p.PropName()] = mo.Err[Property](&daverr.PropStatError{Code: code, Status: ps.Status})
		}
	}
	return props
}

// StatusCode returns the response-level status code, or 0 when absent.
func (r *Response) StatusCode() int {
	code, _ := ParseStatus(r.Status)
	return code
}

// ParseStatus extracts the code from a status line like "HTTP/1.1 200 OK".
func ParseStatus(status string) (int, error) {
	fields := strings.Fields(status)
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed status line %q", status)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("malformed status line %q: %w", status, err)
	}
	return code, nil
}

// StatusLine formats a status line for code.
func StatusLine(code int) string {
	return fmt.Sprintf("HTTP/1.1 %d %s", code, http.StatusText(code))
}

// ToXML converts a MultistatusResponse to an XML document
func (m *MultistatusResponse) ToXML() *etree.Document {
	doc, root := NewDocument(DAV, TagMultistatus, DAV, CalDAV, CalendarServer, AppleICal)

	for _, resp := range m.Responses {
		response := CreateElementWithNS(root, DAV, TagResponse)
		CreateElementWithNS(response, DAV, TagHref).SetText(resp.Href)

		if resp.Error != nil {
			errElem := CreateElementWithNS(response, DAV, TagError)
			CreateElementWithNS(errElem, resp.Error.Namespace, resp.Error.Tag).SetText(resp.Error.Message)
		}
		if resp.Status != "" {
			CreateElementWithNS(response, DAV, TagStatus).SetText(resp.Status)
		}
		for _, propstat := range resp.PropStats {
			ps := CreateElementWithNS(response, DAV, TagPropstat)
			prop := CreateElementWithNS(ps, DAV, TagProp)
			for _, p := range propstat.Props {
				p.ToElement(prop)
			}
			CreateElementWithNS(ps, DAV, TagStatus).SetText(propstat.Status)
		}
	}

	return doc
}
