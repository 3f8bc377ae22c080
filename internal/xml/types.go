package xml

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/samber/mo"
)

// Common XML tag names used in CalDAV
const (
	TagPropfind       = "propfind"
	TagPropertyUpdate = "propertyupdate"
	TagSet            = "set"
	TagRemove         = "remove"
	TagProp           = "prop"
	TagAllprop        = "allprop"
	TagMultistatus    = "multistatus"
	TagResponse       = "response"
	TagHref           = "href"
	TagPropstat       = "propstat"
	TagStatus         = "status"
	TagError          = "error"
	TagResourcetype   = "resourcetype"
	TagCollection     = "collection"
	TagCalendar       = "calendar"
	TagMkcalendar     = "mkcalendar"
	TagCalendarQuery  = "calendar-query"
	TagMultiget       = "calendar-multiget"
	TagFilter         = "filter"
)

// PropName identifies a property by namespace and local name.
type PropName struct {
	Space string
	Local string
}

// String returns the Clark notation of the name, e.g. "{DAV:}displayname".
func (n PropName) String() string {
	return "{" + n.Space + "}" + n.Local
}

// Well-known properties
var (
	DisplayName                   = PropName{DAV, "displayname"}
	ResourceType                  = PropName{DAV, "resourcetype"}
	GetETag                       = PropName{DAV, "getetag"}
	GetContentType                = PropName{DAV, "getcontenttype"}
	GetLastModified               = PropName{DAV, "getlastmodified"}
	CurrentUserPrincipal          = PropName{DAV, "current-user-principal"}
	CurrentUserPrivilegeSet       = PropName{DAV, "current-user-privilege-set"}
	SyncToken                     = PropName{DAV, "sync-token"}
	CalendarHomeSet               = PropName{CalDAV, "calendar-home-set"}
	CalendarData                  = PropName{CalDAV, "calendar-data"}
	CalendarDescription           = PropName{CalDAV, "calendar-description"}
	CalendarTimezone              = PropName{CalDAV, "calendar-timezone"}
	SupportedCalendarComponentSet = PropName{CalDAV, "supported-calendar-component-set"}
	GetCTag                       = PropName{CalendarServer, "getctag"}
	CalendarColor                 = PropName{AppleICal, "calendar-color"}
)

// PropMap maps each requested property to its value or, when the server
// reported a failure status for it, to an error.
type PropMap map[PropName]mo.Result[Property]

// Text returns the trimmed text value of a property present in m.
func (m PropMap) Text(name PropName) (string, bool) {
	res, ok := m[name]
	if !ok || res.IsError() {
		return "", false
	}
	return strings.TrimSpace(res.MustGet().TextContent), true
}

// Property represents a generic XML property
type Property struct {
	Name        string
	Namespace   string
	TextContent string
	Children    []Property
	Attributes  map[string]string
}

// NewTextProperty returns a property holding a text value.
func NewTextProperty(name PropName, text string) Property {
	return Property{Name: name.Local, Namespace: name.Space, TextContent: text}
}

// PropName returns the property's name.
func (p *Property) PropName() PropName {
	return PropName{Space: p.Namespace, Local: p.Name}
}

// ToElement appends the property under parent
func (p *Property) ToElement(parent *etree.Element) *etree.Element {
	elem := CreateElementWithNS(parent, p.Namespace, p.Name)
	if p.TextContent != "" {
		elem.SetText(p.TextContent)
	}
	for key, value := range p.Attributes {
		elem.CreateAttr(key, value)
	}
	for _, child := range p.Children {
		child.ToElement(elem)
	}
	return elem
}

// FromElement populates a Property from an etree.Element
func (p *Property) FromElement(elem *etree.Element) {
	p.Name = elem.Tag
	p.Namespace = elem.NamespaceURI()
	p.TextContent = elem.Text()
	p.Children = nil
	p.Attributes = make(map[string]string)

	for _, attr := range elem.Attr {
		if attr.Space == "xmlns" || (attr.Space == "" && attr.Key == "xmlns") {
			continue
		}
		p.Attributes[attr.Key] = attr.Value
	}

	for _, child := range elem.ChildElements() {
		childProp := Property{}
		childProp.FromElement(child)
		p.Children = append(p.Children, childProp)
	}
}

// GetAttr returns the value of an attribute, or empty string if not found
func (p *Property) GetAttr(name string) string {
	if p.Attributes == nil {
		return ""
	}
	return p.Attributes[name]
}

// HasChild reports whether the property has a direct child with the given name.
func (p *Property) HasChild(name PropName) bool {
	for _, c := range p.Children {
		if c.Name == name.Local && (c.Namespace == name.Space || c.Namespace == "") {
			return true
		}
	}
	return false
}

// Hrefs returns the text of every DAV:href child.
func (p *Property) Hrefs() []string {
	var hrefs []string
	for _, c := range p.Children {
		if c.Name == TagHref && (c.Namespace == DAV || c.Namespace == "") {
			if h := strings.TrimSpace(c.TextContent); h != "" {
				hrefs = append(hrefs, h)
			}
		}
	}
	return hrefs
}

// Href returns the first DAV:href child, if any.
func (p *Property) Href() (string, bool) {
	hrefs := p.Hrefs()
	if len(hrefs) == 0 {
		return "", false
	}
	return hrefs[0], true
}

// Error represents a WebDAV error response
type Error struct {
	Namespace string
	Tag       string
	Message   string
}
