package xml

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/beralt/caldav/daverr"
)

// PropfindRequest represents a PROPFIND request
type PropfindRequest struct {
	Props   []PropName
	AllProp bool
}

// ToXML converts a PropfindRequest to an XML document. An empty request
// asks for allprop.
func (r *PropfindRequest) ToXML() *etree.Document {
	doc, root := NewDocument(DAV, TagPropfind, namespacesOf(r.Props)...)
	if r.AllProp || len(r.Props) == 0 {
		CreateElementWithNS(root, DAV, TagAllprop)
		return doc
	}
	prop := CreateElementWithNS(root, DAV, TagProp)
	for _, name := range r.Props {
		CreateElementWithNS(prop, name.Space, name.Local)
	}
	return doc
}

// Parse parses a PROPFIND request from an XML document
func (r *PropfindRequest) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return daverr.New(daverr.KindParse, "empty document")
	}
	root := doc.Root()
	if !Matches(root, DAV, TagPropfind) {
		return daverr.New(daverr.KindParse, "invalid root tag: %s", root.FullTag())
	}
	r.Props = nil
	r.AllProp = FindChild(root, DAV, TagAllprop) != nil
	if prop := FindChild(root, DAV, TagProp); prop != nil {
		r.Props = elementNames(prop)
	}
	return nil
}

// ProppatchRequest represents a PROPPATCH request
type ProppatchRequest struct {
	Set    []Property
	Remove []PropName
}

// ToXML converts a ProppatchRequest to an XML document
func (r *ProppatchRequest) ToXML() *etree.Document {
	doc, root := NewDocument(DAV, TagPropertyUpdate, DAV, CalDAV, CalendarServer, AppleICal)
	if len(r.Set) > 0 {
		prop := CreateElementWithNS(CreateElementWithNS(root, DAV, TagSet), DAV, TagProp)
		for _, p := range r.Set {
			p.ToElement(prop)
		}
	}
	if len(r.Remove) > 0 {
		prop := CreateElementWithNS(CreateElementWithNS(root, DAV, TagRemove), DAV, TagProp)
		for _, name := range r.Remove {
			CreateElementWithNS(prop, name.Space, name.Local)
		}
	}
	return doc
}

// Parse parses a PROPPATCH request from an XML document
func (r *ProppatchRequest) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return daverr.New(daverr.KindParse, "empty document")
	}
	root := doc.Root()
	if !Matches(root, DAV, TagPropertyUpdate) {
		return daverr.New(daverr.KindParse, "invalid root tag: %s", root.FullTag())
	}
	r.Set, r.Remove = nil, nil
	for _, set := range FindChildren(root, DAV, TagSet) {
		r.Set = append(r.Set, childProperties(set)...)
	}
	for _, remove := range FindChildren(root, DAV, TagRemove) {
		for _, p := range childProperties(remove) {
			r.Remove = append(r.Remove, p.PropName())
		}
	}
	return nil
}

// MkcalendarRequest represents a MKCALENDAR request body
type MkcalendarRequest struct {
	Set []Property
}

// ToXML converts a MkcalendarRequest to an XML document
func (r *MkcalendarRequest) ToXML() *etree.Document {
	doc, root := NewDocument(CalDAV, TagMkcalendar, DAV, CalDAV, AppleICal)
	if len(r.Set) > 0 {
		prop := CreateElementWithNS(CreateElementWithNS(root, DAV, TagSet), DAV, TagProp)
		for _, p := range r.Set {
			p.ToElement(prop)
		}
	}
	return doc
}

// Parse parses a MKCALENDAR request from an XML document
func (r *MkcalendarRequest) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return daverr.New(daverr.KindParse, "empty document")
	}
	root := doc.Root()
	if !Matches(root, CalDAV, TagMkcalendar) {
		return daverr.New(daverr.KindParse, "invalid root tag: %s", root.FullTag())
	}
	r.Set = nil
	for _, set := range FindChildren(root, DAV, TagSet) {
		r.Set = append(r.Set, childProperties(set)...)
	}
	return nil
}

// CalendarQueryRequest represents a calendar-query REPORT. Filter is the
// serialized C:filter element.
type CalendarQueryRequest struct {
	Props  []PropName
	Filter *etree.Element
}

// ToXML converts a CalendarQueryRequest to an XML document
func (r *CalendarQueryRequest) ToXML() *etree.Document {
	doc, root := NewDocument(CalDAV, TagCalendarQuery, append([]string{DAV, CalDAV}, namespacesOf(r.Props)...)...)
	if len(r.Props) > 0 {
		prop := CreateElementWithNS(root, DAV, TagProp)
		for _, name := range r.Props {
			CreateElementWithNS(prop, name.Space, name.Local)
		}
	}
	if r.Filter != nil {
		root.AddChild(r.Filter.Copy())
	}
	return doc
}

// Parse parses a calendar-query request from an XML document
func (r *CalendarQueryRequest) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return daverr.New(daverr.KindParse, "empty document")
	}
	root := doc.Root()
	if !Matches(root, CalDAV, TagCalendarQuery) {
		return daverr.New(daverr.KindParse, "invalid root tag: %s", root.FullTag())
	}
	r.Props = nil
	if prop := FindChild(root, DAV, TagProp); prop != nil {
		r.Props = elementNames(prop)
	}
	r.Filter = FindChild(root, CalDAV, TagFilter)
	return nil
}

// CalendarMultigetRequest represents a calendar-multiget REPORT request
type CalendarMultigetRequest struct {
	Props []PropName
	Hrefs []string
}

// ToXML converts a CalendarMultigetRequest to an XML document
func (r *CalendarMultigetRequest) ToXML() *etree.Document {
	doc, root := NewDocument(CalDAV, TagMultiget, append([]string{DAV, CalDAV}, namespacesOf(r.Props)...)...)
	if len(r.Props) > 0 {
		prop := CreateElementWithNS(root, DAV, TagProp)
		for _, name := range r.Props {
			CreateElementWithNS(prop, name.Space, name.Local)
		}
	}
	for _, href := range r.Hrefs {
		CreateElementWithNS(root, DAV, TagHref).SetText(href)
	}
	return doc
}

// Parse parses a calendar-multiget request from an XML document
func (r *CalendarMultigetRequest) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return daverr.New(daverr.KindParse, "empty document")
	}
	root := doc.Root()
	if !Matches(root, CalDAV, TagMultiget) {
		return daverr.New(daverr.KindParse, "invalid root tag: %s", root.FullTag())
	}
	r.Props, r.Hrefs = nil, nil
	if prop := FindChild(root, DAV, TagProp); prop != nil {
		r.Props = elementNames(prop)
	}
	for _, href := range FindChildren(root, DAV, TagHref) {
		r.Hrefs = append(r.Hrefs, strings.TrimSpace(href.Text()))
	}
	return nil
}

// childProperties reads the properties under container/D:prop.
func childProperties(container *etree.Element) []Property {
	prop := FindChild(container, DAV, TagProp)
	if prop == nil {
		return nil
	}
	var props []Property
	for _, child := range prop.ChildElements() {
		p := Property{}
		p.FromElement(child)
		props = append(props, p)
	}
	return props
}

func elementNames(parent *etree.Element) []PropName {
	var names []PropName
	for _, child := range parent.ChildElements() {
		names = append(names, PropName{Space: child.NamespaceURI(), Local: child.Tag})
	}
	return names
}

func namespacesOf(names []PropName) []string {
	seen := map[string]bool{DAV: true}
	out := []string{DAV}
	for _, n := range names {
		if !seen[n.Space] {
			seen[n.Space] = true
			out = append(out, n.Space)
		}
	}
	return out
}
