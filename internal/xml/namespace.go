package xml

import (
	"fmt"

	"github.com/beevik/etree"
)

// Namespace definitions for CalDAV and WebDAV
const (
	// DAV is the WebDAV namespace
	DAV = "DAV:"
	// CalDAV is the CalDAV namespace
	CalDAV = "urn:ietf:params:xml:ns:caldav"
	// CalendarServer is the Calendar Server namespace (used by some implementations)
	CalendarServer = "http://calendarserver.org/ns/"
	// AppleICal carries Apple's calendar-color and calendar-order
	AppleICal = "http://apple.com/ns/ical/"
)

var prefixes = map[string]string{
	DAV:            "D",
	CalDAV:         "C",
	CalendarServer: "CS",
	AppleICal:      "ICAL",
}

// Prefix returns the prefix this package declares for a namespace URI, or ""
// for namespaces it does not know.
func Prefix(ns string) string {
	return prefixes[ns]
}

// NewDocument returns a document with an XML declaration and a root element
// in namespace ns, declaring the given namespaces on the root.
func NewDocument(ns, tag string, declare ...string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement(qualified(ns, tag))
	AddSelectedNamespaces(root, declare...)
	return doc, root
}

// AddSelectedNamespaces declares the given namespaces on elem.
func AddSelectedNamespaces(elem *etree.Element, namespaces ...string) {
	for _, ns := range namespaces {
		if p := Prefix(ns); p != "" && elem.SelectAttr("xmlns:"+p) == nil {
			elem.CreateAttr("xmlns:"+p, ns)
		}
	}
}

// CreateElementWithNS appends a child named tag in namespace ns. Namespaces
// without a known prefix are declared as the child's default namespace.
func CreateElementWithNS(parent *etree.Element, ns, tag string) *etree.Element {
	if ns != "" && Prefix(ns) == "" {
		child := parent.CreateElement(tag)
		child.CreateAttr("xmlns", ns)
		return child
	}
	return parent.CreateElement(qualified(ns, tag))
}

func qualified(ns, tag string) string {
	if p := Prefix(ns); p != "" {
		return p + ":" + tag
	}
	return tag
}

// Matches reports whether elem is named local in namespace ns. Elements
// without any namespace binding match every ns, since some servers omit
// declarations.
func Matches(elem *etree.Element, ns, local string) bool {
	if elem == nil || elem.Tag != local {
		return false
	}
	uri := elem.NamespaceURI()
	return uri == ns || uri == ""
}

// FindChild returns the first child element named local in namespace ns.
func FindChild(parent *etree.Element, ns, local string) *etree.Element {
	for _, child := range parent.ChildElements() {
		if Matches(child, ns, local) {
			return child
		}
	}
	return nil
}

// FindChildren returns all child elements named local in namespace ns.
func FindChildren(parent *etree.Element, ns, local string) []*etree.Element {
	var found []*etree.Element
	for _, child := range parent.ChildElements() {
		if Matches(child, ns, local) {
			found = append(found, child)
		}
	}
	return found
}

// ReadDocument parses data into an etree document with a root element.
func ReadDocument(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("empty document")
	}
	return doc, nil
}
