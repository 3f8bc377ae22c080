// Package filter builds CalDAV calendar-query filter trees (RFC 4791 §9.7)
// and serializes them with etree.
//
// A tree is built from the node constructors below and either chained:
//
//	f := filter.NewFilter().Append(
//		filter.NewCompFilter(ical.CompCalendar).Append(
//			filter.NewCompFilter(ical.CompEvent).Append(
//				filter.NewTimeRange(&start, &end))))
//
// or nested directly through the constructors' children arguments.
package filter

import (
	"time"

	"github.com/beevik/etree"

	"github.com/beralt/caldav/daverr"
	davxml "github.com/beralt/caldav/internal/xml"
)

// TimeFormat is the UTC date-time form used by time-range bounds.
const TimeFormat = "20060102T150405Z"

// Node is an element of a filter tree.
type Node interface {
	// Element serializes the node and its children.
	Element() (*etree.Element, error)
	isNode()
}

// TextMatch matches a substring of a property or parameter value.
type TextMatch struct {
	Text   string
	Negate bool
	// Collation is sent as-is when non-empty, e.g. "i;ascii-casemap".
	Collation string
}

// NewTextMatch returns a text-match node.
func NewTextMatch(text string, negate bool) *TextMatch {
	return &TextMatch{Text: text, Negate: negate}
}

// PropFilter tests a property of the enclosing component. Without children
// it matches when the property exists.
type PropFilter struct {
	Name     string
	Children []Node
}

// NewPropFilter returns a prop-filter node with the given children.
func NewPropFilter(name string, children ...Node) *PropFilter {
	return &PropFilter{Name: name, Children: children}
}

// Append adds children in order and returns p.
func (p *PropFilter) Append(children ...Node) *PropFilter {
	p.Children = append(p.Children, children...)
	return p
}

// ParamFilter tests a parameter of the enclosing property.
type ParamFilter struct {
	Name     string
	Children []Node
}

// NewParamFilter returns a param-filter node with the given children.
func NewParamFilter(name string, children ...Node) *ParamFilter {
	return &ParamFilter{Name: name, Children: children}
}

// Append adds children in order and returns p.
func (p *ParamFilter) Append(children ...Node) *ParamFilter {
	p.Children = append(p.Children, children...)
	return p
}

// CompFilter tests a component and, through its children, nested
// components and properties.
type CompFilter struct {
	Name     string
	Children []Node
}

// NewCompFilter returns a comp-filter node with the given children.
func NewCompFilter(name string, children ...Node) *CompFilter {
	return &CompFilter{Name: name, Children: children}
}

// Append adds children in order and returns c.
func (c *CompFilter) Append(children ...Node) *CompFilter {
	c.Children = append(c.Children, children...)
	return c
}

// TimeRange restricts matches to a half-open UTC interval. Either bound may
// be nil, not both.
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

// NewTimeRange returns a time-range node.
func NewTimeRange(start, end *time.Time) *TimeRange {
	return &TimeRange{Start: start, End: end}
}

// IsNotDefined inverts the enclosing filter: it matches when the component,
// property or parameter is absent.
type IsNotDefined struct{}

// NewIsNotDefined returns an is-not-defined node.
func NewIsNotDefined() *IsNotDefined {
	return &IsNotDefined{}
}

// Filter is the root of a tree. It holds exactly one CompFilter once
// serialized.
type Filter struct {
	Children []Node
}

// NewFilter returns a filter node with the given children.
func NewFilter(children ...Node) *Filter {
	return &Filter{Children: children}
}

// Append adds children in order and returns f.
func (f *Filter) Append(children ...Node) *Filter {
	f.Children = append(f.Children, children...)
	return f
}

func (*TextMatch) isNode()    {}
func (*PropFilter) isNode()   {}
func (*ParamFilter) isNode()  {}
func (*CompFilter) isNode()   {}
func (*TimeRange) isNode()    {}
func (*IsNotDefined) isNode() {}
func (*Filter) isNode()       {}

func newElement(tag string) *etree.Element {
	return etree.NewElement(davxml.Prefix(davxml.CalDAV) + ":" + tag)
}

func structural(format string, args ...any) error {
	return daverr.New(daverr.KindStructuralFilter, format, args...)
}

// Element serializes the text-match.
func (t *TextMatch) Element() (*etree.Element, error) {
	elem := newElement("text-match")
	negate := "no"
	if t.Negate {
		negate = "yes"
	}
	elem.CreateAttr("negate-condition", negate)
	if t.Collation != "" {
		elem.CreateAttr("collation", t.Collation)
	}
	elem.SetText(t.Text)
	return elem, nil
}

// Element serializes the prop-filter and its children.
func (p *PropFilter) Element() (*etree.Element, error) {
	if p.Name == "" {
		return nil, structural("prop-filter without a name")
	}
	for _, child := range p.Children {
		switch child.(type) {
		case *TextMatch, *TimeRange, *ParamFilter, *IsNotDefined:
		default:
			return nil, structural("prop-filter %s cannot contain %T", p.Name, child)
		}
	}
	return withChildren("prop-filter", p.Name, p.Children)
}

// Element serializes the param-filter and its children.
func (p *ParamFilter) Element() (*etree.Element, error) {
	if p.Name == "" {
		return nil, structural("param-filter without a name")
	}
	for _, child := range p.Children {
		switch child.(type) {
		case *TextMatch, *IsNotDefined:
		default:
			return nil, structural("param-filter %s cannot contain %T", p.Name, child)
		}
	}
	return withChildren("param-filter", p.Name, p.Children)
}

// Element serializes the comp-filter and its children.
func (c *CompFilter) Element() (*etree.Element, error) {
	if c.Name == "" {
		return nil, structural("comp-filter without a name")
	}
	for _, child := range c.Children {
		switch child.(type) {
		case *CompFilter, *PropFilter, *TimeRange, *IsNotDefined:
		default:
			return nil, structural("comp-filter %s cannot contain %T", c.Name, child)
		}
	}
	return withChildren("comp-filter", c.Name, c.Children)
}

// Element serializes the time-range.
func (t *TimeRange) Element() (*etree.Element, error) {
	if t.Start == nil && t.End == nil {
		return nil, structural("time-range without start or end")
	}
	if t.Start != nil && t.End != nil && t.End.Before(*t.Start) {
		return nil, structural("time-range ends at %s before it starts at %s",
			t.End.UTC().Format(TimeFormat), t.Start.UTC().Format(TimeFormat))
	}
	elem := newElement("time-range")
	if t.Start != nil {
		elem.CreateAttr("start", t.Start.UTC().Format(TimeFormat))
	}
	if t.End != nil {
		elem.CreateAttr("end", t.End.UTC().Format(TimeFormat))
	}
	return elem, nil
}

// Element serializes the is-not-defined marker.
func (*IsNotDefined) Element() (*etree.Element, error) {
	return newElement("is-not-defined"), nil
}

// Element serializes the filter. It fails unless the filter holds exactly
// one CompFilter.
func (f *Filter) Element() (*etree.Element, error) {
	root, err := f.root()
	if err != nil {
		return nil, err
	}
	child, err := root.Element()
	if err != nil {
		return nil, err
	}
	elem := newElement("filter")
	elem.AddChild(child)
	return elem, nil
}

// XML returns the filter as a standalone XML fragment declaring the CalDAV
// namespace.
func (f *Filter) XML() (string, error) {
	elem, err := f.Element()
	if err != nil {
		return "", err
	}
	davxml.AddSelectedNamespaces(elem, davxml.CalDAV)
	doc := etree.NewDocument()
	doc.SetRoot(elem)
	return doc.WriteToString()
}

func (f *Filter) root() (*CompFilter, error) {
	if f == nil {
		return nil, structural("nil filter")
	}
	if len(f.Children) != 1 {
		return nil, structural("filter must hold exactly one comp-filter, has %d children", len(f.Children))
	}
	root, ok := f.Children[0].(*CompFilter)
	if !ok {
		return nil, structural("filter root must be a comp-filter, got %T", f.Children[0])
	}
	if root == nil {
		return nil, structural("filter root is a nil comp-filter")
	}
	return root, nil
}

func withChildren(tag, name string, children []Node) (*etree.Element, error) {
	elem := newElement(tag)
	elem.CreateAttr("name", name)
	for _, child := range children {
		if isNil(child) {
			return nil, structural("%s %s has a nil child", tag, name)
		}
		c, err := child.Element()
		if err != nil {
			return nil, err
		}
		elem.AddChild(c)
	}
	return elem, nil
}

// isNil reports whether n is nil or a nil pointer of one of the node kinds.
func isNil(n Node) bool {
	switch v := n.(type) {
	case nil:
		return true
	case *TextMatch:
		return v == nil
	case *PropFilter:
		return v == nil
	case *ParamFilter:
		return v == nil
	case *CompFilter:
		return v == nil
	case *TimeRange:
		return v == nil
	case *IsNotDefined:
		return v == nil
	case *Filter:
		return v == nil
	}
	return false
}
