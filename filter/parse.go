package filter

import (
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/beralt/caldav/daverr"
	davxml "github.com/beralt/caldav/internal/xml"
)

// Parse reads a <C:filter> element back into a tree.
func Parse(elem *etree.Element) (*Filter, error) {
	if elem == nil || !davxml.Matches(elem, davxml.CalDAV, "filter") {
		return nil, daverr.New(daverr.KindParse, "not a filter element")
	}
	f := NewFilter()
	for _, child := range elem.ChildElements() {
		if !davxml.Matches(child, davxml.CalDAV, "comp-filter") {
			return nil, daverr.New(daverr.KindParse, "unexpected %s in filter", child.FullTag())
		}
		comp, err := parseCompFilter(child)
		if err != nil {
			return nil, err
		}
		f.Append(comp)
	}
	return f, nil
}

func parseCompFilter(elem *etree.Element) (*CompFilter, error) {
	comp := NewCompFilter(elem.SelectAttrValue("name", ""))
	for _, child := range elem.ChildElements() {
		var (
			node Node
			err  error
		)
		switch child.Tag {
		case "comp-filter":
			node, err = parseCompFilter(child)
		case "prop-filter":
			node, err = parsePropFilter(child)
		case "time-range":
			node, err = parseTimeRange(child)
		case "is-not-defined":
			node = NewIsNotDefined()
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		comp.Append(node)
	}
	return comp, nil
}

func parsePropFilter(elem *etree.Element) (*PropFilter, error) {
	prop := NewPropFilter(elem.SelectAttrValue("name", ""))
	for _, child := range elem.ChildElements() {
		switch child.Tag {
		case "text-match":
			prop.Append(parseTextMatch(child))
		case "param-filter":
			prop.Append(parseParamFilter(child))
		case "is-not-defined":
			prop.Append(NewIsNotDefined())
		case "time-range":
			tr, err := parseTimeRange(child)
			if err != nil {
				return nil, err
			}
			prop.Append(tr)
		}
	}
	return prop, nil
}

func parseParamFilter(elem *etree.Element) *ParamFilter {
	param := NewParamFilter(elem.SelectAttrValue("name", ""))
	for _, child := range elem.ChildElements() {
		switch child.Tag {
		case "text-match":
			param.Append(parseTextMatch(child))
		case "is-not-defined":
			param.Append(NewIsNotDefined())
		}
	}
	return param
}

func parseTextMatch(elem *etree.Element) *TextMatch {
	return &TextMatch{
		Text:      elem.Text(),
		Negate:    strings.EqualFold(elem.SelectAttrValue("negate-condition", "no"), "yes"),
		Collation: elem.SelectAttrValue("collation", ""),
	}
}

func parseTimeRange(elem *etree.Element) (*TimeRange, error) {
	tr := &TimeRange{}
	for attr, dst := range map[string]**time.Time{"start": &tr.Start, "end": &tr.End} {
		raw := elem.SelectAttrValue(attr, "")
		if raw == "" {
			continue
		}
		t, err := time.Parse(TimeFormat, raw)
		if err != nil {
			return nil, daverr.Wrap(daverr.KindParse, err, "time-range %s", attr)
		}
		*dst = &t
	}
	return tr, nil
}
