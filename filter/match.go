package filter

import (
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"github.com/beralt/caldav/daverr"
)

// Match evaluates f against a parsed calendar locally, with the RFC 4791
// §9.9 time-range rules go-webdav implements. Recurring components are
// expanded. Collations are ignored; text matches are case-sensitive.
func Match(f *Filter, cal *ical.Calendar) (bool, error) {
	if cal == nil || cal.Component == nil {
		return false, daverr.New(daverr.KindParse, "no calendar to match")
	}
	root, err := f.root()
	if err != nil {
		return false, err
	}
	query, err := compQuery(root)
	if err != nil {
		return false, err
	}
	return caldav.Match(query, &caldav.CalendarObject{Data: cal})
}

func compQuery(c *CompFilter) (caldav.CompFilter, error) {
	if _, err := c.Element(); err != nil {
		return caldav.CompFilter{}, err
	}
	out := caldav.CompFilter{Name: c.Name}
	for _, child := range c.Children {
		switch n := child.(type) {
		case *CompFilter:
			sub, err := compQuery(n)
			if err != nil {
				return caldav.CompFilter{}, err
			}
			out.Comps = append(out.Comps, sub)
		case *PropFilter:
			out.Props = append(out.Props, propQuery(n))
		case *TimeRange:
			out.Start, out.End = bounds(n)
		case *IsNotDefined:
			out.IsNotDefined = true
		}
	}
	return out, nil
}

func propQuery(p *PropFilter) caldav.PropFilter {
	out := caldav.PropFilter{Name: p.Name}
	for _, child := range p.Children {
		switch n := child.(type) {
		case *TextMatch:
			out.TextMatch = textQuery(n)
		case *TimeRange:
			out.Start, out.End = bounds(n)
		case *ParamFilter:
			out.ParamFilter = append(out.ParamFilter, paramQuery(n))
		case *IsNotDefined:
			out.IsNotDefined = true
		}
	}
	return out
}

func paramQuery(p *ParamFilter) caldav.ParamFilter {
	out := caldav.ParamFilter{Name: p.Name}
	for _, child := range p.Children {
		switch n := child.(type) {
		case *TextMatch:
			out.TextMatch = textQuery(n)
		case *IsNotDefined:
			out.IsNotDefined = true
		}
	}
	return out
}

func textQuery(t *TextMatch) *caldav.TextMatch {
	return &caldav.TextMatch{Text: t.Text, NegateCondition: t.Negate}
}

func bounds(t *TimeRange) (start, end time.Time) {
	if t.Start != nil {
		start = t.Start.UTC()
	}
	if t.End != nil {
		end = t.End.UTC()
	}
	return start, end
}
