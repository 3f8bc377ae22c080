package davclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/emersion/go-ical"

	"github.com/beralt/caldav/filter"
)

// ObjectFilter builds a calendar-query one criterion at a time. Criteria
// are combined with AND.
type ObjectFilter interface {
	TimeRange(start, end time.Time) ObjectFilter
	HasAlarm() ObjectFilter
	ObjectType(objType string) ObjectFilter
	Priority(priority int) ObjectFilter
	Categories(categories ...string) ObjectFilter
	Status(status string) ObjectFilter
	NotStatus(status string) ObjectFilter
	Summary(summary string) ObjectFilter
	Description(desc string) ObjectFilter
	Location(location string) ObjectFilter
	Organizer(organizer string) ObjectFilter
	Limit(limit int) ObjectFilter
	// Filter returns the filter tree the criteria compile to.
	Filter() *filter.Filter
	Do(ctx context.Context) ([]*CalendarObject, error)
}

// searcher runs a compiled filter; *Calendar is the only implementation
// outside tests.
type searcher interface {
	Search(ctx context.Context, f *filter.Filter) ([]*CalendarObject, error)
}

type objectFilter struct {
	calendar    searcher
	timeRange   *timeRange
	hasAlarm    bool
	objectType  string
	priority    *int
	categories  []string
	status      string
	notStatus   string
	summary     string
	description string
	location    string
	organizer   string
	limit       int
}

type timeRange struct {
	start time.Time
	end   time.Time
}

func (f *objectFilter) TimeRange(start, end time.Time) ObjectFilter {
	f.timeRange = &timeRange{start: start, end: end}
	return f
}

func (f *objectFilter) HasAlarm() ObjectFilter {
	f.hasAlarm = true
	return f
}

func (f *objectFilter) ObjectType(objType string) ObjectFilter {
	f.objectType = objType
	return f
}

func (f *objectFilter) Priority(priority int) ObjectFilter {
	f.priority = &priority
	return f
}

func (f *objectFilter) Categories(categories ...string) ObjectFilter {
	f.categories = append(f.categories, categories...)
	return f
}

func (f *objectFilter) Status(status string) ObjectFilter {
	f.status = status
	return f
}

func (f *objectFilter) NotStatus(status string) ObjectFilter {
	f.notStatus = status
	return f
}

func (f *objectFilter) Summary(summary string) ObjectFilter {
	f.summary = summary
	return f
}

func (f *objectFilter) Description(desc string) ObjectFilter {
	f.description = desc
	return f
}

func (f *objectFilter) Location(location string) ObjectFilter {
	f.location = location
	return f
}

func (f *objectFilter) Organizer(organizer string) ObjectFilter {
	f.organizer = organizer
	return f
}

func (f *objectFilter) Limit(limit int) ObjectFilter {
	f.limit = limit
	return f
}

// Filter compiles the criteria into
// VCALENDAR > objectType > (time-range, prop-filters..., VALARM).
func (f *objectFilter) Filter() *filter.Filter {
	objType := f.objectType
	if objType == "" {
		objType = ical.CompEvent
	}
	inner := filter.NewCompFilter(objType)

	if f.timeRange != nil {
		inner.Append(filter.NewTimeRange(optionalTime(f.timeRange.start), optionalTime(f.timeRange.end)))
	}

	textProps := []struct {
		name  string
		value string
	}{
		{ical.PropSummary, f.summary},
		{ical.PropDescription, f.description},
		{ical.PropLocation, f.location},
		{ical.PropStatus, f.status},
		{ical.PropOrganizer, f.organizer},
	}
	for _, p := range textProps {
		if p.value != "" {
			inner.Append(filter.NewPropFilter(p.name, filter.NewTextMatch(p.value, false)))
		}
	}
	if f.notStatus != "" {
		inner.Append(filter.NewPropFilter(ical.PropStatus, filter.NewTextMatch(f.notStatus, true)))
	}
	if f.priority != nil {
		inner.Append(filter.NewPropFilter(ical.PropPriority, filter.NewTextMatch(strconv.Itoa(*f.priority), false)))
	}
	// One prop-filter per category: every category must be present.
	for _, category := range f.categories {
		inner.Append(filter.NewPropFilter(ical.PropCategories, filter.NewTextMatch(category, false)))
	}
	if f.hasAlarm {
		inner.Append(filter.NewCompFilter(ical.CompAlarm))
	}

	return filter.NewFilter(filter.NewCompFilter(ical.CompCalendar, inner))
}

// Do runs the query and returns at most Limit objects when a limit is set.
func (f *objectFilter) Do(ctx context.Context) ([]*CalendarObject, error) {
	objects, err := f.calendar.Search(ctx, f.Filter())
	if err != nil {
		return nil, fmt.Errorf("failed to execute calendar query: %w", err)
	}
	if f.limit > 0 && len(objects) > f.limit {
		objects = objects[:f.limit]
	}
	return objects, nil
}
