package davclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/beralt/caldav/daverr"
	"github.com/beralt/caldav/davurl"
	"github.com/beralt/caldav/filter"
	"github.com/beralt/caldav/icalobj"
	davxml "github.com/beralt/caldav/internal/xml"
)

// Calendar is a calendar collection.
type Calendar struct {
	DAVObject
	name string
}

// CalendarOptions describes a calendar to construct. URL wins over Parent
// and ID; a relative URL is resolved against the client's base URL.
type CalendarOptions struct {
	URL    string
	ID     string
	Name   string
	Parent Resource
}

// NewCalendar returns a transient calendar. Nothing is sent to the server
// until Save.
func NewCalendar(client *DAVClient, opts CalendarOptions) (*Calendar, error) {
	o, err := newDAVObject(client, opts.URL, opts.ID, opts.Parent)
	if err != nil {
		return nil, err
	}
	return &Calendar{DAVObject: o, name: opts.Name}, nil
}

// Name returns the display name the calendar was created or listed with.
func (c *Calendar) Name() string {
	return c.name
}

// SetName changes the display name; Save sends it.
func (c *Calendar) SetName(name string) {
	c.name = name
}

// Save creates the collection with MKCALENDAR. A calendar that already
// exists on the server gets its display name updated instead.
func (c *Calendar) Save(ctx context.Context) error {
	if c.state == StateDeleted {
		return daverr.New(daverr.KindDeleted, "calendar %s was deleted", c)
	}
	if c.url == nil {
		u, err := c.childURL(c.id, true)
		if err != nil {
			return err
		}
		c.url = u
	}

	var props []Property
	if c.name != "" {
		props = append(props, NewTextProperty(DisplayName, c.name))
	}

	if c.state == StatePersisted {
		if len(props) == 0 {
			return nil
		}
		return c.SetProperties(ctx, props...)
	}

	c.client.logger.Debug("creating calendar", "url", c.url.String(), "name", c.name)
	if err := c.client.http.DoMKCALENDAR(ctx, c.url.String(), props...); err != nil {
		return fmt.Errorf("failed to create calendar %s: %w", c.url, err)
	}
	c.state = StatePersisted
	return nil
}

// Events fetches every calendar object in the collection, one GET each.
func (c *Calendar) Events(ctx context.Context) ([]*Event, error) {
	if c.url == nil {
		return nil, daverr.New(daverr.KindNotYetSaved, "calendar has no URL")
	}
	ms, err := c.client.http.DoPROPFIND(ctx, c.url.String(), 1,
		ResourceType,
		GetETag,
		GetContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar objects: %w", err)
	}

	events := make([]*Event, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		if !responseOK(resp) {
			continue
		}
		u, err := davurl.Join(c.url, resp.Href)
		if err != nil {
			return nil, err
		}
		props := resp.Props()
		if davurl.Equal(u, c.url) || isCollection(props) {
			continue
		}
		if ct, ok := props.Text(GetContentType); ok && ct != "" && !strings.HasPrefix(ct, ical.MIMEType) {
			continue
		}

		obj := &CalendarObject{DAVObject: DAVObject{client: c.client, url: u, parent: c}}
		if err := obj.Load(ctx); err != nil {
			return nil, err
		}
		events = append(events, obj)
	}
	return events, nil
}

// Event returns the event whose UID is uid. It fails with a not-found error
// when no object carries it and with an ambiguous-result error when several
// do.
func (c *Calendar) Event(ctx context.Context, uid string) (*Event, error) {
	f := filter.NewFilter(
		filter.NewCompFilter(ical.CompCalendar,
			filter.NewCompFilter(ical.CompEvent,
				filter.NewPropFilter(ical.PropUID, filter.NewTextMatch(uid, false)))))
	objs, err := c.Search(ctx, f)
	if err != nil {
		return nil, err
	}

	// text-match is a substring match; keep exact UIDs only.
	matches := objs[:0]
	for _, obj := range objs {
		if obj.data == nil {
			matches = append(matches, obj)
			continue
		}
		inst, err := icalobj.Parse(obj.data)
		if err != nil {
			return nil, err
		}
		if got, err := inst.UID(); err == nil && got == uid {
			matches = append(matches, obj)
		}
	}

	switch len(matches) {
	case 0:
		return nil, daverr.New(daverr.KindNotFound, "no event with UID %q in %s", uid, c.url)
	case 1:
	default:
		return nil, daverr.New(daverr.KindAmbiguous, "%d events with UID %q in %s", len(matches), uid, c.url)
	}

	obj := matches[0]
	if obj.data == nil {
		if err := obj.Load(ctx); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// DateSearchOption tunes DateSearch.
type DateSearchOption func(*dateSearchOptions)

type dateSearchOptions struct {
	verify bool
}

// WithVerify re-evaluates the time range on every returned event and drops
// the ones the server matched wrongly.
func WithVerify() DateSearchOption {
	return func(o *dateSearchOptions) {
		o.verify = true
	}
}

// DateSearch returns the events overlapping [start, end). A zero bound leaves
// that side of the range open. The order is the server's.
func (c *Calendar) DateSearch(ctx context.Context, start, end time.Time, opts ...DateSearchOption) ([]*Event, error) {
	var o dateSearchOptions
	for _, opt := range opts {
		opt(&o)
	}

	f := filter.NewFilter(
		filter.NewCompFilter(ical.CompCalendar).Append(
			filter.NewCompFilter(ical.CompEvent).Append(
				filter.NewTimeRange(optionalTime(start), optionalTime(end)))))
	objs, err := c.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	if !o.verify {
		return objs, nil
	}

	kept := make([]*Event, 0, len(objs))
	for _, obj := range objs {
		if obj.data == nil {
			if err := obj.Load(ctx); err != nil {
				return nil, err
			}
		}
		inst, err := icalobj.Parse(obj.data)
		if err != nil {
			return nil, err
		}
		ok, err := filter.Match(f, inst.Calendar())
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, obj)
		} else {
			c.client.logger.Debug("dropping event outside the range", "url", obj.url.String())
		}
	}
	return kept, nil
}

// Search runs a calendar-query REPORT with f and returns one object per
// matching href, carrying the calendar data from the response.
func (c *Calendar) Search(ctx context.Context, f *filter.Filter) ([]*CalendarObject, error) {
	if f == nil {
		return nil, daverr.New(daverr.KindStructuralFilter, "nil filter")
	}
	elem, err := f.Element()
	if err != nil {
		return nil, err
	}
	if c.url == nil {
		return nil, daverr.New(daverr.KindNotYetSaved, "calendar has no URL")
	}

	query := davxml.CalendarQueryRequest{
		Props:  []PropName{GetETag, CalendarData},
		Filter: elem,
	}
	ms, err := c.client.http.DoREPORT(ctx, c.url.String(), 1, query.ToXML())
	if err != nil {
		return nil, fmt.Errorf("failed to execute calendar query: %w", err)
	}
	return c.objects(ms)
}

// Multiget fetches the objects at hrefs with one calendar-multiget REPORT.
func (c *Calendar) Multiget(ctx context.Context, hrefs ...string) ([]*CalendarObject, error) {
	if c.url == nil {
		return nil, daverr.New(daverr.KindNotYetSaved, "calendar has no URL")
	}
	if len(hrefs) == 0 {
		return []*CalendarObject{}, nil
	}

	req := davxml.CalendarMultigetRequest{
		Props: []PropName{GetETag, CalendarData},
		Hrefs: hrefs,
	}
	ms, err := c.client.http.DoREPORT(ctx, c.url.String(), 1, req.ToXML())
	if err != nil {
		return nil, fmt.Errorf("failed to execute calendar multiget: %w", err)
	}
	return c.objects(ms)
}

// Query starts a fluent search over the calendar's VEVENTs.
func (c *Calendar) Query() ObjectFilter {
	return &objectFilter{
		calendar:   c,
		objectType: ical.CompEvent,
	}
}

// objects turns REPORT responses into persisted calendar objects, one per
// distinct href, in response order.
func (c *Calendar) objects(ms *davxml.MultistatusResponse) ([]*CalendarObject, error) {
	objs := make([]*CalendarObject, 0, len(ms.Responses))
	seen := make(map[string]bool, len(ms.Responses))
	for _, resp := range ms.Responses {
		if !responseOK(resp) {
			c.client.logger.Debug("skipping response", "href", resp.Href, "status", resp.Status)
			continue
		}
		u, err := davurl.Join(c.url, resp.Href)
		if err != nil {
			return nil, err
		}
		if seen[u.String()] {
			continue
		}
		seen[u.String()] = true

		props := resp.Props()
		obj := &CalendarObject{DAVObject: DAVObject{client: c.client, url: u, parent: c, state: StatePersisted}}
		if etag, ok := props.Text(GetETag); ok {
			obj.etag = etag
		}
		if data, ok := props.Text(CalendarData); ok && data != "" {
			obj.data = []byte(data + "\r\n")
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func responseOK(resp davxml.Response) bool {
	code := resp.StatusCode()
	return code == 0 || (code >= 200 && code < 300)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
