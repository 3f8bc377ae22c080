package davclient

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/beralt/caldav/davurl"
	davxml "github.com/beralt/caldav/internal/xml"
)

// Principal is the resource of a user account; its calendars live under its
// calendar home.
type Principal struct {
	DAVObject
}

// NewPrincipal returns the principal at rawURL.
func NewPrincipal(client *DAVClient, rawURL string) (*Principal, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("principal URL is required")
	}
	o, err := newDAVObject(client, rawURL, "", nil)
	if err != nil {
		return nil, err
	}
	return &Principal{DAVObject: o}, nil
}

// CalendarHome returns the collection holding the principal's calendars.
// When the server does not report a calendar-home-set the principal URL is
// used.
func (p *Principal) CalendarHome(ctx context.Context) (*DAVObject, error) {
	props, err := p.GetProperties(ctx, CalendarHomeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar-home-set: %w", err)
	}
	p.state = StatePersisted

	home := p.URL()
	if res, ok := props[CalendarHomeSet]; ok && res.IsOk() {
		prop := res.MustGet()
		if href, ok := prop.Href(); ok {
			if home, err = davurl.Join(p.url, href); err != nil {
				return nil, err
			}
		}
	}
	p.client.logger.Debug("found calendar home", "principal", p.url.String(), "home", home.String())
	return &DAVObject{client: p.client, url: home, parent: p, state: StatePersisted}, nil
}

// Calendars lists the calendar collections in the principal's calendar
// home. An account without calendars yields an empty slice.
func (p *Principal) Calendars(ctx context.Context) ([]*Calendar, error) {
	home, err := p.CalendarHome(ctx)
	if err != nil {
		return nil, err
	}

	ms, err := p.client.http.DoPROPFIND(ctx, home.url.String(), 1,
		ResourceType,
		DisplayName,
		CalendarColor)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	calendars := make([]*Calendar, 0)
	for _, resp := range ms.Responses {
		u, err := davurl.Join(home.url, resp.Href)
		if err != nil {
			p.client.logger.Debug("skipping unparsable href", "href", resp.Href, "error", err)
			continue
		}
		if davurl.Equal(u, home.url) {
			continue
		}
		props := resp.Props()
		if !isCalendar(props) {
			continue
		}
		name, _ := props.Text(DisplayName)
		cal := &Calendar{
			DAVObject: DAVObject{client: p.client, url: u, parent: home, state: StatePersisted},
			name:      name,
		}
		calendars = append(calendars, cal)
	}

	p.client.logger.Debug("listed calendars", "home", home.url.String(), "count", len(calendars))
	return calendars, nil
}

// MakeCalendar creates a calendar named name in the calendar home. An empty
// id is replaced by a random UUID.
func (p *Principal) MakeCalendar(ctx context.Context, name, id string) (*Calendar, error) {
	home, err := p.CalendarHome(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.New().String()
	}
	cal, err := NewCalendar(p.client, CalendarOptions{ID: id, Name: name, Parent: home})
	if err != nil {
		return nil, err
	}
	if err := cal.Save(ctx); err != nil {
		return nil, err
	}
	return cal, nil
}

func isCalendar(props PropMap) bool {
	res, ok := props[ResourceType]
	if !ok || res.IsError() {
		return false
	}
	prop := res.MustGet()
	return prop.HasChild(davxml.PropName{Space: davxml.CalDAV, Local: davxml.TagCalendar})
}

func isCollection(props PropMap) bool {
	res, ok := props[ResourceType]
	if !ok || res.IsError() {
		return false
	}
	prop := res.MustGet()
	return prop.HasChild(davxml.PropName{Space: davxml.DAV, Local: davxml.TagCollection})
}

var (
	_ Resource = (*Principal)(nil)
	_ Resource = (*Calendar)(nil)
)
