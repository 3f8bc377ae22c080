// Package icalobj adapts go-ical calendars to the resource model: parsing
// payloads into an Instance, serializing them back, and reaching the first
// component of a kind.
package icalobj

import (
	"bytes"
	"errors"
	"io"

	"github.com/emersion/go-ical"

	"github.com/beralt/caldav/daverr"
)

// ProductID is written into calendars this package creates.
const ProductID = "-//github.com/beralt/caldav//NONSGML v1.0//EN"

// Instance is a parsed iCalendar object.
type Instance struct {
	cal *ical.Calendar
}

// New wraps an existing calendar.
func New(cal *ical.Calendar) *Instance {
	return &Instance{cal: cal}
}

// NewEventInstance wraps a lone event into a VCALENDAR carrying PRODID and
// VERSION.
func NewEventInstance(event *ical.Event) *Instance {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Children = append(cal.Children, event.Component)
	return New(cal)
}

// Parse decodes the first calendar in data.
func Parse(data []byte) (*Instance, error) {
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if errors.Is(err, io.EOF) {
		return nil, daverr.New(daverr.KindParse, "no VCALENDAR in payload")
	}
	if err != nil {
		return nil, daverr.Wrap(daverr.KindParse, err, "decode iCalendar")
	}
	return New(cal), nil
}

// Serialize encodes inst. It fails when the calendar lacks properties the
// encoder requires, such as PRODID or a component UID.
func Serialize(inst *Instance) ([]byte, error) {
	if inst == nil || inst.cal == nil {
		return nil, daverr.New(daverr.KindParse, "nothing to serialize")
	}
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(inst.cal); err != nil {
		return nil, daverr.Wrap(daverr.KindParse, err, "encode iCalendar")
	}
	return buf.Bytes(), nil
}

// Calendar returns the underlying calendar. Changes made through it are
// picked up by the next Serialize.
func (i *Instance) Calendar() *ical.Calendar {
	return i.cal
}

// Component returns the first child component with the given name.
func (i *Instance) Component(name string) (*ical.Component, error) {
	for _, child := range i.cal.Children {
		if child.Name == name {
			return child, nil
		}
	}
	return nil, daverr.New(daverr.KindNoSuchComponent, "no %s in calendar", name)
}

// Event returns the first VEVENT.
func (i *Instance) Event() (*ical.Event, error) {
	comp, err := i.Component(ical.CompEvent)
	if err != nil {
		return nil, err
	}
	return &ical.Event{Component: comp}, nil
}

// Todo returns the first VTODO.
func (i *Instance) Todo() (*ical.Component, error) {
	return i.Component(ical.CompToDo)
}

// Journal returns the first VJOURNAL.
func (i *Instance) Journal() (*ical.Component, error) {
	return i.Component(ical.CompJournal)
}

// UID returns the UID of the first VEVENT, VTODO or VJOURNAL.
func (i *Instance) UID() (string, error) {
	for _, child := range i.cal.Children {
		switch child.Name {
		case ical.CompEvent, ical.CompToDo, ical.CompJournal:
		default:
			continue
		}
		uid, err := child.Props.Text(ical.PropUID)
		if err != nil {
			return "", daverr.Wrap(daverr.KindParse, err, "%s UID", child.Name)
		}
		if uid != "" {
			return uid, nil
		}
	}
	return "", daverr.New(daverr.KindNoSuchComponent, "no component with a UID")
}
