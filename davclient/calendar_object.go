package davclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/beralt/caldav/daverr"
	"github.com/beralt/caldav/icalobj"
	"github.com/beralt/caldav/internal/httpclient"
)

const objectSuffix = ".ics"

// CalendarObject is one calendar object resource. Its content is held
// either as raw iCalendar data or as a parsed instance; Reconcile makes the
// data match the instance again.
type CalendarObject struct {
	DAVObject
	data     []byte
	instance *icalobj.Instance
	// dirty is set once the instance was set or marked modified and may
	// differ from data.
	dirty bool
}

// Event is a calendar object holding a VEVENT.
type Event = CalendarObject

// ObjectOptions describes a calendar object to construct. URL wins over
// Parent and ID.
type ObjectOptions struct {
	URL    string
	ID     string
	Data   []byte
	Parent Resource
}

// NewCalendarObject returns a transient calendar object.
func NewCalendarObject(client *DAVClient, opts ObjectOptions) (*CalendarObject, error) {
	o, err := newDAVObject(client, opts.URL, opts.ID, opts.Parent)
	if err != nil {
		return nil, err
	}
	return &CalendarObject{DAVObject: o, data: opts.Data}, nil
}

// NewEvent returns a transient event.
func NewEvent(client *DAVClient, opts ObjectOptions) (*Event, error) {
	return NewCalendarObject(client, opts)
}

// Data returns the iCalendar bytes of the object, serializing the instance
// first if it may have changed.
func (o *CalendarObject) Data() ([]byte, error) {
	if err := o.Reconcile(); err != nil {
		return nil, err
	}
	return o.data, nil
}

// SetData replaces the content and drops the parsed instance.
func (o *CalendarObject) SetData(data []byte) {
	o.data = data
	o.instance = nil
	o.dirty = false
}

// Instance returns the parsed content. Reading it leaves Data untouched;
// after changing the returned instance call MarkModified so that the next
// Save or Data serializes it.
func (o *CalendarObject) Instance() (*icalobj.Instance, error) {
	if o.instance == nil {
		if len(o.data) == 0 {
			return nil, daverr.New(daverr.KindParse, "calendar object has no data")
		}
		inst, err := icalobj.Parse(o.data)
		if err != nil {
			return nil, err
		}
		o.instance = inst
	}
	return o.instance, nil
}

// MarkModified makes the parsed instance the authoritative side. It is a
// no-op while no instance has been parsed or set.
func (o *CalendarObject) MarkModified() {
	o.dirty = o.instance != nil
}

// SetInstance replaces the content with inst.
func (o *CalendarObject) SetInstance(inst *icalobj.Instance) {
	o.instance = inst
	o.dirty = inst != nil
}

// Dirty reports whether the instance may hold changes not yet in Data.
func (o *CalendarObject) Dirty() bool {
	return o.dirty
}

// Reconcile serializes the instance into the data when it is dirty.
func (o *CalendarObject) Reconcile() error {
	if !o.dirty || o.instance == nil {
		o.dirty = false
		return nil
	}
	data, err := icalobj.Serialize(o.instance)
	if err != nil {
		return err
	}
	o.data = data
	o.dirty = false
	return nil
}

// Save stores the object with PUT. Without a URL one is built under the
// parent from the ID, the UID or a random UUID, in that order. A known ETag
// is sent as If-Match, so a concurrent change on the server makes Save fail
// with a conflict error. A transient object is only created: Save fails
// with a conflict error if a resource already exists at its URL.
func (o *CalendarObject) Save(ctx context.Context) error {
	if o.state == StateDeleted {
		return daverr.New(daverr.KindDeleted, "calendar object %s was deleted", o)
	}
	if err := o.Reconcile(); err != nil {
		return err
	}
	if len(o.data) == 0 {
		return daverr.New(daverr.KindParse, "calendar object has no data")
	}
	if o.url == nil {
		if o.id == "" {
			o.id = o.generateID()
		}
		u, err := o.childURL(objectName(o.id), false)
		if err != nil {
			return err
		}
		o.url = u
	}

	precondition := o.etag
	if precondition == "" && o.state == StateTransient {
		precondition = httpclient.CreateOnly
	}
	o.client.logger.Debug("saving calendar object", "url", o.url.String(), "precondition", precondition)
	etag, err := o.client.http.DoPUT(ctx, o.url.String(), precondition, o.data)
	if err != nil {
		return fmt.Errorf("failed to save calendar object: %w", err)
	}

	// Servers may omit the ETag when they altered the stored data.
	if etag == "" {
		props, err := o.GetProperties(ctx, GetETag)
		if err != nil {
			return fmt.Errorf("failed to get new etag: %w", err)
		}
		etag, _ = props.Text(GetETag)
	}
	o.etag = etag
	o.state = StatePersisted
	return nil
}

// Load fetches the object's data with GET and drops the parsed instance.
func (o *CalendarObject) Load(ctx context.Context) error {
	if o.state == StateDeleted {
		return daverr.New(daverr.KindDeleted, "calendar object %s was deleted", o)
	}
	if o.url == nil {
		u, err := o.childURL(objectName(o.id), false)
		if err != nil {
			return err
		}
		o.url = u
	}

	data, etag, err := o.client.http.DoGET(ctx, o.url.String())
	if err != nil {
		return fmt.Errorf("failed to load calendar object: %w", err)
	}
	o.SetData(data)
	o.etag = etag
	o.state = StatePersisted
	return nil
}

// generateID derives an ID from the content's UID, or makes one up.
func (o *CalendarObject) generateID() string {
	if inst, err := icalobj.Parse(o.data); err == nil {
		if uid, err := inst.UID(); err == nil {
			if id := sanitizeID(uid); id != "" {
				return id
			}
		}
	}
	return uuid.New().String()
}

// objectName appends the .ics suffix to id unless present. An empty id
// stays empty.
func objectName(id string) string {
	if id == "" || strings.HasSuffix(id, objectSuffix) {
		return id
	}
	return id + objectSuffix
}

// sanitizeID keeps the characters that are safe in a path segment as is and
// replaces the rest with underscores.
func sanitizeID(uid string) string {
	var b strings.Builder
	for _, r := range uid {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune("-_.@", r):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), ".")
}
