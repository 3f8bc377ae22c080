package davclient

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/samber/mo"

	"github.com/beralt/caldav/daverr"
	"github.com/beralt/caldav/davurl"
)

// State is the lifecycle stage of a resource object.
type State int

const (
	// StateTransient objects have no server identity confirmed yet.
	StateTransient State = iota
	// StatePersisted objects were saved, loaded or discovered.
	StatePersisted
	// StateDeleted objects were removed from the server and reject further
	// saves and loads.
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateTransient:
		return "transient"
	case StatePersisted:
		return "persisted"
	case StateDeleted:
		return "deleted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Resource is anything with a URL. Children keep their parent as a Resource
// only to build their own URL from it.
type Resource interface {
	URL() *url.URL
}

// DAVObject is the state shared by all resource kinds.
type DAVObject struct {
	client *DAVClient
	url    *url.URL
	id     string
	parent Resource
	state  State
	etag   string
}

// NewDAVObject returns an object of no particular kind at rawURL, which may
// be empty or relative to the client's base URL.
func NewDAVObject(client *DAVClient, rawURL string) (*DAVObject, error) {
	o, err := newDAVObject(client, rawURL, "", nil)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func newDAVObject(client *DAVClient, rawURL, id string, parent Resource) (DAVObject, error) {
	if client == nil {
		return DAVObject{}, fmt.Errorf("client is required")
	}
	o := DAVObject{client: client, id: id, parent: parent}
	if rawURL != "" {
		u, err := client.resolve(rawURL)
		if err != nil {
			return DAVObject{}, err
		}
		o.url = u
	}
	return o, nil
}

// URL returns the object's URL, or nil while none is known.
func (o *DAVObject) URL() *url.URL {
	if o.url == nil {
		return nil
	}
	u := *o.url
	return &u
}

// ID returns the URL segment naming the object inside its parent.
func (o *DAVObject) ID() string {
	if o.id == "" && o.url != nil {
		return path.Base(strings.TrimSuffix(o.url.Path, "/"))
	}
	return o.id
}

// Parent returns the resource the object was created under, if any.
func (o *DAVObject) Parent() Resource {
	return o.parent
}

// Client returns the client the object talks through.
func (o *DAVObject) Client() *DAVClient {
	return o.client
}

// State returns the object's lifecycle stage.
func (o *DAVObject) State() State {
	return o.state
}

// ETag returns the entity tag last reported by the server.
func (o *DAVObject) ETag() mo.Option[string] {
	if o.etag == "" {
		return mo.None[string]()
	}
	return mo.Some(o.etag)
}

// Save always fails: a resource of no particular kind cannot be created.
func (o *DAVObject) Save(ctx context.Context) error {
	return daverr.New(daverr.KindUnsupported, "cannot save a resource of unknown kind")
}

// Delete removes the object from the server. Deleting an object that is
// already deleted, or already gone from the server, succeeds.
func (o *DAVObject) Delete(ctx context.Context) error {
	if o.state == StateDeleted {
		return nil
	}
	if o.url == nil {
		return daverr.New(daverr.KindNotYetSaved, "delete needs a URL")
	}
	o.client.logger.Debug("deleting resource", "url", o.url.String(), "etag", o.etag)
	if err := o.client.http.DoDELETE(ctx, o.url.String(), o.etag); err != nil {
		return fmt.Errorf("failed to delete %s: %w", o.url, err)
	}
	o.state = StateDeleted
	o.etag = ""
	return nil
}

// GetProperties reads the named properties of the object. Each requested
// property that the server reported with a failure status maps to an error
// result.
func (o *DAVObject) GetProperties(ctx context.Context, names ...PropName) (PropMap, error) {
	if o.url == nil {
		return nil, daverr.New(daverr.KindNotYetSaved, "get properties needs a URL")
	}
	ms, err := o.client.http.DoPROPFIND(ctx, o.url.String(), 0, names...)
	if err != nil {
		return nil, fmt.Errorf("failed to get properties of %s: %w", o.url, err)
	}

	// Depth 0 answers with a single response; its href may be spelled
	// differently from ours.
	for _, resp := range ms.Responses {
		u, err := davurl.Join(o.url, resp.Href)
		if err == nil && davurl.Equal(u, o.url) {
			return resp.Props(), nil
		}
	}
	if len(ms.Responses) == 1 {
		return ms.Responses[0].Props(), nil
	}
	return nil, daverr.New(daverr.KindNotFound, "no properties returned for %s", o.url)
}

// SetProperties writes props on the object.
func (o *DAVObject) SetProperties(ctx context.Context, props ...Property) error {
	if o.url == nil {
		return daverr.New(daverr.KindNotYetSaved, "set properties needs a URL")
	}
	if _, err := o.client.http.DoPROPPATCH(ctx, o.url.String(), props...); err != nil {
		return fmt.Errorf("failed to set properties of %s: %w", o.url, err)
	}
	return nil
}

// childURL builds the URL of a child named id under the parent.
func (o *DAVObject) childURL(id string, collection bool) (*url.URL, error) {
	if o.parent == nil || id == "" {
		return nil, daverr.New(daverr.KindIdentity, "neither a URL nor a parent and id")
	}
	base := o.parent.URL()
	if base == nil {
		return nil, daverr.New(daverr.KindIdentity, "parent has no URL")
	}
	u, err := davurl.JoinPath(base, id)
	if err != nil {
		return nil, daverr.Wrap(daverr.KindIdentity, err, "child %q", id)
	}
	if collection && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

func (o *DAVObject) String() string {
	if o.url == nil {
		return fmt.Sprintf("<%s %s>", o.state, o.id)
	}
	return fmt.Sprintf("<%s %s>", o.state, o.url)
}
