package davclient

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beralt/caldav/filter"
	"github.com/beralt/caldav/icalobj"
	davxml "github.com/beralt/caldav/internal/xml"
)

type fakeCollection struct {
	calendar bool
	props    map[davxml.PropName]string
}

type fakeObject struct {
	data []byte
	etag string
}

// fakeServer is an in-memory CalDAV server: one principal, one calendar
// home, calendars and objects keyed by path.
type fakeServer struct {
	mu          sync.Mutex
	principal   string
	home        string
	collections map[string]*fakeCollection
	objects     map[string]*fakeObject
	seq         int
	// ignoreFilters makes calendar-query return every object.
	ignoreFilters bool
	username      string
	password      string
	requests      []string
	server        *httptest.Server
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	s := &fakeServer{
		principal: "/principals/alice/",
		home:      "/calendars/alice/",
		collections: map[string]*fakeCollection{
			"/":                  {},
			"/principals/":       {},
			"/principals/alice/": {},
			"/calendars/":        {},
			"/calendars/alice/":  {},
		},
		objects: make(map[string]*fakeObject),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

func (s *fakeServer) url(p string) string {
	return s.server.URL + p
}

func (s *fakeServer) client(t *testing.T) *DAVClient {
	t.Helper()
	c, err := NewDAVClient(s.server.URL, Options{Username: s.username, Password: s.password})
	require.NoError(t, err)
	return c
}

func (s *fakeServer) addCalendar(p, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[p] = &fakeCollection{
		calendar: true,
		props:    map[davxml.PropName]string{davxml.DisplayName: name},
	}
}

func (s *fakeServer) addObject(p, data string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(p, []byte(data))
}

func (s *fakeServer) object(p string) (*fakeObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[p]
	return obj, ok
}

func (s *fakeServer) collection(p string) (*fakeCollection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[p]
	return c, ok
}

func (s *fakeServer) store(p string, data []byte) string {
	s.seq++
	etag := fmt.Sprintf(`"%d"`, s.seq)
	s.objects[p] = &fakeObject{data: data, etag: etag}
	return etag
}

func (s *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	if s.username != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.username || pass != s.password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch r.Method {
	case "PROPFIND":
		s.propfind(w, r, body)
	case "PROPPATCH":
		s.proppatch(w, r, body)
	case "MKCALENDAR":
		s.mkcalendar(w, r, body)
	case "REPORT":
		s.report(w, r, body)
	case http.MethodGet:
		s.get(w, r)
	case http.MethodPut:
		s.put(w, r, body)
	case http.MethodDelete:
		s.delete(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *fakeServer) propfind(w http.ResponseWriter, r *http.Request, body []byte) {
	var req davxml.PropfindRequest
	if len(body) > 0 {
		doc, err := davxml.ReadDocument(body)
		if err != nil || req.Parse(doc) != nil {
			http.Error(w, "bad propfind", http.StatusBadRequest)
			return
		}
	}
	names := req.Props
	if len(names) == 0 {
		names = []davxml.PropName{davxml.ResourceType, davxml.DisplayName, davxml.GetETag}
	}

	p := r.URL.Path
	var paths []string
	if _, ok := s.collections[p]; ok {
		paths = append(paths, p)
		if r.Header.Get("Depth") == "1" {
			paths = append(paths, s.children(p)...)
		}
	} else if _, ok := s.objects[p]; ok {
		paths = append(paths, p)
	} else {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ms := &davxml.MultistatusResponse{}
	for _, rp := range paths {
		ms.Responses = append(ms.Responses, s.propResponse(rp, names))
	}
	writeMultistatus(w, ms)
}

func (s *fakeServer) proppatch(w http.ResponseWriter, r *http.Request, body []byte) {
	coll, ok := s.collections[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var req davxml.ProppatchRequest
	doc, err := davxml.ReadDocument(body)
	if err != nil || req.Parse(doc) != nil {
		http.Error(w, "bad propertyupdate", http.StatusBadRequest)
		return
	}
	if coll.props == nil {
		coll.props = make(map[davxml.PropName]string)
	}

	var done []davxml.Property
	for _, p := range req.Set {
		coll.props[p.PropName()] = strings.TrimSpace(p.TextContent)
		done = append(done, davxml.Property{Name: p.Name, Namespace: p.Namespace})
	}
	for _, name := range req.Remove {
		delete(coll.props, name)
		done = append(done, davxml.Property{Name: name.Local, Namespace: name.Space})
	}
	writeMultistatus(w, &davxml.MultistatusResponse{Responses: []davxml.Response{{
		Href:      r.URL.Path,
		PropStats: []davxml.PropStat{{Props: done, Status: davxml.StatusLine(http.StatusOK)}},
	}}})
}

func (s *fakeServer) mkcalendar(w http.ResponseWriter, r *http.Request, body []byte) {
	p := r.URL.Path
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	if _, ok := s.collections[p]; ok {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := s.collections[parentDir(p)]; !ok {
		w.WriteHeader(http.StatusConflict)
		return
	}

	coll := &fakeCollection{calendar: true, props: make(map[davxml.PropName]string)}
	if len(body) > 0 {
		var req davxml.MkcalendarRequest
		doc, err := davxml.ReadDocument(body)
		if err != nil || req.Parse(doc) != nil {
			http.Error(w, "bad mkcalendar", http.StatusBadRequest)
			return
		}
		for _, prop := range req.Set {
			coll.props[prop.PropName()] = strings.TrimSpace(prop.TextContent)
		}
	}
	s.collections[p] = coll
	w.WriteHeader(http.StatusCreated)
}

func (s *fakeServer) report(w http.ResponseWriter, r *http.Request, body []byte) {
	doc, err := davxml.ReadDocument(body)
	if err != nil || doc.Root() == nil {
		http.Error(w, "bad report", http.StatusBadRequest)
		return
	}
	coll, ok := s.collections[r.URL.Path]
	if !ok || !coll.calendar {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ms := &davxml.MultistatusResponse{}
	switch root := doc.Root(); {
	case davxml.Matches(root, davxml.CalDAV, davxml.TagCalendarQuery):
		var req davxml.CalendarQueryRequest
		if err := req.Parse(doc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, err := filter.Parse(req.Filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, p := range s.children(r.URL.Path) {
			obj, ok := s.objects[p]
			if !ok {
				continue
			}
			if !s.ignoreFilters {
				inst, err := icalobj.Parse(obj.data)
				if err != nil {
					continue
				}
				if matched, err := filter.Match(f, inst.Calendar()); err != nil || !matched {
					continue
				}
			}
			ms.Responses = append(ms.Responses, s.propResponse(p, req.Props))
		}

	case davxml.Matches(root, davxml.CalDAV, davxml.TagMultiget):
		var req davxml.CalendarMultigetRequest
		if err := req.Parse(doc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, href := range req.Hrefs {
			u, err := url.Parse(href)
			if err != nil {
				continue
			}
			if _, ok := s.objects[u.Path]; !ok {
				ms.Responses = append(ms.Responses, davxml.Response{Href: href, Status: davxml.StatusLine(http.StatusNotFound)})
				continue
			}
			ms.Responses = append(ms.Responses, s.propResponse(u.Path, req.Props))
		}

	default:
		http.Error(w, "unsupported report", http.StatusForbidden)
		return
	}
	writeMultistatus(w, ms)
}

func (s *fakeServer) get(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.objects[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("ETag", obj.etag)
	w.WriteHeader(http.StatusOK)
	w.Write(obj.data)
}

func (s *fakeServer) put(w http.ResponseWriter, r *http.Request, body []byte) {
	p := r.URL.Path
	coll, ok := s.collections[parentDir(p)]
	if !ok || !coll.calendar {
		w.WriteHeader(http.StatusConflict)
		return
	}
	existing, exists := s.objects[p]
	if match := r.Header.Get("If-Match"); match != "" && (!exists || existing.etag != match) {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}
	if r.Header.Get("If-None-Match") == "*" && exists {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}
	if _, err := icalobj.Parse(body); err != nil {
		http.Error(w, "invalid calendar data", http.StatusBadRequest)
		return
	}

	w.Header().Set("ETag", s.store(p, body))
	if exists {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *fakeServer) delete(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	if obj, ok := s.objects[p]; ok {
		if match := r.Header.Get("If-Match"); match != "" && obj.etag != match {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		delete(s.objects, p)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	if _, ok := s.collections[p]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	for c := range s.collections {
		if strings.HasPrefix(c, p) {
			delete(s.collections, c)
		}
	}
	for o := range s.objects {
		if strings.HasPrefix(o, p) {
			delete(s.objects, o)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// children lists the direct members of collection p in path order.
func (s *fakeServer) children(p string) []string {
	var out []string
	for c := range s.collections {
		if c != p && parentDir(c) == p {
			out = append(out, c)
		}
	}
	for o := range s.objects {
		if parentDir(o) == p {
			out = append(out, o)
		}
	}
	sort.Strings(out)
	return out
}

func (s *fakeServer) propResponse(p string, names []davxml.PropName) davxml.Response {
	var found, missing []davxml.Property
	for _, name := range names {
		if prop, ok := s.property(p, name); ok {
			found = append(found, prop)
			continue
		}
		missing = append(missing, davxml.Property{Name: name.Local, Namespace: name.Space})
	}

	resp := davxml.Response{Href: p}
	if len(found) > 0 {
		resp.PropStats = append(resp.PropStats, davxml.PropStat{Props: found, Status: davxml.StatusLine(http.StatusOK)})
	}
	if len(missing) > 0 {
		resp.PropStats = append(resp.PropStats, davxml.PropStat{Props: missing, Status: davxml.StatusLine(http.StatusNotFound)})
	}
	return resp
}

func (s *fakeServer) property(p string, name davxml.PropName) (davxml.Property, bool) {
	coll, isColl := s.collections[p]
	obj, isObj := s.objects[p]

	switch name {
	case davxml.ResourceType:
		rt := davxml.Property{Name: name.Local, Namespace: name.Space}
		if isColl {
			rt.Children = append(rt.Children, davxml.Property{Name: davxml.TagCollection, Namespace: davxml.DAV})
			if coll.calendar {
				rt.Children = append(rt.Children, davxml.Property{Name: davxml.TagCalendar, Namespace: davxml.CalDAV})
			}
		}
		return rt, true
	case davxml.CurrentUserPrincipal:
		return hrefProperty(name, s.principal), true
	case davxml.CalendarHomeSet:
		if p == s.principal && s.home != "" {
			return hrefProperty(name, s.home), true
		}
	case davxml.GetETag:
		if isObj {
			return davxml.NewTextProperty(name, obj.etag), true
		}
	case davxml.GetContentType:
		if isObj {
			return davxml.NewTextProperty(name, "text/calendar; charset=utf-8"), true
		}
	case davxml.CalendarData:
		if isObj {
			return davxml.NewTextProperty(name, string(obj.data)), true
		}
	default:
		if isColl {
			if v, ok := coll.props[name]; ok {
				return davxml.NewTextProperty(name, v), true
			}
		}
	}
	return davxml.Property{}, false
}

func hrefProperty(name davxml.PropName, href string) davxml.Property {
	return davxml.Property{
		Name:      name.Local,
		Namespace: name.Space,
		Children:  []davxml.Property{{Name: davxml.TagHref, Namespace: davxml.DAV, TextContent: href}},
	}
}

func writeMultistatus(w http.ResponseWriter, ms *davxml.MultistatusResponse) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	ms.ToXML().WriteTo(w)
}

func parentDir(p string) string {
	trimmed := strings.TrimSuffix(p, "/")
	if trimmed == "" {
		return ""
	}
	dir := path.Dir(trimmed)
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir
}
