package xml

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, doc *etree.Document) *etree.Document {
	t.Helper()
	data, err := doc.WriteToBytes()
	require.NoError(t, err)
	parsed, err := ReadDocument(data)
	require.NoError(t, err)
	return parsed
}

func TestPropfindRequest_ToXML(t *testing.T) {
	req := &PropfindRequest{Props: []PropName{DisplayName, CalendarHomeSet, CalendarColor}}
	doc := roundTrip(t, req.ToXML())

	root := doc.Root()
	assert.Equal(t, "D:propfind", root.FullTag())
	assert.NotNil(t, root.SelectAttr("xmlns:C"))
	assert.NotNil(t, root.SelectAttr("xmlns:ICAL"))

	parsed := &PropfindRequest{}
	require.NoError(t, parsed.Parse(doc))
	assert.Equal(t, req.Props, parsed.Props)
	assert.False(t, parsed.AllProp)
}

func TestPropfindRequest_EmptyIsAllprop(t *testing.T) {
	parsed := &PropfindRequest{}
	require.NoError(t, parsed.Parse(roundTrip(t, (&PropfindRequest{}).ToXML())))
	assert.True(t, parsed.AllProp)
	assert.Empty(t, parsed.Props)
}

func TestProppatchRequest(t *testing.T) {
	req := &ProppatchRequest{
		Set:    []Property{NewTextProperty(DisplayName, "Work")},
		Remove: []PropName{CalendarColor},
	}
	parsed := &ProppatchRequest{}
	require.NoError(t, parsed.Parse(roundTrip(t, req.ToXML())))

	require.Len(t, parsed.Set, 1)
	assert.Equal(t, DisplayName, parsed.Set[0].PropName())
	assert.Equal(t, "Work", parsed.Set[0].TextContent)
	assert.Equal(t, []PropName{CalendarColor}, parsed.Remove)
}

func TestProperty_UnknownNamespace(t *testing.T) {
	custom := PropName{Space: "http://example.com/ns/", Local: "flavor"}
	req := &ProppatchRequest{Set: []Property{NewTextProperty(custom, "vanilla")}}
	parsed := &ProppatchRequest{}
	require.NoError(t, parsed.Parse(roundTrip(t, req.ToXML())))
	require.Len(t, parsed.Set, 1)
	assert.Equal(t, custom, parsed.Set[0].PropName())
}

func TestMkcalendarRequest(t *testing.T) {
	req := &MkcalendarRequest{Set: []Property{NewTextProperty(DisplayName, "Yep")}}
	doc := roundTrip(t, req.ToXML())
	assert.Equal(t, "C:mkcalendar", doc.Root().FullTag())

	parsed := &MkcalendarRequest{}
	require.NoError(t, parsed.Parse(doc))
	require.Len(t, parsed.Set, 1)
	assert.Equal(t, "Yep", parsed.Set[0].TextContent)
}

func TestCalendarQueryRequest(t *testing.T) {
	filter := etree.NewElement("C:filter")
	filter.CreateElement("C:comp-filter").CreateAttr("name", "VCALENDAR")

	req := &CalendarQueryRequest{Props: []PropName{GetETag, CalendarData}, Filter: filter}
	parsed := &CalendarQueryRequest{}
	require.NoError(t, parsed.Parse(roundTrip(t, req.ToXML())))

	assert.Equal(t, req.Props, parsed.Props)
	require.NotNil(t, parsed.Filter)
	comp := FindChild(parsed.Filter, CalDAV, "comp-filter")
	require.NotNil(t, comp)
	assert.Equal(t, "VCALENDAR", comp.SelectAttrValue("name", ""))
}

func TestCalendarMultigetRequest(t *testing.T) {
	req := &CalendarMultigetRequest{Props: []PropName{GetETag, CalendarData}, Hrefs: []string{"/cal/a.ics", "/cal/b.ics"}}
	parsed := &CalendarMultigetRequest{}
	require.NoError(t, parsed.Parse(roundTrip(t, req.ToXML())))
	assert.Equal(t, req.Hrefs, parsed.Hrefs)
	assert.Equal(t, req.Props, parsed.Props)
}

func TestPropName_String(t *testing.T) {
	assert.Equal(t, "{DAV:}displayname", DisplayName.String())
	assert.Equal(t, "{urn:ietf:params:xml:ns:caldav}calendar-data", CalendarData.String())
}
