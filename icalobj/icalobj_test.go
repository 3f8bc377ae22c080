package icalobj

import (
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beralt/caldav/daverr"
)

const ev1 = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Example Corp.//CalDAV Client//EN
BEGIN:VEVENT
UID:20010712T182145Z-123401@example.com
DTSTAMP:20060712T182145Z
DTSTART:20060714T170000Z
DTEND:20060715T040000Z
SUMMARY:Bastille Day Party
END:VEVENT
END:VCALENDAR
`

const ev2 = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Example Corp.//CalDAV Client//EN
BEGIN:VEVENT
UID:20010712T182145Z-123401@example.com
DTSTAMP:20070712T182145Z
DTSTART:20070714T170000Z
DTEND:20070715T040000Z
SUMMARY:Bastille Day Party +1year
END:VEVENT
END:VCALENDAR
`

const weekly = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Example Corp.//CalDAV Client//EN
BEGIN:VEVENT
UID:standup@example.com
DTSTAMP:20060712T182145Z
DTSTART:20060703T090000Z
DTEND:20060703T093000Z
RRULE:FREQ=WEEKLY;COUNT=6
EXDATE:20060717T090000Z
SUMMARY:Standup
END:VEVENT
END:VCALENDAR
`

const todo = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Example Corp.//CalDAV Client//EN
BEGIN:VTODO
UID:todo-1@example.com
DTSTAMP:20060712T182145Z
SUMMARY:Buy fireworks
END:VTODO
END:VCALENDAR
`

func TestParseSerializeRoundTrip(t *testing.T) {
	for _, data := range []string{ev1, ev2} {
		first, err := Parse([]byte(data))
		require.NoError(t, err)

		out, err := Serialize(first)
		require.NoError(t, err)
		second, err := Parse(out)
		require.NoError(t, err)

		for _, inst := range []*Instance{first, second} {
			uid, err := inst.UID()
			require.NoError(t, err)
			assert.Equal(t, "20010712T182145Z-123401@example.com", uid)
		}

		e1, err := first.Event()
		require.NoError(t, err)
		e2, err := second.Event()
		require.NoError(t, err)

		for _, prop := range []string{ical.PropSummary, ical.PropDateTimeStart, ical.PropDateTimeEnd} {
			assert.Equal(t, e1.Props.Get(prop).Value, e2.Props.Get(prop).Value, prop)
		}
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "not ical", data: "<D:multistatus/>"},
		{name: "unterminated", data: "BEGIN:VCALENDAR\nVERSION:2.0\nBEGIN:VEVENT\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, daverr.ErrParse)
		})
	}
}

func TestComponentAccessors(t *testing.T) {
	inst, err := Parse([]byte(todo))
	require.NoError(t, err)

	_, err = inst.Event()
	assert.ErrorIs(t, err, daverr.ErrNoSuchComponent)
	_, err = inst.Journal()
	assert.ErrorIs(t, err, daverr.ErrNoSuchComponent)

	comp, err := inst.Todo()
	require.NoError(t, err)
	assert.Equal(t, ical.CompToDo, comp.Name)

	uid, err := inst.UID()
	require.NoError(t, err)
	assert.Equal(t, "todo-1@example.com", uid)
}

func TestNewEventInstance(t *testing.T) {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, "new@example.com")
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	event.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	event.Props.SetText(ical.PropSummary, "Planning")

	inst := NewEventInstance(event)
	data, err := Serialize(inst)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PRODID:"+ProductID)

	parsed, err := Parse(data)
	require.NoError(t, err)
	uid, err := parsed.UID()
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", uid)
}

func TestSpan(t *testing.T) {
	inst, err := Parse([]byte(ev1))
	require.NoError(t, err)
	start, end, err := inst.Span()
	require.NoError(t, err)
	assert.True(t, time.Date(2006, 7, 14, 17, 0, 0, 0, time.UTC).Equal(start))
	assert.True(t, time.Date(2006, 7, 15, 4, 0, 0, 0, time.UTC).Equal(end))

	event, err := inst.Event()
	require.NoError(t, err)
	delete(event.Props, ical.PropDateTimeEnd)
	start, end, err = inst.Span()
	require.NoError(t, err)
	assert.True(t, start.Equal(end), "missing DTEND makes the event instantaneous")
}

func TestOccurrences(t *testing.T) {
	inst, err := Parse([]byte(weekly))
	require.NoError(t, err)

	july := time.Date(2006, 7, 1, 0, 0, 0, 0, time.UTC)
	august := time.Date(2006, 8, 1, 0, 0, 0, 0, time.UTC)

	occ, err := inst.Occurrences(july, august, 0)
	require.NoError(t, err)
	var days []int
	for _, o := range occ {
		days = append(days, o.Start.Day())
		assert.Equal(t, 30*time.Minute, o.End.Sub(o.Start))
	}
	assert.Equal(t, []int{3, 10, 24, 31}, days)

	occ, err = inst.Occurrences(july, august, 2)
	require.NoError(t, err)
	assert.Len(t, occ, 2)

	// A window that starts mid-instance still catches it.
	occ, err = inst.Occurrences(time.Date(2006, 7, 10, 9, 15, 0, 0, time.UTC), time.Date(2006, 7, 11, 0, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, 10, occ[0].Start.Day())

	single, err := Parse([]byte(ev1))
	require.NoError(t, err)
	occ, err = single.Occurrences(july, august, 0)
	require.NoError(t, err)
	assert.Len(t, occ, 1)
	occ, err = single.Occurrences(august, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, occ)
}
