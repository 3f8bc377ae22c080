package icalobj

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/beralt/caldav/daverr"
)

// DefaultMaxOccurrences bounds Occurrences when max is not positive.
const DefaultMaxOccurrences = 1000

// Occurrence is one instance of a possibly recurring event.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Span returns the start and end of the first VEVENT in UTC. A missing DTEND
// follows RFC 5545: DTSTART plus DURATION, one day for DATE starts, and
// DTSTART itself otherwise.
func (i *Instance) Span() (start, end time.Time, err error) {
	event, err := i.Event()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err = event.DateTimeStart(time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, daverr.Wrap(daverr.KindParse, err, "DTSTART")
	}
	if start.IsZero() {
		return time.Time{}, time.Time{}, daverr.New(daverr.KindParse, "event has no DTSTART")
	}
	end, err = event.DateTimeEnd(time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, daverr.Wrap(daverr.KindParse, err, "DTEND")
	}
	return start, end, nil
}

// Occurrences lists the instances of the first VEVENT that intersect
// [start, end), expanding RRULE, RDATE and EXDATE. A zero end leaves the
// window open. At most max instances are returned.
func (i *Instance) Occurrences(start, end time.Time, max int) ([]Occurrence, error) {
	if max <= 0 {
		max = DefaultMaxOccurrences
	}
	first, last, err := i.Span()
	if err != nil {
		return nil, err
	}
	duration := last.Sub(first)

	event, _ := i.Event()
	var set *rrule.Set
	set, err = event.RecurrenceSet(time.UTC)
	if err != nil {
		return nil, daverr.Wrap(daverr.KindParse, err, "recurrence rule")
	}
	if set == nil {
		if overlaps(first, last, start, end) {
			return []Occurrence{{Start: first, End: last}}, nil
		}
		return nil, nil
	}

	var out []Occurrence
	next := set.Iterator()
	for s, ok := next(); ok; s, ok = next() {
		occ := Occurrence{Start: s.UTC(), End: s.UTC().Add(duration)}
		if !end.IsZero() && !occ.Start.Before(end) {
			break
		}
		if !overlaps(occ.Start, occ.End, start, end) {
			continue
		}
		out = append(out, occ)
		if len(out) == max {
			break
		}
	}
	return out, nil
}

// overlaps applies the RFC 4791 §9.9 rule; zero-length spans match when
// their instant lies in [start, end). Zero bounds are open.
func overlaps(s, e, start, end time.Time) bool {
	beforeEnd := end.IsZero() || s.Before(end)
	if s.Equal(e) {
		return beforeEnd && !s.Before(start)
	}
	return beforeEnd && e.After(start)
}
