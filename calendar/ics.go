package calendar

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"cis-timetable/timetable"
)

const (
	utcFormat   = "20060102T150405Z"
	localFormat = "20060102T150405"
	dateFormat  = "20060102"
)

// Options describe the feed as a whole.
type Options struct {
	Name     string
	Timezone string
	// Domain qualifies event UIDs.
	Domain string
}

// Render serializes the snapshot as an iCalendar feed. The output depends
// only on the snapshot: DTSTAMP is the fetch time and UIDs are derived from
// the entry itself.
func Render(snap *timetable.Snapshot, opts Options) []byte {
	cal := ics.NewCalendar()
	cal.SetProductId("-//cis-timetable//Stundenplan//DE")
	cal.SetMethod(ics.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	domain := opts.Domain
	if domain == "" {
		domain = "cis-timetable"
	}

	for _, e := range snap.Entries {
		event := cal.AddEvent(generateEventID(e) + "@" + domain)
		event.SetDtStampTime(snap.FetchedAt)
		event.SetStartAt(e.Start)
		event.SetEndAt(e.End)
		event.SetSummary(e.Title)
		if e.Room != "" {
			event.SetLocation(e.Room)
		}
		if desc := description(e); desc != "" {
			event.SetDescription(desc)
		}
	}

	return []byte(cal.Serialize())
}

func description(e timetable.Entry) string {
	var lines []string
	if e.Lecturer != "" {
		lines = append(lines, "Dozent: "+e.Lecturer)
	}
	if e.Room != "" {
		lines = append(lines, "Raum: "+e.Room)
	}
	return strings.Join(lines, "\n")
}

// generateEventID is stable across runs for an unchanged session, so
// subscribed calendars update events instead of duplicating them. Parallel
// groups share title and time but differ in lecturer or room.
func generateEventID(e timetable.Entry) string {
	hash := md5.New()
	for _, part := range []string{e.Title, e.Lecturer, e.Room, e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339)} {
		hash.Write([]byte(part))
		hash.Write([]byte{0})
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// Event is a VEVENT read back from a feed.
type Event struct {
	UID         string
	Summary     string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
}

// Parse reads the events of an iCalendar feed.
func Parse(r io.Reader) ([]Event, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing ICS data: %w", err)
	}

	var events []Event
	for _, event := range cal.Events() {
		if event == nil {
			continue
		}
		start, err := propertyTime(event.GetProperty(ics.ComponentPropertyDtStart))
		if err != nil {
			return nil, fmt.Errorf("event %s: start: %w", event.Id(), err)
		}
		end, err := propertyTime(event.GetProperty(ics.ComponentPropertyDtEnd))
		if err != nil {
			return nil, fmt.Errorf("event %s: end: %w", event.Id(), err)
		}
		events = append(events, Event{
			UID:         event.Id(),
			Summary:     propertyText(event.GetProperty(ics.ComponentPropertySummary)),
			Location:    propertyText(event.GetProperty(ics.ComponentPropertyLocation)),
			Description: propertyText(event.GetProperty(ics.ComponentPropertyDescription)),
			Start:       start,
			End:         end,
		})
	}
	return events, nil
}

func propertyTime(p *ics.IANAProperty) (time.Time, error) {
	if p == nil {
		return time.Time{}, fmt.Errorf("property missing")
	}
	value := strings.TrimSpace(p.Value)
	switch {
	case strings.HasSuffix(value, "Z"):
		return time.Parse(utcFormat, value)
	case len(value) == len(dateFormat):
		return time.Parse(dateFormat, value)
	}

	loc := time.UTC
	if tzid, ok := p.ICalParameters["TZID"]; ok && len(tzid) > 0 {
		l, err := time.LoadLocation(tzid[0])
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown TZID %q: %w", tzid[0], err)
		}
		loc = l
	}
	return time.ParseInLocation(localFormat, value, loc)
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func propertyText(p *ics.IANAProperty) string {
	if p == nil {
		return ""
	}
	return textUnescaper.Replace(p.Value)
}
