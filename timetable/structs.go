package timetable

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// Entry is one scheduled session of the timetable.
type Entry struct {
	Title    string
	Lecturer string
	Room     string
	Start    time.Time
	End      time.Time
	Sheet    string
}

// Day returns the weekday the entry takes place on.
func (e Entry) Day() time.Weekday {
	return e.Start.Weekday()
}

// Date returns midnight of the entry's day in the entry's location.
func (e Entry) Date() time.Time {
	return time.Date(e.Start.Year(), e.Start.Month(), e.Start.Day(), 0, 0, 0, 0, e.Start.Location())
}

// Valid reports whether the entry is a well-formed time range.
func (e Entry) Valid() bool {
	return e.Title != "" && e.End.After(e.Start)
}

type entryKey struct {
	title, lecturer, room string
	start, end            int64
}

func (e Entry) key() entryKey {
	return entryKey{e.Title, e.Lecturer, e.Room, e.Start.Unix(), e.End.Unix()}
}

// Snapshot is the result of one successful fetch. It is never updated in
// place; the next run produces a new one.
type Snapshot struct {
	Entries   []Entry
	FetchedAt time.Time
	Source    string
}

// Day groups the entries of one calendar date.
type Day struct {
	Date    time.Time
	Entries []Entry
}

// NewSnapshot drops malformed and duplicate entries and orders the rest.
func NewSnapshot(entries []Entry, fetchedAt time.Time, source string) *Snapshot {
	return &Snapshot{
		Entries:   normalize(entries),
		FetchedAt: fetchedAt,
		Source:    source,
	}
}

func normalize(entries []Entry) []Entry {
	valid := lo.Filter(entries, func(e Entry, _ int) bool { return e.Valid() })
	uniq := lo.UniqBy(valid, Entry.key)
	sort.SliceStable(uniq, func(i, j int) bool { return less(uniq[i], uniq[j]) })
	return uniq
}

func less(a, b Entry) bool {
	switch {
	case !a.Start.Equal(b.Start):
		return a.Start.Before(b.Start)
	case !a.End.Equal(b.End):
		return a.End.Before(b.End)
	case a.Title != b.Title:
		return a.Title < b.Title
	case a.Lecturer != b.Lecturer:
		return a.Lecturer < b.Lecturer
	default:
		return a.Room < b.Room
	}
}

// Window keeps the entries that end no earlier than pastDays before now and
// start no later than futureDays after now.
func (s *Snapshot) Window(now time.Time, pastDays, futureDays int) *Snapshot {
	from := now.AddDate(0, 0, -pastDays)
	to := now.AddDate(0, 0, futureDays)
	kept := lo.Filter(s.Entries, func(e Entry, _ int) bool {
		return !e.End.Before(from) && !e.Start.After(to)
	})
	return &Snapshot{Entries: kept, FetchedAt: s.FetchedAt, Source: s.Source}
}

// Days groups the entries by calendar date in ascending order.
func (s *Snapshot) Days() []Day {
	var days []Day
	for _, e := range s.Entries {
		date := e.Date()
		if n := len(days); n > 0 && days[n-1].Date.Equal(date) {
			days[n-1].Entries = append(days[n-1].Entries, e)
			continue
		}
		days = append(days, Day{Date: date, Entries: []Entry{e}})
	}
	return days
}
