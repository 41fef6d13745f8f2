package timetable

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	clockRe   = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	dateRe    = regexp.MustCompile(`(\d{1,2})[.\s](\d{1,2})[.\s](\d{4})`)
	isoDateRe = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	weekdayRe = regexp.MustCompile(`(?i)^(Montag|Dienstag|Mittwoch|Donnerstag|Freitag|Samstag|Sonntag)\b`)
)

// Clock is a time of day in minutes after midnight.
type Clock int

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On combines the clock with a date in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}

// parseClock accepts "8:15", "08:15", "08:15:00" and Excel day fractions
// such as "0.34375".
func parseClock(cell string) (Clock, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	if m := clockRe.FindStringSubmatch(s); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if hh < 24 && mm < 60 {
			return Clock(hh*60 + mm), true
		}
		return 0, false
	}
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil && f >= 0 && f < 1 {
			minutes := int(math.Round(f * 24 * 60))
			if minutes < 24*60 {
				return Clock(minutes), true
			}
		}
	}
	return 0, false
}

// parseDate finds a "6.10.2025", "06 10 2025" or "2025-10-06" date in s.
func parseDate(s string) (time.Time, bool) {
	var y, mo, d int
	if m := dateRe.FindStringSubmatch(s); m != nil {
		d, _ = strconv.Atoi(m[1])
		mo, _ = strconv.Atoi(m[2])
		y, _ = strconv.Atoi(m[3])
	} else if m := isoDateRe.FindStringSubmatch(s); m != nil {
		y, _ = strconv.Atoi(m[1])
		mo, _ = strconv.Atoi(m[2])
		d, _ = strconv.Atoi(m[3])
	} else {
		return time.Time{}, false
	}
	date := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31.02. into March; such cells are not dates.
	if date.Day() != d || int(date.Month()) != mo {
		return time.Time{}, false
	}
	return date, true
}

// isWeekdayHeader reports whether the cell starts with a German weekday name.
func isWeekdayHeader(cell string) bool {
	return weekdayRe.MatchString(strings.TrimSpace(cell))
}

var germanWeekdays = map[time.Weekday]string{
	time.Monday: "Montag", time.Tuesday: "Dienstag", time.Wednesday: "Mittwoch",
	time.Thursday: "Donnerstag", time.Friday: "Freitag", time.Saturday: "Samstag", time.Sunday: "Sonntag",
}

// GermanWeekday returns the German name of d.
func GermanWeekday(d time.Weekday) string {
	return germanWeekdays[d]
}
