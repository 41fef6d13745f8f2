package timetable

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	timeColumnScanCols = 5
	timeColumnScanRows = 200
	timeColumnMinHits  = 5
	headerScanRows     = 30
	dateLookBelow      = 4
	gridStartWindow    = 10
	gridStartMinHits   = 3
	defaultSlotMinutes = 5
)

var (
	weekNumberRe = regexp.MustCompile(`^\d{1,2}$`)
	weekSuffixRe = regexp.MustCompile(`\d{2}$`)
)

// grid is a sheet as rows of cell texts, 0-based.
type grid [][]string

func (g grid) cell(r, c int) string {
	if r < 0 || r >= len(g) || c < 0 || c >= len(g[r]) {
		return ""
	}
	return strings.TrimSpace(g[r][c])
}

func (g grid) width() int {
	w := 0
	for _, row := range g {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

func (g grid) clock(r, c int) (Clock, bool) {
	return parseClock(g.cell(r, c))
}

// readGrid loads a sheet and copies each merged range's value into every
// cell it covers, so a lecture spanning several slots reads the same in
// each of them.
func readGrid(f *excelize.File, sheet string) (grid, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	g := grid(rows)

	merged, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, err
	}
	for _, mc := range merged {
		c1, r1, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			continue
		}
		c2, r2, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			continue
		}
		value := mc.GetCellValue()
		for r := r1 - 1; r < r2; r++ {
			for c := c1 - 1; c < c2; c++ {
				g.set(r, c, value)
			}
		}
	}
	return g, nil
}

func (g *grid) set(r, c int, value string) {
	for len(*g) <= r {
		*g = append(*g, nil)
	}
	row := (*g)[r]
	for len(row) <= c {
		row = append(row, "")
	}
	row[c] = value
	(*g)[r] = row
}

// weekNumber extracts the calendar week from a sheet name like "41",
// "7" or "KW41".
func weekNumber(sheet string) (int, bool) {
	name := strings.TrimSpace(sheet)
	if weekNumberRe.MatchString(name) {
		n, _ := strconv.Atoi(name)
		return n, true
	}
	if m := weekSuffixRe.FindString(name); m != "" {
		n, _ := strconv.Atoi(m)
		return n, true
	}
	return 0, false
}

// weekSheets returns the week sheets ordered by week number.
func weekSheets(names []string) []string {
	type ws struct {
		name string
		week int
	}
	var found []ws
	for _, name := range names {
		if week, ok := weekNumber(name); ok {
			found = append(found, ws{name, week})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].week < found[j].week })

	sheets := make([]string, len(found))
	for i, s := range found {
		sheets[i] = s.name
	}
	return sheets
}

// findTimeColumn returns the first of the leftmost columns that holds
// enough times of day to be the slot axis.
func findTimeColumn(g grid) (int, bool) {
	cols := min(timeColumnScanCols, g.width())
	rows := min(timeColumnScanRows, len(g))
	for c := 0; c < cols; c++ {
		hits := 0
		for r := 0; r < rows; r++ {
			if _, ok := g.clock(r, c); ok {
				hits++
			}
		}
		if hits > timeColumnMinHits {
			return c, true
		}
	}
	return 0, false
}

// findDayColumns maps each column headed by a weekday to its date. The date
// is either in the header cell itself or in one of the cells below it.
func findDayColumns(g grid) map[int]time.Time {
	cols := make(map[int]time.Time)
	rows := min(headerScanRows, len(g))
	width := g.width()
	for r := 0; r < rows; r++ {
		for c := 0; c < width; c++ {
			header := g.cell(r, c)
			if !isWeekdayHeader(header) {
				continue
			}
			if d, ok := parseDate(header); ok {
				cols[c] = d
				continue
			}
			for look := 1; look <= dateLookBelow && r+look < len(g); look++ {
				if d, ok := parseDate(g.cell(r+look, c)); ok {
					cols[c] = d
					break
				}
			}
		}
	}
	return cols
}

// findGridStart returns the first row of the time axis that is followed by
// a run of further slots.
func findGridStart(g grid, timeCol int) (int, bool) {
	for r := range g {
		if _, ok := g.clock(r, timeCol); !ok {
			continue
		}
		hits := 0
		for k := r; k < min(r+gridStartWindow, len(g)); k++ {
			if _, ok := g.clock(k, timeCol); ok {
				hits++
			}
		}
		if hits >= gridStartMinHits {
			return r, true
		}
	}
	return 0, false
}

// slotLength is the smallest step between consecutive slots of the time
// axis, used as the duration of a session's last slot.
func slotLength(g grid, timeCol, start int) Clock {
	step := Clock(0)
	prev, havePrev := Clock(0), false
	for r := start; r < len(g); r++ {
		t, ok := g.clock(r, timeCol)
		if !ok {
			havePrev = false
			continue
		}
		if havePrev && t > prev && (step == 0 || t-prev < step) {
			step = t - prev
		}
		prev, havePrev = t, true
	}
	if step == 0 {
		return defaultSlotMinutes
	}
	return step
}
