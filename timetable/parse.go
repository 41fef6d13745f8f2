package timetable

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"cis-timetable/logger"
)

var (
	// ErrParse marks every failure to turn the workbook into entries.
	ErrParse = errors.New("parse failure")
	// ErrNoWeekSheets is returned for workbooks without any week sheet.
	ErrNoWeekSheets = fmt.Errorf("%w: no week sheets in workbook", ErrParse)
	// ErrNoTimetable is returned when no week sheet holds a slot grid.
	ErrNoTimetable = fmt.Errorf("%w: no sheet contains a timetable grid", ErrParse)
)

var cellSplitRe = regexp.MustCompile(`\s*\|\s*|\n`)

// Parse reads an XLSX workbook and returns the entries of all week sheets,
// localized to loc, deduplicated and ordered.
func Parse(r io.Reader, loc *time.Location) ([]Entry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: opening workbook: %v", ErrParse, err)
	}
	defer f.Close()

	return ParseWorkbook(f, loc)
}

// ParseWorkbook is Parse for an already opened workbook.
func ParseWorkbook(f *excelize.File, loc *time.Location) ([]Entry, error) {
	if loc == nil {
		loc = time.UTC
	}

	sheets := weekSheets(f.GetSheetList())
	if len(sheets) == 0 {
		return nil, ErrNoWeekSheets
	}

	var entries []Entry
	gridSheets := 0
	for _, sheet := range sheets {
		log := logger.Log.WithField("sheet", sheet)

		g, err := readGrid(f, sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: reading sheet %s: %v", ErrParse, sheet, err)
		}
		sheetEntries, ok := parseSheet(g, sheet, loc)
		if !ok {
			log.Debug("Skipping sheet without timetable grid")
			continue
		}
		gridSheets++
		log.WithField("entries", len(sheetEntries)).Debug("Parsed sheet")
		entries = append(entries, sheetEntries...)
	}

	if gridSheets == 0 {
		return nil, ErrNoTimetable
	}
	return normalize(entries), nil
}

// parseSheet turns one week sheet into entries. ok is false when the sheet
// has no recognizable time axis, day header or slot grid.
func parseSheet(g grid, sheet string, loc *time.Location) (entries []Entry, ok bool) {
	if len(g) == 0 {
		return nil, false
	}
	timeCol, found := findTimeColumn(g)
	if !found {
		return nil, false
	}
	dayCols := findDayColumns(g)
	if len(dayCols) == 0 {
		return nil, false
	}
	start, found := findGridStart(g, timeCol)
	if !found {
		return nil, false
	}
	slot := slotLength(g, timeCol, start)

	cols := make([]int, 0, len(dayCols))
	for c := range dayCols {
		cols = append(cols, c)
	}
	sort.Ints(cols)

	// consumed[c] is the first row of column c not yet covered by an entry.
	consumed := make(map[int]int, len(cols))

	for r := start; r < len(g); r++ {
		begin, isSlot := g.clock(r, timeCol)
		if !isSlot {
			continue
		}
		for _, c := range cols {
			if r < consumed[c] {
				continue
			}
			text := g.cell(r, c)
			if text == "" || strings.EqualFold(text, "nan") {
				continue
			}

			last := r
			for rr := r + 1; rr < len(g); rr++ {
				if _, ok := g.clock(rr, timeCol); !ok || g.cell(rr, c) != text {
					break
				}
				last = rr
			}
			consumed[c] = last + 1

			lastSlot, _ := g.clock(last, timeCol)
			date := dayCols[c]
			entry := splitCell(text)
			entry.Sheet = sheet
			entry.Start = begin.On(date, loc)
			entry.End = (lastSlot + slot).On(date, loc)
			entries = append(entries, entry)
		}
	}
	return entries, true
}

// splitCell reads "Title | Lecturer | Room" or the same on separate lines.
func splitCell(text string) Entry {
	var parts []string
	for _, p := range cellSplitRe.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	e := Entry{Title: text}
	if len(parts) >= 1 {
		e.Title = parts[0]
	}
	if len(parts) >= 2 {
		e.Lecturer = parts[1]
	}
	if len(parts) >= 3 {
		e.Room = parts[2]
	}
	return e
}
