package timetable

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func vienna(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Vienna")
	require.NoError(t, err)
	return loc
}

// writeSlots fills column A from row 3 on with 15-minute slots from 08:00.
func writeSlots(t *testing.T, f *excelize.File, sheet string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		minutes := 8*60 + 15*i
		cell := fmt.Sprintf("A%d", i+3)
		require.NoError(t, f.SetCellValue(sheet, cell, fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)))
	}
}

func set(t *testing.T, f *excelize.File, sheet string, cells map[string]string) {
	t.Helper()
	for cell, v := range cells {
		require.NoError(t, f.SetCellValue(sheet, cell, v))
	}
}

// sampleWorkbook holds two week sheets and one unrelated sheet:
//
//	41:   Mathematik 08:00-09:00 (4 slots), Physik 08:30-08:45, Englisch 09:15-09:45
//	KW42: Datenbanken as a merged range 08:00-08:45
func sampleWorkbook(t *testing.T) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Info"))
	set(t, f, "Info", map[string]string{"A1": "Stand: 01.10.2025"})

	_, err := f.NewSheet("KW42")
	require.NoError(t, err)
	writeSlots(t, f, "KW42", 8)
	set(t, f, "KW42", map[string]string{
		"A1": "Zeit", "B1": "Montag", "B2": "13.10.2025",
		"B3": "Datenbanken | Prof. Maier | HS 2",
	})
	require.NoError(t, f.MergeCell("KW42", "B3", "B5"))

	_, err = f.NewSheet("41")
	require.NoError(t, err)
	writeSlots(t, f, "41", 8)
	math := "Mathematik | Dr. Huber | HS 1"
	set(t, f, "41", map[string]string{
		"A1": "Zeit", "B1": "Montag", "C1": "Dienstag",
		"B2": "06.10.2025", "C2": "07.10.2025",
		"B3": math, "B4": math, "B5": math, "B6": math,
		"C5": "Physik\nMag. Berger\nLabor 2",
		"B8": "Englisch", "B9": "Englisch",
	})

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParse_SampleWorkbook(t *testing.T) {
	loc := vienna(t)

	entries, err := Parse(sampleWorkbook(t), loc)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	at := func(day, hh, mm int) time.Time { return time.Date(2025, 10, day, hh, mm, 0, 0, loc) }

	require.Equal(t, Entry{Title: "Mathematik", Lecturer: "Dr. Huber", Room: "HS 1", Start: at(6, 8, 0), End: at(6, 9, 0), Sheet: "41"}, entries[0])
	require.Equal(t, Entry{Title: "Englisch", Start: at(6, 9, 15), End: at(6, 9, 45), Sheet: "41"}, entries[1])
	require.Equal(t, Entry{Title: "Physik", Lecturer: "Mag. Berger", Room: "Labor 2", Start: at(7, 8, 30), End: at(7, 8, 45), Sheet: "41"}, entries[2])
	require.Equal(t, Entry{Title: "Datenbanken", Lecturer: "Prof. Maier", Room: "HS 2", Start: at(13, 8, 0), End: at(13, 8, 45), Sheet: "KW42"}, entries[3])

	for _, e := range entries {
		require.True(t, e.End.After(e.Start), "entry %s is not a valid range", e.Title)
	}
	require.Equal(t, time.Monday, entries[0].Day())
}

func TestParse_ParallelDayColumns(t *testing.T) {
	loc := vienna(t)
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "41"))
	writeSlots(t, f, "41", 8)
	set(t, f, "41", map[string]string{
		"A1": "Zeit", "B1": "Montag", "C1": "Montag",
		"B2": "06.10.2025", "C2": "06.10.2025",
		"B3": "Übung | A | R1", "B4": "Übung | A | R1",
		"C3": "Übung | B | R2", "C4": "Übung | B | R2",
	})

	entries, err := ParseWorkbook(f, loc)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	start := time.Date(2025, 10, 6, 8, 0, 0, 0, loc)
	end := time.Date(2025, 10, 6, 8, 30, 0, 0, loc)
	require.Equal(t, Entry{Title: "Übung", Lecturer: "A", Room: "R1", Start: start, End: end, Sheet: "41"}, entries[0])
	require.Equal(t, Entry{Title: "Übung", Lecturer: "B", Room: "R2", Start: start, End: end, Sheet: "41"}, entries[1])
}

func TestParse_Errors(t *testing.T) {
	t.Run("not a workbook", func(t *testing.T) {
		_, err := Parse(strings.NewReader("definitely not xlsx"), time.UTC)
		require.ErrorIs(t, err, ErrParse)
	})

	t.Run("no week sheets", func(t *testing.T) {
		f := excelize.NewFile()
		defer f.Close()
		_, err := ParseWorkbook(f, time.UTC)
		require.ErrorIs(t, err, ErrNoWeekSheets)
		require.ErrorIs(t, err, ErrParse)
	})

	t.Run("week sheet without grid", func(t *testing.T) {
		f := excelize.NewFile()
		defer f.Close()
		_, err := f.NewSheet("40")
		require.NoError(t, err)
		set(t, f, "40", map[string]string{"A1": "Keine Lehrveranstaltungen"})
		_, err = ParseWorkbook(f, time.UTC)
		require.True(t, errors.Is(err, ErrNoTimetable))
	})
}

func TestParseClock(t *testing.T) {
	testCases := []struct {
		in   string
		want Clock
		ok   bool
	}{
		{"8:15", 8*60 + 15, true},
		{" 08:15 ", 8*60 + 15, true},
		{"17:45:00", 17*60 + 45, true},
		{"0.5", 12 * 60, true},
		{"0.0", 0, true},
		{"0.34375", 8*60 + 15, true},
		{"1.5", 0, false},
		{"24:00", 0, false},
		{"8:60", 0, false},
		{"Mathematik", 0, false},
		{"1", 0, false},
		{"", 0, false},
	}
	for _, tc := range testCases {
		got, ok := parseClock(tc.in)
		require.Equal(t, tc.ok, ok, "parseClock(%q)", tc.in)
		require.Equal(t, tc.want, got, "parseClock(%q)", tc.in)
	}
	require.Equal(t, "08:05", Clock(8*60+5).String())
}

func TestParseDate(t *testing.T) {
	d, ok := parseDate("Mo 6.10.2025")
	require.True(t, ok)
	require.Equal(t, time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC), d)

	d, ok = parseDate("2025-10-07")
	require.True(t, ok)
	require.Equal(t, 7, d.Day())

	_, ok = parseDate("31.02.2025")
	require.False(t, ok)
	_, ok = parseDate("Montag")
	require.False(t, ok)
}

func TestWeekSheets(t *testing.T) {
	got := weekSheets([]string{"Info", "KW42", "41", "7", "Sheet1", "Legende"})
	require.Equal(t, []string{"7", "41", "KW42"}, got)
}

func TestSplitCell(t *testing.T) {
	e := splitCell("Programmieren |  DI Gruber|Raum 3.14 ")
	require.Equal(t, "Programmieren", e.Title)
	require.Equal(t, "DI Gruber", e.Lecturer)
	require.Equal(t, "Raum 3.14", e.Room)

	e = splitCell("Selbststudium")
	require.Equal(t, "Selbststudium", e.Title)
	require.Empty(t, e.Lecturer)
}
