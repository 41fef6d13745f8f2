package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"cis-timetable/timetable"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageOptions configure the rendered page.
type PageOptions struct {
	Title    string
	ICSFile  string
	Schedule string
	Location *time.Location
}

type pageData struct {
	Title     string
	ICSFile   string
	Schedule  string
	FetchedAt time.Time
	Days      []timetable.Day
}

// Render produces the timetable page for snap. The same snapshot and
// options always give byte-identical output.
func Render(snap *timetable.Snapshot, opts PageOptions) ([]byte, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	funcs := template.FuncMap{
		"weekday": func(t time.Time) string { return timetable.GermanWeekday(t.In(loc).Weekday()) },
		"date":    func(t time.Time) string { return t.In(loc).Format("02.01.2006") },
		"clock":   func(t time.Time) string { return t.In(loc).Format("15:04") },
		"stamp":   func(t time.Time) string { return t.In(loc).Format("02.01.2006 15:04") },
	}

	tmpl, err := template.New("index.html").Funcs(funcs).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	data := pageData{
		Title:     opts.Title,
		ICSFile:   opts.ICSFile,
		Schedule:  opts.Schedule,
		FetchedAt: snap.FetchedAt,
		Days:      snap.Days(),
	}
	if data.Title == "" {
		data.Title = "Stundenplan"
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute page template: %w", err)
	}
	return buf.Bytes(), nil
}
