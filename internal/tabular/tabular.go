// Package tabular renders an aggregated report as compact pipe-delimited
// text for LLM prompts.
package tabular

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Tiliavir/ttt-insights/internal/aggregate"
)

// Field length limits for free-text columns.
const (
	MaxTitle       = 60
	MaxCategory    = 30
	MaxDescription = 80
)

// Defaults for Options fields left at zero.
const (
	DefaultEntryPreview   = 200
	DefaultMeetingPreview = 25
)

// Options controls how much detail Format emits.
type Options struct {
	// EntryPreview caps the TIME ENTRIES section.
	EntryPreview int
	// MeetingPreview caps the MEETINGS list.
	MeetingPreview int
	// OmitEntries drops the TIME ENTRIES section.
	OmitEntries bool
}

func (o Options) withDefaults() Options {
	if o.EntryPreview <= 0 {
		o.EntryPreview = DefaultEntryPreview
	}
	if o.MeetingPreview <= 0 {
		o.MeetingPreview = DefaultMeetingPreview
	}
	return o
}

// FormatDuration renders d for a table cell: "0min", completed minutes below
// two hours, otherwise hours with one decimal.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0min"
	}
	if d < 120*time.Minute {
		return fmt.Sprintf("%dmin", int(d.Truncate(time.Minute).Minutes()))
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// FormatHours is FormatDuration for a value in hours.
func FormatHours(h float64) string {
	return FormatDuration(time.Duration(math.Round(h * float64(time.Hour))))
}

// Percent returns part/total as a percentage with one decimal, "0.0" when
// total is not positive.
func Percent(part, total float64) string {
	if total <= 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", part/total*100)
}

// Clean replaces newlines and pipes with spaces and truncates s to max runes.
func Clean(s string, max int) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', '|':
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if max > 0 && len(runes) > max {
		if max <= 3 {
			return string(runes[:max])
		}
		return string(runes[:max-3]) + "..."
	}
	return s
}

type writer struct {
	b strings.Builder
}

func (w *writer) section(name string) {
	if w.b.Len() > 0 {
		w.b.WriteByte('\n')
	}
	fmt.Fprintf(&w.b, "=== %s ===\n", name)
}

func (w *writer) row(cells ...string) {
	w.b.WriteString(strings.Join(cells, "|"))
	w.b.WriteByte('\n')
}

func (w *writer) kv(key, value string) {
	fmt.Fprintf(&w.b, "%s: %s\n", key, value)
}

// Format renders r. Sections without data are left out.
func Format(r aggregate.Report, opts Options) string {
	opts = opts.withDefaults()
	w := &writer{}

	writeSummary(w, r)
	writeCategories(w, r)
	writeDeliverables(w, r)
	writeAllocation(w, r)
	writeDaily(w, r)
	writeProductivity(w, r)
	writeMeetings(w, r, opts.MeetingPreview)
	writeGoals(w, r)
	if !opts.OmitEntries {
		writeEntries(w, r, opts.EntryPreview)
	}
	return w.b.String()
}

func writeSummary(w *writer, r aggregate.Report) {
	if r.Summary.TotalEntries == 0 && r.From.IsZero() {
		return
	}
	s := r.Summary
	w.section("SUMMARY")
	if !r.From.IsZero() && !r.To.IsZero() {
		w.kv("Period", r.From.Format("2006-01-02")+" to "+r.To.Format("2006-01-02"))
	}
	w.kv("Total", FormatHours(s.TotalHours))
	w.kv("Entries", fmt.Sprint(s.TotalEntries))
	w.kv("Unique tasks", fmt.Sprint(s.UniqueTasks))
	w.kv("Categories", fmt.Sprint(s.UniqueCategories))
	w.kv("Avg session", FormatDuration(time.Duration(s.AverageSessionLength)*time.Minute))
}

func writeCategories(w *writer, r aggregate.Report) {
	if len(r.Categories) == 0 {
		return
	}
	var total float64
	for _, c := range r.Categories {
		total += c.TotalHours
	}
	w.section("CATEGORIES")
	w.row("Category", "Time", "Share%", "Entries", "Tasks")
	for _, name := range r.Categories.Names() {
		c := r.Categories[name]
		w.row(Clean(name, MaxCategory), FormatHours(c.TotalHours), Percent(c.TotalHours, total),
			fmt.Sprint(c.Entries), fmt.Sprint(c.UniqueTasks))
	}
}

func writeDeliverables(w *writer, r aggregate.Report) {
	if len(r.Deliverables) == 0 {
		return
	}
	w.section("DELIVERABLES")
	w.row("Deliverable", "Goal", "Time", "Direct", "Allocated", "Entries", "Status")
	for _, id := range r.Deliverables.IDs() {
		d := r.Deliverables[id]
		status := "open"
		if d.Completed {
			status = "done"
		}
		w.row(Clean(d.Name, MaxTitle), Clean(d.GoalName, MaxTitle), FormatHours(d.TotalHours),
			FormatHours(d.DirectHours), FormatHours(d.AllocatedHours), fmt.Sprint(d.Entries), status)
	}
}

func writeAllocation(w *writer, r aggregate.Report) {
	a := r.Allocation
	if a.SourceEntries == 0 {
		return
	}
	w.section("ALLOCATIONS")
	w.kv("Split entries", fmt.Sprint(a.SourceEntries))
	w.kv("Derived entries", fmt.Sprint(a.DerivedEntries))
	w.kv("Partially allocated", fmt.Sprint(a.PartialEntries))
	w.kv("Allocated", FormatHours(a.AllocatedHours))
	w.kv("Unallocated", FormatHours(a.UnallocatedHours))
}

func writeDaily(w *writer, r aggregate.Report) {
	if len(r.Daily) == 0 {
		return
	}
	w.section("DAILY")
	w.row("Date", "Day", "Time", "Entries", "Categories")
	for _, date := range r.Daily.Dates() {
		d := r.Daily[date]
		day := ""
		if t, err := time.Parse("2006-01-02", date); err == nil {
			day = t.Format("Mon")
		}
		w.row(date, day, FormatHours(d.TotalHours), fmt.Sprint(d.Entries), fmt.Sprint(d.UniqueCategories))
	}
}

func writeProductivity(w *writer, r aggregate.Report) {
	p := r.Productivity
	if r.Summary.TotalEntries == 0 {
		return
	}
	w.section("PRODUCTIVITY")
	w.kv("Focus (>25min sessions)", FormatHours(p.FocusTime))
	w.kv("Short sessions", FormatHours(p.BreakTime))
	w.kv("Longest session", FormatDuration(time.Duration(p.LongestSession)*time.Minute))
	w.kv("Sessions/day", fmt.Sprintf("%.1f", p.AverageSessionsPerDay))
	var active []string
	for h, v := range p.HourlyDistribution {
		if v > 0 {
			active = append(active, fmt.Sprintf("%02d=%s", h, FormatHours(v)))
		}
	}
	if len(active) > 0 {
		w.kv("By start hour", strings.Join(active, " "))
	}
}

func writeMeetings(w *writer, r aggregate.Report, limit int) {
	m := r.Meetings
	if m.Count == 0 {
		return
	}
	w.section("MEETINGS")
	w.kv("Count", fmt.Sprint(m.Count))
	w.kv("Total", FormatHours(m.TotalHours))
	w.row("Date", "Start", "Time", "Title")
	for i, mt := range m.List {
		if i == limit {
			fmt.Fprintf(&w.b, "... %d more\n", len(m.List)-limit)
			break
		}
		date, start := "", ""
		if !mt.Start.IsZero() {
			date = mt.Start.Format("2006-01-02")
			start = mt.Start.Format("15:04")
		}
		w.row(date, start, FormatDuration(time.Duration(mt.Minutes)*time.Minute), Clean(mt.Title, MaxTitle))
	}
}

func writeGoals(w *writer, r aggregate.Report) {
	if len(r.Goals) == 0 {
		return
	}
	w.section("GOALS")
	w.row("Goal", "Daily target", "Target", "Logged", "Impact", "Due", "Status")
	for _, g := range r.Goals {
		daily := ""
		if g.DailyTarget != nil {
			daily = FormatHours(*g.DailyTarget)
		}
		status := "open"
		if g.Completed {
			status = "done"
		}
		w.row(Clean(g.Name, MaxTitle), daily, FormatHours(g.TargetHours), FormatHours(g.LoggedHours),
			Clean(g.Impact, MaxDescription), g.TargetDate, status)
	}
}

func writeEntries(w *writer, r aggregate.Report, limit int) {
	if len(r.Entries) == 0 {
		return
	}
	w.section("TIME ENTRIES")
	w.row("Date", "Start", "Time", "Kind", "Category", "Title", "Description")
	for i, e := range r.Entries {
		if i == limit {
			fmt.Fprintf(&w.b, "... %d more\n", len(r.Entries)-limit)
			break
		}
		date, start := "", ""
		if !e.Start.IsZero() {
			date = e.Start.Format("2006-01-02")
			start = e.Start.Format("15:04")
		}
		w.row(date, start, FormatDuration(e.Duration()), string(e.Kind),
			Clean(e.Category, MaxCategory), Clean(e.Title, MaxTitle), Clean(e.Description, MaxDescription))
	}
}
