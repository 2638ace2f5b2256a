// Package aggregate reduces a set of time entries, already filtered to a date
// range, into the statistics used for prompts and charts. Every function is
// pure and tolerates nil input by returning an empty, zero-valued result.
package aggregate

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Tiliavir/ttt-insights/internal/model"
)

// UncategorizedLabel groups entries without a category.
const UncategorizedLabel = "Uncategorized"

// FocusThreshold is the session length a session must exceed to count as
// focus time.
const FocusThreshold = 25 * time.Minute

// Summary holds the report totals.
type Summary struct {
	TotalHours       float64 `json:"totalHours"`
	TotalEntries     int     `json:"totalEntries"`
	UniqueTasks      int     `json:"uniqueTasks"`
	UniqueCategories int     `json:"uniqueCategories"`
	// AverageSessionLength is in whole minutes.
	AverageSessionLength int `json:"averageSessionLength"`
}

// CategoryStats is one category bucket.
type CategoryStats struct {
	TotalHours  float64 `json:"totalHours"`
	Entries     int     `json:"entries"`
	UniqueTasks int     `json:"uniqueTasks"`
}

// DayStats is one calendar day bucket.
type DayStats struct {
	TotalHours       float64 `json:"totalHours"`
	Entries          int     `json:"entries"`
	UniqueCategories int     `json:"uniqueCategories"`
}

// Productivity holds session-shape metrics.
type Productivity struct {
	// HourlyDistribution holds hours logged per start hour (0-23).
	HourlyDistribution []float64 `json:"hourlyDistribution"`
	FocusTime          float64   `json:"focusTime"` // hours
	BreakTime          float64   `json:"breakTime"` // hours
	// LongestSession is in whole minutes.
	LongestSession        int     `json:"longestSession"`
	AverageSessionsPerDay float64 `json:"averageSessionsPerDay"`
}

// Meeting is one meeting row.
type Meeting struct {
	Title    string    `json:"title"`
	Category string    `json:"category"`
	Start    time.Time `json:"start"`
	Minutes  int       `json:"minutes"`
}

// Meetings summarises meeting-like entries.
type Meetings struct {
	Count      int       `json:"count"`
	TotalHours float64   `json:"totalHours"`
	List       []Meeting `json:"list"`
}

// Hours converts d to hours rounded to two decimals.
func Hours(d time.Duration) float64 {
	return Round2(d.Hours())
}

// Round2 rounds f to two decimals.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func categoryOf(e model.Entry) string {
	if c := strings.TrimSpace(e.Category); c != "" {
		return c
	}
	return UncategorizedLabel
}

// CalculateSummary computes the report totals.
func CalculateSummary(entries []model.Entry) Summary {
	var total time.Duration
	tasks := map[string]struct{}{}
	cats := map[string]struct{}{}
	for _, e := range entries {
		total += e.Duration()
		tasks[e.Label()] = struct{}{}
		cats[categoryOf(e)] = struct{}{}
	}
	s := Summary{
		TotalHours:       Hours(total),
		TotalEntries:     len(entries),
		UniqueTasks:      len(tasks),
		UniqueCategories: len(cats),
	}
	if len(entries) > 0 {
		s.AverageSessionLength = int(math.Round(total.Minutes() / float64(len(entries))))
	}
	return s
}

// CategoryBreakdown maps category names to their stats.
type CategoryBreakdown map[string]CategoryStats

// Names returns the category names ordered by hours descending, then name.
func (b CategoryBreakdown) Names() []string {
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		hi, hj := b[names[i]].TotalHours, b[names[j]].TotalHours
		if hi != hj {
			return hi > hj
		}
		return names[i] < names[j]
	})
	return names
}

// CalculateCategoryBreakdown groups entries by category. Category names that
// match a known category case-insensitively take the known spelling.
func CalculateCategoryBreakdown(entries []model.Entry, knownCategories []string) CategoryBreakdown {
	canonical := make(map[string]string, len(knownCategories))
	for _, c := range knownCategories {
		canonical[strings.ToLower(strings.TrimSpace(c))] = c
	}

	durations := map[string]time.Duration{}
	counts := map[string]int{}
	tasks := map[string]map[string]struct{}{}
	for _, e := range entries {
		name := categoryOf(e)
		if known, ok := canonical[strings.ToLower(name)]; ok {
			name = known
		}
		durations[name] += e.Duration()
		counts[name]++
		if tasks[name] == nil {
			tasks[name] = map[string]struct{}{}
		}
		tasks[name][e.Label()] = struct{}{}
	}

	out := make(CategoryBreakdown, len(counts))
	for name, n := range counts {
		out[name] = CategoryStats{
			TotalHours:  Hours(durations[name]),
			Entries:     n,
			UniqueTasks: len(tasks[name]),
		}
	}
	return out
}

// DailyPatterns maps YYYY-MM-DD local dates to their stats.
type DailyPatterns map[string]DayStats

// Dates returns the keys in chronological order.
func (p DailyPatterns) Dates() []string {
	dates := make([]string, 0, len(p))
	for d := range p {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// CalculateDailyPatterns groups entries by the local calendar date of their
// start time. Entries without a start time are not attributed to any day.
func CalculateDailyPatterns(entries []model.Entry) DailyPatterns {
	durations := map[string]time.Duration{}
	counts := map[string]int{}
	cats := map[string]map[string]struct{}{}
	for _, e := range entries {
		if e.Start.IsZero() {
			continue
		}
		day := e.Start.In(time.Local).Format("2006-01-02")
		durations[day] += e.Duration()
		counts[day]++
		if cats[day] == nil {
			cats[day] = map[string]struct{}{}
		}
		cats[day][categoryOf(e)] = struct{}{}
	}
	out := make(DailyPatterns, len(counts))
	for day, n := range counts {
		out[day] = DayStats{
			TotalHours:       Hours(durations[day]),
			Entries:          n,
			UniqueCategories: len(cats[day]),
		}
	}
	return out
}

// CalculateProductivityMetrics classifies sessions into focus and break time
// and distributes hours over the hour of day each session started in.
func CalculateProductivityMetrics(entries []model.Entry) Productivity {
	hourly := make([]time.Duration, 24)
	var focus, rest, longest time.Duration
	days := map[string]struct{}{}
	for _, e := range entries {
		d := e.Duration()
		if d > FocusThreshold {
			focus += d
		} else {
			rest += d
		}
		if d > longest {
			longest = d
		}
		if !e.Start.IsZero() {
			local := e.Start.In(time.Local)
			hourly[local.Hour()] += d
			days[local.Format("2006-01-02")] = struct{}{}
		}
	}

	p := Productivity{
		HourlyDistribution: make([]float64, 24),
		FocusTime:          Hours(focus),
		BreakTime:          Hours(rest),
		LongestSession:     int(math.Round(longest.Minutes())),
	}
	for h, d := range hourly {
		p.HourlyDistribution[h] = Hours(d)
	}
	p.AverageSessionsPerDay = Round2(float64(len(entries)) / float64(max(1, len(days))))
	return p
}

// meetingKeywords mark an entry as a meeting when found in its title or
// description.
var meetingKeywords = []string{"meeting", "call", "standup", "sync", "review", "1:1", "interview"}

// IsMeeting reports whether an entry looks like a meeting.
func IsMeeting(e model.Entry) bool {
	if strings.EqualFold(strings.TrimSpace(e.Category), "meeting") {
		return true
	}
	text := strings.ToLower(e.Title + "\n" + e.Description)
	for _, kw := range meetingKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// ExtractMeetings collects meeting-like entries. The list is not capped.
func ExtractMeetings(entries []model.Entry) Meetings {
	m := Meetings{List: []Meeting{}}
	var total time.Duration
	for _, e := range entries {
		if !IsMeeting(e) {
			continue
		}
		d := e.Duration()
		total += d
		m.Count++
		m.List = append(m.List, Meeting{
			Title:    e.Label(),
			Category: categoryOf(e),
			Start:    e.Start,
			Minutes:  int(math.Round(d.Minutes())),
		})
	}
	m.TotalHours = Hours(total)
	sort.SliceStable(m.List, func(i, j int) bool { return m.List[i].Start.Before(m.List[j].Start) })
	return m
}
