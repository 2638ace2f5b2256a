// Package charts maps an aggregated report onto Chart.js configuration
// objects and binds them to the chart containers emitted by the markdown
// renderer.
package charts

import (
	"fmt"
	"math"
	"strings"

	"github.com/Tiliavir/ttt-insights/internal/aggregate"
	"github.com/Tiliavir/ttt-insights/internal/markdown"
)

// Kind identifies one of the report charts.
type Kind string

const (
	KindDaily    Kind = "daily"
	KindCategory Kind = "category"
	KindHourly   Kind = "hourly"
	KindFocus    Kind = "focus"
)

// palette is cycled through for multi-colour charts.
var palette = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f",
	"#edc948", "#b07aa1", "#ff9da7", "#9c755f", "#bab0ac",
}

// Dataset is a Chart.js dataset.
type Dataset struct {
	Label           string    `json:"label,omitempty"`
	Data            []float64 `json:"data"`
	BackgroundColor any       `json:"backgroundColor,omitempty"`
	BorderColor     string    `json:"borderColor,omitempty"`
	Fill            bool      `json:"fill,omitempty"`
	Tension         float64   `json:"tension,omitempty"`
}

// Data is the Chart.js data block.
type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Config is one chart. Type, Data and Options are passed to Chart.js as is.
type Config struct {
	Kind    Kind           `json:"kind"`
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Data    Data           `json:"data"`
	Options map[string]any `json:"options,omitempty"`
}

// Sanitize maps non-finite values to zero.
func Sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func sanitizeAll(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = Sanitize(v)
	}
	return out
}

func colors(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = palette[i%len(palette)]
	}
	return out
}

func options(title string, extra map[string]any) map[string]any {
	o := map[string]any{
		"responsive": true,
		"plugins": map[string]any{
			"title": map[string]any{"display": true, "text": title},
		},
	}
	for k, v := range extra {
		o[k] = v
	}
	return o
}

// Build returns every chart that has data, in display order.
func Build(r aggregate.Report) []Config {
	var out []Config
	for _, c := range []*Config{
		DailyHours(r.Daily),
		CategoryBreakdown(r.Categories),
		HourlyDistribution(r.Productivity),
		FocusBreak(r.Productivity),
	} {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// DailyHours is a bar chart of hours per day, nil without days.
func DailyHours(daily aggregate.DailyPatterns) *Config {
	if len(daily) == 0 {
		return nil
	}
	dates := daily.Dates()
	values := make([]float64, len(dates))
	for i, d := range dates {
		values[i] = daily[d].TotalHours
	}
	const title = "Hours per day"
	return &Config{
		Kind:  KindDaily,
		Type:  "bar",
		Title: title,
		Data: Data{
			Labels: dates,
			Datasets: []Dataset{{
				Label:           "Hours",
				Data:            sanitizeAll(values),
				BackgroundColor: palette[0],
			}},
		},
		Options: options(title, map[string]any{
			"scales": map[string]any{"y": map[string]any{"beginAtZero": true}},
		}),
	}
}

// CategoryBreakdown is a pie chart of hours per category, nil without
// categories.
func CategoryBreakdown(cats aggregate.CategoryBreakdown) *Config {
	if len(cats) == 0 {
		return nil
	}
	names := cats.Names()
	values := make([]float64, len(names))
	for i, n := range names {
		values[i] = cats[n].TotalHours
	}
	const title = "Time by category"
	return &Config{
		Kind:  KindCategory,
		Type:  "pie",
		Title: title,
		Data: Data{
			Labels: names,
			Datasets: []Dataset{{
				Data:            sanitizeAll(values),
				BackgroundColor: colors(len(names)),
			}},
		},
		Options: options(title, nil),
	}
}

// HourlyDistribution is a line chart over the 24 start hours, nil when no
// hour has any time.
func HourlyDistribution(p aggregate.Productivity) *Config {
	values := sanitizeAll(p.HourlyDistribution)
	nonZero := false
	for _, v := range values {
		if v > 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		return nil
	}
	labels := make([]string, len(values))
	for h := range labels {
		labels[h] = fmt.Sprintf("%02d:00", h)
	}
	const title = "Hours by start time"
	return &Config{
		Kind:  KindHourly,
		Type:  "line",
		Title: title,
		Data: Data{
			Labels: labels,
			Datasets: []Dataset{{
				Label:       "Hours",
				Data:        values,
				BorderColor: palette[3],
				Fill:        true,
				Tension:     0.3,
			}},
		},
		Options: options(title, nil),
	}
}

// FocusBreak is a doughnut of focus against short-session time, nil when
// both are zero.
func FocusBreak(p aggregate.Productivity) *Config {
	focus, rest := Sanitize(p.FocusTime), Sanitize(p.BreakTime)
	if focus <= 0 && rest <= 0 {
		return nil
	}
	const title = "Focus vs. short sessions"
	return &Config{
		Kind:  KindFocus,
		Type:  "doughnut",
		Title: title,
		Data: Data{
			Labels: []string{"Focus", "Short sessions"},
			Datasets: []Dataset{{
				Data:            []float64{focus, rest},
				BackgroundColor: []string{palette[4], palette[1]},
			}},
		},
		Options: options(title, nil),
	}
}

// Binding attaches a chart to the element a placeholder produced.
type Binding struct {
	ElementID string `json:"elementId"`
	Config    Config `json:"config"`
}

var aliases = map[string]Kind{
	"daily": KindDaily, "daily-hours": KindDaily, "days": KindDaily, "bar": KindDaily,
	"category": KindCategory, "categories": KindCategory, "pie": KindCategory,
	"hourly": KindHourly, "hours": KindHourly, "line": KindHourly,
	"focus": KindFocus, "focus-break": KindFocus, "productivity": KindFocus, "doughnut": KindFocus,
}

// KindFor resolves a placeholder type to a chart kind.
func KindFor(placeholder string) (Kind, bool) {
	k, ok := aliases[strings.ToLower(strings.TrimSpace(placeholder))]
	return k, ok
}

// Bind assigns configs to chart slots by kind, each config at most once.
// Configs without a slot are returned as unplaced, in order; slots whose
// kind is unknown or has no data stay empty.
func Bind(slots []markdown.ChartSlot, configs []Config) (bound []Binding, unplaced []Config) {
	used := make([]bool, len(configs))
	for _, s := range slots {
		kind, ok := KindFor(s.Type)
		if !ok {
			continue
		}
		for i, c := range configs {
			if !used[i] && c.Kind == kind {
				used[i] = true
				bound = append(bound, Binding{ElementID: s.ID, Config: c})
				break
			}
		}
	}
	for i, c := range configs {
		if !used[i] {
			unplaced = append(unplaced, c)
		}
	}
	return bound, unplaced
}
