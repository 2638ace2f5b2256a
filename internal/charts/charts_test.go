package charts_test

import (
	"math"
	"testing"

	"github.com/Tiliavir/ttt-insights/internal/aggregate"
	"github.com/Tiliavir/ttt-insights/internal/charts"
	"github.com/Tiliavir/ttt-insights/internal/markdown"
)

func TestBuildOmitsEmptyCharts(t *testing.T) {
	r := aggregate.Report{Productivity: aggregate.CalculateProductivityMetrics(nil)}
	if got := charts.Build(r); len(got) != 0 {
		t.Errorf("Build(empty) = %+v, want none", got)
	}
}

func TestBuildAllCharts(t *testing.T) {
	hourly := make([]float64, 24)
	hourly[9] = 2
	r := aggregate.Report{
		Daily:      aggregate.DailyPatterns{"2026-02-24": {TotalHours: 1}, "2026-02-23": {TotalHours: math.NaN()}},
		Categories: aggregate.CategoryBreakdown{"Dev": {TotalHours: 3}, "Ops": {TotalHours: math.Inf(1)}},
		Productivity: aggregate.Productivity{
			HourlyDistribution: hourly,
			FocusTime:          1.5,
		},
	}
	got := charts.Build(r)
	if len(got) != 4 {
		t.Fatalf("Build = %d charts, want 4", len(got))
	}
	wantTypes := []string{"bar", "pie", "line", "doughnut"}
	for i, c := range got {
		if c.Type != wantTypes[i] {
			t.Errorf("chart %d type = %s, want %s", i, c.Type, wantTypes[i])
		}
		for _, ds := range c.Data.Datasets {
			for _, v := range ds.Data {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Errorf("chart %s has non-finite value", c.Kind)
				}
			}
		}
	}
	daily := got[0]
	if daily.Data.Labels[0] != "2026-02-23" || daily.Data.Datasets[0].Data[0] != 0 {
		t.Errorf("daily = %+v", daily.Data)
	}
	if focus := got[3].Data.Datasets[0].Data; focus[0] != 1.5 || focus[1] != 0 {
		t.Errorf("focus data = %v", focus)
	}
}

func TestHourlyAllZeroOmitted(t *testing.T) {
	if c := charts.HourlyDistribution(aggregate.Productivity{HourlyDistribution: make([]float64, 24)}); c != nil {
		t.Errorf("HourlyDistribution(zeros) = %+v, want nil", c)
	}
}

func TestFocusBreakOnlyBreak(t *testing.T) {
	c := charts.FocusBreak(aggregate.Productivity{BreakTime: 0.5})
	if c == nil || c.Kind != charts.KindFocus {
		t.Fatalf("FocusBreak = %+v", c)
	}
}

func TestSanitize(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := charts.Sanitize(v); got != 0 {
			t.Errorf("Sanitize(%v) = %v", v, got)
		}
	}
	if got := charts.Sanitize(2.5); got != 2.5 {
		t.Errorf("Sanitize(2.5) = %v", got)
	}
}

func TestBind(t *testing.T) {
	configs := []charts.Config{
		{Kind: charts.KindDaily, Type: "bar"},
		{Kind: charts.KindCategory, Type: "pie"},
		{Kind: charts.KindFocus, Type: "doughnut"},
	}
	slots := []markdown.ChartSlot{
		{ID: "c1", Type: "pie"},
		{ID: "c2", Type: "daily"},
		{ID: "c3", Type: "daily"},
		{ID: "c4", Type: "radar"},
	}
	bound, unplaced := charts.Bind(slots, configs)
	if len(bound) != 2 {
		t.Fatalf("bound = %+v", bound)
	}
	if bound[0].ElementID != "c1" || bound[0].Config.Kind != charts.KindCategory {
		t.Errorf("bound[0] = %+v", bound[0])
	}
	if bound[1].ElementID != "c2" || bound[1].Config.Kind != charts.KindDaily {
		t.Errorf("bound[1] = %+v", bound[1])
	}
	if len(unplaced) != 1 || unplaced[0].Kind != charts.KindFocus {
		t.Errorf("unplaced = %+v", unplaced)
	}
}
