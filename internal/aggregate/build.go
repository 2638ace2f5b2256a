package aggregate

import (
	"sort"
	"time"

	"github.com/Tiliavir/ttt-insights/internal/model"
)

// GoalProgress relates a goal to the hours logged on its deliverables.
type GoalProgress struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	DailyTarget  *float64 `json:"dailyTarget,omitempty"`
	TargetHours  float64  `json:"targetHours"`
	LoggedHours  float64  `json:"loggedHours"`
	Impact       string   `json:"impact,omitempty"`
	TargetDate   string   `json:"targetDate,omitempty"`
	Completed    bool     `json:"completed"`
	Deliverables []string `json:"deliverables,omitempty"`
}

// Input is everything Build needs for one report.
type Input struct {
	From         time.Time
	To           time.Time
	Entries      []model.Entry
	Categories   []string
	Deliverables []model.Deliverable
	Goals        []model.Goal
}

// Report is the aggregated view of a date range. It is recomputed for every
// report generation and never stored on its own.
type Report struct {
	From         time.Time            `json:"from"`
	To           time.Time            `json:"to"`
	Summary      Summary              `json:"summary"`
	Categories   CategoryBreakdown    `json:"categoryBreakdown"`
	Deliverables DeliverableBreakdown `json:"deliverableBreakdown"`
	Daily        DailyPatterns        `json:"dailyPatterns"`
	Productivity Productivity         `json:"productivityMetrics"`
	Meetings     Meetings             `json:"meetings"`
	Allocation   AllocationSummary    `json:"allocationSummary"`
	Goals        []GoalProgress       `json:"goals"`
	Entries      []model.Entry        `json:"-"`
}

// Build runs every aggregation over in.Entries. Allocation splitting only
// affects the deliverable breakdown; all other figures use the entries as
// stored.
func Build(in Input) Report {
	entries := make([]model.Entry, len(in.Entries))
	copy(entries, in.Entries)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Start.Before(entries[j].Start) })

	deliverables := CalculateDeliverableBreakdown(SplitAllocations(entries), in.Deliverables)
	r := Report{
		From:         in.From,
		To:           in.To,
		Summary:      CalculateSummary(entries),
		Categories:   CalculateCategoryBreakdown(entries, in.Categories),
		Deliverables: deliverables,
		Daily:        CalculateDailyPatterns(entries),
		Productivity: CalculateProductivityMetrics(entries),
		Meetings:     ExtractMeetings(entries),
		Allocation:   CalculateAllocationSummary(entries),
		Entries:      entries,
	}
	r.Goals = goalProgress(in.Goals, deliverables, rangeDays(in.From, in.To))

	for id, d := range r.Deliverables {
		for _, g := range in.Goals {
			if g.ID != "" && g.ID == d.GoalID {
				d.GoalName = g.Name
				r.Deliverables[id] = d
				break
			}
		}
	}
	return r
}

// rangeDays counts the calendar days in [from, to]; zero when unset.
func rangeDays(from, to time.Time) int {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return 0
	}
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours()/24) + 1
}

func goalProgress(goals []model.Goal, deliverables DeliverableBreakdown, days int) []GoalProgress {
	out := make([]GoalProgress, 0, len(goals))
	for _, g := range goals {
		p := GoalProgress{
			ID:          g.ID,
			Name:        g.Name,
			DailyTarget: g.DailyTarget,
			Impact:      g.Impact,
			TargetDate:  g.TargetDate,
			Completed:   g.Completed,
		}
		if g.DailyTarget != nil {
			p.TargetHours = Round2(*g.DailyTarget * float64(days))
		}
		for _, id := range deliverables.IDs() {
			d := deliverables[id]
			if g.ID == "" || d.GoalID != g.ID {
				continue
			}
			p.LoggedHours += d.TotalHours
			p.Deliverables = append(p.Deliverables, d.Name)
		}
		p.LoggedHours = Round2(p.LoggedHours)
		out = append(out, p)
	}
	return out
}
