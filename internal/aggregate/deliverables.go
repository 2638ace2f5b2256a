package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/Tiliavir/ttt-insights/internal/model"
)

// EntryDetail is one entry row inside a deliverable bucket.
type EntryDetail struct {
	Date      string  `json:"date"`
	Title     string  `json:"title"`
	Category  string  `json:"category"`
	Hours     float64 `json:"hours"`
	Allocated bool    `json:"allocated"`
	Percent   float64 `json:"percent,omitempty"`
}

// DeliverableStats is one deliverable bucket.
type DeliverableStats struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	GoalID         string             `json:"goalId,omitempty"`
	GoalName       string             `json:"goalName,omitempty"`
	Completed      bool               `json:"completed"`
	TotalHours     float64            `json:"totalHours"`
	AllocatedHours float64            `json:"allocatedHours"`
	DirectHours    float64            `json:"directHours"`
	Entries        int                `json:"entries"`
	Categories     map[string]float64 `json:"categories"`
	Details        []EntryDetail      `json:"details"`
}

// DeliverableBreakdown maps deliverable IDs to their stats.
type DeliverableBreakdown map[string]DeliverableStats

// IDs returns deliverable IDs ordered by hours descending, then name.
func (b DeliverableBreakdown) IDs() []string {
	ids := make([]string, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, c := b[ids[i]], b[ids[j]]
		if a.TotalHours != c.TotalHours {
			return a.TotalHours > c.TotalHours
		}
		return a.Name < c.Name
	})
	return ids
}

// SplitAllocations replaces every entry that carries deliverable
// allocations with one derived entry per allocation. A derived entry's
// duration is the original duration times pct/100 and it is flagged
// IsAllocated. Entries without allocations pass through. The input slice and
// its entries are not modified.
func SplitAllocations(entries []model.Entry) []model.Entry {
	out := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if len(e.DeliverableAllocations) == 0 {
			out = append(out, e)
			continue
		}
		base := e.Duration()
		ids := make([]string, 0, len(e.DeliverableAllocations))
		for id := range e.DeliverableAllocations {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			pct := clampPct(e.DeliverableAllocations[id])
			ms := int64(math.Round(float64(base.Milliseconds()) * pct / 100))
			derived := e
			derived.ID = e.ID + "#" + id
			derived.DeliverableID = id
			derived.DeliverableAllocations = nil
			derived.DurationMs = &ms
			derived.IsAllocated = true
			derived.AllocationPct = pct
			out = append(out, derived)
		}
	}
	return out
}

func clampPct(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

type deliverableAcc struct {
	stats     DeliverableStats
	total     time.Duration
	allocated time.Duration
	direct    time.Duration
	cats      map[string]time.Duration
}

// CalculateDeliverableBreakdown seeds one bucket per known deliverable,
// accumulates entries by deliverable ID and finally drops every bucket that
// matched no entries. Entries referencing an unknown deliverable get a bucket
// named after the ID.
func CalculateDeliverableBreakdown(entries []model.Entry, deliverables []model.Deliverable) DeliverableBreakdown {
	accs := make(map[string]*deliverableAcc, len(deliverables))
	for _, d := range deliverables {
		accs[d.ID] = &deliverableAcc{
			stats: DeliverableStats{ID: d.ID, Name: d.Name, GoalID: d.GoalID, Completed: d.Completed},
			cats:  map[string]time.Duration{},
		}
	}

	for _, e := range entries {
		if e.DeliverableID == "" {
			continue
		}
		acc, ok := accs[e.DeliverableID]
		if !ok {
			acc = &deliverableAcc{
				stats: DeliverableStats{ID: e.DeliverableID, Name: e.DeliverableID},
				cats:  map[string]time.Duration{},
			}
			accs[e.DeliverableID] = acc
		}
		d := e.Duration()
		acc.total += d
		if e.IsAllocated {
			acc.allocated += d
		} else {
			acc.direct += d
		}
		cat := categoryOf(e)
		acc.cats[cat] += d
		acc.stats.Entries++
		date := ""
		if !e.Start.IsZero() {
			date = e.Start.In(time.Local).Format("2006-01-02")
		}
		acc.stats.Details = append(acc.stats.Details, EntryDetail{
			Date:      date,
			Title:     e.Label(),
			Category:  cat,
			Hours:     Hours(d),
			Allocated: e.IsAllocated,
			Percent:   e.AllocationPct,
		})
	}

	out := DeliverableBreakdown{}
	for id, acc := range accs {
		if acc.stats.Entries == 0 {
			continue
		}
		s := acc.stats
		s.TotalHours = Hours(acc.total)
		s.AllocatedHours = Hours(acc.allocated)
		s.DirectHours = Hours(acc.direct)
		s.Categories = make(map[string]float64, len(acc.cats))
		for c, d := range acc.cats {
			s.Categories[c] = Hours(d)
		}
		out[id] = s
	}
	return out
}

// AllocationSummary describes how allocated entries were split.
type AllocationSummary struct {
	SourceEntries  int     `json:"sourceEntries"`
	DerivedEntries int     `json:"derivedEntries"`
	PartialEntries int     `json:"partialEntries"`
	AllocatedHours float64 `json:"allocatedHours"`
	// UnallocatedHours is the remainder of partially allocated entries.
	UnallocatedHours float64 `json:"unallocatedHours"`
}

// CalculateAllocationSummary summarises the entries carrying allocations.
func CalculateAllocationSummary(entries []model.Entry) AllocationSummary {
	var s AllocationSummary
	var allocated, remainder time.Duration
	for _, e := range entries {
		if len(e.DeliverableAllocations) == 0 {
			continue
		}
		s.SourceEntries++
		s.DerivedEntries += len(e.DeliverableAllocations)
		var pct float64
		for _, p := range e.DeliverableAllocations {
			pct += clampPct(p)
		}
		share := math.Min(pct, 100) / 100
		d := e.Duration()
		part := time.Duration(float64(d) * share)
		allocated += part
		if pct < 100 {
			s.PartialEntries++
			remainder += d - part
		}
	}
	s.AllocatedHours = Hours(allocated)
	s.UnallocatedHours = Hours(remainder)
	return s
}
