// Package calendar imports meetings from external calendars as time entries.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/timecalc"
)

// DefaultCategory is the category given to imported meetings.
const DefaultCategory = "Meeting"

// Meeting is a calendar event normalised across calendar services.
type Meeting struct {
	ID        string
	Subject   string
	Start     time.Time
	End       time.Time
	Organizer string
	Attendees []string
	Location  string
	Notes     string
}

// Duration is end minus start, never negative.
func (m Meeting) Duration() time.Duration {
	if d := m.End.Sub(m.Start); d > 0 {
		return d
	}
	return 0
}

// Source lists the meetings of one calendar service.
type Source interface {
	// Name is stored as the entry source and tag, e.g. "outlook".
	Name() string
	Meetings(ctx context.Context, from, to time.Time) ([]Meeting, error)
}

// Store is the part of the entry store sync writes to.
type Store interface {
	LoadDay(t time.Time) (model.DayFile, error)
	UpdateEntry(day time.Time, entry model.Entry) error
}

// Action is what sync did with one meeting.
type Action string

const (
	ActionImported Action = "imported"
	ActionUpdated  Action = "updated"
	ActionSkipped  Action = "skipped"
	ActionFailed   Action = "failed"
)

// Item reports the outcome for one meeting.
type Item struct {
	Meeting Meeting
	Action  Action
	Err     error
}

// Result holds counters for a sync run.
type Result struct {
	Imported int
	Skipped  int
	Updated  int
	Errors   int
	Items    []Item
}

func (r *Result) add(m Meeting, a Action, err error) {
	switch a {
	case ActionImported:
		r.Imported++
	case ActionUpdated:
		r.Updated++
	case ActionSkipped:
		r.Skipped++
	case ActionFailed:
		r.Errors++
	}
	r.Items = append(r.Items, Item{Meeting: m, Action: a, Err: err})
}

// Options configures a sync run.
type Options struct {
	From     time.Time
	To       time.Time
	DryRun   bool
	Category string
	Logger   *zap.Logger
}

// ToEntry converts m into a meeting entry attributed to source.
func ToEntry(m Meeting, source, category string) model.Entry {
	if category == "" {
		category = DefaultCategory
	}
	end := m.End
	dur := m.Duration().Milliseconds()
	return model.Entry{
		ID:          timecalc.GenerateID(m.Start),
		ExternalID:  m.ID,
		Kind:        model.KindMeeting,
		Category:    category,
		Title:       m.Subject,
		Description: description(m),
		Tags:        []string{source},
		Start:       m.Start,
		End:         &end,
		DurationMs:  &dur,
		Source:      source,
	}
}

func description(m Meeting) string {
	var parts []string
	if m.Notes != "" {
		parts = append(parts, m.Notes)
	}
	if m.Location != "" {
		parts = append(parts, m.Location)
	}
	if m.Organizer != "" {
		parts = append(parts, "Organizer: "+m.Organizer)
	}
	if len(m.Attendees) > 0 {
		parts = append(parts, "Attendees: "+strings.Join(m.Attendees, ", "))
	}
	return strings.Join(parts, "\n")
}

func findByExternalID(entries []model.Entry, externalID string) *model.Entry {
	for i := range entries {
		if entries[i].ExternalID == externalID {
			return &entries[i]
		}
	}
	return nil
}

func unchanged(found, entry model.Entry) bool {
	return found.Title == entry.Title &&
		found.Description == entry.Description &&
		found.Start.Equal(entry.Start) &&
		found.End != nil && entry.End != nil && found.End.Equal(*entry.End)
}

// Sync fetches meetings from src and writes them to store. Meetings are
// matched to existing entries by external ID: unchanged ones are skipped,
// changed ones updated in place keeping their entry ID. Entries without an
// external ID are never touched.
func Sync(ctx context.Context, src Source, store Store, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	meetings, err := src.Meetings(ctx, opts.From, opts.To)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s meetings: %w", src.Name(), err)
	}
	return Apply(meetings, src.Name(), store, opts, log), nil
}

// Apply writes already fetched meetings to store.
func Apply(meetings []Meeting, source string, store Store, opts Options, log *zap.Logger) Result {
	if log == nil {
		log = zap.NewNop()
	}
	var result Result
	for _, m := range meetings {
		if m.ID == "" || m.Start.IsZero() || m.End.IsZero() {
			result.add(m, ActionSkipped, nil)
			continue
		}
		entry := ToEntry(m, source, opts.Category)

		day, err := store.LoadDay(m.Start)
		if err != nil {
			log.Warn("load day for meeting", zap.String("subject", m.Subject), zap.Error(err))
			result.add(m, ActionFailed, err)
			continue
		}

		action := ActionImported
		if found := findByExternalID(day.Entries, m.ID); found != nil {
			if unchanged(*found, entry) {
				result.add(m, ActionSkipped, nil)
				continue
			}
			entry.ID = found.ID
			entry.Category = found.Category
			entry.DeliverableID = found.DeliverableID
			entry.DeliverableAllocations = found.DeliverableAllocations
			action = ActionUpdated
		}

		if !opts.DryRun {
			if err := store.UpdateEntry(m.Start, entry); err != nil {
				log.Warn("save meeting entry", zap.String("subject", m.Subject), zap.Error(err))
				result.add(m, ActionFailed, err)
				continue
			}
		}
		log.Debug("meeting synced", zap.String("source", source), zap.String("action", string(action)))
		result.add(m, action, nil)
	}
	return result
}
