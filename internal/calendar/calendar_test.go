package calendar_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tiliavir/ttt-insights/internal/calendar"
	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/storage"
)

type fakeSource struct {
	meetings []calendar.Meeting
	err      error
}

func (f *fakeSource) Name() string { return "outlook" }
func (f *fakeSource) Meetings(ctx context.Context, from, to time.Time) ([]calendar.Meeting, error) {
	return f.meetings, f.err
}

var day = time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)

func meeting(id, subject string, startHour, minutes int) calendar.Meeting {
	start := day.Add(time.Duration(startHour) * time.Hour)
	return calendar.Meeting{
		ID:      id,
		Subject: subject,
		Start:   start,
		End:     start.Add(time.Duration(minutes) * time.Minute),
	}
}

func syncOnce(t *testing.T, store *storage.Store, opts calendar.Options, ms ...calendar.Meeting) calendar.Result {
	t.Helper()
	r, err := calendar.Sync(context.Background(), &fakeSource{meetings: ms}, store, opts)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	return r
}

func TestToEntry(t *testing.T) {
	m := meeting("ext-1", "Sprint Planning", 9, 90)
	m.Location = "Zoom"
	m.Notes = "Plan sprint 12"
	m.Organizer = "Dana"
	m.Attendees = []string{"Ari", "Sam"}

	e := calendar.ToEntry(m, "outlook", "")
	if e.Kind != model.KindMeeting || e.Category != calendar.DefaultCategory {
		t.Errorf("kind/category = %s/%s", e.Kind, e.Category)
	}
	if e.ExternalID != "ext-1" || e.Title != "Sprint Planning" || e.Source != "outlook" {
		t.Errorf("entry = %+v", e)
	}
	if e.DurationMs == nil || *e.DurationMs != 90*60*1000 {
		t.Errorf("DurationMs = %v, want 5400000", e.DurationMs)
	}
	want := "Plan sprint 12\nZoom\nOrganizer: Dana\nAttendees: Ari, Sam"
	if e.Description != want {
		t.Errorf("Description = %q, want %q", e.Description, want)
	}
	if len(e.Tags) != 1 || e.Tags[0] != "outlook" {
		t.Errorf("Tags = %v", e.Tags)
	}
}

func TestSyncImportAndIdempotent(t *testing.T) {
	store := storage.New(t.TempDir(), nil)
	m := meeting("ext-1", "Architecture Board", 9, 90)

	r1 := syncOnce(t, store, calendar.Options{}, m)
	if r1.Imported != 1 || r1.Skipped != 0 {
		t.Errorf("first sync = %+v", r1)
	}
	r2 := syncOnce(t, store, calendar.Options{}, m)
	if r2.Imported != 0 || r2.Skipped != 1 {
		t.Errorf("second sync = %+v, want one skipped", r2)
	}
	df, err := store.LoadDay(day)
	if err != nil {
		t.Fatal(err)
	}
	if len(df.Entries) != 1 || df.Entries[0].ExternalID != "ext-1" {
		t.Fatalf("entries = %+v, want one imported meeting", df.Entries)
	}
}

func TestSyncUpdateKeepsIDAndCategory(t *testing.T) {
	store := storage.New(t.TempDir(), nil)
	m := meeting("ext-1", "Architecture Board", 9, 90)
	syncOnce(t, store, calendar.Options{}, m)

	df, _ := store.LoadDay(day)
	first := df.Entries[0]
	first.Category = "Architecture"
	if err := store.UpdateEntry(day, first); err != nil {
		t.Fatal(err)
	}

	m.Subject = "Architecture Board (updated)"
	r := syncOnce(t, store, calendar.Options{}, m)
	if r.Updated != 1 {
		t.Errorf("Updated = %d, want 1", r.Updated)
	}
	df, _ = store.LoadDay(day)
	if len(df.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(df.Entries))
	}
	got := df.Entries[0]
	if got.ID != first.ID || got.Title != "Architecture Board (updated)" || got.Category != "Architecture" {
		t.Errorf("updated entry = %+v", got)
	}
}

func TestSyncDryRun(t *testing.T) {
	store := storage.New(t.TempDir(), nil)
	r := syncOnce(t, store, calendar.Options{DryRun: true}, meeting("ext-dry", "Dry Run", 9, 60))
	if r.Imported != 1 {
		t.Errorf("dry-run Imported = %d, want 1", r.Imported)
	}
	df, _ := store.LoadDay(day)
	if len(df.Entries) != 0 {
		t.Errorf("dry-run wrote %d entries", len(df.Entries))
	}
}

func TestSyncPreservesManualEntries(t *testing.T) {
	store := storage.New(t.TempDir(), nil)
	start := day.Add(9 * time.Hour)
	end := start.Add(time.Hour)
	manual := model.Entry{ID: "manual-1", Kind: model.KindTask, Category: "Work", Tags: []string{}, Start: start, End: &end, Source: "manual"}
	if err := store.UpdateEntry(day, manual); err != nil {
		t.Fatal(err)
	}
	syncOnce(t, store, calendar.Options{Category: "Meetings"}, meeting("ext-1", "Meeting", 11, 60))

	df, _ := store.LoadDay(day)
	if len(df.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(df.Entries))
	}
	for _, e := range df.Entries {
		switch e.ID {
		case "manual-1":
			if e.Source != "manual" {
				t.Errorf("manual entry source changed to %q", e.Source)
			}
		default:
			if e.Category != "Meetings" {
				t.Errorf("imported category = %q, want Meetings", e.Category)
			}
		}
	}
}

func TestSyncSkipsIncompleteMeetings(t *testing.T) {
	store := storage.New(t.TempDir(), nil)
	noID := meeting("", "No ID", 9, 30)
	noEnd := meeting("x", "No end", 10, 30)
	noEnd.End = time.Time{}
	r := syncOnce(t, store, calendar.Options{}, noID, noEnd)
	if r.Skipped != 2 || r.Imported != 0 {
		t.Errorf("result = %+v, want 2 skipped", r)
	}
}

func TestSyncSourceError(t *testing.T) {
	store := storage.New(t.TempDir(), nil)
	_, err := calendar.Sync(context.Background(), &fakeSource{err: errors.New("offline")}, store, calendar.Options{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestMeetingDurationNeverNegative(t *testing.T) {
	m := meeting("x", "Backwards", 10, 0)
	m.End = m.Start.Add(-time.Hour)
	if d := m.Duration(); d != 0 {
		t.Errorf("Duration() = %v, want 0", d)
	}
}
