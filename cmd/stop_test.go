package cmd

import (
	"testing"
	"time"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{59*time.Second + 900*time.Millisecond, "59s"},
		{time.Minute, "1m 0s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour, "1h 0m 0s"},
		{time.Hour + time.Minute + time.Second, "1h 1m 1s"},
		{2*time.Hour + 2*time.Minute + 2*time.Second, "2h 2m 2s"},
	}
	for _, tt := range tests {
		got := formatElapsed(tt.d)
		if got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestStopEntrySplitsAcrossMidnight(t *testing.T) {
	store := newTestStore(t)
	start := time.Date(2026, 3, 4, 22, 30, 0, 0, time.Local)
	stopAt := time.Date(2026, 3, 5, 1, 15, 0, 0, time.Local)

	entry := newEntry(start, "Development", "night shift")
	entry.Tags = []string{"oncall"}
	if err := store.UpdateEntry(start, entry); err != nil {
		t.Fatalf("UpdateEntry() error = %v", err)
	}

	if err := stopEntry(store, &entry, start, stopAt, "paged"); err != nil {
		t.Fatalf("stopEntry() error = %v", err)
	}

	first, err := store.LoadDay(start)
	if err != nil {
		t.Fatalf("LoadDay(first) error = %v", err)
	}
	if len(first.Entries) != 1 {
		t.Fatalf("first day entries = %d, want 1", len(first.Entries))
	}
	e1 := first.Entries[0]
	if e1.End == nil || e1.End.Format("15:04:05") != "23:59:59" {
		t.Errorf("first segment end = %v, want 23:59:59", e1.End)
	}
	if e1.Description != "paged" {
		t.Errorf("first segment description = %q, want %q", e1.Description, "paged")
	}

	second, err := store.LoadDay(stopAt)
	if err != nil {
		t.Fatalf("LoadDay(second) error = %v", err)
	}
	if len(second.Entries) != 1 {
		t.Fatalf("second day entries = %d, want 1", len(second.Entries))
	}
	e2 := second.Entries[0]
	if !e2.Start.Equal(time.Date(2026, 3, 5, 0, 0, 0, 0, time.Local)) {
		t.Errorf("second segment start = %v, want midnight", e2.Start)
	}
	if e2.ID == e1.ID {
		t.Error("second segment reuses the first segment's ID")
	}
	if got := e2.Duration(); got != 75*time.Minute {
		t.Errorf("second segment duration = %v, want 1h15m", got)
	}
	if e2.Category != "Development" || e2.Title != "night shift" {
		t.Errorf("second segment = %q/%q, want copied category and title", e2.Category, e2.Title)
	}
}

func TestStopEntrySameDay(t *testing.T) {
	store := newTestStore(t)
	start := time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local)
	entry := newEntry(start, "Review", "")
	if err := store.UpdateEntry(start, entry); err != nil {
		t.Fatalf("UpdateEntry() error = %v", err)
	}

	if err := stopEntry(store, &entry, start, start.Add(45*time.Minute), ""); err != nil {
		t.Fatalf("stopEntry() error = %v", err)
	}

	active, _, err := store.FindActiveEntry(start.Add(time.Hour))
	if err != nil {
		t.Fatalf("FindActiveEntry() error = %v", err)
	}
	if active != nil {
		t.Errorf("entry still active after stop: %+v", active)
	}
	df, err := store.LoadDay(start)
	if err != nil {
		t.Fatalf("LoadDay() error = %v", err)
	}
	if got := df.Entries[0].Duration(); got != 45*time.Minute {
		t.Errorf("duration = %v, want 45m", got)
	}
}
