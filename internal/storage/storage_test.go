package storage_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/storage"
)

func writeDayFile(t *testing.T, base, content string) string {
	t.Helper()
	dir := filepath.Join(base, "2026", "02")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "27.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDayNotExist(t *testing.T) {
	s := storage.New(t.TempDir(), nil)
	day := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	df, err := s.LoadDay(day)
	if err != nil {
		t.Fatalf("LoadDay on missing file: %v", err)
	}
	if df.Date != "2026-02-27" {
		t.Errorf("LoadDay date = %q, want %q", df.Date, "2026-02-27")
	}
	if len(df.Entries) != 0 {
		t.Errorf("LoadDay entries = %d, want 0", len(df.Entries))
	}
}

func TestSaveDayAndLoadDay(t *testing.T) {
	s := storage.New(t.TempDir(), nil)
	day := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)

	df := model.DayFile{
		Date: "2026-02-27",
		Entries: []model.Entry{
			{
				ID:       "test-id-1",
				Kind:     model.KindTask,
				Category: "ECM",
				Tags:     []string{},
				Start:    day,
				Source:   "manual",
			},
		},
	}

	if err := s.SaveDay(day, df); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	loaded, err := s.LoadDay(day)
	if err != nil {
		t.Fatalf("LoadDay after save: %v", err)
	}
	if len(loaded.Entries) != 1 {
		t.Fatalf("LoadDay entries = %d, want 1", len(loaded.Entries))
	}
	if loaded.Entries[0].Category != "ECM" {
		t.Errorf("LoadDay category = %q, want %q", loaded.Entries[0].Category, "ECM")
	}
}

func TestLoadDayCorruptJSONIsBackedUp(t *testing.T) {
	base := t.TempDir()
	s := storage.New(base, nil)
	day := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	path := writeDayFile(t, base, "{bad json")

	_, err := s.LoadDay(day)
	if err == nil {
		t.Fatal("expected error for corrupt JSON, got nil")
	}
	if storage.IsDataShape(err) {
		t.Errorf("corrupt JSON should not be a shape error: %v", err)
	}
	if _, err2 := os.Stat(path + ".corrupt"); os.IsNotExist(err2) {
		t.Error("expected backup file to exist after corrupt JSON")
	}
}

func TestLoadDayShapeErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"top-level array", `[{"id":"x"}]`},
		{"entries object", `{"date":"2026-02-27","entries":{"id":"x"}}`},
		{"entries string", `{"date":"2026-02-27","entries":"nope"}`},
		{"numeric date", `{"date":20260227,"entries":[]}`},
		{"object date", `{"date":{"y":2026},"entries":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			writeDayFile(t, base, tt.content)
			s := storage.New(base, nil)
			df, err := s.LoadDay(time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC))
			if !storage.IsDataShape(err) {
				t.Fatalf("err = %v, want DataShapeError", err)
			}
			if len(df.Entries) != 0 {
				t.Errorf("entries = %d, want 0", len(df.Entries))
			}
		})
	}
}

func TestLoadRangeSkipsWrongTypedDayFile(t *testing.T) {
	base := t.TempDir()
	path := writeDayFile(t, base, `{"date":20260227,"entries":[{"id":"bad","start":"2026-02-27T09:00:00Z"}]}`)
	s := storage.New(base, nil)
	next := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	start := next.Add(9 * time.Hour)
	end := start.Add(time.Hour)
	good := model.DayFile{Date: "2026-02-28", Entries: []model.Entry{
		{ID: "good", Kind: model.KindTask, Tags: []string{}, Start: start, End: &end},
	}}
	if err := s.SaveDay(next, good); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	entries, err := s.LoadRange(time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC), next)
	if err != nil {
		t.Fatalf("LoadRange: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "good" {
		t.Errorf("entries = %+v, want only %q", entries, "good")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("wrong-typed day file should stay in place: %v", err)
	}
	if _, err := os.Stat(path + ".corrupt"); !os.IsNotExist(err) {
		t.Errorf("wrong-typed day file should not be backed up, stat err = %v", err)
	}
}

func TestLoadDaySkipsBadElementsAndToleratesTimes(t *testing.T) {
	base := t.TempDir()
	writeDayFile(t, base, `{"date":"2026-02-27","entries":[
		42,
		{"id":"a","category":"Dev","start":"2026-02-27T09:00:00Z","end":"not a date","duration_ms":"5400000"},
		{"id":"b","start":"garbage"}
	]}`)
	s := storage.New(base, nil)
	df, err := s.LoadDay(time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(df.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(df.Entries))
	}
	a := df.Entries[0]
	if a.End != nil {
		t.Errorf("unparsable end should decode as nil, got %v", a.End)
	}
	if a.Duration() != 90*time.Minute {
		t.Errorf("duration = %v, want 1h30m", a.Duration())
	}
	if a.Kind != model.KindTask {
		t.Errorf("kind = %q, want default task", a.Kind)
	}
	b := df.Entries[1]
	if !b.Start.IsZero() || b.Duration() != 0 {
		t.Errorf("entry without valid times: start=%v duration=%v", b.Start, b.Duration())
	}
}

func TestLoadRangeSkipsMalformedDays(t *testing.T) {
	base := t.TempDir()
	writeDayFile(t, base, `"just a string"`)
	s := storage.New(base, nil)

	ok := time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC)
	if err := s.UpdateEntry(ok, model.Entry{ID: "x", Start: ok, Tags: []string{}}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.LoadRange(time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC))
	if err != nil {
		t.Fatalf("LoadRange: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "x" {
		t.Errorf("entries = %+v, want only x", entries)
	}
}

func TestUpdateAndDeleteEntry(t *testing.T) {
	s := storage.New(t.TempDir(), nil)
	day := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)

	entry := model.Entry{ID: "e1", Category: "P1", Tags: []string{}, Start: day, Source: "manual"}
	if err := s.UpdateEntry(day, entry); err != nil {
		t.Fatalf("UpdateEntry (insert): %v", err)
	}

	entry.Title = "updated task"
	if err := s.UpdateEntry(day, entry); err != nil {
		t.Fatalf("UpdateEntry (update): %v", err)
	}

	df, err := s.LoadDay(day)
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(df.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(df.Entries))
	}
	if df.Entries[0].Title != "updated task" {
		t.Errorf("title = %q, want %q", df.Entries[0].Title, "updated task")
	}

	removed, err := s.DeleteEntry(day, "e1")
	if err != nil || !removed {
		t.Fatalf("DeleteEntry = %v, %v", removed, err)
	}
	removed, err = s.DeleteEntry(day, "e1")
	if err != nil || removed {
		t.Errorf("second DeleteEntry = %v, %v; want false, nil", removed, err)
	}
}

func TestFindActiveEntry(t *testing.T) {
	s := storage.New(t.TempDir(), nil)
	now := time.Now()

	active, _, err := s.FindActiveEntry(now)
	if err != nil {
		t.Fatal(err)
	}
	if active != nil {
		t.Fatal("expected no active entry on empty storage")
	}

	entry := model.Entry{ID: "active-1", Category: "Test", Tags: []string{}, Start: now, Source: "manual"}
	if err := s.UpdateEntry(now, entry); err != nil {
		t.Fatal(err)
	}

	active, _, err = s.FindActiveEntry(now)
	if err != nil {
		t.Fatal(err)
	}
	if active == nil {
		t.Fatal("expected active entry, got nil")
	}
	if active.ID != "active-1" {
		t.Errorf("active ID = %q, want %q", active.ID, "active-1")
	}
}

func TestCategoriesDefaultAndSave(t *testing.T) {
	s := storage.New(t.TempDir(), nil)
	cats, err := s.Categories()
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != len(storage.DefaultCategories) {
		t.Errorf("default categories = %v", cats)
	}

	if err := s.SaveCategories([]string{"Dev", " dev ", "", "Ops"}); err != nil {
		t.Fatal(err)
	}
	cats, err = s.Categories()
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 || cats[0] != "Dev" || cats[1] != "Ops" {
		t.Errorf("categories = %v, want [Dev Ops]", cats)
	}
}

func TestGoalsShapeErrorDegrades(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "goals.json"), []byte(`{"id":"g1"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	s := storage.New(base, nil)
	goals, err := s.Goals()
	if err != nil {
		t.Fatalf("Goals: %v", err)
	}
	if len(goals) != 0 {
		t.Errorf("goals = %v, want none", goals)
	}
}

func TestDeliverablesRoundTrip(t *testing.T) {
	s := storage.New(t.TempDir(), nil)
	want := []model.Deliverable{{ID: "d1", Name: "Spec", GoalID: "g1"}}
	if err := s.SaveDeliverables(want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Deliverables()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("deliverables = %+v, want %+v", got, want)
	}
}
