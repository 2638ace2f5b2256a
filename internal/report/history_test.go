package report_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/report"
)

func openHistory(t *testing.T, limit int) *report.History {
	t.Helper()
	h, err := report.OpenHistory(report.MemoryPath, limit, nil)
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func sampleReport(i int) model.Report {
	created := time.Date(2026, 3, 1, 9, i, 0, 0, time.UTC)
	return model.Report{
		ID:        fmt.Sprintf("r%d", i),
		CreatedAt: created,
		Content:   fmt.Sprintf("# Report %d", i),
		HTML:      fmt.Sprintf("<h1>Report %d</h1>", i),
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		Template:  "weekly-summary",
		Data:      "=== SUMMARY ===",
		Timestamp: created.UnixMilli(),
	}
}

func ids(rs []model.Report) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestHistoryCapEvictsOldest(t *testing.T) {
	h := openHistory(t, 3)
	for i := 1; i <= 5; i++ {
		if err := h.Save(sampleReport(i)); err != nil {
			t.Fatalf("Save(%d): %v", i, err)
		}
	}
	list, err := h.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := fmt.Sprint(ids(list))
	if got != "[r5 r4 r3]" {
		t.Errorf("List() = %s, want [r5 r4 r3]", got)
	}
	if _, err := h.Get("r1"); !errors.Is(err, report.ErrNotFound) {
		t.Errorf("Get(r1) error = %v, want ErrNotFound", err)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	h := openHistory(t, 10)
	r := sampleReport(7)
	r.ChartData = []byte(`{"bound":[],"unplaced":[]}`)
	r.Truncated = true
	if err := h.Save(r); err != nil {
		t.Fatal(err)
	}
	got, err := h.Get("r7")
	if err != nil {
		t.Fatal(err)
	}
	if got.HTML != r.HTML || got.Content != r.Content || got.Model != r.Model || !got.Truncated {
		t.Errorf("Get() = %+v, want %+v", got, r)
	}
	if !got.CreatedAt.Equal(r.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, r.CreatedAt)
	}
	if string(got.ChartData) != string(r.ChartData) {
		t.Errorf("ChartData = %s, want %s", got.ChartData, r.ChartData)
	}
}

func TestHistoryResaveMovesToFront(t *testing.T) {
	h := openHistory(t, 10)
	for i := 1; i <= 3; i++ {
		if err := h.Save(sampleReport(i)); err != nil {
			t.Fatal(err)
		}
	}
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	r, err := h.Resave("r1", now)
	if err != nil {
		t.Fatalf("Resave: %v", err)
	}
	if r.Timestamp != now.UnixMilli() {
		t.Errorf("Timestamp = %d, want %d", r.Timestamp, now.UnixMilli())
	}
	list, _ := h.List()
	if got := fmt.Sprint(ids(list)); got != "[r1 r3 r2]" {
		t.Errorf("List() = %s, want [r1 r3 r2]", got)
	}
	if _, err := h.Resave("missing", now); !errors.Is(err, report.ErrNotFound) {
		t.Errorf("Resave(missing) error = %v, want ErrNotFound", err)
	}
}

func TestHistoryDelete(t *testing.T) {
	h := openHistory(t, 10)
	if err := h.Save(sampleReport(1)); err != nil {
		t.Fatal(err)
	}
	if err := h.Delete("r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := h.Delete("r1"); !errors.Is(err, report.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
	list, _ := h.List()
	if len(list) != 0 {
		t.Errorf("List() after delete = %v", ids(list))
	}
}

func TestHistoryOnDiskReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reports.db")
	h, err := report.OpenHistory(path, 5, nil)
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	if err := h.Save(sampleReport(2)); err != nil {
		t.Fatal(err)
	}
	h.Close()

	h, err = report.OpenHistory(path, 5, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer h.Close()
	if _, err := h.Get("r2"); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}

func TestHistorySaveRequiresID(t *testing.T) {
	h := openHistory(t, 10)
	if err := h.Save(model.Report{}); err == nil {
		t.Error("Save without id succeeded")
	}
}
