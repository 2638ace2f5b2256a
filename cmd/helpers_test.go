package cmd

import (
	"testing"
	"time"

	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/storage"
	"github.com/Tiliavir/ttt-insights/internal/timecalc"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	return storage.New(t.TempDir(), nil)
}

func newEntry(start time.Time, category, title string) model.Entry {
	return model.Entry{
		ID:       timecalc.GenerateID(start),
		Kind:     model.KindTask,
		Category: category,
		Title:    title,
		Tags:     []string{},
		Start:    start,
		Source:   "manual",
	}
}

func closed(e model.Entry, d time.Duration) model.Entry {
	end := e.Start.Add(d)
	ms := d.Milliseconds()
	e.End = &end
	e.DurationMs = &ms
	return e
}
