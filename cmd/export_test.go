package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Tiliavir/ttt-insights/internal/model"
)

func TestCsvEscape(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"with space", "with space"},
		{"with,comma", `"with,comma"`},
		{`with"quote`, `"with""quote"`},
		{"with\nnewline", "\"with\nnewline\""},
		{"with\rreturn", "\"with\rreturn\""},
		{"", ""},
	}
	for _, tt := range tests {
		got := csvEscape(tt.input)
		if got != tt.want {
			t.Errorf("csvEscape(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPrintCSV(t *testing.T) {
	start := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	e := closed(newEntry(start, "Development", "parser, part 2"), 90*time.Minute)
	e.DeliverableID = "d1"
	meeting := closed(newEntry(start.Add(2*time.Hour), "Meeting", "Standup"), 15*time.Minute)
	meeting.Kind = model.KindMeeting

	var buf bytes.Buffer
	printCSV(&buf, []model.Entry{e, meeting})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	wantFirst := `2026-03-04,task,Development,"parser, part 2",,d1,2026-03-04T09:00:00Z,2026-03-04T10:30:00Z,90`
	if lines[1] != wantFirst {
		t.Errorf("row 1 = %q, want %q", lines[1], wantFirst)
	}
	if !strings.HasPrefix(lines[2], "2026-03-04,meeting,Meeting,Standup,") || !strings.HasSuffix(lines[2], ",15") {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestPrintListEmpty(t *testing.T) {
	var buf bytes.Buffer
	printList(&buf, nil)
	if got := buf.String(); got != "No entries found.\n" {
		t.Errorf("printList(nil) = %q", got)
	}
}
