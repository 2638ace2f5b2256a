package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes regular work from meetings.
type Kind string

const (
	KindTask    Kind = "task"
	KindMeeting Kind = "meeting"
)

// Entry represents a single tracked time entry.
type Entry struct {
	ID          string     `json:"id"`
	ExternalID  string     `json:"external_id,omitempty"`
	Kind        Kind       `json:"kind"`
	Category    string     `json:"category,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end"`
	DurationMs  *int64     `json:"duration_ms"`
	Source      string     `json:"source"`

	DeliverableID string `json:"deliverable_id,omitempty"`
	// DeliverableAllocations maps deliverable IDs to a percentage (0-100) of
	// this entry's duration. The percentages need not sum to 100.
	DeliverableAllocations map[string]float64 `json:"deliverable_allocations,omitempty"`

	// IsAllocated marks a derived entry produced by splitting allocations.
	// Derived entries are never persisted.
	IsAllocated   bool    `json:"-"`
	AllocationPct float64 `json:"-"`
}

// maxDurationMs is the largest millisecond count a time.Duration can hold.
const maxDurationMs = math.MaxInt64 / int64(time.Millisecond)

// Duration resolves the entry's duration: the stored duration when present
// and representable, else end minus start when both are set, else zero.
// Never negative.
func (e Entry) Duration() time.Duration {
	var d time.Duration
	switch {
	case e.DurationMs != nil && *e.DurationMs <= maxDurationMs && *e.DurationMs >= -maxDurationMs:
		d = time.Duration(*e.DurationMs) * time.Millisecond
	case e.End != nil && !e.Start.IsZero() && !e.End.IsZero():
		d = e.End.Sub(e.Start)
	}
	if d < 0 {
		return 0
	}
	return d
}

// Label is the display name used to identify distinct tasks.
func (e Entry) Label() string {
	switch {
	case e.Title != "":
		return e.Title
	case e.Description != "":
		return e.Description
	case e.Category != "":
		return e.Category
	}
	return "Untitled"
}

// Active reports whether the entry is a running timer.
func (e Entry) Active() bool {
	return e.End == nil && e.DurationMs == nil
}

// entryJSON mirrors Entry with loosely typed time and duration fields so that
// hand-edited or legacy day files still decode.
type entryJSON struct {
	ID                     string             `json:"id"`
	ExternalID             string             `json:"external_id"`
	Kind                   Kind               `json:"kind"`
	Category               string             `json:"category"`
	Title                  string             `json:"title"`
	Description            string             `json:"description"`
	Tags                   []string           `json:"tags"`
	Start                  json.RawMessage    `json:"start"`
	End                    json.RawMessage    `json:"end"`
	DurationMs             json.RawMessage    `json:"duration_ms"`
	Source                 string             `json:"source"`
	DeliverableID          string             `json:"deliverable_id"`
	DeliverableAllocations map[string]float64 `json:"deliverable_allocations"`
}

// UnmarshalJSON decodes an entry, tolerating unparsable timestamps (they
// become zero/nil) and durations stored as strings.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entry{
		ID:                     raw.ID,
		ExternalID:             raw.ExternalID,
		Kind:                   raw.Kind,
		Category:               raw.Category,
		Title:                  raw.Title,
		Description:            raw.Description,
		Tags:                   raw.Tags,
		Source:                 raw.Source,
		DeliverableID:          raw.DeliverableID,
		DeliverableAllocations: raw.DeliverableAllocations,
	}
	if e.Kind == "" {
		e.Kind = KindTask
	}
	if t, ok := decodeTime(raw.Start); ok {
		e.Start = t
	}
	if t, ok := decodeTime(raw.End); ok {
		e.End = &t
	}
	if ms, ok := decodeMillis(raw.DurationMs); ok {
		e.DurationMs = &ms
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseTime parses the ISO 8601 variants found in stored data.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func decodeTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	return ParseTime(s)
}

func decodeMillis(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > float64(maxDurationMs) {
		return 0, false
	}
	return int64(f), true
}

// DayFile is the top-level structure stored in each daily JSON file.
type DayFile struct {
	Date    string  `json:"date"`
	Entries []Entry `json:"entries"`
}
