package timecalc

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for storage keys and flags.
const DateLayout = "2006-01-02"

// GenerateID creates a unique entry ID based on timestamp and random suffix.
func GenerateID(t time.Time) string {
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffix := make([]byte, 5)
	for i := range suffix {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		suffix[i] = chars[n.Int64()]
	}
	return fmt.Sprintf("%s-%s", t.Format("20060102-150405"), string(suffix))
}

// FormatDuration formats d like "1h 40m", "45m" or "30s".
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatDurationHHMMSS formats d as HH:MM:SS.
func FormatDurationHHMMSS(d time.Duration) string {
	seconds := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// WeekRange returns the Monday and Sunday of the ISO week containing t.
func WeekRange(t time.Time) (time.Time, time.Time) {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // ISO: Sunday is the last day
	}
	monday := StartOfDay(t.AddDate(0, 0, -(wd - 1)))
	return monday, EndOfDay(monday.AddDate(0, 0, 6))
}

// MonthRange returns the first and last day of the month containing t.
func MonthRange(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first, EndOfDay(first.AddDate(0, 1, -1))
}

// ISOWeekLabel returns a label like "2026-W09".
func ISOWeekLabel(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of the same day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseDate parses a YYYY-MM-DD date in the local zone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// PresetRange resolves a named range relative to now: today, yesterday,
// week, last-week, month or last-month.
func PresetRange(name string, now time.Time) (time.Time, time.Time, error) {
	switch strings.ToLower(name) {
	case "today", "":
		return StartOfDay(now), EndOfDay(now), nil
	case "yesterday":
		y := now.AddDate(0, 0, -1)
		return StartOfDay(y), EndOfDay(y), nil
	case "week":
		from, to := WeekRange(now)
		return from, to, nil
	case "last-week":
		from, to := WeekRange(now.AddDate(0, 0, -7))
		return from, to, nil
	case "month":
		from, to := MonthRange(now)
		return from, to, nil
	case "last-month":
		first := time.Date(now.Year(), now.Month(), 1, 12, 0, 0, 0, now.Location())
		from, to := MonthRange(first.AddDate(0, -1, 0))
		return from, to, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unknown range %q (want today, yesterday, week, last-week, month, last-month)", name)
}
