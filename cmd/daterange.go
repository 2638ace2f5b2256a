package cmd

import (
	"errors"
	"time"

	"github.com/Tiliavir/ttt-insights/internal/timecalc"
	"github.com/Tiliavir/ttt-insights/internal/validation"
)

// rangeFlags are the shared --range/--from/--to flags.
type rangeFlags struct {
	preset string
	from   string
	to     string
}

// resolve turns the flags into a [from, to] day range. Explicit dates win
// over the preset; --to defaults to today.
func (f rangeFlags) resolve(now time.Time) (time.Time, time.Time, error) {
	if f.from == "" && f.to == "" {
		return timecalc.PresetRange(f.preset, now)
	}
	if f.from == "" {
		return time.Time{}, time.Time{}, errors.New("--from is required when --to is specified")
	}
	from, err := timecalc.ParseDate(f.from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to := now
	if f.to != "" {
		if to, err = timecalc.ParseDate(f.to); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	from, to = timecalc.StartOfDay(from), timecalc.EndOfDay(to)
	if err := validation.DateRange(from, to); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
