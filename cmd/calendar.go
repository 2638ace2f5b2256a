package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttt-insights/internal/calendar"
	"github.com/Tiliavir/ttt-insights/internal/timecalc"
)

// syncFlags are shared by the calendar sync commands.
type syncFlags struct {
	rng      rangeFlags
	date     string
	dryRun   bool
	category string
}

func (f *syncFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&f.rng.from, "from", "", "Start date (YYYY-MM-DD); required when --to is specified")
	c.Flags().StringVar(&f.rng.to, "to", "", "End date (YYYY-MM-DD); defaults to today")
	c.Flags().StringVar(&f.date, "date", "", "Sync a specific date (YYYY-MM-DD)")
	c.Flags().StringVar(&f.rng.preset, "range", "today", "Range: today, yesterday, week, last-week, month, last-month")
	c.Flags().BoolVar(&f.dryRun, "dry-run", false, "Print planned operations without writing")
	c.Flags().StringVar(&f.category, "category", "", "Category for imported meetings (default from config)")
}

func (f *syncFlags) window(now time.Time) (time.Time, time.Time) {
	if f.date != "" {
		d, err := timecalc.ParseDate(f.date)
		if err != nil {
			exit(exitUsage, fmt.Errorf("invalid --date: %w", err))
		}
		return timecalc.StartOfDay(d), timecalc.EndOfDay(d)
	}
	from, to, err := f.rng.resolve(now)
	if err != nil {
		exit(exitUsage, err)
	}
	return from, to
}

// runSync imports src's meetings into the local store and prints a summary.
func runSync(src calendar.Source, f *syncFlags, from, to time.Time, category string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := calendar.Sync(ctx, src, openStore(), calendar.Options{
		From:     from,
		To:       to,
		DryRun:   f.dryRun,
		Category: firstNonEmpty(f.category, category),
		Logger:   log,
	})
	if err != nil {
		exit(exitUsage, fmt.Errorf("failed to fetch calendar events: %w", err))
	}
	printSyncResult(os.Stdout, res, f.dryRun)
	if res.Errors > 0 {
		os.Exit(exitStorage)
	}
}

func printSyncHeader(w io.Writer, name string, from, to time.Time, dryRun bool) {
	dryTag := ""
	if dryRun {
		dryTag = " [dry-run]"
	}
	fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Syncing %s events (%s → %s)%s",
		name, from.Format(timecalc.DateLayout), to.Format(timecalc.DateLayout), dryTag)))
	fmt.Fprintln(w)
}

func printSyncResult(w io.Writer, res calendar.Result, dryRun bool) {
	for _, it := range res.Items {
		line := fmt.Sprintf("%-8s %s %s", it.Action, it.Meeting.Start.Format("2006-01-02 15:04"), it.Meeting.Subject)
		switch it.Action {
		case calendar.ActionFailed:
			fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%s: %v", line, it.Err)))
		case calendar.ActionSkipped:
			fmt.Fprintln(w, dimStyle.Render(line))
		default:
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  %d imported\n", res.Imported)
	fmt.Fprintf(w, "  %d skipped\n", res.Skipped)
	fmt.Fprintf(w, "  %d updated\n", res.Updated)
	if res.Errors > 0 {
		fmt.Fprintf(w, "  %d errors\n", res.Errors)
	}
	if dryRun {
		fmt.Fprintln(w, dimStyle.Render("Dry run: nothing was written."))
	}
}
