package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/timecalc"
)

var (
	listToday bool
	listWeek  bool
	listRange rangeFlags
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List time entries",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listToday, "today", false, "Show today's entries")
	listCmd.Flags().BoolVar(&listWeek, "week", false, "Show this week's entries")
	listCmd.Flags().StringVar(&listRange.from, "from", "", "Start date (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listRange.to, "to", "", "End date (YYYY-MM-DD); defaults to today")
}

func runList(cmd *cobra.Command, args []string) error {
	now := time.Now()

	listRange.preset = "today"
	if listWeek {
		listRange.preset = "week"
	}
	from, to, err := listRange.resolve(now)
	if err != nil {
		exit(exitUsage, err)
	}

	entries, err := openStore().LoadRange(from, to)
	if err != nil {
		exit(exitStorage, err)
	}

	printList(os.Stdout, entries)
	return nil
}

// printList groups entries by date and prints them.
func printList(w io.Writer, entries []model.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return
	}

	var currentDay string
	for _, e := range entries {
		day := e.Start.Format(timecalc.DateLayout)
		if day != currentDay {
			fmt.Fprintln(w, headingStyle.Render(day))
			currentDay = day
		}

		endStr := "ongoing"
		durStr := ""
		if e.End != nil {
			endStr = e.End.Format("15:04")
		}
		if !e.Active() {
			durStr = dimStyle.Render(fmt.Sprintf(" (%s)", timecalc.FormatDuration(e.Duration())))
		}

		label := e.Category
		if e.Title != "" {
			label += "  " + e.Title
		}
		if e.Kind == model.KindMeeting {
			label += " [meeting]"
		}

		fmt.Fprintf(w, "%s–%s  %s%s\n", e.Start.Format("15:04"), endStr, label, durStr)
	}
}
