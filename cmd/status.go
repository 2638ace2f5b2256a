package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttt-insights/internal/timecalc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current timer status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	now := time.Now()
	store := openStore()

	active, _, err := store.FindActiveEntry(now)
	if err != nil {
		exit(exitStorage, err)
	}

	if active != nil {
		fmt.Println(headingStyle.Render("Running:"))
		fmt.Printf("  Category: %s\n", active.Category)
		if active.Title != "" {
			fmt.Printf("  Title: %s\n", active.Title)
		}
		if active.DeliverableID != "" {
			fmt.Printf("  Deliverable: %s\n", active.DeliverableID)
		}
		fmt.Printf("  Since: %s\n", active.Start.Format("15:04"))
		fmt.Printf("  Elapsed: %s\n", timecalc.FormatDurationHHMMSS(now.Sub(active.Start)))
		return nil
	}

	df, err := store.LoadDay(now)
	if err != nil {
		exit(exitStorage, err)
	}

	var total time.Duration
	for _, e := range df.Entries {
		total += e.Duration()
	}

	fmt.Println(dimStyle.Render("No active timer."))
	fmt.Printf("Today: %s logged.\n", timecalc.FormatDuration(total))
	return nil
}
