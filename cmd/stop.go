package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var stopNote string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the currently running timer",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopNote, "note", "", "Append a note to the entry description")
}

func runStop(cmd *cobra.Command, args []string) error {
	now := time.Now()
	store := openStore()

	active, activeDay, err := store.FindActiveEntry(now)
	if err != nil {
		exit(exitStorage, err)
	}
	if active == nil {
		exit(exitUsage, errors.New("no active timer to stop"))
	}

	if err := stopEntry(store, active, activeDay, now, stopNote); err != nil {
		exit(exitStorage, err)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Stopped %q.", active.Label())) +
		" Elapsed: " + formatElapsed(now.Sub(active.Start)))
	return nil
}

func formatElapsed(d time.Duration) string {
	seconds := int64(d / time.Second)
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
