package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/storage"
	"github.com/Tiliavir/ttt-insights/internal/timecalc"
	"github.com/Tiliavir/ttt-insights/internal/validation"
)

var (
	startTitle       string
	startDescription string
	startTags        string
	startKind        string
	startDeliverable string
	startAllocate    string
)

var startCmd = &cobra.Command{
	Use:   "start <category>",
	Short: "Start a new time entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&startTitle, "title", "", "Short title of the work")
	startCmd.Flags().StringVar(&startDescription, "description", "", "Optional description")
	startCmd.Flags().StringVar(&startTags, "tags", "", "Comma-separated tags")
	startCmd.Flags().StringVar(&startKind, "kind", string(model.KindTask), "Entry kind: task or meeting")
	startCmd.Flags().StringVar(&startDeliverable, "deliverable", "", "ID of the deliverable this work counts towards")
	startCmd.Flags().StringVar(&startAllocate, "allocate", "", "Split the time across deliverables, e.g. d1=60,d2=40")
}

// startInput is the user-supplied part of a new entry.
type startInput struct {
	Category    string `validate:"required,max=100"`
	Title       string `validate:"max=200"`
	Description string `validate:"max=2000"`
	Kind        string `validate:"entry_kind"`
	Deliverable string `validate:"max=100"`
}

func runStart(cmd *cobra.Command, args []string) error {
	now := time.Now()

	in := startInput{
		Category:    strings.TrimSpace(args[0]),
		Title:       validation.SanitizeText(startTitle),
		Description: validation.SanitizeText(startDescription),
		Kind:        startKind,
		Deliverable: strings.TrimSpace(startDeliverable),
	}
	if err := validation.Struct(in); err != nil {
		exit(exitUsage, err)
	}
	allocs, err := parseAllocations(startAllocate)
	if err != nil {
		exit(exitUsage, err)
	}

	store := openStore()

	// Check for an existing active timer and auto-stop it.
	active, activeDay, err := store.FindActiveEntry(now)
	if err != nil {
		exit(exitStorage, err)
	}
	if active != nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render(
			fmt.Sprintf("Warning: auto-stopping active timer %q", active.Label())))
		if err := stopEntry(store, active, activeDay, now, ""); err != nil {
			exit(exitStorage, err)
		}
	}

	entry := model.Entry{
		ID:            timecalc.GenerateID(now),
		Kind:          model.Kind(in.Kind),
		Category:      in.Category,
		Title:         in.Title,
		Description:   in.Description,
		Tags:          splitTags(startTags),
		Start:         now,
		Source:        "manual",
		DeliverableID: in.Deliverable,

		DeliverableAllocations: allocs,
	}

	// Crossing midnight is handled at stop time.
	if err := store.UpdateEntry(now, entry); err != nil {
		exit(exitStorage, err)
	}

	fmt.Println(successStyle.Render(
		fmt.Sprintf("Started %q at %s", entry.Label(), now.Format("15:04:05"))))
	return nil
}

// parseAllocations reads "id=pct,id=pct" into a percentage map.
func parseAllocations(s string) (map[string]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	allocs := map[string]float64{}
	for _, part := range strings.Split(s, ",") {
		id, pct, ok := strings.Cut(strings.TrimSpace(part), "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid allocation %q (want id=percent)", part)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid allocation %q: %w", part, err)
		}
		allocs[id] += v
	}
	if err := validation.Percentages(allocs); err != nil {
		return nil, err
	}
	return allocs, nil
}

func splitTags(s string) []string {
	tags := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// stopEntry closes an entry, splitting it when it crosses midnight. A
// non-empty note is appended to the description.
func stopEntry(store *storage.Store, entry *model.Entry, entryDay, stopTime time.Time, note string) error {
	if note != "" {
		if entry.Description != "" {
			entry.Description += "\n" + note
		} else {
			entry.Description = note
		}
	}

	if !timecalc.SameDay(entry.Start, stopTime) {
		return splitAcrossMidnight(store, entry, entryDay, stopTime)
	}

	closeEntry(entry, stopTime)
	return store.UpdateEntry(entryDay, *entry)
}

func closeEntry(entry *model.Entry, end time.Time) {
	ms := end.Sub(entry.Start).Milliseconds()
	entry.End = &end
	entry.DurationMs = &ms
}

// splitAcrossMidnight ends the entry at 23:59:59 of its start day and
// records the rest as a second entry starting at 00:00:00 of the stop day.
func splitAcrossMidnight(store *storage.Store, entry *model.Entry, entryDay, stopTime time.Time) error {
	closeEntry(entry, timecalc.EndOfDay(entry.Start))
	if err := store.UpdateEntry(entryDay, *entry); err != nil {
		return err
	}

	startOfSecond := timecalc.StartOfDay(stopTime)
	second := *entry
	second.ID = timecalc.GenerateID(startOfSecond)
	second.Start = startOfSecond
	second.Tags = append([]string(nil), entry.Tags...)
	closeEntry(&second, stopTime)
	return store.UpdateEntry(stopTime, second)
}
