package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/report"
)

var (
	showOut      string
	showMarkdown bool
)

var reportHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved reports, newest first",
	Args:  cobra.NoArgs,
	RunE:  runReportHistory,
}

var reportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved report as HTML (or markdown)",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportShow,
}

var reportDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportDelete,
}

var reportResaveCmd = &cobra.Command{
	Use:   "resave <id>",
	Short: "Save a report again, moving it to the top of the history",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportResave,
}

func init() {
	reportShowCmd.Flags().StringVarP(&showOut, "out", "o", "", "Write to this file instead of stdout")
	reportShowCmd.Flags().BoolVar(&showMarkdown, "markdown", false, "Print the markdown source instead of HTML")
}

func runReportHistory(cmd *cobra.Command, args []string) error {
	h := openHistory(loadConfig())
	defer h.Close()

	reports, err := h.List()
	if err != nil {
		exit(exitStorage, err)
	}
	printHistory(os.Stdout, reports)
	return nil
}

func printHistory(w io.Writer, reports []model.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No saved reports.")
		return
	}
	for _, r := range reports {
		line := fmt.Sprintf("%s  %s  %-16s %s/%s",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Template, r.Provider, r.Model)
		if r.Truncated {
			line += warnStyle.Render(" (truncated)")
		}
		fmt.Fprintln(w, line)
	}
}

func historyReport(h *report.History, id string) model.Report {
	r, err := h.Get(id)
	if errors.Is(err, report.ErrNotFound) {
		exit(exitUsage, fmt.Errorf("no saved report with id %q", id))
	}
	if err != nil {
		exit(exitStorage, err)
	}
	return r
}

func runReportShow(cmd *cobra.Command, args []string) error {
	h := openHistory(loadConfig())
	defer h.Close()

	r := historyReport(h, args[0])
	body := r.HTML
	if showMarkdown {
		body = r.Content
	}
	if showOut == "" {
		fmt.Println(body)
		return nil
	}
	if err := os.WriteFile(showOut, []byte(body), 0o644); err != nil {
		exit(exitStorage, fmt.Errorf("write %s: %w", showOut, err))
	}
	fmt.Println(successStyle.Render("Wrote " + showOut))
	return nil
}

func runReportDelete(cmd *cobra.Command, args []string) error {
	h := openHistory(loadConfig())
	defer h.Close()

	err := h.Delete(args[0])
	if errors.Is(err, report.ErrNotFound) {
		exit(exitUsage, fmt.Errorf("no saved report with id %q", args[0]))
	}
	if err != nil {
		exit(exitStorage, err)
	}
	fmt.Println(successStyle.Render("Deleted " + args[0]))
	return nil
}

func runReportResave(cmd *cobra.Command, args []string) error {
	h := openHistory(loadConfig())
	defer h.Close()

	r, err := h.Resave(args[0], time.Now())
	if errors.Is(err, report.ErrNotFound) {
		exit(exitUsage, fmt.Errorf("no saved report with id %q", args[0]))
	}
	if err != nil {
		exit(exitStorage, err)
	}
	fmt.Println(successStyle.Render("Saved " + r.ID + " again"))
	return nil
}
