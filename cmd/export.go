package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/timecalc"
)

var (
	exportFormat string
	exportRange  rangeFlags
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export time entries to stdout",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, md")
	exportCmd.Flags().StringVar(&exportRange.preset, "range", "week", "Range: today, yesterday, week, last-week, month, last-month")
	exportCmd.Flags().StringVar(&exportRange.from, "from", "", "Start date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportRange.to, "to", "", "End date (YYYY-MM-DD); defaults to today")
}

func runExport(cmd *cobra.Command, args []string) error {
	from, to, err := exportRange.resolve(time.Now())
	if err != nil {
		exit(exitUsage, err)
	}

	entries, err := openStore().LoadRange(from, to)
	if err != nil {
		exit(exitStorage, err)
	}

	switch exportFormat {
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			exit(exitStorage, fmt.Errorf("error encoding JSON: %w", err))
		}
		fmt.Println(string(data))
	case "md":
		printList(os.Stdout, entries)
	case "csv":
		printCSV(os.Stdout, entries)
	default:
		exit(exitUsage, fmt.Errorf("unknown format %q (want csv, json, md)", exportFormat))
	}

	return nil
}

func printCSV(w io.Writer, entries []model.Entry) {
	fmt.Fprintln(w, "date,kind,category,title,description,deliverable,start,end,duration_minutes")
	for _, e := range entries {
		endStr := ""
		if e.End != nil {
			endStr = e.End.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s,%s,%s,%d\n",
			csvEscape(e.Start.Format(timecalc.DateLayout)),
			csvEscape(string(e.Kind)),
			csvEscape(e.Category),
			csvEscape(e.Title),
			csvEscape(e.Description),
			csvEscape(e.DeliverableID),
			csvEscape(e.Start.Format(time.RFC3339)),
			csvEscape(endStr),
			int64(e.Duration()/time.Minute),
		)
	}
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
