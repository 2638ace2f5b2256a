package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttt-insights/internal/config"
	"github.com/Tiliavir/ttt-insights/internal/llm"
	"github.com/Tiliavir/ttt-insights/internal/notify"
	"github.com/Tiliavir/ttt-insights/internal/report"
	"github.com/Tiliavir/ttt-insights/internal/timecalc"
	"github.com/Tiliavir/ttt-insights/internal/validation"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise tracked time and generate LLM reports",
}

var (
	summaryRange rangeFlags

	genRange       rangeFlags
	genProvider    string
	genModel       string
	genTemplate    string
	genTemperature float64
	genMaxTokens   int
	genCopy        bool
	genHTMLOut     string
)

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the aggregated data block without calling a provider",
	Args:  cobra.NoArgs,
	RunE:  runReportSummary,
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a written report with the configured LLM provider",
	Args:  cobra.NoArgs,
	RunE:  runReportGenerate,
}

var reportTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List built-in and custom report templates",
	Args:  cobra.NoArgs,
	RunE:  runReportTemplates,
}

func init() {
	addRangeFlags(reportSummaryCmd, &summaryRange)
	addRangeFlags(reportGenerateCmd, &genRange)

	f := reportGenerateCmd.Flags()
	f.StringVar(&genProvider, "provider", "", "Provider: openai, anthropic, google (default from config)")
	f.StringVar(&genModel, "model", "", "Model ID (default from config or the vendor default)")
	f.StringVar(&genTemplate, "template", "", "Template name (see 'ttt report templates')")
	f.Float64Var(&genTemperature, "temperature", 0, "Sampling temperature 0-2")
	f.IntVar(&genMaxTokens, "max-tokens", 0, "Cap on generated tokens")
	f.BoolVar(&genCopy, "copy", false, "Copy the prompt to the clipboard instead of calling a provider")
	f.StringVar(&genHTMLOut, "html", "", "Also write the rendered HTML to this file")

	reportCmd.AddCommand(reportSummaryCmd)
	reportCmd.AddCommand(reportGenerateCmd)
	reportCmd.AddCommand(reportTemplatesCmd)
	reportCmd.AddCommand(reportHistoryCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportDeleteCmd)
	reportCmd.AddCommand(reportResaveCmd)
}

func addRangeFlags(c *cobra.Command, rf *rangeFlags) {
	c.Flags().StringVar(&rf.preset, "range", "week", "Range: today, yesterday, week, last-week, month, last-month")
	c.Flags().StringVar(&rf.from, "from", "", "Start date (YYYY-MM-DD)")
	c.Flags().StringVar(&rf.to, "to", "", "End date (YYYY-MM-DD); defaults to today")
}

func runReportSummary(cmd *cobra.Command, args []string) error {
	from, to, err := summaryRange.resolve(time.Now())
	if err != nil {
		exit(exitUsage, err)
	}
	cfg := loadConfig()

	orch, err := report.New(report.Config{
		Source:       openStore(),
		Logger:       log,
		EntryPreview: cfg.Report.EntryPreview,
	})
	if err != nil {
		exit(exitUsage, err)
	}
	agg, text, err := orch.Summary(from, to)
	if err != nil {
		exit(exitStorage, err)
	}

	fmt.Println(headingStyle.Render(fmt.Sprintf("%s – %s (%s)",
		from.Format(timecalc.DateLayout), to.Format(timecalc.DateLayout), timecalc.ISOWeekLabel(from))))
	fmt.Println(dimStyle.Render(fmt.Sprintf("%d entries, %.2fh tracked",
		agg.Summary.TotalEntries, agg.Summary.TotalHours)))
	fmt.Println()
	fmt.Println(text)
	return nil
}

// providerFactory builds providers from the llm section of cfg. The
// configured model applies only to the configured vendor.
func providerFactory(cfg config.Config) report.ProviderFunc {
	return func(v llm.Vendor) (llm.Provider, error) {
		opts := llm.Options{
			APIKey:  cfg.LLM.APIKey(v),
			BaseURL: cfg.LLM.BaseURL,
			Logger:  log,
			Debug:   debugMode,
		}
		if string(v) == cfg.LLM.Provider {
			opts.Model = cfg.LLM.Model
		}
		return llm.New(v, opts)
	}
}

func openHistory(cfg config.Config) *report.History {
	path, err := cfg.HistoryPath()
	if err != nil {
		exit(exitStorage, err)
	}
	h, err := report.OpenHistory(path, cfg.Report.HistoryLimit, log)
	if err != nil {
		exit(exitStorage, err)
	}
	return h
}

func loadTemplates(cfg config.Config) *report.Templates {
	dir, err := cfg.TemplatesDir()
	if err != nil {
		exit(exitStorage, err)
	}
	t, err := report.LoadTemplates(dir, log)
	if err != nil {
		exit(exitUsage, err)
	}
	return t
}

func runReportGenerate(cmd *cobra.Command, args []string) error {
	from, to, err := genRange.resolve(time.Now())
	if err != nil {
		exit(exitUsage, err)
	}
	cfg := loadConfig()
	history := openHistory(cfg)
	defer history.Close()

	orch := newOrchestrator(cfg, history)
	orch.Subscribe(report.ViewFunc(printProgress))

	req := report.GenerateRequest{
		From:     from,
		To:       to,
		Provider: genProvider,
		Model:    genModel,
		Template: genTemplate,
		CopyMode: genCopy || cfg.LLM.CopyMode,
	}
	if cmd.Flags().Changed("temperature") {
		req.Temperature = &genTemperature
	}
	if cmd.Flags().Changed("max-tokens") {
		req.MaxTokens = genMaxTokens
	}
	req = withConfigDefaults(req, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := orch.Generate(ctx, req)
	if err != nil {
		exit(generateExitCode(err), errors.New(llm.UserMessage(err)))
	}

	if out.Copied {
		fmt.Println(successStyle.Render("Prompt copied to the clipboard."))
		return nil
	}

	fmt.Println(out.Report.Content)
	fmt.Fprintln(os.Stderr)
	if out.Report.Truncated {
		fmt.Fprintln(os.Stderr, warnStyle.Render("Warning: the provider stopped at its token limit; the report is incomplete."))
	}
	if n := len(out.Charts.Unplaced); n > 0 {
		fmt.Fprintln(os.Stderr, dimStyle.Render(fmt.Sprintf("%d chart(s) not referenced in the text; see 'ttt serve'.", n)))
	}
	if out.Saved {
		fmt.Fprintln(os.Stderr, dimStyle.Render("Saved as "+out.Report.ID))
	} else {
		fmt.Fprintln(os.Stderr, warnStyle.Render("Warning: the report could not be saved to the history."))
	}
	if genHTMLOut != "" {
		if err := os.WriteFile(genHTMLOut, []byte(out.Report.HTML), 0o644); err != nil {
			exit(exitStorage, fmt.Errorf("write %s: %w", genHTMLOut, err))
		}
	}
	return nil
}

// withConfigDefaults fills the fields req leaves empty from cfg. The
// configured model only applies to the configured provider.
func withConfigDefaults(req report.GenerateRequest, cfg config.Config) report.GenerateRequest {
	if req.Provider == "" {
		req.Provider = cfg.LLM.Provider
	}
	if req.Model == "" && req.Provider == cfg.LLM.Provider {
		req.Model = cfg.LLM.Model
	}
	if req.Template == "" {
		req.Template = cfg.Report.Template
	}
	if req.Temperature == nil {
		req.Temperature = cfg.LLM.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = cfg.LLM.MaxTokens
	}
	return req
}

// newOrchestrator wires a generating orchestrator over the local store.
func newOrchestrator(cfg config.Config, history *report.History) *report.Orchestrator {
	var notifier report.Notifier
	if cfg.Report.Notify {
		notifier = notify.NewDesktop(log)
	}
	orch, err := report.New(report.Config{
		Source:       openStore(),
		History:      history,
		Templates:    loadTemplates(cfg),
		Providers:    providerFactory(cfg),
		Notifier:     notifier,
		Logger:       log,
		EntryPreview: cfg.Report.EntryPreview,
	})
	if err != nil {
		exit(exitUsage, err)
	}
	return orch
}

func printProgress(e report.Event) {
	var msg string
	switch e.State {
	case report.StateGatheringData:
		msg = "Gathering data…"
	case report.StateAwaitingLLM:
		msg = "Waiting for the provider…"
	case report.StateRendering:
		msg = "Rendering…"
	default:
		return
	}
	fmt.Fprintln(os.Stderr, dimStyle.Render(msg))
}

func generateExitCode(err error) int {
	var lerr *llm.Error
	switch {
	case errors.As(err, &lerr),
		validation.IsValidationError(err),
		errors.Is(err, report.ErrUnknownTemplate),
		errors.Is(err, report.ErrBusy),
		errors.Is(err, context.Canceled):
		return exitUsage
	}
	return exitStorage
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func runReportTemplates(cmd *cobra.Command, args []string) error {
	templates := loadTemplates(loadConfig())
	for _, name := range templates.Names() {
		suffix := ""
		if templates.IsCustom(name) {
			suffix = dimStyle.Render(" (custom)")
		}
		fmt.Println(name + suffix)
	}
	return nil
}
