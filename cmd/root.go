package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/config"
	"github.com/Tiliavir/ttt-insights/internal/logger"
	"github.com/Tiliavir/ttt-insights/internal/storage"
)

// Exit codes.
const (
	exitUsage   = 1
	exitStorage = 2
)

var (
	debugMode bool
	log       = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "ttt",
	Short: "Trivial Time Tracker – a minimal CLI time tracker with LLM reports",
	Long: `ttt is a single-binary, file-based command-line time tracker.
All data is stored as human-readable JSON files in ~/.ttt/.
Tracked time can be summarised locally or turned into a written report
by OpenAI, Anthropic or Google models.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logger.NewCLILogger(debugMode)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync(log)
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(exitUsage)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Verbose logging on stderr")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(outlookCmd)
	rootCmd.AddCommand(googleCmd)
	rootCmd.AddCommand(goalCmd)
	rootCmd.AddCommand(deliverableCmd)
	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(serveCmd)
}

// exit prints err to stderr and terminates with code.
func exit(code int, err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
	os.Exit(code)
}

func openStore() *storage.Store {
	base, err := storage.BaseDir()
	if err != nil {
		exit(exitStorage, err)
	}
	return storage.New(base, log)
}

func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		exit(exitUsage, fmt.Errorf("config error: %w", err))
	}
	return cfg
}
