package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttt-insights/internal/config"
	"github.com/Tiliavir/ttt-insights/internal/logger"
	"github.com/Tiliavir/ttt-insights/internal/report"
	"github.com/Tiliavir/ttt-insights/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve saved reports with their charts on a local web page",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, 127.0.0.1:8765)")
}

// configuredGenerator applies the config defaults to viewer requests.
type configuredGenerator struct {
	orch *report.Orchestrator
	cfg  config.Config
}

func (g configuredGenerator) Generate(ctx context.Context, req report.GenerateRequest) (report.Outcome, error) {
	return g.orch.Generate(ctx, withConfigDefaults(req, g.cfg))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	history := openHistory(cfg)
	defer history.Close()

	srvLog, err := logger.NewServerLogger(debugMode)
	if err != nil {
		return fmt.Errorf("init server logger: %w", err)
	}
	defer logger.Sync(srvLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := firstNonEmpty(serveAddr, cfg.Server.Addr)
	fmt.Println(headingStyle.Render("Report viewer on http://" + addr))

	orch := newOrchestrator(cfg, history)
	server := web.NewServer(history, srvLog, web.WithGenerator(configuredGenerator{orch: orch, cfg: cfg}))
	orch.Subscribe(server)
	if err := server.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		exit(exitUsage, err)
	}
	return nil
}
