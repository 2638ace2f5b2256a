package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttt-insights/internal/config"
	"github.com/Tiliavir/ttt-insights/internal/gcal"
	"github.com/Tiliavir/ttt-insights/internal/tokenstore"
)

var (
	googleSync         syncFlags
	googleLoginTimeout time.Duration
)

var googleCmd = &cobra.Command{
	Use:   "google",
	Short: "Google Calendar integration",
}

var googleLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Google Calendar (read-only)",
	Args:  cobra.NoArgs,
	RunE:  runGoogleLogin,
}

var googleSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync Google Calendar events into ttt entries",
	Args:  cobra.NoArgs,
	RunE:  runGoogleSync,
}

var googleLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored Google token",
	Args:  cobra.NoArgs,
	RunE:  runGoogleLogout,
}

func init() {
	googleLoginCmd.Flags().DurationVar(&googleLoginTimeout, "timeout", 5*time.Minute, "How long to wait for the browser sign-in")
	googleSync.register(googleSyncCmd)

	googleCmd.AddCommand(googleLoginCmd)
	googleCmd.AddCommand(googleSyncCmd)
	googleCmd.AddCommand(googleLogoutCmd)
}

func googleConfig(cfg config.Config) gcal.Config {
	return gcal.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
	}
}

func googleTokenFile() tokenstore.File {
	path, err := gcal.DefaultTokenPath()
	if err != nil {
		exit(exitStorage, err)
	}
	return tokenstore.File{Path: path}
}

func runGoogleLogin(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_, err := gcal.Login(ctx, googleConfig(cfg), googleTokenFile(), gcal.LoginOptions{
		Port:    cfg.Google.RedirectPort,
		Prompt:  os.Stdout,
		Logger:  log,
		Timeout: googleLoginTimeout,
	})
	if err != nil {
		exit(exitUsage, fmt.Errorf("google sign-in failed: %w", err))
	}
	fmt.Println(successStyle.Render("Signed in to Google Calendar."))
	return nil
}

func runGoogleSync(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	from, to := googleSync.window(time.Now())
	printSyncHeader(os.Stdout, "Google Calendar", from, to, googleSync.dryRun)

	httpClient, err := gcal.HTTPClient(context.Background(), googleConfig(cfg), googleTokenFile(), log)
	if err != nil {
		exit(exitUsage, fmt.Errorf("authentication failed: %w", err))
	}

	client := gcal.NewClient(httpClient,
		gcal.WithCalendarID(cfg.Google.CalendarID),
		gcal.WithLogger(log),
	)
	runSync(client, &googleSync, from, to, cfg.Google.DefaultCategory)
	return nil
}

func runGoogleLogout(cmd *cobra.Command, args []string) error {
	if err := googleTokenFile().Delete(); err != nil {
		exit(exitStorage, err)
	}
	fmt.Println(successStyle.Render("Signed out of Google Calendar."))
	return nil
}
