package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttt-insights/internal/config"
	"github.com/Tiliavir/ttt-insights/internal/msgraph"
	"github.com/Tiliavir/ttt-insights/internal/tokenstore"
)

var (
	outlookSync   syncFlags
	outlookSyncTZ string
)

var outlookCmd = &cobra.Command{
	Use:   "outlook",
	Short: "Outlook calendar integration",
}

var outlookSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync Outlook calendar events into ttt entries",
	Args:  cobra.NoArgs,
	RunE:  runOutlookSync,
}

var outlookLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored Outlook token",
	Args:  cobra.NoArgs,
	RunE:  runOutlookLogout,
}

func init() {
	outlookSync.register(outlookSyncCmd)
	outlookSyncCmd.Flags().StringVar(&outlookSyncTZ, "timezone", "", "IANA timezone for event times (e.g. Europe/Berlin)")
	outlookCmd.AddCommand(outlookSyncCmd)
	outlookCmd.AddCommand(outlookLogoutCmd)
}

func outlookAuthenticator(cfg config.Config) *msgraph.Authenticator {
	path, err := msgraph.DefaultTokenPath()
	if err != nil {
		exit(exitStorage, err)
	}
	return &msgraph.Authenticator{
		TenantID:  cfg.Outlook.TenantID,
		ClientID:  cfg.Outlook.ClientID,
		TokenPath: path,
		Prompt:    os.Stdout,
		Logger:    log,
	}
}

func runOutlookSync(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	from, to := outlookSync.window(time.Now())
	printSyncHeader(os.Stdout, "Outlook", from, to, outlookSync.dryRun)

	httpClient, err := outlookAuthenticator(cfg).HTTPClient(context.Background())
	if err != nil {
		exit(exitUsage, fmt.Errorf("authentication failed: %w", err))
	}

	client := msgraph.NewClient(httpClient,
		msgraph.WithTimezone(firstNonEmpty(outlookSyncTZ, cfg.Outlook.Timezone)),
		msgraph.WithLogger(log),
	)
	runSync(client, &outlookSync, from, to, cfg.Outlook.DefaultCategory)
	return nil
}

func runOutlookLogout(cmd *cobra.Command, args []string) error {
	path, err := msgraph.DefaultTokenPath()
	if err != nil {
		exit(exitStorage, err)
	}
	if err := (tokenstore.File{Path: path}).Delete(); err != nil {
		exit(exitStorage, err)
	}
	fmt.Println(successStyle.Render("Signed out of Outlook."))
	return nil
}
