package msgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Tiliavir/ttt-insights/internal/tokenstore"
)

var requiredScopes = []string{
	"https://graph.microsoft.com/Calendars.Read",
	"offline_access",
}

// LoginBaseURL is the Microsoft identity platform host.
const LoginBaseURL = "https://login.microsoftonline.com"

// ErrNotConfigured is returned when tenant or client ID are missing.
var ErrNotConfigured = errors.New("outlook sync is not configured: set outlook.tenant_id and outlook.client_id in ~/.ttt/config.json")

// DefaultTokenPath returns ~/.ttt/auth/msgraph_tokens.json.
func DefaultTokenPath() (string, error) {
	return tokenstore.DefaultPath("msgraph_tokens.json")
}

// Authenticator obtains Graph tokens with the device code flow and keeps
// them in TokenPath.
type Authenticator struct {
	TenantID  string
	ClientID  string
	TokenPath string
	// LoginURL overrides LoginBaseURL.
	LoginURL string
	// Prompt receives the device code instructions.
	Prompt io.Writer
	Logger *zap.Logger
}

func (a *Authenticator) log() *zap.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return zap.NewNop()
}

func (a *Authenticator) endpoint(path string) string {
	base := a.LoginURL
	if base == "" {
		base = LoginBaseURL
	}
	return base + "/" + a.TenantID + "/oauth2/v2.0/" + path
}

func (a *Authenticator) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID: a.ClientID,
		Scopes:   requiredScopes,
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: a.endpoint("devicecode"),
			TokenURL:      a.endpoint("token"),
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}
}

func (a *Authenticator) store() tokenstore.File {
	return tokenstore.File{Path: a.TokenPath}
}

// Token returns a usable token: the stored one, a refreshed one, or a new
// one from the device code flow.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	if a.TenantID == "" || a.ClientID == "" {
		return nil, ErrNotConfigured
	}
	cfg := a.config()
	log := a.log()

	tok, err := a.store().Load()
	if err != nil {
		log.Warn("ignoring stored graph token", zap.Error(err))
		tok = nil
	}
	if tok != nil && tok.Valid() {
		return tok, nil
	}

	if tok != nil && tok.RefreshToken != "" {
		refreshed, err := cfg.TokenSource(ctx, tok).Token()
		if err == nil {
			if err := a.store().Save(refreshed); err != nil {
				log.Warn("could not save refreshed token", zap.Error(err))
			}
			return refreshed, nil
		}
		log.Info("token refresh failed, re-authenticating", zap.Error(err))
	}

	resp, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device auth request failed: %w", err)
	}
	prompt := a.Prompt
	if prompt == nil {
		prompt = os.Stdout
	}
	fmt.Fprintln(prompt)
	fmt.Fprintln(prompt, "To sign in, use a web browser to open the page:")
	fmt.Fprintf(prompt, "  %s\n", resp.VerificationURI)
	fmt.Fprintf(prompt, "Enter the code: %s\n", resp.UserCode)
	fmt.Fprintln(prompt)

	newTok, err := cfg.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("device authentication failed: %w", err)
	}
	if err := a.store().Save(newTok); err != nil {
		log.Warn("could not save token", zap.Error(err))
	}
	return newTok, nil
}

// HTTPClient returns an HTTP client that authorises Graph requests and
// persists refreshed tokens.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}
	ts := tokenstore.Saving(a.config().TokenSource(ctx, tok), a.store(), func(err error) {
		a.log().Debug("could not save token", zap.Error(err))
	})
	return oauth2.NewClient(ctx, ts), nil
}
