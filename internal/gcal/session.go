// Package gcal imports meetings from Google Calendar.
package gcal

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// CalendarReadonlyScope grants read access to the user's calendars.
const CalendarReadonlyScope = "https://www.googleapis.com/auth/calendar.readonly"

var (
	// ErrSessionClosed is returned when a session is used after its code
	// exchange, successful or not.
	ErrSessionClosed = errors.New("google auth session already used")
	// ErrStateMismatch is returned when the callback state does not belong
	// to the session.
	ErrStateMismatch = errors.New("google auth state mismatch")
	// ErrNotConfigured is returned without client credentials.
	ErrNotConfigured = errors.New("google sync is not configured: set google.client_id and google.client_secret in ~/.ttt/config.json")
)

// Endpoint is Google's OAuth 2.0 endpoint for installed applications.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Config holds the OAuth client of the installed application.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint defaults to Google's.
	Endpoint oauth2.Endpoint
}

func (c Config) oauthConfig() *oauth2.Config {
	ep := c.Endpoint
	if ep.AuthURL == "" {
		ep = Endpoint
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       []string{CalendarReadonlyScope},
		Endpoint:     ep,
	}
}

// Session is one PKCE authorisation attempt. It is created when login
// starts, consumed by Exchange and cleared afterwards whatever the outcome.
type Session struct {
	cfg *oauth2.Config

	mu       sync.Mutex
	state    string
	verifier string
	closed   bool
}

// NewSession starts an authorisation attempt with a fresh state and code
// verifier.
func NewSession(cfg Config) (*Session, error) {
	if cfg.ClientID == "" {
		return nil, ErrNotConfigured
	}
	return &Session{
		cfg:      cfg.oauthConfig(),
		state:    uuid.NewString(),
		verifier: oauth2.GenerateVerifier(),
	}, nil
}

// State is the value Google echoes back on the redirect.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AuthURL is the consent page to open in the browser.
func (s *Session) AuthURL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	return s.cfg.AuthCodeURL(s.state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(s.verifier)), nil
}

// Exchange trades the authorisation code for a token. The session is closed
// afterwards; a second call returns ErrSessionClosed.
func (s *Session) Exchange(ctx context.Context, state, code string) (*oauth2.Token, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	verifier, want := s.verifier, s.state
	s.closed = true
	s.verifier = ""
	s.mu.Unlock()

	if subtle.ConstantTimeCompare([]byte(state), []byte(want)) != 1 {
		return nil, ErrStateMismatch
	}
	if code == "" {
		return nil, errors.New("google auth: empty authorization code")
	}
	tok, err := s.cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("google token exchange: %w", err)
	}
	return tok, nil
}

// Closed reports whether the session has been used.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// TokenSource refreshes tok as needed.
func (c Config) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return c.oauthConfig().TokenSource(ctx, tok)
}
