package gcal

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Tiliavir/ttt-insights/internal/tokenstore"
)

// DefaultTokenPath returns ~/.ttt/auth/google_tokens.json.
func DefaultTokenPath() (string, error) {
	return tokenstore.DefaultPath("google_tokens.json")
}

// CallbackPath is where the browser is redirected after consent.
const CallbackPath = "/callback"

// LoginOptions configure Login.
type LoginOptions struct {
	// Port of the loopback redirect listener; 0 picks a free port.
	Port int
	// Open is called with the consent URL, e.g. to launch a browser. The URL
	// is always printed to Prompt as well.
	Open   func(url string) error
	Prompt io.Writer
	Logger *zap.Logger
	// Timeout bounds the wait for the browser redirect.
	Timeout time.Duration
}

type callbackResult struct {
	tok *oauth2.Token
	err error
}

// Login runs the installed-app flow with PKCE: it listens on the loopback
// interface, sends the user to the consent page, exchanges the returned
// code and stores the token.
func Login(ctx context.Context, cfg Config, store tokenstore.File, opts LoginOptions) (*oauth2.Token, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	prompt := opts.Prompt
	if prompt == nil {
		prompt = os.Stdout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", opts.Port))
	if err != nil {
		return nil, fmt.Errorf("listen for google redirect: %w", err)
	}
	cfg.RedirectURL = fmt.Sprintf("http://%s%s", ln.Addr().String(), CallbackPath)

	session, err := NewSession(cfg)
	if err != nil {
		ln.Close()
		return nil, err
	}
	authURL, err := session.AuthURL()
	if err != nil {
		ln.Close()
		return nil, err
	}

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		if e := q.Get("error"); e != "" {
			res.err = fmt.Errorf("google auth denied: %s", e)
		} else {
			res.tok, res.err = session.Exchange(r.Context(), q.Get("state"), q.Get("code"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "<p>Sign-in failed: %s</p>", html.EscapeString(res.err.Error()))
		} else {
			fmt.Fprint(w, "<p>Signed in. You can close this tab and return to the terminal.</p>")
		}
		select {
		case results <- res:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("google redirect listener stopped", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintln(prompt)
	fmt.Fprintln(prompt, "To sign in to Google Calendar, open this page in a browser:")
	fmt.Fprintf(prompt, "  %s\n", authURL)
	fmt.Fprintln(prompt)
	if opts.Open != nil {
		if err := opts.Open(authURL); err != nil {
			log.Debug("could not open browser", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		if err := store.Save(res.tok); err != nil {
			log.Warn("could not save google token", zap.Error(err))
		}
		return res.tok, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for google sign-in: %w", ctx.Err())
	}
}

// HTTPClient returns a client authorised with the stored token, refreshing
// and re-saving it as needed.
func HTTPClient(ctx context.Context, cfg Config, store tokenstore.File, log *zap.Logger) (*http.Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tok, err := store.Load()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, errors.New("not signed in to Google: run 'ttt google login'")
	}
	ts := tokenstore.Saving(cfg.TokenSource(ctx, tok), store, func(err error) {
		log.Debug("could not save google token", zap.Error(err))
	})
	return oauth2.NewClient(ctx, ts), nil
}
