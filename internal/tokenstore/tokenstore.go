// Package tokenstore keeps OAuth tokens in JSON files under ~/.ttt/auth.
package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// DefaultPath returns ~/.ttt/auth/<name>.
func DefaultPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".ttt", "auth", name), nil
}

// File stores one token at Path.
type File struct {
	Path string
}

// Load returns the stored token, or nil when there is none.
func (f File) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to re-authenticate): %w", f.Path, err)
	}
	return &tok, nil
}

// Save writes tok atomically with owner-only permissions.
func (f File) Save(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("creating auth directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}
	tmpPath := f.Path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpPath, f.Path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}

// Delete removes the stored token. A missing file is not an error.
func (f File) Delete() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Saving wraps ts and writes every new token to f.
func Saving(ts oauth2.TokenSource, f File, onErr func(error)) oauth2.TokenSource {
	return &savingSource{ts: ts, f: f, onErr: onErr}
}

type savingSource struct {
	ts    oauth2.TokenSource
	f     File
	onErr func(error)
	last  string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.f.Save(tok); err != nil && s.onErr != nil {
			s.onErr(err)
		}
	}
	return tok, nil
}
