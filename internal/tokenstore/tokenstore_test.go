package tokenstore_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/Tiliavir/ttt-insights/internal/tokenstore"
)

func TestFileRoundTrip(t *testing.T) {
	f := tokenstore.File{Path: filepath.Join(t.TempDir(), "auth", "tok.json")}

	tok, err := f.Load()
	if err != nil || tok != nil {
		t.Fatalf("Load on missing file = %v, %v; want nil, nil", tok, err)
	}
	want := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := f.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(f.Path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %o, want 600", perm)
	}
	got, err := f.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "a" || got.RefreshToken != "r" || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("Load() = %+v", got)
	}
	if err := f.Delete(); err != nil {
		t.Fatal(err)
	}
	if err := f.Delete(); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestFileCorrupt(t *testing.T) {
	f := tokenstore.File{Path: filepath.Join(t.TempDir(), "tok.json")}
	if err := os.WriteFile(f.Path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Load(); err == nil {
		t.Fatal("expected error for corrupt file")
	}
}

type countingSource struct {
	tokens []string
	i      int
}

func (c *countingSource) Token() (*oauth2.Token, error) {
	tok := &oauth2.Token{AccessToken: c.tokens[c.i]}
	if c.i < len(c.tokens)-1 {
		c.i++
	}
	return tok, nil
}

func TestSavingPersistsNewTokens(t *testing.T) {
	f := tokenstore.File{Path: filepath.Join(t.TempDir(), "tok.json")}
	src := tokenstore.Saving(&countingSource{tokens: []string{"one", "two"}}, f, func(err error) { t.Error(err) })

	if _, err := src.Token(); err != nil {
		t.Fatal(err)
	}
	got, _ := f.Load()
	if got == nil || got.AccessToken != "one" {
		t.Fatalf("stored = %+v, want one", got)
	}
	src.Token()
	got, _ = f.Load()
	if got.AccessToken != "two" {
		t.Errorf("stored = %q, want two", got.AccessToken)
	}
}
