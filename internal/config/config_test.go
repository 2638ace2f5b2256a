package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tiliavir/ttt-insights/internal/config"
	"github.com/Tiliavir/ttt-insights/internal/llm"
	"github.com/Tiliavir/ttt-insights/internal/validation"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadFileFirstRunWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttt", "config.json")
	cfg, err := config.LoadFile(path, nil)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Outlook.TenantID != config.DefaultTenantID || cfg.Report.HistoryLimit != config.DefaultHistoryLimit {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("template not written: %v", err)
	}
	if !strings.Contains(string(data), "// ttt configuration") {
		t.Error("template lacks comment header")
	}

	again, err := config.LoadFile(path, nil)
	if err != nil {
		t.Fatalf("loading the written template: %v", err)
	}
	if again.Server.Addr != config.DefaultServerAddr || again.LLM.Provider != config.DefaultProvider {
		t.Errorf("template round trip = %+v", again)
	}
}

func TestLoadFilePartialWithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `// my config
{
  // only some settings
  "llm": {"provider": "anthropic", "max_tokens": 2048},
  "report": {"history_limit": 3, "notify": true}
}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadFile(path, nil)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.MaxTokens != 2048 {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Report.HistoryLimit != 3 || !cfg.Report.Notify || cfg.Report.EntryPreview != config.DefaultEntryPreview {
		t.Errorf("report = %+v", cfg.Report)
	}
	if cfg.Outlook.ClientID != config.DefaultClientID || cfg.Google.CalendarID != config.DefaultCalendarID {
		t.Errorf("defaults not filled: %+v", cfg)
	}
}

func TestLoadFileEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"llm": {"provider": "openai", "openai_api_key": "from-file"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadFile(path, env(map[string]string{
		config.EnvOpenAIKey: "sk-env",
		config.EnvGeminiKey: "g-env",
		config.EnvProvider:  "gemini",
		config.EnvModel:     "gemini-2.0-pro",
	}))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.LLM.APIKey(llm.VendorOpenAI) != "sk-env" || cfg.LLM.APIKey(llm.VendorGoogle) != "g-env" {
		t.Errorf("keys = %+v", cfg.LLM)
	}
	if cfg.LLM.APIKey(llm.VendorAnthropic) != "" {
		t.Error("anthropic key should be empty")
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.Model != "gemini-2.0-pro" {
		t.Errorf("provider/model = %q/%q", cfg.LLM.Provider, cfg.LLM.Model)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		invalid bool
	}{
		{name: "bad json", content: `{"llm": `},
		{name: "unknown provider", content: `{"llm": {"provider": "acme"}}`, invalid: true},
		{name: "unknown provider from env", content: `{}`, env: map[string]string{config.EnvProvider: "acme"}, invalid: true},
		{name: "temperature out of range", content: `{"llm": {"temperature": 5}}`, invalid: true},
		{name: "negative history limit", content: `{"report": {"history_limit": -1}}`, invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := config.LoadFile(path, env(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.invalid && !validation.IsValidationError(err) {
				t.Errorf("error = %v, want a validation error", err)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := config.Config{Report: config.ReportConfig{HistoryPath: "/tmp/h.db", TemplatesDir: "/tmp/tpl"}}
	if p, _ := cfg.HistoryPath(); p != "/tmp/h.db" {
		t.Errorf("HistoryPath = %q", p)
	}
	if p, _ := cfg.TemplatesDir(); p != "/tmp/tpl" {
		t.Errorf("TemplatesDir = %q", p)
	}
}
