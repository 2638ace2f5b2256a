package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Tiliavir/ttt-insights/internal/llm"
	"github.com/Tiliavir/ttt-insights/internal/validation"
)

// Config is the root configuration for ttt, stored in ~/.ttt/config.json.
// The file supports single-line // comments for documentation purposes.
type Config struct {
	Outlook OutlookConfig `json:"outlook"`
	Google  GoogleConfig  `json:"google"`
	LLM     LLMConfig     `json:"llm"`
	Report  ReportConfig  `json:"report"`
	Server  ServerConfig  `json:"server"`
}

// OutlookConfig holds Microsoft Graph / Outlook calendar sync settings.
type OutlookConfig struct {
	// TenantID is the Azure AD tenant. Use "common" for personal/multi-tenant accounts.
	TenantID string `json:"tenant_id"`
	// ClientID is the Azure app (client) ID for the OAuth2 device code flow.
	ClientID string `json:"client_id"`
	// DefaultCategory is assigned to imported Outlook meetings.
	DefaultCategory string `json:"default_category"`
	// Timezone is the IANA timezone for event times (e.g. "Europe/Berlin"). Empty = UTC.
	Timezone string `json:"timezone"`
}

// GoogleConfig holds Google Calendar sync settings. Google requires an OAuth
// client of type "Desktop app" from the Cloud console.
type GoogleConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	// RedirectPort is the loopback port for the sign-in redirect; 0 picks a free one.
	RedirectPort    int    `json:"redirect_port" validate:"gte=0,lte=65535"`
	CalendarID      string `json:"calendar_id"`
	DefaultCategory string `json:"default_category"`
}

// LLMConfig selects the report provider.
type LLMConfig struct {
	Provider string `json:"provider" validate:"omitempty,vendor"`
	// Model is the vendor model ID; empty uses the vendor default.
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `json:"max_tokens" validate:"gte=0,lte=200000"`
	// CopyMode puts the prompt on the clipboard instead of calling a provider.
	CopyMode        bool   `json:"copy_mode"`
	OpenAIAPIKey    string `json:"openai_api_key"`
	AnthropicAPIKey string `json:"anthropic_api_key"`
	GeminiAPIKey    string `json:"gemini_api_key"`
	// BaseURL overrides the provider endpoint, e.g. for an OpenAI-compatible proxy.
	BaseURL string `json:"base_url"`
}

// APIKey returns the configured key for v.
func (c LLMConfig) APIKey(v llm.Vendor) string {
	switch v {
	case llm.VendorOpenAI:
		return c.OpenAIAPIKey
	case llm.VendorAnthropic:
		return c.AnthropicAPIKey
	case llm.VendorGoogle:
		return c.GeminiAPIKey
	}
	return ""
}

// ReportConfig holds report generation settings.
type ReportConfig struct {
	Template     string `json:"template"`
	HistoryLimit int    `json:"history_limit" validate:"gte=1,lte=1000"`
	EntryPreview int    `json:"entry_preview" validate:"gte=1,lte=5000"`
	Notify       bool   `json:"notify"`
	// HistoryPath is the SQLite report history; empty = ~/.ttt/reports.db.
	HistoryPath string `json:"history_path"`
	// TemplatesDir holds templates.yaml / templates.toml; empty = ~/.ttt.
	TemplatesDir string `json:"templates_dir"`
}

// ServerConfig configures the local report viewer.
type ServerConfig struct {
	Addr string `json:"addr" validate:"required"`
}

const (
	// DefaultTenantID is the Microsoft "common" tenant (supports personal and
	// multi-tenant organisational accounts without additional registration).
	DefaultTenantID = "common"
	// DefaultClientID is the well-known public Azure CLI app ID.
	// It supports device code flow without a client secret and requires no
	// app registration. Replace with your own registered app ID for
	// organisational or production deployments.
	DefaultClientID = "04b07795-8542-4c4a-95af-30b2c573d5ab"
	// DefaultCategory is the category of imported meetings.
	DefaultCategory     = "Meeting"
	DefaultProvider     = "openai"
	DefaultTemplate     = "weekly-summary"
	DefaultHistoryLimit = 10
	DefaultEntryPreview = 200
	DefaultServerAddr   = "127.0.0.1:8765"
	DefaultCalendarID   = "primary"
)

// Environment variables that override the file.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvProvider     = "TTT_LLM_PROVIDER"
	EnvModel        = "TTT_LLM_MODEL"
)

// defaultConfig returns a Config pre-filled with sensible defaults.
func defaultConfig() Config {
	return Config{
		Outlook: OutlookConfig{
			TenantID:        DefaultTenantID,
			ClientID:        DefaultClientID,
			DefaultCategory: DefaultCategory,
		},
		Google: GoogleConfig{
			CalendarID:      DefaultCalendarID,
			DefaultCategory: DefaultCategory,
		},
		LLM: LLMConfig{
			Provider: DefaultProvider,
		},
		Report: ReportConfig{
			Template:     DefaultTemplate,
			HistoryLimit: DefaultHistoryLimit,
			EntryPreview: DefaultEntryPreview,
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
	}
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// ttt configuration – ~/.ttt/config.json
//
// All settings are optional; the built-in defaults shown below work out of
// the box. API keys can also come from OPENAI_API_KEY, ANTHROPIC_API_KEY and
// GEMINI_API_KEY; TTT_LLM_PROVIDER and TTT_LLM_MODEL override the provider.
{
  // ── Microsoft Graph / Outlook calendar sync ──────────────────────────────
  "outlook": {
    // Azure AD tenant ID.
    // • "common"  – personal Microsoft accounts and any organisation (default)
    // • Your organisation's tenant GUID, e.g. "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx"
    "tenant_id": "common",

    // Azure application (client) ID used for the OAuth2 device code flow.
    // The built-in value is the public Azure CLI app – no app registration needed.
    "client_id": "04b07795-8542-4c4a-95af-30b2c573d5ab",

    // Category assigned to imported Outlook meetings.
    "default_category": "Meeting",

    // IANA timezone for interpreting calendar event times, e.g. "Europe/Berlin".
    // Leave empty to use UTC. Can be overridden with: ttt outlook sync --timezone <tz>
    "timezone": ""
  },

  // ── Google Calendar sync ─────────────────────────────────────────────────
  "google": {
    // OAuth client of type "Desktop app" from the Google Cloud console.
    "client_id": "",
    "client_secret": "",
    // Loopback port for the sign-in redirect; 0 picks a free port.
    "redirect_port": 0,
    "calendar_id": "primary",
    "default_category": "Meeting"
  },

  // ── Report provider ──────────────────────────────────────────────────────
  "llm": {
    // "openai", "anthropic" or "google"
    "provider": "openai",
    // Empty uses the provider's default model. List models with: ttt models
    "model": "",
    "max_tokens": 0,
    // true copies the prompt to the clipboard instead of calling a provider.
    "copy_mode": false,
    "openai_api_key": "",
    "anthropic_api_key": "",
    "gemini_api_key": ""
  },

  // ── Reports ──────────────────────────────────────────────────────────────
  "report": {
    // weekly-summary, productivity, deliverables, meetings or a custom template
    "template": "weekly-summary",
    // Number of generated reports kept in the history.
    "history_limit": 10,
    // Maximum number of time entries listed in the prompt.
    "entry_preview": 200,
    // Desktop notification when a report is ready or failed.
    "notify": false
  },

  // ── Report viewer (ttt serve) ────────────────────────────────────────────
  "server": {
    "addr": "127.0.0.1:8765"
  }
}
`

// Dir returns ~/.ttt.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".ttt"), nil
}

// configFilePath returns the path to ~/.ttt/config.json.
func configFilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads ~/.ttt/config.json with environment overrides, creating the
// file with annotated defaults on first run.
func Load() (Config, error) {
	path, err := configFilePath()
	if err != nil {
		return defaultConfig(), err
	}
	return LoadFile(path, os.Getenv)
}

// LoadFile reads the config at path, writing the annotated template when it
// does not exist, and applies overrides from getenv.
func LoadFile(path string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		return defaultConfig(), fmt.Errorf("reading config file %s: %w", path, err)
	default:
		cfg = Config{}
		if err := json.Unmarshal(stripLineComments(data), &cfg); err != nil {
			return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
		cfg.fillDefaults()
	}

	if getenv != nil {
		cfg.applyEnv(getenv)
	}
	if err := validation.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// fillDefaults sets zero-value fields to the built-in defaults so callers
// always get a usable Config even if the file is only partially filled in.
func (c *Config) fillDefaults() {
	d := defaultConfig()
	if c.Outlook.TenantID == "" {
		c.Outlook.TenantID = d.Outlook.TenantID
	}
	if c.Outlook.ClientID == "" {
		c.Outlook.ClientID = d.Outlook.ClientID
	}
	if c.Outlook.DefaultCategory == "" {
		c.Outlook.DefaultCategory = d.Outlook.DefaultCategory
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = d.Google.CalendarID
	}
	if c.Google.DefaultCategory == "" {
		c.Google.DefaultCategory = d.Google.DefaultCategory
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.Report.Template == "" {
		c.Report.Template = d.Report.Template
	}
	if c.Report.HistoryLimit == 0 {
		c.Report.HistoryLimit = d.Report.HistoryLimit
	}
	if c.Report.EntryPreview == 0 {
		c.Report.EntryPreview = d.Report.EntryPreview
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.LLM.OpenAIAPIKey, EnvOpenAIKey)
	set(&c.LLM.AnthropicAPIKey, EnvAnthropicKey)
	set(&c.LLM.GeminiAPIKey, EnvGeminiKey)
	set(&c.LLM.Provider, EnvProvider)
	set(&c.LLM.Model, EnvModel)
}

// HistoryPath returns the report history database path.
func (c Config) HistoryPath() (string, error) {
	if c.Report.HistoryPath != "" {
		return c.Report.HistoryPath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "reports.db"), nil
}

// TemplatesDir returns the directory searched for custom templates.
func (c Config) TemplatesDir() (string, error) {
	if c.Report.TemplatesDir != "" {
		return c.Report.TemplatesDir, nil
	}
	return Dir()
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
