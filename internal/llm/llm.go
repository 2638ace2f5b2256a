// Package llm is the provider adapter layer: one Provider interface with a
// variant per vendor, selected by the Vendor enum.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Vendor identifies an LLM vendor.
type Vendor string

const (
	VendorOpenAI    Vendor = "openai"
	VendorAnthropic Vendor = "anthropic"
	VendorGoogle    Vendor = "google"
)

// DefaultTimeout applies when Options.HTTPClient is nil.
const DefaultTimeout = 120 * time.Second

// Vendors returns every supported vendor.
func Vendors() []Vendor {
	return []Vendor{VendorOpenAI, VendorAnthropic, VendorGoogle}
}

// ParseVendor resolves a vendor name, accepting a few common aliases.
func ParseVendor(s string) (Vendor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "chatgpt":
		return VendorOpenAI, nil
	case "anthropic", "claude":
		return VendorAnthropic, nil
	case "google", "gemini":
		return VendorGoogle, nil
	}
	return "", fmt.Errorf("unknown provider %q (want openai, anthropic or google)", s)
}

// DisplayName is the vendor name shown to users.
func (v Vendor) DisplayName() string {
	switch v {
	case VendorOpenAI:
		return "OpenAI"
	case VendorAnthropic:
		return "Anthropic"
	case VendorGoogle:
		return "Google Gemini"
	}
	return string(v)
}

// DefaultModel is used when no model is configured.
func (v Vendor) DefaultModel() string {
	switch v {
	case VendorOpenAI:
		return "gpt-4o-mini"
	case VendorAnthropic:
		return "claude-sonnet-4-20250514"
	case VendorGoogle:
		return "gemini-2.0-flash"
	}
	return ""
}

// Params are the sampling parameters of one request.
type Params struct {
	// Temperature is left to the vendor default when nil.
	Temperature *float64
	// MaxTokens caps the completion; zero uses the adapter default.
	MaxTokens int
}

// Request is one generation request.
type Request struct {
	Model  string
	System string
	User   string
	Params Params
}

// Result is a completed generation. Truncated is set when the vendor stopped
// at the token limit and Text holds only partial output.
type Result struct {
	Text         string
	Model        string
	FinishReason string
	Truncated    bool
}

// Provider is implemented once per vendor.
type Provider interface {
	Vendor() Vendor
	// Generate returns the completion text or a classified *Error.
	Generate(ctx context.Context, req Request) (Result, error)
	// TestKey reports whether the vendor accepts the configured key. A
	// rejected key is (false, nil); transport failures are errors.
	TestKey(ctx context.Context) (bool, error)
	// ListModels returns the model IDs usable for chat, sorted.
	ListModels(ctx context.Context) ([]string, error)
}

// Options configure a Provider.
type Options struct {
	APIKey  string
	BaseURL string
	// Model is used when a Request leaves Model empty.
	Model      string
	HTTPClient *http.Client
	Logger     *zap.Logger
	// Debug logs full (sanitised) prompts and responses.
	Debug bool
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

// Factory creates a provider from options.
type Factory func(opts Options) (Provider, error)

// Registry maps vendors to factories.
type Registry struct {
	factories map[Vendor]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Vendor]Factory)}
}

// DefaultRegistry returns a registry with every built-in vendor.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(VendorOpenAI, NewOpenAI)
	r.Register(VendorAnthropic, NewAnthropic)
	r.Register(VendorGoogle, NewGoogle)
	return r
}

// Register registers a provider factory.
func (r *Registry) Register(v Vendor, f Factory) {
	r.factories[v] = f
}

// Vendors returns the registered vendors, sorted.
func (r *Registry) Vendors() []Vendor {
	out := make([]Vendor, 0, len(r.factories))
	for v := range r.factories {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Get creates the provider for v. A missing API key is a KindMissingKey
// error.
func (r *Registry) Get(v Vendor, opts Options) (Provider, error) {
	f, ok := r.factories[v]
	if !ok {
		return nil, fmt.Errorf("provider not registered: %s", v)
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, &Error{Kind: KindMissingKey, Vendor: v, Message: "no API key configured"}
	}
	return f(opts)
}

// New creates a provider from the default registry.
func New(v Vendor, opts Options) (Provider, error) {
	return DefaultRegistry().Get(v, opts)
}

// modelFor picks the request model, then the configured one, then the
// vendor default.
func modelFor(v Vendor, configured, requested string) string {
	if requested != "" {
		return requested
	}
	if configured != "" {
		return configured
	}
	return v.DefaultModel()
}

// finish applies the truncation policy shared by all adapters: partial text
// at the token limit is returned flagged, no text at all is an error.
func finish(v Vendor, log *zap.Logger, res Result, truncated bool) (Result, error) {
	if truncated {
		if strings.TrimSpace(res.Text) == "" {
			return Result{}, &Error{Kind: KindTruncated, Vendor: v, Message: "the model hit its output limit before producing any text"}
		}
		log.Warn("llm output truncated at token limit",
			zap.String("vendor", string(v)),
			zap.String("model", res.Model),
			zap.Int("response_length", len(res.Text)))
		res.Truncated = true
	}
	if strings.TrimSpace(res.Text) == "" {
		return Result{}, &Error{Kind: KindMalformed, Vendor: v, Message: "response contained no text"}
	}
	return res, nil
}
