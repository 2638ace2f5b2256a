package llm

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// fallbackModels are offered when a vendor's model list cannot be fetched.
var fallbackModels = map[Vendor][]string{
	VendorOpenAI:    {"gpt-4.1", "gpt-4.1-mini", "gpt-4o", "gpt-4o-mini", "o4-mini"},
	VendorAnthropic: {"claude-3-5-haiku-20241022", "claude-opus-4-20250514", "claude-sonnet-4-20250514"},
	VendorGoogle:    {"gemini-1.5-pro", "gemini-2.0-flash", "gemini-2.5-flash", "gemini-2.5-pro"},
}

// FallbackModels returns the built-in model list for v.
func FallbackModels(v Vendor) []string {
	return append([]string(nil), fallbackModels[v]...)
}

// ModelLoader fetches model lists with a last-request-wins policy: every
// Load takes a new generation number and a response is only applied if no
// newer Load has started since.
type ModelLoader struct {
	log *zap.Logger

	mu     sync.Mutex
	gen    uint64
	vendor Vendor
	models []string
}

// NewModelLoader returns an empty loader.
func NewModelLoader(log *zap.Logger) *ModelLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &ModelLoader{log: log}
}

// Load lists p's models. current is false when a newer Load superseded this
// one; its result is then discarded and must not be shown.
func (l *ModelLoader) Load(ctx context.Context, p Provider) (models []string, current bool, err error) {
	l.mu.Lock()
	l.gen++
	id := l.gen
	l.mu.Unlock()

	models, err = p.ListModels(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if id != l.gen {
		l.log.Debug("discarding stale model list",
			zap.String("vendor", string(p.Vendor())),
			zap.Uint64("request", id),
			zap.Uint64("latest", l.gen))
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	l.vendor, l.models = p.Vendor(), append([]string(nil), models...)
	return models, true, nil
}

// Current returns the most recently applied model list.
func (l *ModelLoader) Current() (Vendor, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.vendor, append([]string(nil), l.models...)
}
