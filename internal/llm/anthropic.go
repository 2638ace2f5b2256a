package llm

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/logger"
)

const (
	// DefaultAnthropicBaseURL is the default Anthropic API base URL.
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	// anthropicMaxTokens is sent when the request sets no limit; the
	// messages API requires one.
	anthropicMaxTokens = 4096
)

type anthropicProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	log     *zap.Logger
	debug   bool
}

// NewAnthropic creates the Anthropic provider.
func NewAnthropic(opts Options) (Provider, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	return &anthropicProvider{
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		model:   opts.Model,
		client:  opts.httpClient(),
		log:     opts.logger(),
		debug:   opts.Debug,
	}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type anthropicModels struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (p *anthropicProvider) Vendor() Vendor { return VendorAnthropic }

func (p *anthropicProvider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
}

func (p *anthropicProvider) Generate(ctx context.Context, req Request) (Result, error) {
	model := modelFor(VendorAnthropic, p.model, req.Model)
	maxTokens := req.Params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}
	body := anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.User}},
		Temperature: req.Params.Temperature,
	}

	p.log.Debug("llm_api_request",
		zap.String("vendor", string(VendorAnthropic)),
		zap.String("model", model),
		zap.Int("prompt_length", len(req.System)+len(req.User)),
		zap.String("prompt_preview", logger.Preview(req.User, p.debug)),
	)
	start := time.Now()
	var resp anthropicResponse
	if err := doJSON(ctx, p.client, VendorAnthropic, http.MethodPost, p.baseURL+"/v1/messages", p.headers(), p.apiKey, body, &resp); err != nil {
		p.log.Debug("llm_api_error", zap.String("vendor", string(VendorAnthropic)), zap.Error(err))
		return Result{}, err
	}

	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	text := sb.String()
	p.log.Debug("llm_api_response",
		zap.String("vendor", string(VendorAnthropic)),
		zap.String("model", resp.Model),
		zap.String("stop_reason", resp.StopReason),
		zap.Int("response_length", len(text)),
		zap.String("response_preview", logger.Preview(text, p.debug)),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)

	if resp.StopReason == "refusal" && strings.TrimSpace(text) == "" {
		return Result{}, &Error{Kind: KindSafetyBlocked, Vendor: VendorAnthropic, Message: "the model refused the request"}
	}
	res := Result{Text: text, Model: resp.Model, FinishReason: resp.StopReason}
	if res.Model == "" {
		res.Model = model
	}
	return finish(VendorAnthropic, p.log, res, resp.StopReason == "max_tokens")
}

func (p *anthropicProvider) ListModels(ctx context.Context) ([]string, error) {
	var resp anthropicModels
	if err := doJSON(ctx, p.client, VendorAnthropic, http.MethodGet, p.baseURL+"/v1/models?limit=100", p.headers(), p.apiKey, nil, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *anthropicProvider) TestKey(ctx context.Context) (bool, error) {
	return testKey(p.ListModels(ctx))
}
