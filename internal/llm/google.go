package llm

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/logger"
)

// DefaultGoogleBaseURL is the default Gemini API base URL.
const DefaultGoogleBaseURL = "https://generativelanguage.googleapis.com"

type googleProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	log     *zap.Logger
	debug   bool
}

// NewGoogle creates the Gemini provider.
func NewGoogle(opts Options) (Provider, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultGoogleBaseURL
	}
	return &googleProvider{
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		model:   opts.Model,
		client:  opts.httpClient(),
		log:     opts.logger(),
		debug:   opts.Debug,
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	ModelVersion string `json:"modelVersion"`
}

type geminiModels struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

// geminiBlocked lists finish reasons that mean the output was filtered.
var geminiBlocked = map[string]bool{
	"SAFETY":             true,
	"RECITATION":         true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
}

func (p *googleProvider) Vendor() Vendor { return VendorGoogle }

func (p *googleProvider) headers() map[string]string {
	return map[string]string{"x-goog-api-key": p.apiKey}
}

func (p *googleProvider) Generate(ctx context.Context, req Request) (Result, error) {
	model := strings.TrimPrefix(modelFor(VendorGoogle, p.model, req.Model), "models/")
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.User}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Params.Temperature,
			MaxOutputTokens: req.Params.MaxTokens,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	p.log.Debug("llm_api_request",
		zap.String("vendor", string(VendorGoogle)),
		zap.String("model", model),
		zap.Int("prompt_length", len(req.System)+len(req.User)),
		zap.String("prompt_preview", logger.Preview(req.User, p.debug)),
	)
	start := time.Now()
	endpoint := p.baseURL + "/v1beta/models/" + url.PathEscape(model) + ":generateContent"
	var resp geminiResponse
	if err := doJSON(ctx, p.client, VendorGoogle, http.MethodPost, endpoint, p.headers(), p.apiKey, body, &resp); err != nil {
		p.log.Debug("llm_api_error", zap.String("vendor", string(VendorGoogle)), zap.Error(err))
		return Result{}, err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return Result{}, &Error{Kind: KindSafetyBlocked, Vendor: VendorGoogle, Message: "prompt blocked: " + resp.PromptFeedback.BlockReason}
	}
	if len(resp.Candidates) == 0 {
		return Result{}, &Error{Kind: KindMalformed, Vendor: VendorGoogle, Message: "no candidates in response"}
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}
	text := sb.String()
	p.log.Debug("llm_api_response",
		zap.String("vendor", string(VendorGoogle)),
		zap.String("model", model),
		zap.String("finish_reason", cand.FinishReason),
		zap.Int("response_length", len(text)),
		zap.String("response_preview", logger.Preview(text, p.debug)),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)

	if geminiBlocked[cand.FinishReason] && strings.TrimSpace(text) == "" {
		return Result{}, &Error{Kind: KindSafetyBlocked, Vendor: VendorGoogle, Message: "response blocked: " + cand.FinishReason}
	}
	res := Result{Text: text, Model: model, FinishReason: cand.FinishReason}
	if resp.ModelVersion != "" {
		res.Model = resp.ModelVersion
	}
	return finish(VendorGoogle, p.log, res, cand.FinishReason == "MAX_TOKENS")
}

func (p *googleProvider) ListModels(ctx context.Context) ([]string, error) {
	var resp geminiModels
	if err := doJSON(ctx, p.client, VendorGoogle, http.MethodGet, p.baseURL+"/v1beta/models?pageSize=1000", p.headers(), p.apiKey, nil, &resp); err != nil {
		return nil, err
	}
	var ids []string
	for _, m := range resp.Models {
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				ids = append(ids, strings.TrimPrefix(m.Name, "models/"))
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *googleProvider) TestKey(ctx context.Context) (bool, error) {
	ok, err := testKey(p.ListModels(ctx))
	// Gemini answers an invalid key with 400 API_KEY_INVALID.
	var e *Error
	if errors.As(err, &e) && e.Status == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Message), "api key") {
		return false, nil
	}
	return ok, err
}
