package llm

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/logger"
)

// DefaultOpenAIBaseURL is the default OpenAI API base URL.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIProvider struct {
	client openai.Client
	model  string
	log    *zap.Logger
	debug  bool
}

// NewOpenAI creates the OpenAI provider.
func NewOpenAI(opts Options) (Provider, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	client := openai.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(opts.httpClient()),
		option.WithMaxRetries(0),
	)
	return &openAIProvider{
		client: client,
		model:  opts.Model,
		log:    opts.logger(),
		debug:  opts.Debug,
	}, nil
}

func (p *openAIProvider) Vendor() Vendor { return VendorOpenAI }

func (p *openAIProvider) Generate(ctx context.Context, req Request) (Result, error) {
	model := modelFor(VendorOpenAI, p.model, req.Model)
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
	if req.Params.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.Params.MaxTokens))
	}
	if req.Params.Temperature != nil {
		params.Temperature = openai.Float(*req.Params.Temperature)
	}

	p.log.Debug("llm_api_request",
		zap.String("vendor", string(VendorOpenAI)),
		zap.String("model", model),
		zap.Int("prompt_length", len(req.System)+len(req.User)),
		zap.String("prompt_preview", logger.Preview(req.User, p.debug)),
	)
	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		p.log.Debug("llm_api_error",
			zap.String("vendor", string(VendorOpenAI)),
			zap.String("error", logger.SanitizeError(err)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
		return Result{}, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, &Error{Kind: KindMalformed, Vendor: VendorOpenAI, Message: "no choices in response"}
	}

	choice := resp.Choices[0]
	text := choice.Message.Content
	reason := string(choice.FinishReason)
	p.log.Debug("llm_api_response",
		zap.String("vendor", string(VendorOpenAI)),
		zap.String("model", resp.Model),
		zap.String("finish_reason", reason),
		zap.Int("response_length", len(text)),
		zap.String("response_preview", logger.Preview(text, p.debug)),
		zap.Int64("latency_ms", latency.Milliseconds()),
	)

	if refusal := choice.Message.Refusal; refusal != "" && strings.TrimSpace(text) == "" {
		return Result{}, &Error{Kind: KindSafetyBlocked, Vendor: VendorOpenAI, Message: refusal}
	}
	if reason == "content_filter" && strings.TrimSpace(text) == "" {
		return Result{}, &Error{Kind: KindSafetyBlocked, Vendor: VendorOpenAI, Message: "content filtered"}
	}

	res := Result{Text: text, Model: resp.Model, FinishReason: reason}
	if res.Model == "" {
		res.Model = model
	}
	return finish(VendorOpenAI, p.log, res, reason == "length")
}

func (p *openAIProvider) ListModels(ctx context.Context) ([]string, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	var ids []string
	for _, m := range page.Data {
		if isOpenAIChatModel(m.ID) {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *openAIProvider) TestKey(ctx context.Context) (bool, error) {
	return testKey(p.ListModels(ctx))
}

// isOpenAIChatModel filters the model list down to chat-capable families.
func isOpenAIChatModel(id string) bool {
	for _, skip := range []string{"embedding", "whisper", "tts", "dall-e", "moderation", "audio", "realtime", "transcribe", "image"} {
		if strings.Contains(id, skip) {
			return false
		}
	}
	for _, prefix := range []string{"gpt-", "chatgpt-", "o1", "o3", "o4"} {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &Error{Kind: KindHTTP, Vendor: VendorOpenAI, Status: apiErr.StatusCode, Message: msg, Err: err}
	}
	return &Error{Kind: KindHTTP, Vendor: VendorOpenAI, Message: logger.SanitizeError(err), Err: err}
}

// testKey maps a ListModels outcome to the TestKey contract.
func testKey(_ []string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	var e *Error
	if errors.As(err, &e) && e.Kind == KindHTTP && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden) {
		return false, nil
	}
	return false, err
}
