package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Tiliavir/ttt-insights/internal/llm"
)

func TestParseVendor(t *testing.T) {
	tests := []struct {
		in      string
		want    llm.Vendor
		wantErr bool
	}{
		{"openai", llm.VendorOpenAI, false},
		{" Claude ", llm.VendorAnthropic, false},
		{"gemini", llm.VendorGoogle, false},
		{"GOOGLE", llm.VendorGoogle, false},
		{"mistral", "", true},
	}
	for _, tt := range tests {
		got, err := llm.ParseVendor(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseVendor(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNewMissingKey(t *testing.T) {
	for _, v := range llm.Vendors() {
		_, err := llm.New(v, llm.Options{APIKey: "  "})
		if !llm.IsKind(err, llm.KindMissingKey) {
			t.Errorf("%s: err = %v, want MissingKey", v, err)
		}
		if msg := llm.UserMessage(err); !strings.Contains(msg, llm.KeyEnvVar(v)) {
			t.Errorf("%s: user message %q does not name %s", v, msg, llm.KeyEnvVar(v))
		}
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  *llm.Error
		want string
	}{
		{&llm.Error{Kind: llm.KindHTTP, Vendor: llm.VendorOpenAI, Status: 401}, "rejected the API key"},
		{&llm.Error{Kind: llm.KindHTTP, Vendor: llm.VendorOpenAI, Status: 429}, "rate limit"},
		{&llm.Error{Kind: llm.KindHTTP, Vendor: llm.VendorOpenAI, Status: 503}, "unavailable"},
		{&llm.Error{Kind: llm.KindSafetyBlocked, Vendor: llm.VendorGoogle}, "declined"},
		{&llm.Error{Kind: llm.KindTruncated, Vendor: llm.VendorAnthropic}, "output limit"},
	}
	for _, tt := range tests {
		if got := tt.err.UserMessage(); !strings.Contains(got, tt.want) {
			t.Errorf("%v: UserMessage() = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
	if got := llm.UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode body %s: %v", data, err)
	}
	return m
}

func temp(f float64) *float64 { return &f }

func newProvider(t *testing.T, v llm.Vendor, h http.HandlerFunc) llm.Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p, err := llm.New(v, llm.Options{APIKey: "test-key-123456", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestOpenAIGenerate(t *testing.T) {
	p := newProvider(t, llm.VendorOpenAI, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key-123456" {
			t.Errorf("Authorization = %q", got)
		}
		body := decodeBody(t, r)
		if body["model"] != "gpt-4o" {
			t.Errorf("model = %v", body["model"])
		}
		if body["max_completion_tokens"] != float64(500) || body["temperature"] != 0.2 {
			t.Errorf("params = %v / %v", body["max_completion_tokens"], body["temperature"])
		}
		msgs, _ := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("messages = %v", body["messages"])
		}
		if role := msgs[0].(map[string]any)["role"]; role != "system" {
			t.Errorf("first role = %v", role)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"## Report"},"finish_reason":"stop"}]}`)
	})

	res, err := p.Generate(context.Background(), llm.Request{
		Model:  "gpt-4o",
		System: "sys",
		User:   "data",
		Params: llm.Params{Temperature: temp(0.2), MaxTokens: 500},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "## Report" || res.Truncated || res.Model != "gpt-4o" {
		t.Errorf("result = %+v", res)
	}
}

func TestOpenAITruncation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    llm.Kind
	}{
		{"partial text", "half a rep", 0},
		{"no text", "", llm.KindTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProvider(t, llm.VendorOpenAI, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"id": "c1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
					"choices": []any{map[string]any{
						"index":         0,
						"message":       map[string]any{"role": "assistant", "content": tt.content},
						"finish_reason": "length",
					}},
				})
			})
			res, err := p.Generate(context.Background(), llm.Request{User: "x"})
			if tt.want == 0 {
				if err != nil || !res.Truncated || res.Text != tt.content {
					t.Errorf("Generate = %+v, %v; want truncated partial text", res, err)
				}
				return
			}
			if !llm.IsKind(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpenAIHTTPError(t *testing.T) {
	p := newProvider(t, llm.VendorOpenAI, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	})
	_, err := p.Generate(context.Background(), llm.Request{User: "x"})
	var e *llm.Error
	if !errors.As(err, &e) || e.Kind != llm.KindHTTP || e.Status != 401 {
		t.Fatalf("err = %v", err)
	}
	if e.Message == "" {
		t.Error("empty message")
	}
	ok, err := p.TestKey(context.Background())
	if ok || err != nil {
		t.Errorf("TestKey = %v, %v; want false, nil", ok, err)
	}
}

func TestOpenAIListModels(t *testing.T) {
	p := newProvider(t, llm.VendorOpenAI, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"object":"list","data":[
			{"id":"text-embedding-3-small","object":"model","created":1,"owned_by":"openai"},
			{"id":"gpt-4o","object":"model","created":1,"owned_by":"openai"},
			{"id":"o3-mini","object":"model","created":1,"owned_by":"openai"},
			{"id":"whisper-1","object":"model","created":1,"owned_by":"openai"}]}`)
	})
	got, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if strings.Join(got, ",") != "gpt-4o,o3-mini" {
		t.Errorf("models = %v", got)
	}
	if ok, err := p.TestKey(context.Background()); !ok || err != nil {
		t.Errorf("TestKey = %v, %v", ok, err)
	}
}

func TestAnthropicGenerate(t *testing.T) {
	p := newProvider(t, llm.VendorAnthropic, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key-123456" || r.Header.Get("anthropic-version") == "" {
			t.Errorf("headers = %v", r.Header)
		}
		body := decodeBody(t, r)
		if body["system"] != "sys" || body["max_tokens"] != float64(4096) {
			t.Errorf("body = %v", body)
		}
		if _, ok := body["temperature"]; ok {
			t.Error("temperature sent although unset")
		}
		io.WriteString(w, `{"model":"claude-x","content":[{"type":"text","text":"Hello "},{"type":"text","text":"world"}],"stop_reason":"end_turn"}`)
	})
	res, err := p.Generate(context.Background(), llm.Request{System: "sys", User: "data"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "Hello world" || res.Model != "claude-x" || res.FinishReason != "end_turn" {
		t.Errorf("result = %+v", res)
	}
}

func TestAnthropicErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   llm.Kind
	}{
		{"rate limited", 429, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, llm.KindHTTP},
		{"refusal", 200, `{"content":[],"stop_reason":"refusal"}`, llm.KindSafetyBlocked},
		{"max tokens no text", 200, `{"content":[],"stop_reason":"max_tokens"}`, llm.KindTruncated},
		{"not json", 200, `<html>`, llm.KindMalformed},
		{"empty content", 200, `{"content":[],"stop_reason":"end_turn"}`, llm.KindMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProvider(t, llm.VendorAnthropic, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := p.Generate(context.Background(), llm.Request{User: "x"})
			if !llm.IsKind(err, tt.kind) {
				t.Fatalf("err = %v, want %v", err, tt.kind)
			}
			if tt.status == 429 && !strings.Contains(err.Error(), "slow down") {
				t.Errorf("err = %v, want vendor message", err)
			}
		})
	}
}

func TestGoogleGenerate(t *testing.T) {
	p := newProvider(t, llm.VendorGoogle, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key-123456" {
			t.Error("missing api key header")
		}
		if r.URL.RawQuery != "" {
			t.Errorf("key leaked into query: %s", r.URL.RawQuery)
		}
		body := decodeBody(t, r)
		if _, ok := body["systemInstruction"]; !ok {
			t.Error("systemInstruction missing")
		}
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"partial"}]},"finishReason":"MAX_TOKENS"}]}`)
	})
	res, err := p.Generate(context.Background(), llm.Request{System: "sys", User: "x"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "partial" || !res.Truncated {
		t.Errorf("result = %+v", res)
	}
}

func TestGoogleSafety(t *testing.T) {
	bodies := []string{
		`{"promptFeedback":{"blockReason":"SAFETY"}}`,
		`{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`,
	}
	for _, b := range bodies {
		p := newProvider(t, llm.VendorGoogle, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, b)
		})
		if _, err := p.Generate(context.Background(), llm.Request{User: "x"}); !llm.IsKind(err, llm.KindSafetyBlocked) {
			t.Errorf("body %s: err = %v, want SafetyBlocked", b, err)
		}
	}
}

func TestGoogleModelsAndKey(t *testing.T) {
	p := newProvider(t, llm.VendorGoogle, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") == "test-key-123456" {
			io.WriteString(w, `{"models":[
				{"name":"models/gemini-2.0-flash","supportedGenerationMethods":["generateContent","countTokens"]},
				{"name":"models/text-embedding-004","supportedGenerationMethods":["embedContent"]}]}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	})
	got, err := p.ListModels(context.Background())
	if err != nil || len(got) != 1 || got[0] != "gemini-2.0-flash" {
		t.Errorf("ListModels = %v, %v", got, err)
	}

	bad := newProvider(t, llm.VendorGoogle, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`)
	})
	if ok, err := bad.TestKey(context.Background()); ok || err != nil {
		t.Errorf("TestKey = %v, %v; want false, nil", ok, err)
	}
}

type stubProvider struct {
	llm.Provider
	models  []string
	entered chan struct{}
	release chan struct{}
}

func (s *stubProvider) Vendor() llm.Vendor { return llm.VendorOpenAI }

func (s *stubProvider) ListModels(ctx context.Context) ([]string, error) {
	if s.entered != nil {
		close(s.entered)
	}
	if s.release != nil {
		<-s.release
	}
	return s.models, nil
}

func TestModelLoaderLastRequestWins(t *testing.T) {
	l := llm.NewModelLoader(nil)
	slow := &stubProvider{models: []string{"old"}, entered: make(chan struct{}), release: make(chan struct{})}
	fast := &stubProvider{models: []string{"new"}}

	type result struct {
		models  []string
		current bool
	}
	done := make(chan result)
	go func() {
		m, cur, _ := l.Load(context.Background(), slow)
		done <- result{m, cur}
	}()
	<-slow.entered

	models, current, err := l.Load(context.Background(), fast)
	if err != nil || !current || len(models) != 1 || models[0] != "new" {
		t.Fatalf("fast Load = %v, %v, %v", models, current, err)
	}
	close(slow.release)
	r := <-done
	if r.current || r.models != nil {
		t.Errorf("stale Load = %+v, want discarded", r)
	}
	if v, m := l.Current(); v != llm.VendorOpenAI || len(m) != 1 || m[0] != "new" {
		t.Errorf("Current = %v %v", v, m)
	}
}

func TestFallbackModels(t *testing.T) {
	for _, v := range llm.Vendors() {
		models := llm.FallbackModels(v)
		found := false
		for _, m := range models {
			if m == v.DefaultModel() {
				found = true
			}
		}
		if !found {
			t.Errorf("%s fallback list %v lacks default model %s", v, models, v.DefaultModel())
		}
	}
}
