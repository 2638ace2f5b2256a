package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tiliavir/ttt-insights/internal/llm"
	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/report"
	"github.com/Tiliavir/ttt-insights/internal/validation"
	"github.com/Tiliavir/ttt-insights/internal/web"
)

type fakeGenerator struct {
	got report.GenerateRequest
	out report.Outcome
	err error
}

func (g *fakeGenerator) Generate(_ context.Context, req report.GenerateRequest) (report.Outcome, error) {
	g.got = req
	return g.out, g.err
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body)
	}
	return rec, env
}

func TestGenerateReport(t *testing.T) {
	h, err := report.OpenHistory(report.MemoryPath, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })

	temp := 0.3
	gen := &fakeGenerator{out: report.Outcome{
		State: report.StateDisplayed,
		Report: model.Report{
			ID:        "new",
			CreatedAt: time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
			Provider:  "anthropic",
			Template:  "productivity",
		},
		Saved: true,
	}}
	srv := web.NewServer(h, nil, web.WithGenerator(gen))

	rec, env := post(t, srv.Handler(),
		`{"from":"2026-03-02","to":"2026-03-08","provider":"anthropic","template":"productivity","temperature":0.3}`)
	if rec.Code != http.StatusCreated || !env.Success {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp web.GenerateResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Report.ID != "new" || !resp.Saved {
		t.Errorf("response = %+v", resp)
	}
	if gen.got.Provider != "anthropic" || gen.got.From.Day() != 2 || gen.got.To.Day() != 8 {
		t.Errorf("request = %+v", gen.got)
	}
	if gen.got.Temperature == nil || *gen.got.Temperature != temp {
		t.Errorf("temperature = %v, want %v", gen.got.Temperature, temp)
	}
}

func TestGenerateReportErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"bad date", `{"from":"03/02/2026","to":"2026-03-08"}`, nil, http.StatusBadRequest},
		{"invalid request", `{"from":"2026-03-02","to":"2026-03-08"}`,
			&validation.Error{Problems: []string{"provider is required"}}, http.StatusBadRequest},
		{"unknown template", `{"from":"2026-03-02","to":"2026-03-08","provider":"openai"}`,
			report.ErrUnknownTemplate, http.StatusBadRequest},
		{"busy", `{"from":"2026-03-02","to":"2026-03-08","provider":"openai"}`,
			report.ErrBusy, http.StatusConflict},
		{"provider", `{"from":"2026-03-02","to":"2026-03-08","provider":"openai"}`,
			&llm.Error{Kind: llm.KindHTTP, Vendor: llm.VendorOpenAI, Status: 429, Message: "rate limited"}, http.StatusBadGateway},
		{"other", `{"from":"2026-03-02","to":"2026-03-08","provider":"openai"}`,
			errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := web.NewServer(nil, nil, web.WithGenerator(&fakeGenerator{err: tt.err}))
			rec, env := post(t, srv.Handler(), tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
			if env.Success {
				t.Error("success = true for a failed generation")
			}
		})
	}
}

func TestGenerateReportDisabled(t *testing.T) {
	srv := web.NewServer(nil, nil)
	rec, _ := post(t, srv.Handler(), `{}`)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}
