package web_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/report"
	"github.com/Tiliavir/ttt-insights/internal/web"
)

func newViewer(t *testing.T) (*web.Server, *report.History) {
	t.Helper()
	h, err := report.OpenHistory(report.MemoryPath, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	rep := model.Report{
		ID:        "r1",
		CreatedAt: time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
		Content:   "## Week",
		HTML:      `<h2>Week</h2>` + "\n" + `<div class="report-chart" id="chart-a" data-chart-type="daily"></div>`,
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		Template:  "weekly-summary",
		ChartData: json.RawMessage(`{"bound":[{"elementId":"chart-a","config":{"kind":"daily","type":"bar","title":"Hours per day","data":{"labels":["2026-03-02"],"datasets":[{"data":[1.5]}]}}}],"unplaced":null}`),
		Truncated: true,
	}
	if err := h.Save(rep); err != nil {
		t.Fatal(err)
	}
	return web.NewServer(h, nil), h
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return rec, env
}

func TestListReports(t *testing.T) {
	srv, _ := newViewer(t)
	rec, env := do(t, srv.Handler(), "GET", "/reports")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var list []web.Summary
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "r1" || !list[0].Truncated {
		t.Errorf("list = %+v", list)
	}
}

func TestShowReport(t *testing.T) {
	srv, _ := newViewer(t)
	rec, _ := do(t, srv.Handler(), "GET", "/reports/r1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<h2>Week</h2>",
		`id="chart-a"`,
		`"elementId":"chart-a"`,
		"incomplete",
		web.ChartJSURL,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page lacks %q", want)
		}
	}
}

func TestReportCharts(t *testing.T) {
	srv, _ := newViewer(t)
	rec, env := do(t, srv.Handler(), "GET", "/reports/r1/charts")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var cd report.ChartData
	if err := json.Unmarshal(env.Data, &cd); err != nil {
		t.Fatal(err)
	}
	if len(cd.Bound) != 1 || cd.Bound[0].Config.Type != "bar" {
		t.Errorf("charts = %+v", cd)
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := newViewer(t)
	for _, tc := range []struct{ method, path string }{
		{"GET", "/reports/missing"},
		{"GET", "/reports/missing/charts"},
		{"DELETE", "/reports/missing"},
	} {
		rec, _ := do(t, srv.Handler(), tc.method, tc.path)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", tc.method, tc.path, rec.Code)
		}
	}
}

func TestDeleteReport(t *testing.T) {
	srv, h := newViewer(t)
	rec, _ := do(t, srv.Handler(), "DELETE", "/reports/r1")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, err := h.Get("r1"); !errors.Is(err, report.ErrNotFound) {
		t.Errorf("report still present: %v", err)
	}
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newViewer(t)
	rec, _ := do(t, srv.Handler(), "GET", "/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `href="/reports/r1"`) {
		t.Errorf("index = %d %s", rec.Code, rec.Body)
	}

	srv.Update(report.Event{State: report.StateFailed, Err: errors.New("quota exceeded")})
	rec, env := do(t, srv.Handler(), "GET", "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	var health map[string]string
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "ok" || health["report_state"] != "failed" || health["last_error"] != "quota exceeded" {
		t.Errorf("health = %v", health)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newViewer(t)
	rec, _ := do(t, srv.Handler(), "PUT", "/reports")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT /reports = %d, want 405", rec.Code)
	}
}
