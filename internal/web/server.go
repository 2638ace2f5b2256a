// Package web serves generated reports to a local browser.
package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/model"
	"github.com/Tiliavir/ttt-insights/internal/report"
)

// ChartJSURL is the Chart.js bundle the report page loads.
const ChartJSURL = "https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"

// Store is the report history the viewer reads from.
type Store interface {
	List() ([]model.Report, error)
	Get(id string) (model.Report, error)
	Delete(id string) error
}

// Summary is one row of the report list.
type Summary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Template  string    `json:"template"`
	Truncated bool      `json:"truncated"`
}

// Server is the local report viewer. It also implements report.View and
// keeps the most recent event for /healthz.
type Server struct {
	store     Store
	log       *zap.Logger
	generator Generator

	mu   sync.Mutex
	last report.Event
}

// Generator runs report generations for POST /reports.
type Generator interface {
	Generate(ctx context.Context, req report.GenerateRequest) (report.Outcome, error)
}

// Option configures a Server.
type Option func(*Server)

// WithGenerator enables POST /reports.
func WithGenerator(g Generator) Option { return func(s *Server) { s.generator = g } }

// NewServer returns a viewer over store.
func NewServer(store Store, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{store: store, log: log, last: report.Event{State: report.StateIdle}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Update records the orchestrator state shown by /healthz.
func (s *Server) Update(e report.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = e
}

func (s *Server) lastEvent() report.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Handler returns the viewer routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/", s.Index).Methods("GET")
	r.HandleFunc("/healthz", s.Health).Methods("GET")

	reports := r.PathPrefix("/reports").Subrouter()
	reports.HandleFunc("", s.ListReports).Methods("GET")
	reports.HandleFunc("", s.GenerateReport).Methods("POST")
	reports.HandleFunc("/{id}", s.ShowReport).Methods("GET")
	reports.HandleFunc("/{id}", s.DeleteReport).Methods("DELETE")
	reports.HandleFunc("/{id}/charts", s.ReportCharts).Methods("GET")
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

// Health reports liveness and the last generation state.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	e := s.lastEvent()
	body := map[string]any{"status": "ok", "report_state": e.State}
	if e.Err != nil {
		body["last_error"] = e.Err.Error()
	}
	respondJSON(w, http.StatusOK, body)
}

// Index lists the reports as HTML.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List()
	if err != nil {
		s.log.Error("list reports", zap.Error(err))
		http.Error(w, "could not read report history", http.StatusInternalServerError)
		return
	}
	s.render(w, indexPage, map[string]any{"Style": template.CSS(baseStyle), "Reports": list})
}

// ListReports returns report summaries, most recent first.
func (s *Server) ListReports(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List()
	if err != nil {
		s.log.Error("list reports", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "could not read report history")
		return
	}
	out := make([]Summary, 0, len(list))
	for _, rep := range list {
		out = append(out, summarize(rep))
	}
	respondJSON(w, http.StatusOK, out)
}

func summarize(rep model.Report) Summary {
	return Summary{
		ID:        rep.ID,
		CreatedAt: rep.CreatedAt,
		Provider:  rep.Provider,
		Model:     rep.Model,
		Template:  rep.Template,
		Truncated: rep.Truncated,
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, asJSON bool) (model.Report, bool) {
	id := mux.Vars(r)["id"]
	rep, err := s.store.Get(id)
	if err == nil {
		return rep, true
	}
	status, msg := http.StatusInternalServerError, "could not read report history"
	if errors.Is(err, report.ErrNotFound) {
		status, msg = http.StatusNotFound, "report not found"
	} else {
		s.log.Error("get report", zap.String("id", id), zap.Error(err))
	}
	if asJSON {
		respondJSONError(w, status, http.StatusText(status), msg)
	} else {
		http.Error(w, msg, status)
	}
	return model.Report{}, false
}

// ShowReport renders one report with its charts.
func (s *Server) ShowReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.lookup(w, r, false)
	if !ok {
		return
	}
	cd, err := report.DecodeChartData(rep)
	if err != nil {
		s.log.Warn("report chart data", zap.Error(err))
	}
	s.render(w, reportPage, map[string]any{
		"Style":   template.CSS(baseStyle),
		"ChartJS": ChartJSURL,
		"Report":  rep,
		// The stored HTML comes from the markdown renderer, which escapes all
		// text and only passes allow-listed tags.
		"Body":   template.HTML(rep.HTML),
		"Charts": cd,
	})
}

// ReportCharts returns the chart configs stored with a report.
func (s *Server) ReportCharts(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.lookup(w, r, true)
	if !ok {
		return
	}
	cd, err := report.DecodeChartData(rep)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "stored chart data is unreadable")
		return
	}
	respondJSON(w, http.StatusOK, cd)
}

// DeleteReport removes a report from the history.
func (s *Server) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.Delete(id); err != nil {
		if errors.Is(err, report.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "report not found")
			return
		}
		s.log.Error("delete report", zap.String("id", id), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "could not delete report")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) render(w http.ResponseWriter, t *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, data); err != nil {
		s.log.Error("render page", zap.String("template", t.Name()), zap.Error(err))
	}
}

// ListenAndServe serves the viewer on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("report viewer listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
