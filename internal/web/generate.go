package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/llm"
	"github.com/Tiliavir/ttt-insights/internal/report"
	"github.com/Tiliavir/ttt-insights/internal/timecalc"
	"github.com/Tiliavir/ttt-insights/internal/validation"
)

// GenerateRequest is the body of POST /reports. Dates are YYYY-MM-DD.
type GenerateRequest struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Template    string   `json:"template"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
}

// GenerateResponse is returned for a generated report.
type GenerateResponse struct {
	Report   Summary `json:"report"`
	Saved    bool    `json:"saved"`
	Unplaced int     `json:"unplaced_charts"`
}

const maxGenerateBody = 64 << 10

// GenerateReport runs one generation and returns the saved report's summary.
func (s *Server) GenerateReport(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		respondJSONError(w, http.StatusNotImplemented, "Not Implemented", "report generation is not enabled")
		return
	}

	var body GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBody)).Decode(&body); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid JSON body: "+err.Error())
		return
	}
	from, err := timecalc.ParseDate(body.From)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	to, err := timecalc.ParseDate(body.To)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	out, err := s.generator.Generate(r.Context(), report.GenerateRequest{
		From:        from,
		To:          to,
		Provider:    body.Provider,
		Model:       body.Model,
		Template:    body.Template,
		Temperature: body.Temperature,
		MaxTokens:   body.MaxTokens,
	})
	if err != nil {
		s.generateError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, GenerateResponse{
		Report:   summarize(out.Report),
		Saved:    out.Saved,
		Unplaced: len(out.Charts.Unplaced),
	})
}

func (s *Server) generateError(w http.ResponseWriter, err error) {
	var lerr *llm.Error
	switch {
	case validation.IsValidationError(err), errors.Is(err, report.ErrUnknownTemplate):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, report.ErrBusy):
		respondJSONError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &lerr):
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", lerr.UserMessage())
	default:
		s.log.Error("generate report", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "report generation failed")
	}
}
