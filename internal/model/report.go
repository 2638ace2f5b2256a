package model

import (
	"encoding/json"
	"time"
)

// Template is a report prompt pair. The user prompt may reference
// {{data}}, {{startDate}} and {{endDate}}.
type Template struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	System string `json:"system" yaml:"system" toml:"system"`
	User   string `json:"user" yaml:"user" toml:"user"`
}

// Report is a generated report as kept in the history.
type Report struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Content   string          `json:"content"`
	HTML      string          `json:"html"`
	Provider  string          `json:"provider"`
	Model     string          `json:"model"`
	Template  string          `json:"template"`
	Data      string          `json:"data"`
	ChartData json.RawMessage `json:"chart_data"`
	Timestamp int64           `json:"timestamp"`
	// Truncated is set when the provider stopped at its output token limit
	// and only partial content was returned.
	Truncated bool `json:"truncated"`
}
