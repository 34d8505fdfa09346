package api

import (
	"encoding/json"

	"allthatstax/internal/card"
	"allthatstax/internal/preflight"
	"allthatstax/internal/workflow"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// LogStreamResponse is one page of the job log.
type LogStreamResponse struct {
	Entries []workflow.LogEntry `json:"entries"`
	Next    uint64              `json:"next"`
}

// CardListResponse lists committed dataset records.
type CardListResponse struct {
	UpdatedAt string        `json:"updatedAt,omitempty"`
	Count     int           `json:"count"`
	Cards     []card.Record `json:"cards"`
}

// Run is a finished fetch run.
type Run struct {
	JobID            string          `json:"jobId"`
	Status           string          `json:"status"`
	StartedAt        string          `json:"startedAt,omitempty"`
	FinishedAt       string          `json:"finishedAt,omitempty"`
	DurationSeconds  float64         `json:"durationSeconds"`
	Total            int             `json:"total"`
	Processed        int             `json:"processed"`
	Updated          int             `json:"updated"`
	ImagesDownloaded int             `json:"imagesDownloaded"`
	Errors           []string        `json:"errors"`
	Error            string          `json:"error,omitempty"`
	Options          json.RawMessage `json:"options,omitempty"`
}

// HistoryResponse lists recent runs, newest first.
type HistoryResponse struct {
	Runs []Run `json:"runs"`
}

// PreflightResponse reports readiness checks.
type PreflightResponse struct {
	Ready  bool               `json:"ready"`
	Checks []preflight.Result `json:"checks"`
}
