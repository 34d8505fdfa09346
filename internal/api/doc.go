// Package api defines wire-format types and converters for the HTTP API. It
// translates run history, dataset listings and job log pages into
// transport-friendly DTOs so consumers do not couple to internal types.
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Fetch job state and job log entries already carry stable JSON tags and are
// passed through unchanged.
package api
