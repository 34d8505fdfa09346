package api

import (
	"time"

	"allthatstax/internal/card"
	"allthatstax/internal/dataset"
	"allthatstax/internal/history"
	"allthatstax/internal/preflight"
)

// FromHistoryRun converts a stored run into its transport form.
func FromHistoryRun(run history.Run) Run {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	return Run{
		JobID:            run.JobID,
		Status:           run.Status,
		StartedAt:        formatTime(run.StartedAt),
		FinishedAt:       formatTime(run.FinishedAt),
		DurationSeconds:  run.Duration().Seconds(),
		Total:            run.Total,
		Processed:        run.Processed,
		Updated:          run.Updated,
		ImagesDownloaded: run.ImagesDownloaded,
		Errors:           errs,
		Error:            run.Error,
		Options:          run.Options,
	}
}

// FromHistoryRuns converts a slice of runs, preserving order.
func FromHistoryRuns(runs []history.Run) HistoryResponse {
	out := HistoryResponse{Runs: make([]Run, 0, len(runs))}
	for _, run := range runs {
		out.Runs = append(out.Runs, FromHistoryRun(run))
	}
	return out
}

// FromDataset lists the records of ds, optionally restricted to one tag.
func FromDataset(ds *dataset.Dataset, tag string) CardListResponse {
	if ds == nil {
		return CardListResponse{Cards: []card.Record{}}
	}
	var records []card.Record
	if tag != "" {
		records = ds.WithTag(tag)
	} else {
		records = ds.Records()
	}
	if records == nil {
		records = []card.Record{}
	}
	return CardListResponse{
		UpdatedAt: formatTime(ds.UpdatedAt()),
		Count:     len(records),
		Cards:     records,
	}
}

// FromPreflight summarizes readiness checks.
func FromPreflight(results []preflight.Result) PreflightResponse {
	if results == nil {
		results = []preflight.Result{}
	}
	return PreflightResponse{
		Ready:  len(preflight.Failed(results)) == 0,
		Checks: results,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
