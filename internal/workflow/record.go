package workflow

import (
	"context"
	"encoding/json"
	"time"

	"allthatstax/internal/history"
	"allthatstax/internal/logging"
)

const recordTimeout = 5 * time.Second

// record appends the finished run to the history store. Failures are logged;
// history is advisory and never changes the outcome of a run.
func (j *job) record(ctx context.Context, snap State) {
	recorder := j.manager.deps.History
	if recorder == nil {
		return
	}
	run := history.Run{
		JobID:            snap.JobID,
		Status:           string(snap.Status),
		StartedAt:        snap.StartedAt,
		FinishedAt:       snap.FinishedAt,
		Total:            snap.Total,
		Processed:        snap.Processed,
		Updated:          snap.Updated,
		ImagesDownloaded: snap.ImagesDownloaded,
		Errors:           append([]string{}, j.errors...),
		Error:            snap.Error,
	}
	if opts, err := json.Marshal(snap.Options); err == nil {
		run.Options = opts
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := recorder.Record(recordCtx, run); err != nil {
		logging.WarnWithContext(j.logger, "failed to record run history", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from history listing"),
			logging.String(logging.FieldErrorHint, "check paths.history_db permissions"),
		)
	}
}
