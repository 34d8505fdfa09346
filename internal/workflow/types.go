package workflow

import (
	"time"

	"allthatstax/internal/card"
)

// Status is the lifecycle state of a fetch job.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the job has finished.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Options controls one fetch run.
type Options struct {
	// List is the card list path; empty uses the configured default.
	List string `json:"list,omitempty"`
	// Deck is a Moxfield deck id or URL used instead of List.
	Deck             string `json:"deck,omitempty"`
	ForceImages      bool   `json:"forceImages,omitempty"`
	FromScratch      bool   `json:"fromScratch,omitempty"`
	ResetTags        bool   `json:"resetTags,omitempty"`
	SkipLocalization bool   `json:"skipLocalization,omitempty"`
	Workers          int    `json:"workers,omitempty"`
}

// Summary is the result of a finished run.
type Summary struct {
	CardsProcessed   int           `json:"cardsProcessed"`
	CardsUpdated     int           `json:"cardsUpdated"`
	ImagesDownloaded int           `json:"imagesDownloaded"`
	Errors           []string      `json:"errors"`
	Duration         time.Duration `json:"duration"`
}

// State is a point-in-time copy of the job state.
type State struct {
	JobID            string     `json:"jobId,omitempty"`
	Status           Status     `json:"status"`
	Processed        int        `json:"processed"`
	Total            int        `json:"total"`
	Updated          int        `json:"updatedCount"`
	ImagesDownloaded int        `json:"imagesDownloaded"`
	Error            string     `json:"error,omitempty"`
	Result           *Summary   `json:"result,omitempty"`
	StartedAt        time.Time  `json:"startedAt,omitzero"`
	FinishedAt       time.Time  `json:"finishedAt,omitzero"`
	Options          Options    `json:"options"`
	Log              []LogEntry `json:"log"`
	// NextSeq is the cursor to pass to Journal.Fetch for entries after Log.
	NextSeq uint64 `json:"nextSeq"`
}

// Level is the severity of a job log entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// LogEntry is one line of the job log.
type LogEntry struct {
	Seq              uint64    `json:"seq"`
	Time             time.Time `json:"timestamp"`
	Level            Level     `json:"level"`
	Message          string    `json:"message"`
	Processed        int       `json:"processed"`
	Total            int       `json:"total"`
	Updated          int       `json:"updated"`
	ImagesDownloaded int       `json:"imagesDownloaded"`
	Card             string    `json:"card,omitempty"`
}

// entryResult carries the outcome of one entry from a worker to the merger.
type entryResult struct {
	entry      card.Entry
	record     *card.Record
	downloaded int
	warnings   []string
	err        error
}
