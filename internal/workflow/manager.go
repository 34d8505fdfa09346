package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"allthatstax/internal/card"
	"allthatstax/internal/dataset"
	"allthatstax/internal/history"
	"allthatstax/internal/imagecache"
	"allthatstax/internal/logging"
	"allthatstax/internal/moxfield"
	"allthatstax/internal/mtgch"
	"allthatstax/internal/scryfall"
	"allthatstax/internal/services"
)

const stageName = "fetch"

// Resolver maps a card list entry to its canonical printing.
type Resolver interface {
	Resolve(ctx context.Context, entry card.Entry) (scryfall.Resolution, error)
}

// ImageStore caches the images of a printing.
type ImageStore interface {
	Store(ctx context.Context, canonical card.Canonical, force bool) (imagecache.Result, error)
}

// DeckSource loads a deck from a deck-list provider.
type DeckSource interface {
	Deck(ctx context.Context, identifier string) (moxfield.Deck, error)
}

// DatasetStore loads, locks and commits the persisted dataset.
type DatasetStore interface {
	Load() (*dataset.Dataset, error)
	Commit(ds *dataset.Dataset, now time.Time) error
	Lock() (func(), error)
}

// RunRecorder persists finished runs.
type RunRecorder interface {
	Record(ctx context.Context, run history.Run) error
}

// ListLoader reads card list entries from a file.
type ListLoader func(path string) ([]card.Entry, error)

// Dependencies bundles the collaborators a Manager drives.
type Dependencies struct {
	Resolver  Resolver
	Localizer mtgch.Localizer
	Images    ImageStore
	Decks     DeckSource
	Dataset   DatasetStore
	History   RunRecorder
	LoadList  ListLoader

	// DefaultList is used when a run names neither a list nor a deck.
	DefaultList    string
	DefaultWorkers int
	StaxTypes      map[string]string
	MaxLogEntries  int
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(next func() string) Option {
	return func(m *Manager) {
		if next != nil {
			m.newID = next
		}
	}
}

// Manager runs fetch jobs one at a time.
type Manager struct {
	deps    Dependencies
	logger  *slog.Logger
	journal *Journal
	now     func() time.Time
	newID   func() string

	mu     sync.RWMutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager constructs a manager. Resolver, Images and Dataset are required.
func NewManager(deps Dependencies, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if deps.Resolver == nil {
		return nil, errors.New("workflow: resolver required")
	}
	if deps.Images == nil {
		return nil, errors.New("workflow: image store required")
	}
	if deps.Dataset == nil {
		return nil, errors.New("workflow: dataset store required")
	}
	if deps.Localizer == nil {
		deps.Localizer = mtgch.Nop{}
	}
	if deps.DefaultWorkers <= 0 {
		deps.DefaultWorkers = 1
	}
	m := &Manager{
		deps:    deps,
		logger:  logging.NewComponentLogger(logger, "workflow"),
		journal: NewJournal(deps.MaxLogEntries),
		now:     time.Now,
		newID:   uuid.NewString,
		state:   State{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Journal exposes the job log for followers.
func (m *Manager) Journal() *Journal {
	return m.journal
}

// Start begins a new run and returns its initial state. A second start while
// a job is running, or while another process holds the dataset lock, fails
// with services.ErrBusy and leaves the running job untouched. The run
// outlives ctx's cancellation; use Cancel to stop it.
func (m *Manager) Start(ctx context.Context, opts Options) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Status == StatusRunning {
		return State{}, services.Wrap(services.ErrBusy, stageName, "start", "a fetch job is already running", nil)
	}
	if strings.TrimSpace(opts.Deck) != "" && m.deps.Decks == nil {
		return State{}, services.Wrap(services.ErrConfiguration, stageName, "start", "deck imports are not configured", nil)
	}
	unlock, err := m.deps.Dataset.Lock()
	if err != nil {
		return State{}, err
	}

	if opts.Workers <= 0 {
		opts.Workers = m.deps.DefaultWorkers
	}
	if strings.TrimSpace(opts.Deck) == "" && strings.TrimSpace(opts.List) == "" {
		opts.List = m.deps.DefaultList
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	jobID := m.newID()
	runCtx = services.WithJobID(runCtx, jobID)

	m.journal.Reset()
	m.state = State{
		JobID:     jobID,
		Status:    StatusRunning,
		StartedAt: m.now().UTC(),
		Options:   opts,
	}
	m.cancel = cancel
	m.done = make(chan struct{})

	job := &job{
		manager: m,
		id:      jobID,
		opts:    opts,
		logger:  logging.WithContext(runCtx, m.logger),
	}
	go func(done chan struct{}) {
		defer close(done)
		defer unlock()
		defer cancel()
		job.run(runCtx)
	}(m.done)

	m.emitLocked(LevelInfo, "fetch started", "")
	return m.snapshotLocked(0), nil
}

// Cancel stops the running job. It reports whether a job was running.
func (m *Manager) Cancel() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Status != StatusRunning || m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

// Wait blocks until the current job (if any) finishes and returns its state.
func (m *Manager) Wait(ctx context.Context) (State, error) {
	m.mu.RLock()
	done := m.done
	m.mu.RUnlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return m.Snapshot(0), ctx.Err()
		}
	}
	return m.Snapshot(0), nil
}

// Snapshot returns a copy of the job state with at most logTail recent log
// entries; logTail <= 0 returns every buffered entry.
func (m *Manager) Snapshot(logTail int) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(logTail)
}

// Close cancels any running job, waits for it and wakes journal followers.
func (m *Manager) Close() {
	m.Cancel()
	_, _ = m.Wait(context.Background())
	m.journal.Close()
}

func (m *Manager) snapshotLocked(logTail int) State {
	snap := m.state
	snap.Log, snap.NextSeq = m.journal.Tail(logTail)
	if m.state.Result != nil {
		result := *m.state.Result
		result.Errors = append([]string(nil), m.state.Result.Errors...)
		snap.Result = &result
	}
	return snap
}

// emitLocked publishes a log entry carrying the current counters. Callers
// hold m.mu.
func (m *Manager) emitLocked(level Level, message, cardName string) {
	m.journal.Publish(LogEntry{
		Time:             m.now().UTC(),
		Level:            level,
		Message:          message,
		Processed:        m.state.Processed,
		Total:            m.state.Total,
		Updated:          m.state.Updated,
		ImagesDownloaded: m.state.ImagesDownloaded,
		Card:             cardName,
	})
}

// update applies fn to the state and publishes a log entry, atomically.
func (m *Manager) update(level Level, message, cardName string, fn func(*State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn != nil {
		fn(&m.state)
	}
	m.emitLocked(level, message, cardName)
}
