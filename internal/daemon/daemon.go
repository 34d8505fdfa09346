package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"allthatstax/internal/config"
	"allthatstax/internal/dataset"
	"allthatstax/internal/history"
	"allthatstax/internal/logging"
	"allthatstax/internal/preflight"
	"allthatstax/internal/workflow"
)

// FetchController is the part of the workflow manager the API drives.
type FetchController interface {
	Start(ctx context.Context, opts workflow.Options) (workflow.State, error)
	Cancel() bool
	Snapshot(logTail int) workflow.State
	Journal() *workflow.Journal
}

// CardReader loads the committed dataset.
type CardReader interface {
	Load() (*dataset.Dataset, error)
}

// HistoryReader lists recent runs.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Daemon owns the serve lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon serving manager, the dataset at
// cfg.Paths.DatasetFile and runs (which may be nil).
func New(cfg *config.Config, manager FetchController, runs HistoryReader, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || manager == nil {
		return nil, errors.New("daemon requires config and workflow manager")
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	lockDir := cfg.Paths.LogDir
	if strings.TrimSpace(lockDir) == "" {
		lockDir = filepath.Dir(cfg.Paths.DatasetFile)
	}
	lockPath := filepath.Join(lockDir, "allthatstax-serve.lock")

	srv := newAPIServer(apiDeps{
		bind:    cfg.Paths.APIBind,
		token:   cfg.Paths.APIToken,
		manager: manager,
		cards:   dataset.NewStore(cfg.Paths.DatasetFile),
		history: runs,
		checks: func(ctx context.Context) []preflight.Result {
			return preflight.RunAll(ctx, cfg, false)
		},
	}, logger)

	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		api:      srv,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and starts the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another allthatstax server is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("allthatstax server started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
	)
	return nil
}

// Addr returns the address the API listens on once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Stop shuts down the API server and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release server lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no server is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("allthatstax server stopped")
}
