package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"allthatstax/internal/card"
	"allthatstax/internal/fileutil"
	"allthatstax/internal/services"
)

const stageName = "dataset"

// file is the on-disk layout.
type file struct {
	Version   int           `json:"version"`
	UpdatedAt time.Time     `json:"updated_at"`
	Cards     []card.Record `json:"cards"`
}

// Store reads and writes one dataset file.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore returns a store for the dataset at path.
func NewStore(path string) *Store {
	return &Store{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the dataset file path.
func (s *Store) Path() string {
	return s.path
}

// Dir returns the directory holding the dataset file.
func (s *Store) Dir() string {
	return filepath.Dir(s.path)
}

// Load reads the committed dataset. A missing file yields an empty dataset.
func (s *Store) Load() (*Dataset, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, services.Wrap(services.ErrStorage, stageName, "read", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return New(), nil
	}
	var payload file
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, services.Wrap(services.ErrStorage, stageName, "decode", s.path, err)
	}
	if payload.Version > FormatVersion {
		return nil, services.Wrap(services.ErrStorage, stageName, "decode",
			fmt.Sprintf("%s has format version %d, newest supported is %d", s.path, payload.Version, FormatVersion), nil)
	}
	ds := New()
	ds.updatedAt = payload.UpdatedAt
	for _, rec := range payload.Cards {
		if rec.ID == "" {
			continue
		}
		ds.records[rec.ID] = rec
	}
	return ds, nil
}

// Commit atomically replaces the dataset file with ds.
func (s *Store) Commit(ds *Dataset, now time.Time) error {
	updatedAt := now.UTC()
	data, err := Encode(ds.Records(), updatedAt)
	if err != nil {
		return services.Wrap(services.ErrStorage, stageName, "encode", s.path, err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return services.Wrap(services.ErrStorage, stageName, "commit", s.path, err)
	}
	ds.updatedAt = updatedAt
	return nil
}

// Encode renders records in the dataset file format.
func Encode(records []card.Record, updatedAt time.Time) ([]byte, error) {
	if records == nil {
		records = []card.Record{}
	}
	data, err := json.MarshalIndent(file{Version: FormatVersion, UpdatedAt: updatedAt, Cards: records}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Lock takes the advisory write lock of the dataset. It fails with a busy
// error when another process holds it.
func (s *Store) Lock() (func(), error) {
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, stageName, "lock", s.Dir(), err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, stageName, "lock", s.path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrBusy, stageName, "lock", s.path+" is being written by another process", nil)
	}
	return func() { _ = s.lock.Unlock() }, nil
}
