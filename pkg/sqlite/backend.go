// Package sqlite provides the public API for the SQLite symbol store.
// This package exposes the factory and options for creating SQLite
// backends while keeping implementation details internal.
package sqlite

import (
	"log/slog"
	"time"

	"github.com/mesh-intelligence/symbols/internal/sqlite"
	"github.com/mesh-intelligence/symbols/pkg/types"
)

// Option configures a backend created by NewBackend.
type Option = sqlite.Option

// WithLogger sets the structured logger used by the backend.
func WithLogger(l *slog.Logger) Option { return sqlite.WithLogger(l) }

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option { return sqlite.WithClock(now) }

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	store := sqlite.NewBackend()
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".symbols-db",
//	})
//	defer store.Detach()
func NewBackend(opts ...Option) types.Store {
	return sqlite.NewBackend(opts...)
}

// WriteSnapshot writes snap into dir as a manifest plus JSONL files.
func WriteSnapshot(dir string, snap *types.Snapshot) error {
	return sqlite.WriteSnapshotJSONL(dir, snap)
}

// ReadSnapshot reads a snapshot directory written by WriteSnapshot.
func ReadSnapshot(dir string) (*types.Snapshot, error) {
	return sqlite.ReadSnapshotJSONL(dir)
}
