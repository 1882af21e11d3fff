// Package sqlite implements the SQLite storage backend for the symbol graph
// store. One database file per data directory holds symbols, their
// changelog, relationships, the audit log and the search index.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

// DatabaseFile is the name of the SQLite file inside the data directory.
const DatabaseFile = "symbols.db"

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ types.Store = (*Backend)(nil)

// Backend implements types.Store on SQLite in WAL mode. Readers use the
// connection pool directly; writers are serialized by writeMu and run each
// mutation in a single BEGIN IMMEDIATE transaction.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB

	writeMu  sync.Mutex
	cache    *SymbolCache
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	maxPartialPaths int
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSymbolCache injects the symbol cache. Without it Attach builds one
// sized by Config.CacheSize.
func WithSymbolCache(c *SymbolCache) Option {
	return func(b *Backend) { b.cache = c }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,

		maxPartialPaths: defaultMaxPartialPaths,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach opens (or creates) the database in config.DataDir and applies the
// schema. Existing data is kept. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dataSourceName(filepath.Join(dataDir, DatabaseFile)))
	if err != nil {
		return &types.StorageError{Op: "open", Err: err}
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return &types.StorageError{Op: "schema", Err: err}
	}

	if b.cache == nil {
		cache, err := NewSymbolCache(config.EffectiveCacheSize())
		if err != nil {
			db.Close()
			return err
		}
		b.cache = cache
	} else {
		b.cache.Purge()
	}

	b.db = db
	b.config = config
	b.attached = true
	b.logger.Debug("backend attached", "data_dir", dataDir, "cache_size", b.cache.Size())
	return nil
}

// Detach closes the database. Idempotent. After Detach, all operations
// return ErrStoreDetached.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	b.cache.Purge()

	db := b.db
	b.db = nil
	if err := db.Close(); err != nil {
		return &types.StorageError{Op: "close", Err: err}
	}
	b.logger.Debug("backend detached")
	return nil
}

// dataSourceName builds the modernc DSN. Foreign keys are per connection, so
// they are set through _pragma for every pooled connection.
func dataSourceName(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

// inTx runs fn in one transaction. Errors returned by fn pass through
// unchanged; begin and commit failures become StorageErrors, and a commit
// failure is flagged CommitUnknown.
func (b *Backend) inTx(op string, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.Begin()
	if err != nil {
		return &types.StorageError{Op: op + ": begin", Err: err}
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &types.StorageError{Op: op + ": commit", CommitUnknown: true, Err: err}
	}
	return nil
}

// storageErr wraps a statement failure inside a transaction.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *types.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &types.StorageError{Op: op, Err: err}
}

// recordAttempt writes the audit entry for a create, update or delete that
// did not commit. It runs after the transaction rolled back; failure to
// write is logged, not returned.
func (b *Backend) recordAttempt(event types.AuditEventType, symbolID, actor string, cause error, details map[string]any) {
	outcome := types.OutcomeRejected
	level := slog.LevelInfo
	if k := types.KindOf(cause); k == types.KindStorageUnavailable || k == types.KindUnknown {
		outcome = types.OutcomeFailed
		level = slog.LevelWarn
	}
	b.logger.Log(context.Background(), level, "mutation not applied",
		"event", string(event), "symbol_id", symbolID, "outcome", outcome, "error", cause)

	if details == nil {
		details = map[string]any{}
	}
	details["error"] = cause.Error()
	details["error_kind"] = types.KindOf(cause).String()
	entry := types.AuditEntry{
		EventType: event,
		SymbolID:  symbolID,
		Outcome:   outcome,
		Actor:     actor,
		Details:   details,
	}
	if _, err := insertAudit(b.db, entry, b.timestamp()); err != nil {
		b.logger.Warn("audit write failed", "event", string(event), "symbol_id", symbolID, "error", err)
	}
}

// readLock takes the attach lock for the duration of an operation.
// The caller must defer the returned unlock.
func (b *Backend) readLock() (func(), error) {
	b.mu.RLock()
	if !b.attached {
		b.mu.RUnlock()
		return nil, types.ErrStoreDetached
	}
	return b.mu.RUnlock, nil
}

func (b *Backend) timestamp() time.Time {
	return b.now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}
