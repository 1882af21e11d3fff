package sqlite

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

// setupBackend returns an attached backend on a fresh data directory.
func setupBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	return setupBackendWithConfig(t, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}, opts...)
}

func setupBackendWithConfig(t *testing.T, cfg types.Config, opts ...Option) *Backend {
	t.Helper()
	b := NewBackend(opts...)
	require.NoError(t, b.Attach(cfg))
	t.Cleanup(func() { b.Detach() })
	return b
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func createSymbol(t *testing.T, b *Backend, id string) *types.CreateResult {
	t.Helper()
	res, err := b.Create(types.CreateSymbolRequest{SymbolID: id, What: "symbol " + id})
	require.NoError(t, err)
	return res
}

func TestBackend_Attach(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	require.NoError(t, b.Attach(cfg))
	defer b.Detach()

	_, err := os.Stat(filepath.Join(dir, DatabaseFile))
	assert.NoError(t, err, "database file should exist")

	assert.ErrorIs(t, b.Attach(cfg), types.ErrAlreadyAttached)
}

func TestBackend_AttachCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	b := setupBackendWithConfig(t, types.Config{Backend: types.BackendSQLite, DataDir: dir})
	assert.NotNil(t, b)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBackend_AttachRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.Config
		want error
	}{
		{"empty backend", types.Config{DataDir: t.TempDir()}, types.ErrBackendEmpty},
		{"unknown backend", types.Config{Backend: "postgres", DataDir: t.TempDir()}, types.ErrBackendUnknown},
		{"negative cache", types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir(), CacheSize: -1}, types.ErrCacheSizeInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackend()
			assert.ErrorIs(t, b.Attach(tt.cfg), tt.want)
		})
	}
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))

	require.NoError(t, b.Detach())
	assert.NoError(t, b.Detach(), "second Detach should be a no-op")

	_, err := b.Get("Ξ.C.ACME", 0)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = b.Create(types.CreateSymbolRequest{SymbolID: "Ξ.C.ACME"})
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = b.GetNeighborhood("Ξ.C.ACME", types.NeighborhoodOptions{})
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = b.GetRecentAuditEntries(10)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestBackend_ReattachKeepsData(t *testing.T) {
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}

	b := NewBackend()
	require.NoError(t, b.Attach(cfg))
	createSymbol(t, b, "Ξ.C.ACME")
	createSymbol(t, b, "Ξ.C.WIDGETCO")
	_, err := b.CreateRelationship(types.RelationshipRequest{
		FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.C.WIDGETCO", Type: types.RelOwns,
	})
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	b2 := setupBackendWithConfig(t, cfg)
	sym, err := b2.Get("Ξ.C.ACME", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sym.Version)

	out, err := b2.GetOutgoing("Ξ.C.ACME", types.RelationshipFilter{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestBackend_SchemaVersion(t *testing.T) {
	b := setupBackend(t)

	var version int
	require.NoError(t, b.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var fk int
	require.NoError(t, b.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestBackend_InjectedCache(t *testing.T) {
	cache, err := NewSymbolCache(2)
	require.NoError(t, err)
	b := setupBackend(t, WithSymbolCache(cache))

	createSymbol(t, b, "Ξ.C.ONE")
	createSymbol(t, b, "Ξ.C.TWO")
	createSymbol(t, b, "Ξ.C.THREE")

	assert.Equal(t, 2, cache.Len())
	assert.False(t, cache.Contains("Ξ.C.ONE"), "least recently used entry should be evicted")

	sym, err := b.Get("Ξ.C.ONE", 0)
	require.NoError(t, err, "evicted symbols are still served from the database")
	assert.Equal(t, "Ξ.C.ONE", sym.SymbolID)
	assert.True(t, cache.Contains("Ξ.C.ONE"))
}

func TestFormatTime_SortsLexicographically(t *testing.T) {
	early := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	late := early.Add(time.Nanosecond)
	a, c := formatTime(early), formatTime(late)
	assert.Len(t, a, len(c))
	assert.Less(t, a, c)

	back, err := parseTime(a)
	require.NoError(t, err)
	assert.True(t, back.Equal(early))
}
