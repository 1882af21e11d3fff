package sqlite_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/symbols/pkg/sqlite"
	"github.com/mesh-intelligence/symbols/pkg/types"
)

func TestNewBackend_SnapshotRoundTrip(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := sqlite.NewBackend(sqlite.WithClock(func() time.Time { return fixed }))
	require.NoError(t, store.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { _ = store.Detach() })

	_, err := store.Create(types.CreateSymbolRequest{SymbolID: "Ξ.C.ACME", What: "Make widgets"})
	require.NoError(t, err)
	_, err = store.Create(types.CreateSymbolRequest{SymbolID: "Ξ.A.PLANT"})
	require.NoError(t, err)
	_, err = store.CreateRelationship(types.RelationshipRequest{
		FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.A.PLANT", Type: types.RelOwns,
	})
	require.NoError(t, err)

	snap, err := store.ExportAll()
	require.NoError(t, err)
	assert.Equal(t, fixed, snap.ExportedAt)

	dir := filepath.Join(t.TempDir(), "snapshot")
	require.NoError(t, sqlite.WriteSnapshot(dir, snap))
	got, err := sqlite.ReadSnapshot(dir)
	require.NoError(t, err)
	assert.Len(t, got.Symbols, 2)
	assert.Len(t, got.Relationships, 1)
	assert.Equal(t, snap.Symbols[0].ContentHash, got.Symbols[0].ContentHash)
}
