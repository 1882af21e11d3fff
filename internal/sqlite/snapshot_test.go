package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

func TestExportImport_IntoEmptyStore(t *testing.T) {
	src := setupBackend(t)
	seedGraph(t, src)

	snap, err := src.ExportAll()
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotFormatVersion, snap.FormatVersion)
	assert.Len(t, snap.Symbols, 3)
	assert.Len(t, snap.Relationships, 2)

	recent, err := src.GetRecentAuditEntries(1)
	require.NoError(t, err)
	assert.Equal(t, types.EventBulkExport, recent[0].EventType)

	dst := setupBackend(t)
	res, err := dst.ImportAll(snap, types.ImportOptions{Actor: "restore"})
	require.NoError(t, err)
	assert.Equal(t, types.ImportResult{SymbolsImported: 3, RelationshipsImported: 2}, *res)

	orig, err := src.Get("Ξ.C.ACME", 0)
	require.NoError(t, err)
	copied, err := dst.Get("Ξ.C.ACME", 0)
	require.NoError(t, err)
	assert.Equal(t, orig.ContentHash, copied.ContentHash)
	assert.Equal(t, orig.Version, copied.Version)
	assert.Len(t, copied.Changelog, 2)

	out, err := dst.GetOutgoing("Ξ.C.ACME", types.RelationshipFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, snap.Relationships[0].ID, out[0].ID, "relationship ids are preserved")

	page, err := dst.Search("ACME", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total, "imported symbols are searchable")

	report, err := dst.CheckIntegrity()
	require.NoError(t, err)
	assert.True(t, report.OK, "problems: %v", report.Problems)
}

func TestImportAll_MergeSkipsExisting(t *testing.T) {
	b := setupBackend(t)
	seedGraph(t, b)
	snap, err := b.ExportAll()
	require.NoError(t, err)

	res, err := b.ImportAll(snap, types.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.ImportResult{SymbolsSkipped: 3, RelationshipsSkipped: 2}, *res)

	stats, err := b.GetGraphStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.NodeCount)
	assert.Equal(t, 2, stats.EdgeCount)
}

func TestImportAll_Replace(t *testing.T) {
	src := setupBackend(t)
	createSymbol(t, src, "Ξ.C.ONLY")
	snap, err := src.ExportAll()
	require.NoError(t, err)

	dst := setupBackend(t)
	seedGraph(t, dst)
	_, err = dst.Get("Ξ.C.ACME", 0)
	require.NoError(t, err, "warm the cache before replacing")

	res, err := dst.ImportAll(snap, types.ImportOptions{Replace: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SymbolsImported)

	_, err = dst.Get("Ξ.C.ACME", 0)
	assert.ErrorIs(t, err, types.ErrNotFound, "replace removes existing symbols and the cache follows")

	stats, err := dst.GetGraphStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NodeCount)
	assert.Zero(t, stats.EdgeCount)
}

func TestImportAll_RejectsInvalidSnapshot(t *testing.T) {
	src := setupBackend(t)
	seedGraph(t, src)

	tests := []struct {
		name   string
		mutate func(*types.Snapshot)
		want   error
	}{
		{"tampered semantic field", func(s *types.Snapshot) { s.Symbols[0].What = "tampered" }, types.ErrHashMismatch},
		{"future format", func(s *types.Snapshot) { s.FormatVersion = 99 }, types.ErrInvalidSnapshot},
		{"changelog gap", func(s *types.Snapshot) { s.Symbols[0].Changelog = s.Symbols[0].Changelog[:1] }, types.ErrInvalidSnapshot},
		{"bad identifier", func(s *types.Snapshot) { s.Symbols[1].SymbolID = "not-a-symbol" }, types.ErrInvalidIdentifier},
		{"duplicate symbol", func(s *types.Snapshot) { s.Symbols = append(s.Symbols, s.Symbols[0]) }, types.ErrInvalidSnapshot},
		{"unknown edge type", func(s *types.Snapshot) { s.Relationships[0].Type = "LOVES" }, types.ErrInvalidRelationshipType},
		{"edge weight", func(s *types.Snapshot) { s.Relationships[0].Weight = 3 }, types.ErrInvalidWeight},
		{"dangling edge", func(s *types.Snapshot) {
			s.Relationships[0].ToSymbolID = "Ξ.C.GHOST"
			s.Relationships[0].ID = "rel-ghost"
		}, types.ErrDanglingReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := src.ExportAll()
			require.NoError(t, err)
			tt.mutate(snap)

			dst := setupBackend(t)
			_, err = dst.ImportAll(snap, types.ImportOptions{})
			require.ErrorIs(t, err, tt.want)

			stats, err := dst.GetGraphStats()
			require.NoError(t, err)
			assert.Zero(t, stats.NodeCount, "a rejected import writes nothing")

			recent, err := dst.GetRecentAuditEntries(1)
			require.NoError(t, err)
			require.Len(t, recent, 1)
			assert.Equal(t, types.EventBulkImport, recent[0].EventType)
			assert.NotEqual(t, types.OutcomeSuccess, recent[0].Outcome)
		})
	}
}

func TestSnapshotJSONL_RoundTrip(t *testing.T) {
	src := setupBackend(t)
	seedGraph(t, src)
	snap, err := src.ExportAll()
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "export")
	require.NoError(t, WriteSnapshotJSONL(dir, snap))
	for _, name := range []string{SnapshotManifestFile, SnapshotSymbolsFile, SnapshotRelationshipsFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	read, err := ReadSnapshotJSONL(dir)
	require.NoError(t, err)
	assert.Equal(t, snap.FormatVersion, read.FormatVersion)
	assert.True(t, snap.ExportedAt.Equal(read.ExportedAt))
	require.Len(t, read.Symbols, 3)
	require.Len(t, read.Relationships, 2)

	dst := setupBackend(t)
	res, err := dst.ImportAll(read, types.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SymbolsImported)
	assert.Equal(t, 2, res.RelationshipsImported)
}

func TestReadSnapshotJSONL_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SnapshotSymbolsFile), []byte("{\"symbol_id\":\"Ξ.C.A\"}\n{broken\n"), 0o644))

	_, err := ReadSnapshotJSONL(dir)
	require.ErrorIs(t, err, types.ErrInvalidSnapshot)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadSnapshotJSONL_OptionalFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SnapshotSymbolsFile), []byte("\n"), 0o644))

	snap, err := ReadSnapshotJSONL(dir)
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotFormatVersion, snap.FormatVersion)
	assert.Empty(t, snap.Symbols)
	assert.Empty(t, snap.Relationships)

	_, err = ReadSnapshotJSONL(t.TempDir())
	assert.Error(t, err, "the symbols file is required")
}
