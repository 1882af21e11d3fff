package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

// Snapshot file names inside an export directory.
const (
	SnapshotManifestFile      = "manifest.json"
	SnapshotSymbolsFile       = "symbols.jsonl"
	SnapshotRelationshipsFile = "relationships.jsonl"
)

// ExportAll returns every symbol, with its changelog, and every
// relationship. It records a BULK_EXPORT audit entry.
func (b *Backend) ExportAll() (*types.Snapshot, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	snap := &types.Snapshot{
		FormatVersion: types.SnapshotFormatVersion,
		ExportedAt:    b.timestamp(),
		Symbols:       []*types.Symbol{},
	}

	rows, err := b.db.Query("SELECT body FROM symbols ORDER BY seq")
	if err != nil {
		return nil, storageErr("export symbols", err)
	}
	for rows.Next() {
		sym, err := hydrateSymbol(rows)
		if err != nil {
			rows.Close()
			return nil, storageErr("export symbols", err)
		}
		snap.Symbols = append(snap.Symbols, sym)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr("export symbols", err)
	}

	snap.Relationships, err = queryRelationships(b.db,
		"SELECT "+relationshipColumns+" FROM relationships ORDER BY created_at, relationship_id")
	if err != nil {
		return nil, err
	}

	_, err = insertAudit(b.db, types.AuditEntry{
		EventType: types.EventBulkExport,
		Outcome:   types.OutcomeSuccess,
		Details: map[string]any{
			"symbols":       len(snap.Symbols),
			"relationships": len(snap.Relationships),
		},
	}, snap.ExportedAt)
	if err != nil {
		b.logger.Warn("audit write failed", "event", string(types.EventBulkExport), "error", err)
	}
	return snap, nil
}

// ImportAll loads snap in one transaction. With opts.Replace the store is
// emptied first; otherwise symbols and relationships that already exist
// are skipped. Every symbol's content hash is recomputed and must match.
func (b *Backend) ImportAll(snap *types.Snapshot, opts types.ImportOptions) (*types.ImportResult, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if err := b.checkSnapshot(snap); err != nil {
		b.recordAttempt(types.EventBulkImport, "", opts.Actor, err, map[string]any{"replace": opts.Replace})
		return nil, fmt.Errorf("import: %w", err)
	}

	var result types.ImportResult
	err = b.inTx("import", func(tx *sql.Tx) error {
		if opts.Replace {
			for _, stmt := range []string{
				"DELETE FROM relationships",
				"DELETE FROM symbols_fts",
				"DELETE FROM symbols",
			} {
				if _, err := tx.Exec(stmt); err != nil {
					return storageErr("clear store", err)
				}
			}
		}

		for _, sym := range snap.Symbols {
			exists, err := symbolExists(tx, sym.SymbolID)
			if err != nil {
				return storageErr("check symbol existence", err)
			}
			if exists {
				result.SymbolsSkipped++
				continue
			}
			if err := insertSymbol(tx, sym); err != nil {
				return err
			}
			for _, e := range sym.Changelog {
				if err := insertChangelog(tx, sym.SymbolID, e); err != nil {
					return err
				}
			}
			result.SymbolsImported++
		}

		for _, r := range snap.Relationships {
			skip, err := relationshipPresent(tx, r)
			if err != nil {
				return err
			}
			if skip {
				result.RelationshipsSkipped++
				continue
			}
			for _, end := range []string{r.FromSymbolID, r.ToSymbolID} {
				ok, err := symbolExists(tx, end)
				if err != nil {
					return storageErr("check endpoint", err)
				}
				if !ok {
					return fmt.Errorf("relationship %s: %w: %s", r.ID, types.ErrDanglingReference, end)
				}
			}
			if err := insertRelationship(tx, r); err != nil {
				return err
			}
			result.RelationshipsImported++
		}

		_, err := insertAudit(tx, types.AuditEntry{
			EventType: types.EventBulkImport,
			Outcome:   types.OutcomeSuccess,
			Actor:     opts.Actor,
			Details: map[string]any{
				"replace":                opts.Replace,
				"symbols_imported":       result.SymbolsImported,
				"symbols_skipped":        result.SymbolsSkipped,
				"relationships_imported": result.RelationshipsImported,
				"relationships_skipped":  result.RelationshipsSkipped,
			},
		}, b.timestamp())
		return storageErr("write audit entry", err)
	})
	b.cache.Purge()
	if err != nil {
		b.recordAttempt(types.EventBulkImport, "", opts.Actor, err, map[string]any{"replace": opts.Replace})
		return nil, fmt.Errorf("import: %w", err)
	}

	b.logger.Info("snapshot imported",
		"symbols", result.SymbolsImported, "symbols_skipped", result.SymbolsSkipped,
		"relationships", result.RelationshipsImported, "relationships_skipped", result.RelationshipsSkipped)
	return &result, nil
}

// relationshipPresent reports whether r's id or its (from, to, type) tuple
// is already stored.
func relationshipPresent(tx *sql.Tx, r *types.Relationship) (bool, error) {
	var one int
	err := tx.QueryRow("SELECT 1 FROM relationships WHERE relationship_id = ?", r.ID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, storageErr("check relationship", err)
	}
	return edgeExists(tx, r.FromSymbolID, r.ToSymbolID, r.Type)
}

// checkSnapshot validates snap before anything is written and normalizes
// derived fields in place.
func (b *Backend) checkSnapshot(snap *types.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", types.ErrInvalidSnapshot)
	}
	if snap.FormatVersion != types.SnapshotFormatVersion {
		return fmt.Errorf("%w: format version %d, want %d", types.ErrInvalidSnapshot, snap.FormatVersion, types.SnapshotFormatVersion)
	}

	seen := make(map[string]bool, len(snap.Symbols))
	for i, sym := range snap.Symbols {
		if sym == nil {
			return fmt.Errorf("%w: symbol %d is null", types.ErrInvalidSnapshot, i)
		}
		id, err := types.ParseSymbolID(sym.SymbolID)
		if err != nil {
			return fmt.Errorf("symbol %d: %w", i, err)
		}
		if seen[sym.SymbolID] {
			return fmt.Errorf("%w: symbol %s appears twice", types.ErrInvalidSnapshot, sym.SymbolID)
		}
		seen[sym.SymbolID] = true

		if sym.Version < 1 || int64(len(sym.Changelog)) != sym.Version {
			return fmt.Errorf("%w: symbol %s has version %d and %d changelog entries",
				types.ErrInvalidSnapshot, sym.SymbolID, sym.Version, len(sym.Changelog))
		}
		hash, err := types.ComputeContentHash(sym)
		if err != nil {
			return err
		}
		if hash != sym.ContentHash {
			return fmt.Errorf("symbol %s: %w: stored %s, computed %s", sym.SymbolID, types.ErrHashMismatch, sym.ContentHash, hash)
		}
		sym.Category = id.Category
		sym.Family = id.Family()
		sym.Namespace = id.Namespace
		sym.Tags = types.NormalizeTags(sym.Tags)
		if sym.CreatedAt.IsZero() {
			sym.CreatedAt = sym.Changelog[0].Timestamp
		}
	}

	for i, r := range snap.Relationships {
		if r == nil {
			return fmt.Errorf("%w: relationship %d is null", types.ErrInvalidSnapshot, i)
		}
		if r.ID == "" {
			return fmt.Errorf("%w: relationship %d has no id", types.ErrInvalidSnapshot, i)
		}
		rt, err := types.ParseRelationshipType(string(r.Type))
		if err != nil {
			return fmt.Errorf("relationship %s: %w", r.ID, err)
		}
		if r.Category != "" && r.Category != rt.Category() {
			return fmt.Errorf("relationship %s: %w: category %s does not match type %s", r.ID, types.ErrInvalidCategory, r.Category, rt)
		}
		if r.FromSymbolID == r.ToSymbolID {
			return fmt.Errorf("relationship %s: %w", r.ID, types.ErrSelfReference)
		}
		if r.Weight < 0 || r.Weight > 1 || r.Confidence < 0 || r.Confidence > 1 {
			return fmt.Errorf("relationship %s: %w", r.ID, types.ErrInvalidWeight)
		}
		r.Type = rt
		r.Category = rt.Category()
		if r.CreatedAt.IsZero() {
			r.CreatedAt = b.timestamp()
		}
	}
	return nil
}

// snapshotManifest is the header written next to the JSONL files.
type snapshotManifest struct {
	FormatVersion int       `json:"format_version"`
	ExportedAt    time.Time `json:"exported_at"`
	Symbols       int       `json:"symbols"`
	Relationships int       `json:"relationships"`
}

// WriteSnapshotJSONL writes snap into dir as a manifest plus one JSONL file
// per record kind. Each file is replaced atomically.
func WriteSnapshotJSONL(dir string, snap *types.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", types.ErrInvalidSnapshot)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	symbols, err := marshalRecords(snap.Symbols)
	if err != nil {
		return fmt.Errorf("encode symbols: %w", err)
	}
	rels, err := marshalRecords(snap.Relationships)
	if err != nil {
		return fmt.Errorf("encode relationships: %w", err)
	}
	manifest, err := json.Marshal(snapshotManifest{
		FormatVersion: snap.FormatVersion,
		ExportedAt:    snap.ExportedAt,
		Symbols:       len(snap.Symbols),
		Relationships: len(snap.Relationships),
	})
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if err := writeJSONL(filepath.Join(dir, SnapshotSymbolsFile), symbols); err != nil {
		return fmt.Errorf("write %s: %w", SnapshotSymbolsFile, err)
	}
	if err := writeJSONL(filepath.Join(dir, SnapshotRelationshipsFile), rels); err != nil {
		return fmt.Errorf("write %s: %w", SnapshotRelationshipsFile, err)
	}
	if err := writeJSONL(filepath.Join(dir, SnapshotManifestFile), []json.RawMessage{manifest}); err != nil {
		return fmt.Errorf("write %s: %w", SnapshotManifestFile, err)
	}
	return nil
}

// ReadSnapshotJSONL reads a snapshot written by WriteSnapshotJSONL. A
// missing relationships file reads as no relationships; a missing manifest
// assumes the current format version.
func ReadSnapshotJSONL(dir string) (*types.Snapshot, error) {
	snap := &types.Snapshot{FormatVersion: types.SnapshotFormatVersion}

	manifestPath := filepath.Join(dir, SnapshotManifestFile)
	if _, err := os.Stat(manifestPath); err == nil {
		records, err := readJSONL(manifestPath)
		if err != nil {
			return nil, err
		}
		if len(records) != 1 {
			return nil, fmt.Errorf("%w: manifest has %d records", types.ErrInvalidSnapshot, len(records))
		}
		var m snapshotManifest
		if err := json.Unmarshal(records[0], &m); err != nil {
			return nil, fmt.Errorf("%w: manifest: %v", types.ErrInvalidSnapshot, err)
		}
		snap.FormatVersion = m.FormatVersion
		snap.ExportedAt = m.ExportedAt
	}

	records, err := readJSONL(filepath.Join(dir, SnapshotSymbolsFile))
	if err != nil {
		return nil, err
	}
	if snap.Symbols, err = unmarshalRecords[types.Symbol](SnapshotSymbolsFile, records); err != nil {
		return nil, err
	}

	relPath := filepath.Join(dir, SnapshotRelationshipsFile)
	snap.Relationships = []*types.Relationship{}
	if _, err := os.Stat(relPath); errors.Is(err, os.ErrNotExist) {
		return snap, nil
	}
	if records, err = readJSONL(relPath); err != nil {
		return nil, err
	}
	if snap.Relationships, err = unmarshalRecords[types.Relationship](SnapshotRelationshipsFile, records); err != nil {
		return nil, err
	}
	return snap, nil
}
