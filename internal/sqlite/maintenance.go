package sqlite

import (
	"fmt"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

// CheckIntegrity verifies the database file, foreign keys, every stored
// content hash and changelog, the search index and the edge invariants.
// Problems are collected into the report; the error is reserved for
// failures to run the checks.
func (b *Backend) CheckIntegrity() (*types.IntegrityReport, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	report := &types.IntegrityReport{CheckedAt: b.timestamp()}
	problem := func(format string, args ...any) {
		report.Problems = append(report.Problems, fmt.Sprintf(format, args...))
	}

	if err := b.checkEngine(problem); err != nil {
		return nil, err
	}
	if err := b.checkSymbols(report, problem); err != nil {
		return nil, err
	}
	if err := b.checkSearchIndex(problem); err != nil {
		return nil, err
	}
	if err := b.checkEdges(report, problem); err != nil {
		return nil, err
	}

	report.OK = len(report.Problems) == 0
	if !report.OK {
		b.logger.Warn("integrity check found problems", "count", len(report.Problems))
	}
	return report, nil
}

func (b *Backend) checkEngine(problem func(string, ...any)) error {
	rows, err := b.db.Query("PRAGMA integrity_check")
	if err != nil {
		return storageErr("integrity check", err)
	}
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			rows.Close()
			return storageErr("integrity check", err)
		}
		if msg != "ok" {
			problem("database: %s", msg)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return storageErr("integrity check", err)
	}

	fk, err := b.db.Query("PRAGMA foreign_key_check")
	if err != nil {
		return storageErr("foreign key check", err)
	}
	defer fk.Close()
	for fk.Next() {
		var (
			table, parent string
			rowid         any
			fkid          int
		)
		if err := fk.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return storageErr("foreign key check", err)
		}
		problem("foreign key: row %v of %s references missing %s", rowid, table, parent)
	}
	return storageErr("foreign key check", fk.Err())
}

func (b *Backend) checkSymbols(report *types.IntegrityReport, problem func(string, ...any)) error {
	rows, err := b.db.Query(`SELECT s.symbol_id, s.version, s.content_hash, s.body,
	    (SELECT COUNT(*) FROM symbol_changelog c WHERE c.symbol_id = s.symbol_id)
	FROM symbols s ORDER BY s.seq`)
	if err != nil {
		return storageErr("scan symbols", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, hash, body string
			version        int64
			logRows        int64
		)
		if err := rows.Scan(&id, &version, &hash, &body, &logRows); err != nil {
			return storageErr("scan symbols", err)
		}
		report.SymbolsChecked++

		sym, err := hydrateSymbol(staticRow{body})
		if err != nil {
			problem("symbol %s: %v", id, err)
			continue
		}
		if sym.SymbolID != id {
			problem("symbol %s: body carries id %s", id, sym.SymbolID)
		}
		if sym.Version != version {
			problem("symbol %s: body version %d, column version %d", id, sym.Version, version)
		}
		recomputed, err := types.ComputeContentHash(sym)
		if err != nil {
			problem("symbol %s: %v", id, err)
		} else if recomputed != hash || sym.ContentHash != hash {
			problem("symbol %s: content hash %s does not match semantic fields (%s)", id, hash, recomputed)
		}
		if int64(len(sym.Changelog)) != version {
			problem("symbol %s: %d changelog entries for version %d", id, len(sym.Changelog), version)
		}
		if logRows != version {
			problem("symbol %s: %d changelog rows for version %d", id, logRows, version)
		}
		if _, err := types.ParseSymbolID(id); err != nil {
			problem("symbol %s: %v", id, err)
		}
	}
	return storageErr("scan symbols", rows.Err())
}

func (b *Backend) checkSearchIndex(problem func(string, ...any)) error {
	missing, err := b.db.Query("SELECT symbol_id FROM symbols WHERE seq NOT IN (SELECT rowid FROM symbols_fts)")
	if err != nil {
		return storageErr("check search index", err)
	}
	defer missing.Close()
	for missing.Next() {
		var id string
		if err := missing.Scan(&id); err != nil {
			return storageErr("check search index", err)
		}
		problem("search index: symbol %s has no search row", id)
	}
	if err := missing.Err(); err != nil {
		return storageErr("check search index", err)
	}

	var orphans int
	if err := b.db.QueryRow("SELECT COUNT(*) FROM symbols_fts WHERE rowid NOT IN (SELECT seq FROM symbols)").Scan(&orphans); err != nil {
		return storageErr("check search index", err)
	}
	if orphans > 0 {
		problem("search index: %d rows without a symbol", orphans)
	}
	return nil
}

func (b *Backend) checkEdges(report *types.IntegrityReport, problem func(string, ...any)) error {
	if err := b.db.QueryRow("SELECT COUNT(*) FROM relationships").Scan(&report.RelationshipsSeen); err != nil {
		return storageErr("count relationships", err)
	}

	checks := []struct {
		query string
		what  string
	}{
		{"SELECT relationship_id FROM relationships WHERE from_symbol_id = to_symbol_id", "is a self loop"},
		{`SELECT relationship_id FROM relationships r
		  WHERE NOT EXISTS (SELECT 1 FROM symbols s WHERE s.symbol_id = r.from_symbol_id)
		     OR NOT EXISTS (SELECT 1 FROM symbols s WHERE s.symbol_id = r.to_symbol_id)`, "references a missing symbol"},
	}
	for _, c := range checks {
		ids, err := queryStrings(b.db, c.query)
		if err != nil {
			return storageErr("check relationships", err)
		}
		for _, id := range ids {
			problem("relationship %s %s", id, c.what)
		}
	}

	rows, err := b.db.Query("SELECT relationship_id, relationship_type, category FROM relationships")
	if err != nil {
		return storageErr("check relationship types", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, rt, cat string
		if err := rows.Scan(&id, &rt, &cat); err != nil {
			return storageErr("check relationship types", err)
		}
		t := types.RelationshipType(rt)
		switch {
		case !t.Valid():
			problem("relationship %s has unknown type %s", id, rt)
		case string(t.Category()) != cat:
			problem("relationship %s has category %s, type %s belongs to %s", id, cat, rt, t.Category())
		}
	}
	return storageErr("check relationship types", rows.Err())
}

// Optimize compacts the search index, refreshes planner statistics,
// checkpoints the WAL and vacuums the file.
func (b *Backend) Optimize() error {
	unlock, err := b.readLock()
	if err != nil {
		return err
	}
	defer unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	for _, stmt := range []string{
		"INSERT INTO symbols_fts(symbols_fts) VALUES('optimize')",
		"PRAGMA optimize",
		"PRAGMA wal_checkpoint(TRUNCATE)",
		"VACUUM",
	} {
		if _, err := b.db.Exec(stmt); err != nil {
			return storageErr("optimize: "+stmt, err)
		}
	}
	b.logger.Debug("database optimized")
	return nil
}

// staticRow adapts an already-read column to the scanner interface.
type staticRow struct{ body string }

func (r staticRow) Scan(dest ...any) error {
	if len(dest) != 1 {
		return fmt.Errorf("staticRow: %d destinations", len(dest))
	}
	p, ok := dest[0].(*string)
	if !ok {
		return fmt.Errorf("staticRow: unsupported destination %T", dest[0])
	}
	*p = r.body
	return nil
}

func queryStrings(q execer, query string, args ...any) ([]string, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
