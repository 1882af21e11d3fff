package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

// Create validates req and persists a new symbol at version 1 together with
// its first changelog entry, search row and SYMBOL_CREATE audit entry.
func (b *Backend) Create(req types.CreateSymbolRequest) (*types.CreateResult, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	sym, err := b.newSymbol(req)
	if err != nil {
		b.recordAttempt(types.EventSymbolCreate, req.SymbolID, req.CreatedBy, err, nil)
		return nil, fmt.Errorf("create %s: %w", req.SymbolID, err)
	}

	err = b.inTx("create", func(tx *sql.Tx) error {
		exists, err := symbolExists(tx, sym.SymbolID)
		if err != nil {
			return storageErr("check symbol existence", err)
		}
		if exists {
			return types.ErrAlreadyExists
		}
		if err := insertSymbol(tx, sym); err != nil {
			return err
		}
		if err := insertChangelog(tx, sym.SymbolID, sym.Changelog[0]); err != nil {
			return err
		}
		_, err = insertAudit(tx, types.AuditEntry{
			EventType: types.EventSymbolCreate,
			SymbolID:  sym.SymbolID,
			Outcome:   types.OutcomeSuccess,
			Actor:     sym.CreatedBy,
			Details: map[string]any{
				"version":      sym.Version,
				"content_hash": sym.ContentHash,
			},
		}, sym.CreatedAt)
		return storageErr("write audit entry", err)
	})
	if err != nil {
		b.recordAttempt(types.EventSymbolCreate, sym.SymbolID, sym.CreatedBy, err, nil)
		return nil, fmt.Errorf("create %s: %w", sym.SymbolID, err)
	}

	b.cache.Put(sym)
	b.logger.Debug("symbol created", "symbol_id", sym.SymbolID, "content_hash", sym.ContentHash)
	return &types.CreateResult{
		SymbolID:    sym.SymbolID,
		Version:     sym.Version,
		ContentHash: sym.ContentHash,
	}, nil
}

// newSymbol builds the version 1 record for req.
func (b *Backend) newSymbol(req types.CreateSymbolRequest) (*types.Symbol, error) {
	if err := b.checkStruct(req); err != nil {
		return nil, err
	}
	id, err := types.ParseSymbolID(req.SymbolID)
	if err != nil {
		return nil, err
	}
	if err := checkParent(req.ParentSymbol, req.SymbolID); err != nil {
		return nil, err
	}
	if len(req.Epistemic) > 0 && !json.Valid(req.Epistemic) {
		return nil, fmt.Errorf("%w: epistemic payload is not valid JSON", types.ErrInvalidRequest)
	}

	now := b.timestamp()
	sym := &types.Symbol{
		SymbolID:         id.Raw,
		Version:          1,
		Category:         id.Category,
		Family:           id.Family(),
		Namespace:        id.Namespace,
		Who:              req.Who,
		What:             req.What,
		Why:              req.Why,
		Where:            req.Where,
		When:             req.When,
		How:              req.How,
		CommandersIntent: req.CommandersIntent,
		Requirements:     req.Requirements,
		AntiRequirements: req.AntiRequirements,
		KeyTerms:         req.KeyTerms,
		CreatedAt:        now,
		CreatedBy:        req.CreatedBy,
		Tags:             types.NormalizeTags(req.Tags),
		ParentSymbol:     req.ParentSymbol,
		Changelog: []types.ChangelogEntry{{
			Version:     1,
			Description: types.InitialChangeDescription,
			Author:      req.CreatedBy,
			Timestamp:   now,
		}},
		Epistemic: req.Epistemic,
	}
	if sym.How != nil && sym.How.Focus == "" && len(sym.How.Steps) == 0 && len(sym.How.Constraints) == 0 {
		sym.How = nil
	}
	sym = sym.Clone()
	if sym.ContentHash, err = types.ComputeContentHash(sym); err != nil {
		return nil, err
	}
	return sym, nil
}

func checkParent(parent, self string) error {
	if parent == "" {
		return nil
	}
	if parent == self {
		return fmt.Errorf("%w: symbol cannot be its own parent", types.ErrInvalidRequest)
	}
	if _, err := types.ParseSymbolID(parent); err != nil {
		return fmt.Errorf("parent symbol: %w", err)
	}
	return nil
}

// Get returns the current record of symbolID. A non-zero version must equal
// the current version.
func (b *Backend) Get(symbolID string, version int64) (*types.Symbol, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if version < 0 {
		return nil, fmt.Errorf("get %s: %w: version %d", symbolID, types.ErrInvalidRequest, version)
	}

	sym, ok := b.cache.Get(symbolID)
	if !ok {
		epoch := b.cache.Epoch()
		sym, err = loadSymbol(b.db, symbolID)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", symbolID, err)
		}
		b.cache.Fill(sym, epoch)
	}

	if b.config.AuditAccess {
		b.recordAccess(sym)
	}
	if version != 0 && sym.Version != version {
		return nil, fmt.Errorf("get %s version %d: %w (current is %d)", symbolID, version, types.ErrVersionMismatch, sym.Version)
	}
	return sym, nil
}

func (b *Backend) recordAccess(sym *types.Symbol) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_, err := insertAudit(b.db, types.AuditEntry{
		EventType: types.EventSymbolAccess,
		SymbolID:  sym.SymbolID,
		Outcome:   types.OutcomeSuccess,
		Details:   map[string]any{"version": sym.Version},
	}, b.timestamp())
	if err != nil {
		b.logger.Warn("audit write failed", "event", string(types.EventSymbolAccess), "symbol_id", sym.SymbolID, "error", err)
	}
}

// Update merges changes into the current record, increments the version,
// recomputes the hash and appends one changelog entry.
func (b *Backend) Update(symbolID string, changes types.SymbolChanges, description, author string) (*types.UpdateResult, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if err := validateChanges(symbolID, changes); err != nil {
		b.recordAttempt(types.EventSymbolUpdate, symbolID, author, err, nil)
		return nil, fmt.Errorf("update %s: %w", symbolID, err)
	}

	var (
		result  types.UpdateResult
		updated *types.Symbol
	)
	err = b.inTx("update", func(tx *sql.Tx) error {
		cur, err := loadSymbol(tx, symbolID)
		if err != nil {
			return err
		}
		next := cur.Clone()
		changes.Apply(next)

		now := b.timestamp()
		next.Version = cur.Version + 1
		next.UpdatedAt = &now
		if next.ContentHash, err = types.ComputeContentHash(next); err != nil {
			return err
		}
		desc := strings.TrimSpace(description)
		if desc == "" {
			desc = fmt.Sprintf("Update to version %d", next.Version)
		}
		entry := types.ChangelogEntry{
			Version:     next.Version,
			Description: desc,
			Author:      author,
			Timestamp:   now,
		}
		next.Changelog = append(next.Changelog, entry)

		if err := updateSymbol(tx, next); err != nil {
			return err
		}
		if err := insertChangelog(tx, next.SymbolID, entry); err != nil {
			return err
		}
		result = types.UpdateResult{
			SymbolID:    next.SymbolID,
			OldVersion:  cur.Version,
			NewVersion:  next.Version,
			OldHash:     cur.ContentHash,
			NewHash:     next.ContentHash,
			HashChanged: cur.ContentHash != next.ContentHash,
		}
		_, err = insertAudit(tx, types.AuditEntry{
			EventType: types.EventSymbolUpdate,
			SymbolID:  next.SymbolID,
			Outcome:   types.OutcomeSuccess,
			Actor:     author,
			Details: map[string]any{
				"old_version":  result.OldVersion,
				"new_version":  result.NewVersion,
				"old_hash":     result.OldHash,
				"new_hash":     result.NewHash,
				"hash_changed": result.HashChanged,
				"description":  desc,
			},
		}, now)
		updated = next
		return storageErr("write audit entry", err)
	})
	if err != nil {
		b.cache.Evict(symbolID)
		b.recordAttempt(types.EventSymbolUpdate, symbolID, author, err, nil)
		return nil, fmt.Errorf("update %s: %w", symbolID, err)
	}

	b.cache.Put(updated)
	b.logger.Debug("symbol updated", "symbol_id", symbolID, "version", result.NewVersion, "hash_changed", result.HashChanged)
	return &result, nil
}

func validateChanges(symbolID string, c types.SymbolChanges) error {
	if c.Empty() {
		return fmt.Errorf("%w: no changes", types.ErrInvalidRequest)
	}
	if c.ParentSymbol != nil {
		if err := checkParent(*c.ParentSymbol, symbolID); err != nil {
			return err
		}
	}
	if c.Epistemic != nil && len(*c.Epistemic) > 0 && !json.Valid(*c.Epistemic) {
		return fmt.Errorf("%w: epistemic payload is not valid JSON", types.ErrInvalidRequest)
	}
	if c.CommandersIntent != nil && len(*c.CommandersIntent) > 1000 {
		return fmt.Errorf("%w: commanders intent exceeds 1000 characters", types.ErrInvalidRequest)
	}
	return nil
}

// Delete removes symbolID and every edge incident to it. A missing symbol
// is reported with Deleted=false.
func (b *Backend) Delete(symbolID, reason, actor string) (*types.DeleteResult, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	result := types.DeleteResult{SymbolID: symbolID}
	err = b.inTx("delete", func(tx *sql.Tx) error {
		var seq int64
		err := tx.QueryRow("SELECT seq FROM symbols WHERE symbol_id = ?", symbolID).Scan(&seq)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return storageErr("look up symbol", err)
		default:
			res, err := tx.Exec(
				"DELETE FROM relationships WHERE from_symbol_id = ? OR to_symbol_id = ?",
				symbolID, symbolID,
			)
			if err != nil {
				return storageErr("delete relationships", err)
			}
			if result.RelationshipsRemoved, err = res.RowsAffected(); err != nil {
				return storageErr("delete relationships", err)
			}
			if _, err := tx.Exec("DELETE FROM symbols_fts WHERE rowid = ?", seq); err != nil {
				return storageErr("delete search row", err)
			}
			if _, err := tx.Exec("DELETE FROM symbols WHERE seq = ?", seq); err != nil {
				return storageErr("delete symbol", err)
			}
			result.Deleted = true
		}
		_, err = insertAudit(tx, types.AuditEntry{
			EventType: types.EventSymbolDelete,
			SymbolID:  symbolID,
			Outcome:   types.OutcomeSuccess,
			Actor:     actor,
			Details: map[string]any{
				"reason":                reason,
				"deleted":               result.Deleted,
				"relationships_removed": result.RelationshipsRemoved,
			},
		}, b.timestamp())
		return storageErr("write audit entry", err)
	})
	b.cache.Evict(symbolID)
	if err != nil {
		b.recordAttempt(types.EventSymbolDelete, symbolID, actor, err, map[string]any{"reason": reason})
		return nil, fmt.Errorf("delete %s: %w", symbolID, err)
	}

	b.logger.Debug("symbol deleted", "symbol_id", symbolID, "deleted", result.Deleted,
		"relationships_removed", result.RelationshipsRemoved)
	return &result, nil
}

// Exists reports whether symbolID is stored.
func (b *Backend) Exists(symbolID string) (bool, error) {
	unlock, err := b.readLock()
	if err != nil {
		return false, err
	}
	defer unlock()

	if b.cache.Contains(symbolID) {
		return true, nil
	}
	ok, err := symbolExists(b.db, symbolID)
	if err != nil {
		return false, storageErr("check symbol existence", err)
	}
	return ok, nil
}

// List returns one page of symbols matching filter, newest first, or by
// search relevance when filter.Text is set.
func (b *Backend) List(filter types.SymbolFilter) (*types.SymbolPage, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return b.list(filter)
}

// Search lists symbols whose id or commander's intent match query.
func (b *Backend) Search(query string, limit int) (*types.SymbolPage, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search: %w: empty query", types.ErrInvalidRequest)
	}
	return b.list(types.SymbolFilter{Text: query, Limit: limit})
}

func (b *Backend) list(filter types.SymbolFilter) (*types.SymbolPage, error) {
	if filter.Offset < 0 {
		return nil, fmt.Errorf("list: %w: negative offset", types.ErrInvalidRequest)
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, fmt.Errorf("list: %w: unknown category %q", types.ErrInvalidRequest, filter.Category)
	}
	if filter.Family != "" && !filter.Family.Valid() {
		return nil, fmt.Errorf("list: %w: unknown family %q", types.ErrInvalidRequest, filter.Family)
	}

	page := &types.SymbolPage{Items: []*types.Symbol{}}

	from := "FROM symbols s"
	var (
		conds []string
		args  []any
	)
	if filter.Text != "" {
		match := sanitizeFTS(filter.Text)
		if match == "" {
			return page, nil
		}
		from += " JOIN symbols_fts ON symbols_fts.rowid = s.seq"
		conds = append(conds, "symbols_fts MATCH ?")
		args = append(args, match)
	}
	if filter.Category != "" {
		conds = append(conds, "s.category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Family != "" {
		conds = append(conds, "s.family = ?")
		args = append(args, string(filter.Family))
	}
	if filter.Namespace != "" {
		conds = append(conds, "s.namespace = ?")
		args = append(args, filter.Namespace)
	}
	if filter.Tag != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM symbol_tags t WHERE t.symbol_id = s.symbol_id AND t.tag = ?)")
		args = append(args, filter.Tag)
	}
	if !filter.CreatedAfter.IsZero() {
		conds = append(conds, "s.created_at >= ?")
		args = append(args, formatTime(filter.CreatedAfter))
	}
	if !filter.CreatedBefore.IsZero() {
		conds = append(conds, "s.created_at < ?")
		args = append(args, formatTime(filter.CreatedBefore))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	if err := b.db.QueryRow("SELECT COUNT(*) "+from+where, args...).Scan(&page.Total); err != nil {
		return nil, storageErr("count symbols", err)
	}

	order := " ORDER BY s.created_at DESC, s.seq DESC"
	if filter.Text != "" {
		order = " ORDER BY symbols_fts.rank, s.created_at DESC, s.seq DESC"
	}
	limit := filter.EffectiveLimit()
	query := "SELECT s.body " + from + where + order + " LIMIT ? OFFSET ?"
	rows, err := b.db.Query(query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, storageErr("list symbols", err)
	}
	defer rows.Close()

	for rows.Next() {
		sym, err := hydrateSymbol(rows)
		if err != nil {
			return nil, storageErr("read symbol", err)
		}
		page.Items = append(page.Items, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list symbols", err)
	}
	page.HasMore = filter.Offset+len(page.Items) < page.Total
	return page, nil
}

// sanitizeFTS quotes each word so user input cannot inject FTS5 operators.
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.ReplaceAll(w, `"`, "")
		words[i] = `"` + w + `"`
	}
	out := strings.Join(words, " ")
	if strings.Trim(out, `" `) == "" {
		return ""
	}
	return out
}

// symbolExists reports whether symbolID has a row.
func symbolExists(q execer, symbolID string) (bool, error) {
	var one int
	err := q.QueryRow("SELECT 1 FROM symbols WHERE symbol_id = ?", symbolID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// loadSymbol reads the stored record of symbolID.
func loadSymbol(q execer, symbolID string) (*types.Symbol, error) {
	row := q.QueryRow("SELECT body FROM symbols WHERE symbol_id = ?", symbolID)
	sym, err := hydrateSymbol(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("read symbol", err)
	}
	return sym, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// hydrateSymbol decodes a body column into a Symbol.
func hydrateSymbol(row scanner) (*types.Symbol, error) {
	var body string
	if err := row.Scan(&body); err != nil {
		return nil, err
	}
	var sym types.Symbol
	if err := json.Unmarshal([]byte(body), &sym); err != nil {
		return nil, fmt.Errorf("decode symbol body: %w", err)
	}
	return &sym, nil
}

// insertSymbol writes a new symbol row with its tags and search row.
func insertSymbol(tx *sql.Tx, sym *types.Symbol) error {
	body, err := json.Marshal(sym)
	if err != nil {
		return fmt.Errorf("encode symbol: %w", err)
	}
	res, err := tx.Exec(
		`INSERT INTO symbols (symbol_id, version, content_hash, category, family, namespace, created_by, created_at, updated_at, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.SymbolID, sym.Version, sym.ContentHash, string(sym.Category), string(sym.Family),
		sym.Namespace, sym.CreatedBy, formatTime(sym.CreatedAt), nullTime(sym.UpdatedAt), string(body),
	)
	if err != nil {
		return storageErr("insert symbol", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert symbol", err)
	}
	return writeSymbolIndexes(tx, seq, sym, false)
}

// updateSymbol rewrites the row of an existing symbol.
func updateSymbol(tx *sql.Tx, sym *types.Symbol) error {
	body, err := json.Marshal(sym)
	if err != nil {
		return fmt.Errorf("encode symbol: %w", err)
	}
	var seq int64
	if err := tx.QueryRow("SELECT seq FROM symbols WHERE symbol_id = ?", sym.SymbolID).Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ErrNotFound
		}
		return storageErr("look up symbol", err)
	}
	_, err = tx.Exec(
		"UPDATE symbols SET version = ?, content_hash = ?, updated_at = ?, body = ? WHERE seq = ?",
		sym.Version, sym.ContentHash, nullTime(sym.UpdatedAt), string(body), seq,
	)
	if err != nil {
		return storageErr("update symbol", err)
	}
	return writeSymbolIndexes(tx, seq, sym, true)
}

// writeSymbolIndexes replaces the tag rows and the search row of a symbol.
func writeSymbolIndexes(tx *sql.Tx, seq int64, sym *types.Symbol, replace bool) error {
	if replace {
		if _, err := tx.Exec("DELETE FROM symbol_tags WHERE symbol_id = ?", sym.SymbolID); err != nil {
			return storageErr("clear tags", err)
		}
		if _, err := tx.Exec("DELETE FROM symbols_fts WHERE rowid = ?", seq); err != nil {
			return storageErr("clear search row", err)
		}
	}
	for _, tag := range sym.Tags {
		if _, err := tx.Exec("INSERT OR IGNORE INTO symbol_tags (symbol_id, tag) VALUES (?, ?)", sym.SymbolID, tag); err != nil {
			return storageErr("insert tag", err)
		}
	}
	_, err := tx.Exec(
		"INSERT INTO symbols_fts (rowid, symbol_id, commanders_intent) VALUES (?, ?, ?)",
		seq, sym.SymbolID, sym.CommandersIntent,
	)
	return storageErr("insert search row", err)
}

func insertChangelog(tx *sql.Tx, symbolID string, e types.ChangelogEntry) error {
	_, err := tx.Exec(
		"INSERT INTO symbol_changelog (symbol_id, version, description, author, created_at) VALUES (?, ?, ?, ?, ?)",
		symbolID, e.Version, e.Description, e.Author, formatTime(e.Timestamp),
	)
	return storageErr("insert changelog entry", err)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
