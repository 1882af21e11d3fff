package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

const auditColumns = "audit_id, created_at, event_type, COALESCE(symbol_id, ''), outcome, actor, risk_score, details, violations"

// InsertAuditEntry appends entry to the audit log and returns its id.
// A zero Timestamp is set to the current time.
func (b *Backend) InsertAuditEntry(entry types.AuditEntry) (int64, error) {
	unlock, err := b.readLock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	if !entry.EventType.Valid() {
		return 0, fmt.Errorf("%w: %q", types.ErrInvalidEventType, entry.EventType)
	}
	if err := b.checkStruct(entry); err != nil {
		return 0, err
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = b.timestamp()
	}
	id, err := insertAudit(b.db, entry, ts)
	if err != nil {
		return 0, storageErr("insert audit entry", err)
	}
	return id, nil
}

// GetRecentAuditEntries returns up to limit entries, newest first.
func (b *Backend) GetRecentAuditEntries(limit int) ([]types.AuditEntry, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return queryAudit(b.db,
		"SELECT "+auditColumns+" FROM audit_log ORDER BY audit_id DESC LIMIT ?",
		auditLimit(limit),
	)
}

// GetAuditForSymbol returns up to limit entries that reference symbolID,
// newest first. Entries survive deletion of the symbol.
func (b *Backend) GetAuditForSymbol(symbolID string, limit int) ([]types.AuditEntry, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return queryAudit(b.db,
		"SELECT "+auditColumns+" FROM audit_log WHERE symbol_id = ? ORDER BY audit_id DESC LIMIT ?",
		symbolID, auditLimit(limit),
	)
}

func auditLimit(limit int) int {
	switch {
	case limit <= 0:
		return types.DefaultAuditLimit
	case limit > types.MaxAuditLimit:
		return types.MaxAuditLimit
	default:
		return limit
	}
}

// insertAudit writes one audit row through q, which may be a transaction.
func insertAudit(q execer, e types.AuditEntry, ts time.Time) (int64, error) {
	var details, violations any
	if len(e.Details) > 0 {
		data, err := json.Marshal(e.Details)
		if err != nil {
			return 0, fmt.Errorf("encode audit details: %w", err)
		}
		details = string(data)
	}
	if len(e.Violations) > 0 {
		data, err := json.Marshal(e.Violations)
		if err != nil {
			return 0, fmt.Errorf("encode audit violations: %w", err)
		}
		violations = string(data)
	}
	var symbolID, risk any
	if e.SymbolID != "" {
		symbolID = e.SymbolID
	}
	if e.RiskScore != nil {
		risk = *e.RiskScore
	}

	res, err := q.Exec(
		`INSERT INTO audit_log (created_at, event_type, symbol_id, outcome, actor, risk_score, details, violations)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(ts), string(e.EventType), symbolID, e.Outcome, e.Actor, risk, details, violations,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func queryAudit(q execer, query string, args ...any) ([]types.AuditEntry, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, storageErr("query audit log", err)
	}
	defer rows.Close()

	entries := []types.AuditEntry{}
	for rows.Next() {
		e, err := hydrateAuditEntry(rows)
		if err != nil {
			return nil, storageErr("read audit entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query audit log", err)
	}
	return entries, nil
}

func hydrateAuditEntry(row scanner) (types.AuditEntry, error) {
	var (
		e          types.AuditEntry
		createdAt  string
		eventType  string
		risk       sql.NullInt64
		details    sql.NullString
		violations sql.NullString
	)
	if err := row.Scan(&e.ID, &createdAt, &eventType, &e.SymbolID, &e.Outcome, &e.Actor, &risk, &details, &violations); err != nil {
		return e, err
	}
	ts, err := parseTime(createdAt)
	if err != nil {
		return e, fmt.Errorf("parse audit timestamp: %w", err)
	}
	e.Timestamp = ts
	e.EventType = types.AuditEventType(eventType)
	if risk.Valid {
		r := int(risk.Int64)
		e.RiskScore = &r
	}
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
			return e, fmt.Errorf("decode audit details: %w", err)
		}
	}
	if violations.Valid && violations.String != "" {
		if err := json.Unmarshal([]byte(violations.String), &e.Violations); err != nil {
			return e, fmt.Errorf("decode audit violations: %w", err)
		}
	}
	return e, nil
}
