package sqlite

import (
	"database/sql"
	"fmt"
)

// currentSchemaVersion is stored in PRAGMA user_version.
const currentSchemaVersion = 1

// Schema DDL. Every statement is idempotent so Attach can run it against an
// existing database.
const (
	// seq gives each symbol a stable integer key shared with the search
	// index rowid. body holds the full record as JSON; the other columns
	// are projections used for filtering and ordering.
	createSymbols = `CREATE TABLE IF NOT EXISTS symbols (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol_id TEXT NOT NULL UNIQUE,
    version INTEGER NOT NULL CHECK (version >= 1),
    content_hash TEXT NOT NULL,
    category TEXT NOT NULL,
    family TEXT NOT NULL,
    namespace TEXT NOT NULL DEFAULT '',
    created_by TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT,
    body TEXT NOT NULL
);`

	createSymbolTags = `CREATE TABLE IF NOT EXISTS symbol_tags (
    symbol_id TEXT NOT NULL,
    tag TEXT NOT NULL,
    PRIMARY KEY (symbol_id, tag),
    FOREIGN KEY (symbol_id) REFERENCES symbols(symbol_id) ON DELETE CASCADE
);`

	createSymbolChangelog = `CREATE TABLE IF NOT EXISTS symbol_changelog (
    symbol_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    description TEXT NOT NULL,
    author TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    PRIMARY KEY (symbol_id, version),
    FOREIGN KEY (symbol_id) REFERENCES symbols(symbol_id) ON DELETE CASCADE
);`

	createRelationships = `CREATE TABLE IF NOT EXISTS relationships (
    relationship_id TEXT PRIMARY KEY,
    from_symbol_id TEXT NOT NULL,
    to_symbol_id TEXT NOT NULL,
    relationship_type TEXT NOT NULL,
    category TEXT NOT NULL,
    weight REAL NOT NULL CHECK (weight >= 0 AND weight <= 1),
    confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
    properties TEXT,
    evidence TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    created_by TEXT NOT NULL DEFAULT '',
    CHECK (from_symbol_id <> to_symbol_id),
    UNIQUE (from_symbol_id, to_symbol_id, relationship_type),
    FOREIGN KEY (from_symbol_id) REFERENCES symbols(symbol_id) ON DELETE CASCADE,
    FOREIGN KEY (to_symbol_id) REFERENCES symbols(symbol_id) ON DELETE CASCADE
);`

	// symbol_id is not a foreign key: audit rows outlive the
	// symbols they describe.
	createAuditLog = `CREATE TABLE IF NOT EXISTS audit_log (
    audit_id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL,
    event_type TEXT NOT NULL,
    symbol_id TEXT,
    outcome TEXT NOT NULL DEFAULT '',
    actor TEXT NOT NULL DEFAULT '',
    risk_score INTEGER CHECK (risk_score IS NULL OR (risk_score >= 0 AND risk_score <= 100)),
    details TEXT,
    violations TEXT
);`

	// Standalone index keyed by symbols.seq, maintained in the same
	// transaction as the symbol row.
	createSymbolsFTS = `CREATE VIRTUAL TABLE IF NOT EXISTS symbols_fts USING fts5(
    symbol_id,
    commanders_intent,
    tokenize = 'unicode61'
);`
)

// Index DDL for common queries.
const (
	idxSymbolsCategory     = `CREATE INDEX IF NOT EXISTS idx_symbols_category ON symbols(category, created_at);`
	idxSymbolsFamily       = `CREATE INDEX IF NOT EXISTS idx_symbols_family ON symbols(family, created_at);`
	idxSymbolsNamespace    = `CREATE INDEX IF NOT EXISTS idx_symbols_namespace ON symbols(namespace);`
	idxSymbolsCreated      = `CREATE INDEX IF NOT EXISTS idx_symbols_created ON symbols(created_at);`
	idxSymbolTagsTag       = `CREATE INDEX IF NOT EXISTS idx_symbol_tags_tag ON symbol_tags(tag);`
	idxRelationshipsFrom   = `CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_symbol_id, weight DESC);`
	idxRelationshipsTo     = `CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_symbol_id, weight DESC);`
	idxRelationshipsType   = `CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(relationship_type);`
	idxAuditCreated        = `CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at);`
	idxAuditSymbol         = `CREATE INDEX IF NOT EXISTS idx_audit_symbol ON audit_log(symbol_id, audit_id);`
	idxSymbolChangelogAuth = `CREATE INDEX IF NOT EXISTS idx_symbol_changelog_author ON symbol_changelog(author);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createSymbols,
	createSymbolTags,
	createSymbolChangelog,
	createRelationships,
	createAuditLog,
	createSymbolsFTS,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxSymbolsCategory,
	idxSymbolsFamily,
	idxSymbolsNamespace,
	idxSymbolsCreated,
	idxSymbolTagsTag,
	idxRelationshipsFrom,
	idxRelationshipsTo,
	idxRelationshipsType,
	idxAuditCreated,
	idxAuditSymbol,
	idxSymbolChangelogAuth,
}

// applySchema creates missing tables and indexes, then runs migrations.
func applySchema(db *sql.DB) error {
	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return runMigrations(db)
}

// runMigrations applies incremental migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
