package types

import "time"

// SnapshotFormatVersion identifies the snapshot layout.
const SnapshotFormatVersion = 1

// Snapshot is a full, serializable copy of the store: every symbol with its
// semantic and metadata content (changelog included) and every relationship.
type Snapshot struct {
	FormatVersion int             `json:"format_version"`
	ExportedAt    time.Time       `json:"exported_at"`
	Symbols       []*Symbol       `json:"symbols"`
	Relationships []*Relationship `json:"relationships"`
}

// ImportOptions configures ImportAll.
type ImportOptions struct {
	// Replace removes every existing symbol and relationship before loading.
	// Without it, records whose id already exists are skipped.
	Replace bool `json:"replace"`

	Actor string `json:"actor,omitempty"`
}

// ImportResult counts what ImportAll wrote.
type ImportResult struct {
	SymbolsImported       int `json:"symbols_imported"`
	SymbolsSkipped        int `json:"symbols_skipped"`
	RelationshipsImported int `json:"relationships_imported"`
	RelationshipsSkipped  int `json:"relationships_skipped"`
}

// IntegrityReport is the result of CheckIntegrity. OK is true when Problems
// is empty.
type IntegrityReport struct {
	OK                bool      `json:"ok"`
	CheckedAt         time.Time `json:"checked_at"`
	SymbolsChecked    int       `json:"symbols_checked"`
	RelationshipsSeen int       `json:"relationships_seen"`
	Problems          []string  `json:"problems,omitempty"`
}
