package types

// SymbolRepository is transactional storage of symbol records.
type SymbolRepository interface {
	// Create validates and persists a new symbol at version 1.
	// Returns ErrInvalidIdentifier or ErrAlreadyExists on rejection.
	Create(req CreateSymbolRequest) (*CreateResult, error)

	// Get returns the symbol with the given id. A non-zero version must match
	// the current version or ErrVersionMismatch is returned.
	Get(symbolID string, version int64) (*Symbol, error)

	// Update merges changes into the current version and increments it.
	Update(symbolID string, changes SymbolChanges, description, author string) (*UpdateResult, error)

	// Delete removes the symbol and every incident relationship. Deleting a
	// missing symbol reports Deleted=false and no error.
	Delete(symbolID, reason, actor string) (*DeleteResult, error)

	// List returns one page of symbols matching the filter.
	List(filter SymbolFilter) (*SymbolPage, error)

	// Search is List with a text filter.
	Search(query string, limit int) (*SymbolPage, error)

	// Exists reports whether a symbol with the id is stored.
	Exists(symbolID string) (bool, error)
}

// GraphEngine stores typed edges and runs traversals over them.
type GraphEngine interface {
	CreateRelationship(req RelationshipRequest) (*CreateRelationshipResult, error)

	// CreateRelationshipsBatch creates every edge or none.
	CreateRelationshipsBatch(reqs []RelationshipRequest) ([]*CreateRelationshipResult, error)

	GetRelationship(id string) (*Relationship, error)
	DeleteRelationship(id, actor string) error

	GetOutgoing(symbolID string, filter RelationshipFilter) ([]*Relationship, error)
	GetIncoming(symbolID string, filter RelationshipFilter) ([]*Relationship, error)
	GetRelated(symbolID string, filter RelationshipFilter) (*RelatedResult, error)

	GetNeighborhood(symbolID string, opts NeighborhoodOptions) (*Neighborhood, error)
	FindPaths(from, to string, filter TraversalFilter) (*PathResult, error)

	// FindShortestPath returns nil when no path exists within the bound.
	FindShortestPath(from, to string, filter TraversalFilter) (*Path, error)

	GetTopByCentrality(limit int) ([]CentralityScore, error)
	GetGraphStats() (*GraphStats, error)
}

// AuditLog is the append-only event record.
type AuditLog interface {
	InsertAuditEntry(entry AuditEntry) (int64, error)
	GetRecentAuditEntries(limit int) ([]AuditEntry, error)
	GetAuditForSymbol(symbolID string, limit int) ([]AuditEntry, error)
}

// Maintenance covers administrative operations over the whole store.
type Maintenance interface {
	CheckIntegrity() (*IntegrityReport, error)
	Optimize() error
	ExportAll() (*Snapshot, error)
	ImportAll(snapshot *Snapshot, opts ImportOptions) (*ImportResult, error)
}

// Store is the backend-agnostic entry point. Callers attach to a backend,
// use the operation sets, and detach when done.
type Store interface {
	SymbolRepository
	GraphEngine
	AuditLog
	Maintenance

	// Attach connects the Store to the backend described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached
	// if called while attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent. After Detach,
	// operations return ErrStoreDetached.
	Detach() error
}
