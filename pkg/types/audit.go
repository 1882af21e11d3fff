package types

import "time"

// AuditEventType is the closed set of audit event kinds.
type AuditEventType string

// Audit event types.
const (
	EventSymbolCreate       AuditEventType = "SYMBOL_CREATE"
	EventSymbolUpdate       AuditEventType = "SYMBOL_UPDATE"
	EventSymbolDelete       AuditEventType = "SYMBOL_DELETE"
	EventSymbolAccess       AuditEventType = "SYMBOL_ACCESS"
	EventRelationshipCreate AuditEventType = "RELATIONSHIP_CREATE"
	EventRelationshipDelete AuditEventType = "RELATIONSHIP_DELETE"
	EventFormatValidation   AuditEventType = "FORMAT_VALIDATION"
	EventSecurityViolation  AuditEventType = "SECURITY_VIOLATION"
	EventSecurityBlock      AuditEventType = "SECURITY_BLOCK"
	EventBulkExport         AuditEventType = "BULK_EXPORT"
	EventBulkImport         AuditEventType = "BULK_IMPORT"
)

var validEventTypes = map[AuditEventType]bool{
	EventSymbolCreate:       true,
	EventSymbolUpdate:       true,
	EventSymbolDelete:       true,
	EventSymbolAccess:       true,
	EventRelationshipCreate: true,
	EventRelationshipDelete: true,
	EventFormatValidation:   true,
	EventSecurityViolation:  true,
	EventSecurityBlock:      true,
	EventBulkExport:         true,
	EventBulkImport:         true,
}

// Valid reports whether e is a known event type.
func (e AuditEventType) Valid() bool { return validEventTypes[e] }

// Audit outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Risk score bounds.
const (
	MinRiskScore = 0
	MaxRiskScore = 100
)

// AuditEntry is one append-only audit record. ID and Timestamp are assigned
// by the store when zero.
type AuditEntry struct {
	ID         int64          `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	EventType  AuditEventType `json:"event_type" validate:"required"`
	SymbolID   string         `json:"symbol_id,omitempty"`
	Outcome    string         `json:"outcome,omitempty" validate:"omitempty,oneof=success rejected failed"`
	Actor      string         `json:"actor,omitempty" validate:"max=200"`
	RiskScore  *int           `json:"risk_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	Details    map[string]any `json:"details,omitempty"`
	Violations []string       `json:"violations,omitempty"`
}

// Audit query bounds.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 1000
)
