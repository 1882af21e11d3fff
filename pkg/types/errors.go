package types

import (
	"errors"
	"fmt"
)

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Validation errors. Rejected before any write; never retryable.
var (
	ErrInvalidIdentifier       = errors.New("invalid symbol identifier")
	ErrInvalidRelationshipType = errors.New("invalid relationship type")
	ErrInvalidCategory         = errors.New("invalid relationship category")
	ErrInvalidWeight           = errors.New("weight and confidence must be within [0, 1]")
	ErrInvalidEventType        = errors.New("invalid audit event type")
	ErrInvalidRiskScore        = errors.New("risk score must be within [0, 100]")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrInvalidSnapshot         = errors.New("invalid snapshot")
)

// Conflict errors. The caller must change the request.
var (
	ErrAlreadyExists         = errors.New("symbol already exists")
	ErrDuplicateEdge         = errors.New("relationship already exists")
	ErrBidirectionalConflict = errors.New("inverse relationship already exists")
	ErrHashMismatch          = errors.New("content hash does not match semantic fields")
)

// Not-found errors.
var (
	ErrNotFound        = errors.New("entity not found")
	ErrVersionMismatch = errors.New("requested version is not the current version")
)

// Referential integrity errors.
var (
	ErrSelfReference     = errors.New("relationship endpoints must differ")
	ErrDanglingReference = errors.New("relationship endpoint does not exist")
)

// ErrStorageUnavailable marks durable-engine failures. Retryable by the caller.
var ErrStorageUnavailable = errors.New("repository unavailable")

// StorageError wraps an I/O failure from the storage engine. CommitUnknown
// is set only when the failure happened while committing, in which case the
// caller cannot tell whether the transaction landed and should run
// CheckIntegrity before retrying.
type StorageError struct {
	Op            string
	CommitUnknown bool
	Err           error
}

func (e *StorageError) Error() string {
	if e.CommitUnknown {
		return fmt.Sprintf("%s: %v (commit status unknown): %v", e.Op, ErrStorageUnavailable, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStorageUnavailable, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is reports ErrStorageUnavailable as a match so callers can test with errors.Is.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// ErrorKind groups errors by how a caller should react to them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindReferentialIntegrity
	KindStorageUnavailable
)

var kindNames = map[ErrorKind]string{
	KindUnknown:              "unknown",
	KindValidation:           "validation",
	KindConflict:             "conflict",
	KindNotFound:             "not_found",
	KindReferentialIntegrity: "referential_integrity",
	KindStorageUnavailable:   "storage_unavailable",
}

func (k ErrorKind) String() string { return kindNames[k] }

// Retryable reports whether retrying the same request may succeed.
func (k ErrorKind) Retryable() bool { return k == KindStorageUnavailable }

var kindBySentinel = []struct {
	err  error
	kind ErrorKind
}{
	{ErrStorageUnavailable, KindStorageUnavailable},
	{ErrInvalidIdentifier, KindValidation},
	{ErrInvalidRelationshipType, KindValidation},
	{ErrInvalidCategory, KindValidation},
	{ErrInvalidWeight, KindValidation},
	{ErrInvalidEventType, KindValidation},
	{ErrInvalidRiskScore, KindValidation},
	{ErrInvalidRequest, KindValidation},
	{ErrInvalidSnapshot, KindValidation},
	{ErrAlreadyExists, KindConflict},
	{ErrDuplicateEdge, KindConflict},
	{ErrBidirectionalConflict, KindConflict},
	{ErrHashMismatch, KindConflict},
	{ErrNotFound, KindNotFound},
	{ErrVersionMismatch, KindNotFound},
	{ErrSelfReference, KindReferentialIntegrity},
	{ErrDanglingReference, KindReferentialIntegrity},
}

// KindOf classifies err. Errors not produced by this package are KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, s := range kindBySentinel {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindUnknown
}
