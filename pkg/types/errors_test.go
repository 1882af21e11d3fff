package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err       error
		kind      ErrorKind
		retryable bool
	}{
		{fmt.Errorf("create: %w", ErrInvalidIdentifier), KindValidation, false},
		{ErrInvalidWeight, KindValidation, false},
		{fmt.Errorf("create: %w", ErrAlreadyExists), KindConflict, false},
		{ErrDuplicateEdge, KindConflict, false},
		{ErrBidirectionalConflict, KindConflict, false},
		{ErrNotFound, KindNotFound, false},
		{ErrVersionMismatch, KindNotFound, false},
		{ErrDanglingReference, KindReferentialIntegrity, false},
		{ErrSelfReference, KindReferentialIntegrity, false},
		{&StorageError{Op: "update", Err: errors.New("disk I/O error")}, KindStorageUnavailable, true},
		{errors.New("something else"), KindUnknown, false},
		{nil, KindUnknown, false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			k := KindOf(tt.err)
			assert.Equal(t, tt.kind, k)
			assert.Equal(t, tt.retryable, k.Retryable())
		})
	}
}

func TestStorageError(t *testing.T) {
	cause := errors.New("database is locked")
	err := fmt.Errorf("update Ξ.C.ACME: %w", &StorageError{Op: "commit", CommitUnknown: true, Err: cause})

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)

	var se *StorageError
	if assert.ErrorAs(t, err, &se) {
		assert.True(t, se.CommitUnknown)
		assert.Contains(t, se.Error(), "commit status unknown")
	}
	assert.Equal(t, "storage_unavailable", KindStorageUnavailable.String())
}
