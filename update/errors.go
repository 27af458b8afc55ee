package update

import (
	"errors"
	"fmt"

	"github.com/digitorus/pdfsign/pobj"
)

// ErrDuplicateEntry is returned by EntryTable when the same object
// number is appended twice. It indicates change-tracker corruption
// and is always fatal.
var ErrDuplicateEntry = errors.New("update: duplicate object number in entry table")

// ErrNullReference is returned when a changed object carries the
// zero Reference (object number 0 is reserved for the free-list
// head and can never be a real used or newly-freed entry).
var ErrNullReference = errors.New("update: object has no reference")

// CompressionError wraps a deflate failure with the offending
// object's reference.
type CompressionError struct {
	Ref pobj.Reference
	Err error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("update: compressing object %s: %v", e.Ref, e.Err)
}

func (e *CompressionError) Unwrap() error { return e.Err }

// EncryptionError wraps a security-manager failure with the
// offending object's reference.
type EncryptionError struct {
	Ref pobj.Reference
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("update: encrypting object %s: %v", e.Ref, e.Err)
}

func (e *EncryptionError) Unwrap() error { return e.Err }
