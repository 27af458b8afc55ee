package pobj

import (
	"errors"
	"fmt"
)

// ErrInvalidValueKind is returned when a raw Go string is passed to
// WriteValue. Callers must wrap strings into LiteralString or
// HexString before handing them to the writer.
var ErrInvalidValueKind = errors.New("pobj: raw string is not a valid PDF value, wrap it in LiteralString or HexString")

// ErrUnsupportedValueKind is returned when WriteValue is given a Go
// value that has no PDF representation.
var ErrUnsupportedValueKind = errors.New("pobj: unsupported value kind")

// ErrNullObject is returned when a top-level object has no reference
// assigned, or when a null value appears where an object is expected.
var ErrNullObject = errors.New("pobj: null object or missing reference")

// KindError wraps ErrUnsupportedValueKind (or ErrInvalidValueKind)
// with the offending Go type and, when known, the dictionary key it
// was found under.
type KindError struct {
	Err  error
	Kind string
	Key  Name
}

func (e *KindError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%v: kind=%s key=%s", e.Err, e.Kind, e.Key)
	}
	return fmt.Sprintf("%v: kind=%s", e.Err, e.Kind)
}

func (e *KindError) Unwrap() error { return e.Err }

func kindErr(base error, v any, key Name) error {
	return &KindError{Err: base, Kind: fmt.Sprintf("%T", v), Key: key}
}
