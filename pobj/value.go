// Package pobj implements the typed object model and byte-exact
// serialization for the indirect objects of a PDF-family document:
// names, references, numbers, strings, arrays, dictionaries and
// streams, plus the affine-transform convenience type used by
// annotation appearance dictionaries.
package pobj

import "fmt"

// Reference identifies an indirect object by its object number and
// generation number. Object number 0 is reserved as the head of the
// free-list; generation 65535 marks a permanently free slot.
type Reference struct {
	Num uint32
	Gen uint16
}

func (r Reference) String() string {
	return fmt.Sprintf("%d %d R", r.Num, r.Gen)
}

// Name is a PDF name token, stored without its leading slash and
// without escaping; escaping happens at write time.
type Name string

// Boolean is a PDF boolean value.
type Boolean bool

// Integer is a PDF integer value.
type Integer int64

// LongInt is a PDF integer value wide enough for byte offsets. It is
// a distinct type from Integer only to mirror the source's separate
// Integer/Long value kinds; both are written identically.
type LongInt int64

// Real is a PDF real number.
type Real float64

// Null is the PDF null literal. The zero value is the only value.
type Null struct{}

// LiteralString is a byte sequence to be written wrapped in
// parentheses, with '(', ')' and '\' escaped.
type LiteralString []byte

// HexString is a byte sequence to be written as an uppercase
// hex-encoded token wrapped in angle brackets.
type HexString []byte

// Raw is a value token already rendered to its final PDF text form by
// the caller (e.g. a UTF-16BE string literal built with x/text); the
// writer emits it verbatim with no further escaping.
type Raw []byte

// Array is an ordered sequence of values.
type Array []any

// AffineTransform is the six-coefficient matrix [sx shx tx sy shy ty]
// used by annotation appearance streams. Its default emission casts
// each coefficient to an integer, mirroring the reference
// implementation's lossy behavior (see WriteAffineTransform).
type AffineTransform struct {
	SX, SHX, TX float64
	SHY, SY, TY float64
}

// Dictionary is an insertion-ordered mapping from Name to value. Zero
// value is not usable; construct with NewDictionary.
type Dictionary struct {
	keys   []Name
	values map[Name]any
	// Ref is set when this dictionary is itself the value of an
	// indirect object; the zero Reference means "not yet assigned".
	Ref Reference
}

// NewDictionary returns an empty, ready-to-use Dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{values: make(map[Name]any)}
}

// Set inserts or overwrites key with value, preserving the position
// of a pre-existing key and appending new keys in call order.
func (d *Dictionary) Set(key Name, value any) *Dictionary {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
	return d
}

// Delete removes key if present; it is a no-op otherwise.
func (d *Dictionary) Delete(key Name) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Get returns the value for key and whether it was present.
func (d *Dictionary) Get(key Name) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Has reports whether key is present.
func (d *Dictionary) Has(key Name) bool {
	_, ok := d.values[key]
	return ok
}

// Keys returns the dictionary's keys in insertion order. The returned
// slice must not be mutated by the caller.
func (d *Dictionary) Keys() []Name {
	return d.keys
}

// Clone returns a shallow copy of d: nested values (arrays,
// dictionaries, streams) are shared, not deep-copied, matching how
// the trailer writer clones a prior trailer before mutating its
// top-level keys.
func (d *Dictionary) Clone() *Dictionary {
	c := NewDictionary()
	c.Ref = d.Ref
	for _, k := range d.keys {
		c.Set(k, d.values[k])
	}
	return c
}

// Stream is a Dictionary paired with a raw byte payload. When written
// as a top-level object, the payload is subject to the stream
// pipeline (optional deflate, optional encryption) before framing.
type Stream struct {
	Dict *Dictionary
	Data []byte
	// Ref is the indirect reference this stream is stored under.
	Ref Reference
}
