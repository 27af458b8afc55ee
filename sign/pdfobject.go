package sign

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign/pobj"
	"github.com/digitorus/pdfsign/update"
)

// reserveObjectID hands out the next free object number for this
// update, without writing anything. Several object constructors need
// to know their own object number before they can be serialized,
// since annotation and signature dictionaries embed self- and
// cross-references inline.
func (context *SignContext) reserveObjectID() uint32 {
	if context.nextObjectID == 0 {
		context.nextObjectID = context.objectIDBase
	}
	id := context.nextObjectID
	context.nextObjectID++
	return id
}

// addObject appends body, an already-framed "<num> <gen> obj ...
// endobj" blob for objID (previously obtained from reserveObjectID),
// to the output buffer and records its offset in the entry table. It
// returns objID unchanged so callers can chain the result the way the
// reference implementation does
// (`context.SignData.ObjectId, err = context.addObject(id, body)`).
func (context *SignContext) addObject(objID uint32, body []byte) (uint32, error) {
	if err := context.updateObject(objID, body); err != nil {
		return 0, err
	}
	return objID, nil
}

// updateObject rewrites an existing object number's content in this
// update. Unlike addObject, objID is not newly allocated: it reuses
// an object number already present in the source document (or one
// created earlier in this same update).
func (context *SignContext) updateObject(objID uint32, body []byte) error {
	if context.entryTable == nil {
		context.entryTable = update.NewEntryTable()
	}
	offset := uint64(context.OutputBuffer.Buff.Len())
	if _, err := context.OutputBuffer.Write(body); err != nil {
		return err
	}
	if err := context.entryTable.AppendUsed(pobj.Reference{Num: objID, Gen: 0}, offset); err != nil {
		return fmt.Errorf("update object %d: %w", objID, err)
	}
	return nil
}

// serializeCatalogEntry re-serializes an already-parsed pdf.Value
// (from the digitorus/pdf reader) into a bare PDF value token via the
// pobj writer, so that an existing object can be rewritten with only
// one of its keys changed (initials.go excludes "V" this way when it
// patches an AcroForm field's value out from under an incremental
// update). id is the enclosing object's number, kept for parity with
// call sites that key related bookkeeping off it; the entry itself
// carries no object framing since it is written inline inside an
// already-open dictionary.
func (context *SignContext) serializeCatalogEntry(buf *bytes.Buffer, id int, val pdf.Value) error {
	converted, err := convertParsedValue(val)
	if err != nil {
		return err
	}
	return pobj.NewWriter(buf).WriteValue(converted)
}

// convertParsedValue maps a digitorus/pdf.Value (the external
// document parser's own tagged union) onto this package's pobj value
// model, so the two writers can be used interchangeably. It excludes
// nothing on its own; exclusion of specific keys (e.g. "V") is the
// caller's responsibility, done by omitting them before this function
// is reached.
//
// Only pdf.Value kinds with a confirmed Kind() constant (Dict, Stream,
// Array, Name, String) get dedicated handling. Everything else --
// booleans, numbers, indirect references, and any kind this function
// doesn't otherwise recognize -- falls through to the reference check
// and then to a verbatim String() rendering, since the reader exposes
// no typed accessor for those kinds that this package can rely on.
func convertParsedValue(val pdf.Value) (any, error) {
	if val.IsNull() {
		return pobj.Null{}, nil
	}
	switch val.Kind() {
	case pdf.String:
		return pobj.LiteralString([]byte(val.RawString())), nil
	case pdf.Name:
		return pobj.Name(strings.TrimPrefix(val.String(), "/")), nil
	case pdf.Dict, pdf.Stream:
		d := pobj.NewDictionary()
		for _, key := range val.Keys() {
			child, err := convertParsedValue(val.Key(key))
			if err != nil {
				return nil, err
			}
			d.Set(pobj.Name(key), child)
		}
		return d, nil
	case pdf.Array:
		arr := make(pobj.Array, 0, val.Len())
		for i := 0; i < val.Len(); i++ {
			child, err := convertParsedValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, child)
		}
		return arr, nil
	}

	if ptr := val.GetPtr(); ptr.GetID() != 0 {
		return pobj.Reference{Num: uint32(ptr.GetID()), Gen: uint16(ptr.GetGen())}, nil
	}

	s := val.String()
	if s == "" {
		return nil, fmt.Errorf("convertParsedValue: unsupported pdf.Value kind %v", val.Kind())
	}
	return pobj.Raw(s), nil
}
