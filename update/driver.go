package update

import (
	"bytes"
	"io"

	"github.com/digitorus/pdfsign/pobj"
)

// ChangedObject is one entry from the change-tracker's sorted
// iteration: either a value to (re)write under Ref, or a deletion.
// Value holds a *pobj.Dictionary, pobj.Array, or any other pobj value
// for an ordinary object, or a *ChangedStream for a stream object
// that must pass through the compress/encrypt pipeline first.
type ChangedObject struct {
	Ref     pobj.Reference
	Deleted bool
	Value   any
}

// ChangeTracker is the external collaborator that records which
// objects are new, modified or deleted since the document was parsed.
// This package treats it purely as an interface; construction and
// mutation of the underlying state live outside this package.
type ChangeTracker interface {
	IsChanged() bool
	ChangedCount() int
	IterSortedByObjectNumber() []ChangedObject
	Trailer() PriorTrailer
}

// Document is the external collaborator exposing everything the
// driver needs to append one update.
type Document interface {
	ChangeTracker() ChangeTracker
	SecurityManager() SecurityManager
	IsEncrypted() bool
}

// AppendUpdate is the primary operation (§6): it appends a byte-exact
// incremental update for doc's pending changes to w, whose first byte
// will land at documentLength in the combined file, and returns the
// number of bytes written. It returns 0 with a nil error when there
// are no pending changes.
func AppendUpdate(doc Document, w io.Writer, documentLength int64) (int64, error) {
	tracker := doc.ChangeTracker()
	if !tracker.IsChanged() {
		return 0, nil
	}

	sink := NewByteSink(w, documentLength)
	if _, err := sink.Write([]byte("\r\n")); err != nil {
		return sink.Count() - documentLength, err
	}

	vw := pobj.NewWriter(sink)
	table := NewEntryTable()

	var sm SecurityManager
	if doc.IsEncrypted() {
		sm = doc.SecurityManager()
	}

	for _, obj := range tracker.IterSortedByObjectNumber() {
		if obj.Ref.Num == 0 {
			return sink.Count() - documentLength, ErrNullReference
		}
		if obj.Deleted {
			if err := table.AppendFree(obj.Ref); err != nil {
				return sink.Count() - documentLength, err
			}
			continue
		}

		offset := sink.Count()
		value := obj.Value
		if cs, ok := obj.Value.(*ChangedStream); ok {
			data, err := ProcessStream(cs, sm)
			if err != nil {
				return sink.Count() - documentLength, err
			}
			value = &pobj.Stream{Dict: cs.Dict, Data: data, Ref: cs.Ref}
		}
		if err := vw.WriteObject(obj.Ref, value); err != nil {
			return sink.Count() - documentLength, err
		}
		if err := table.AppendUsed(obj.Ref, uint64(offset)); err != nil {
			return sink.Count() - documentLength, err
		}
	}

	prior := tracker.Trailer()
	if prior.IsCompressed() {
		if _, err := WriteXRefStream(vw, sink, table, prior.Dict, prior.Position, prior.Size); err != nil {
			return sink.Count() - documentLength, err
		}
	} else {
		// A second blank line separates the last object's endobj from
		// the xref keyword on the classical path; the compressed path
		// has no analogous gap because its "trailer" is an ordinary
		// object written by the same code as everything else.
		if _, err := sink.Write([]byte("\r\n")); err != nil {
			return sink.Count() - documentLength, err
		}
		xrefPosition, err := WriteXRefTable(sink, table)
		if err != nil {
			return sink.Count() - documentLength, err
		}
		if err := WriteTrailer(sink, prior, table.GreatestObjectNumber(), xrefPosition); err != nil {
			return sink.Count() - documentLength, err
		}
	}

	return sink.Count() - documentLength, nil
}

// GetUpdatedObjects is the secondary operation (§6): it emits each
// changed object in isolation, with no xref and no trailer, and a
// per-object starting position of 0. Deleted objects contribute no
// blob, matching the classical/compressed paths where a deletion is
// only ever represented in the xref section.
func GetUpdatedObjects(doc Document) ([][]byte, error) {
	tracker := doc.ChangeTracker()
	var blobs [][]byte
	for _, obj := range tracker.IterSortedByObjectNumber() {
		if obj.Deleted {
			continue
		}
		var buf bytes.Buffer
		sink := NewByteSink(&buf, 0)
		vw := pobj.NewWriter(sink)

		value := obj.Value
		if cs, ok := obj.Value.(*ChangedStream); ok {
			var sm SecurityManager
			if doc.IsEncrypted() {
				sm = doc.SecurityManager()
			}
			data, err := ProcessStream(cs, sm)
			if err != nil {
				return nil, err
			}
			value = &pobj.Stream{Dict: cs.Dict, Data: data, Ref: cs.Ref}
		}
		if err := vw.WriteObject(obj.Ref, value); err != nil {
			return nil, err
		}
		blobs = append(blobs, buf.Bytes())
	}
	return blobs, nil
}
