package update

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"

	"github.com/digitorus/pdfsign/pobj"
)

// WriteXRefStream emits a compressed cross-reference stream (§4.5),
// used when the prior trailer's Type is /XRef. It allocates a fresh
// object number one past the greatest object number written, clones
// priorTrailer and adjusts it in place, and writes the whole thing as
// a top-level indirect Stream object. The trailer for a compressed
// update IS this stream's dictionary; there is no separate TrailerWriter
// call on this path. It returns the byte offset of the stream's own
// "<obj> <gen> obj" header.
func WriteXRefStream(vw *pobj.Writer, sink *ByteSink, table *EntryTable, priorTrailer *pobj.Dictionary, priorTrailerPosition int64, priorSize int64) (int64, error) {
	entries := append([]Entry(nil), table.Entries()...)
	trailerObjNum := table.GreatestObjectNumber() + 1
	trailerRef := pobj.Reference{Num: trailerObjNum, Gen: 0}

	// The stream object describes its own position, which is known
	// before any of its bytes are written since ByteSink never seeks.
	xrefPosition := sink.Count()

	// trailerObjNum is greatest+1 by construction, so appending it
	// preserves ascending order without a re-sort.
	allEntries := append(entries, Entry{Ref: trailerRef, Used: true, ByteOffset: uint64(xrefPosition)})
	subs := partitionSubsections(allEntries)

	index := make(pobj.Array, 0, len(subs)*2)
	for _, sub := range subs {
		index = append(index, pobj.Integer(sub[0].Ref.Num), pobj.Integer(len(sub)))
	}

	size := priorSize
	if want := int64(trailerObjNum) + 1; want > size {
		size = want
	}

	trailer := priorTrailer.Clone()
	trailer.Set("Size", pobj.Integer(size))
	trailer.Set("Prev", pobj.LongInt(priorTrailerPosition))
	trailer.Delete("DecodeParms")
	trailer.Set("Filter", pobj.Name("FlateDecode"))
	trailer.Set("W", pobj.Array{pobj.Integer(4), pobj.Integer(8), pobj.Integer(4)})
	trailer.Set("Index", index)
	trailer.Set("Type", pobj.Name("XRef"))

	payload, err := encodeXRefStreamPayload(allEntries)
	if err != nil {
		return 0, err
	}
	compressed, err := deflate(payload)
	if err != nil {
		return 0, &CompressionError{Ref: trailerRef, Err: err}
	}
	trailer.Set("Length", pobj.Integer(len(compressed)))

	stream := &pobj.Stream{Dict: trailer, Data: compressed, Ref: trailerRef}
	if err := vw.WriteObject(trailerRef, stream); err != nil {
		return 0, err
	}
	return xrefPosition, nil
}

// encodeXRefStreamPayload writes each entry as a fixed-width W=[4 8 4]
// record: type (1 for both used and free, per the reference
// implementation's collapse of free entries to used-zero records),
// byte offset (0 for free), and a trailing zero field.
func encodeXRefStreamPayload(entries []Entry) ([]byte, error) {
	buf := make([]byte, 0, len(entries)*16)
	var rec [16]byte
	for _, e := range entries {
		binary.BigEndian.PutUint32(rec[0:4], 1)
		var offset uint64
		if e.Used {
			offset = e.ByteOffset
		}
		binary.BigEndian.PutUint64(rec[4:12], offset)
		binary.BigEndian.PutUint32(rec[12:16], 0)
		buf = append(buf, rec[:]...)
	}
	return buf, nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
