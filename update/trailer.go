package update

import (
	"fmt"

	"github.com/digitorus/pdfsign/pobj"
)

// PriorTrailer describes the trailer this update chains from: the
// external document parser's prior trailer dictionary and the byte
// offset at which its own xref/xref-stream section began. Position
// 0 means the parser could not locate it via random access and fell
// back to a full linear traversal of the document.
type PriorTrailer struct {
	Dict     *pobj.Dictionary
	Position int64
	Size     int64
}

// IsCompressed reports whether the prior trailer is itself a
// compressed cross-reference stream (Type == /XRef), which selects
// the compressed path for this update.
func (p PriorTrailer) IsCompressed() bool {
	if p.Dict == nil {
		return false
	}
	v, ok := p.Dict.Get("Type")
	if !ok {
		return false
	}
	name, ok := v.(pobj.Name)
	return ok && name == "XRef"
}

// WriteTrailer emits the classical trailer per §4.6: clone the prior
// trailer, set Size/Prev, strip XRefStm, and force startxref to -1
// when the prior trailer's own position was unknown (0), keeping the
// reader in linear-traversal mode.
func WriteTrailer(sink *ByteSink, prior PriorTrailer, greatestWritten uint32, xrefPosition int64) error {
	trailer := prior.Dict.Clone()

	size := prior.Size
	if want := int64(greatestWritten) + 1; want > size {
		size = want
	}
	trailer.Set("Size", pobj.Integer(size))
	trailer.Set("Prev", pobj.LongInt(prior.Position))
	trailer.Delete("XRefStm")

	if _, err := sink.Write([]byte("trailer\r\n")); err != nil {
		return err
	}
	vw := pobj.NewWriter(sink)
	if err := vw.WriteValue(trailer); err != nil {
		return err
	}

	startxref := xrefPosition
	if prior.Position == 0 {
		startxref = -1
	}
	if _, err := sink.Write([]byte("\r\n\r\nstartxref\r\n")); err != nil {
		return err
	}
	if _, err := sink.Write([]byte(fmt.Sprintf("%d", startxref))); err != nil {
		return err
	}
	if _, err := sink.Write([]byte("\r\n\r\n%%EOF\r\n")); err != nil {
		return err
	}
	return nil
}
