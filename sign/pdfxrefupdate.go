package sign

import (
	"github.com/digitorus/pdfsign/pobj"
	"github.com/digitorus/pdfsign/update"
)

// priorTrailer converts the source document's own trailer dictionary
// (a classical trailer, or an xref stream's dictionary when the
// source uses compressed cross-reference) into the update package's
// PriorTrailer, so the new xref/trailer can chain to it via /Prev.
// IsCompressed relies on /Type surviving the conversion: a classical
// trailer never carries one, while an xref stream's own dictionary
// does, exactly the distinction the update package needs.
func (context *SignContext) priorTrailer() update.PriorTrailer {
	d := pobj.NewDictionary()
	trailer := context.PDFReader.Trailer()
	for _, key := range trailer.Keys() {
		child, err := convertParsedValue(trailer.Key(key))
		if err != nil {
			continue
		}
		d.Set(pobj.Name(key), child)
	}
	return update.PriorTrailer{
		Dict:     d,
		Position: context.PDFReader.XrefInformation.StartPos,
		Size:     context.PDFReader.XrefInformation.ItemCount,
	}
}

// writeXrefAndTrailer appends the cross-reference section describing
// every object this update wrote -- compressed if the source document
// itself used a compressed xref, classical otherwise -- followed by
// the trailer chaining back to the source document via /Prev, and
// closes the update with startxref/%%EOF.
func (context *SignContext) writeXrefAndTrailer() error {
	if context.entryTable == nil {
		context.entryTable = update.NewEntryTable()
	}

	sink := update.NewByteSink(context.OutputBuffer, int64(context.OutputBuffer.Buff.Len()))
	if _, err := sink.Write([]byte("\r\n")); err != nil {
		return err
	}

	prior := context.priorTrailer()

	if prior.IsCompressed() {
		vw := pobj.NewWriter(sink)
		_, err := update.WriteXRefStream(vw, sink, context.entryTable, prior.Dict, prior.Position, prior.Size)
		return err
	}

	// A second blank line separates the last object's endobj from the
	// xref keyword on the classical path.
	if _, err := sink.Write([]byte("\r\n")); err != nil {
		return err
	}
	xrefPosition, err := update.WriteXRefTable(sink, context.entryTable)
	if err != nil {
		return err
	}
	return update.WriteTrailer(sink, prior, context.entryTable.GreatestObjectNumber(), xrefPosition)
}
