package update

import (
	"fmt"

	"github.com/digitorus/pdfsign/pobj"
)

var xrefKeyword = []byte("xref\r\n")

// WriteXRefTable emits the classical textual cross-reference table
// (§4.4): a free-list chain rooted at a pseudo-entry for object 0
// with generation 65534, then the subsection-partitioned fixed-width
// records. It records and returns the byte offset (relative to
// sink's construction) of the "xref" keyword itself.
func WriteXRefTable(sink *ByteSink, table *EntryTable) (int64, error) {
	entries := append([]Entry(nil), table.Entries()...)
	chainHead := buildFreeListChain(entries)

	full := make([]Entry, 0, len(entries)+1)
	full = append(full, Entry{
		Ref:            pobj.Reference{Num: 0, Gen: 65534},
		Used:           false,
		NextFreeObjNum: chainHead,
	})
	full = append(full, entries...)

	xrefPosition := sink.Count()
	if _, err := sink.Write(xrefKeyword); err != nil {
		return 0, err
	}

	for _, sub := range partitionSubsections(full) {
		header := fmt.Sprintf("%d %d\r\n", sub[0].Ref.Num, len(sub))
		if _, err := sink.Write([]byte(header)); err != nil {
			return 0, err
		}
		for _, e := range sub {
			var line string
			if e.Used {
				line = fmt.Sprintf("%010d %05d n\r\n", e.ByteOffset, e.Ref.Gen)
			} else {
				line = fmt.Sprintf("%010d %05d f\r\n", e.NextFreeObjNum, e.Ref.Gen+1)
			}
			if _, err := sink.Write([]byte(line)); err != nil {
				return 0, err
			}
		}
	}

	if _, err := sink.Write([]byte("\r\n")); err != nil {
		return 0, err
	}
	return xrefPosition, nil
}
