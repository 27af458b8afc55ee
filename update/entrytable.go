package update

import (
	"sort"

	"github.com/digitorus/pdfsign/pobj"
)

// Entry is one element of the cross-reference: either a used object
// at a byte offset, or a free (deleted) object slot. NextFreeObjNum
// is populated by buildFreeListChain immediately before the xref
// section is emitted; it is meaningless until then.
type Entry struct {
	Ref            pobj.Reference
	Used           bool
	ByteOffset     uint64
	NextFreeObjNum uint32
}

// EntryTable records xref entries in ascending object-number order.
// Changed objects normally arrive already sorted, so the common case
// is an O(1) append; out-of-order arrival is handled by an insertion
// search, and a duplicate object number is always a fatal error.
type EntryTable struct {
	entries []Entry
}

// NewEntryTable returns an empty EntryTable.
func NewEntryTable() *EntryTable {
	return &EntryTable{}
}

// AppendUsed records ref as resolving to byteOffset.
func (t *EntryTable) AppendUsed(ref pobj.Reference, byteOffset uint64) error {
	return t.insert(Entry{Ref: ref, Used: true, ByteOffset: byteOffset})
}

// AppendFree records ref as deleted. Its free-list link is computed
// later, in ascending order, by buildFreeListChain.
func (t *EntryTable) AppendFree(ref pobj.Reference) error {
	return t.insert(Entry{Ref: ref, Used: false})
}

func (t *EntryTable) insert(e Entry) error {
	n := len(t.entries)
	if n == 0 || e.Ref.Num > t.entries[n-1].Ref.Num {
		t.entries = append(t.entries, e)
		return nil
	}
	i := sort.Search(n, func(i int) bool { return t.entries[i].Ref.Num >= e.Ref.Num })
	if i < n && t.entries[i].Ref.Num == e.Ref.Num {
		return ErrDuplicateEntry
	}
	t.entries = append(t.entries, Entry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = e
	return nil
}

// GreatestObjectNumber returns the maximum object number recorded, or
// 0 if the table is empty.
func (t *EntryTable) GreatestObjectNumber() uint32 {
	if len(t.entries) == 0 {
		return 0
	}
	return t.entries[len(t.entries)-1].Ref.Num
}

// Entries returns the table's entries in ascending object-number
// order. The returned slice must not be mutated by the caller except
// through buildFreeListChain.
func (t *EntryTable) Entries() []Entry {
	return t.entries
}

// Len reports the number of recorded entries.
func (t *EntryTable) Len() int {
	return len(t.entries)
}

// buildFreeListChain computes next_free_obj_num for every free entry
// per §4.4: iterate in reverse order, threading next_free starting at
// 0, so following the chain from object 0 visits every free entry in
// ascending order and terminates at 0. It returns the chain head
// (the object number the object-0 pseudo-entry must point at).
func buildFreeListChain(entries []Entry) uint32 {
	nextFree := uint32(0)
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Used {
			continue
		}
		entries[i].NextFreeObjNum = nextFree
		nextFree = entries[i].Ref.Num
	}
	return nextFree
}

// partitionSubsections splits entries (already in ascending
// object-number order) into maximal runs whose object numbers
// increase by exactly 1, per §4.4/§4.5.
func partitionSubsections(entries []Entry) [][]Entry {
	if len(entries) == 0 {
		return nil
	}
	var subs [][]Entry
	start := 0
	for i := 1; i <= len(entries); i++ {
		if i == len(entries) || entries[i].Ref.Num != entries[i-1].Ref.Num+1 {
			subs = append(subs, entries[start:i])
			start = i
		}
	}
	return subs
}
