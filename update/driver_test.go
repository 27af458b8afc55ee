package update

import (
	"bytes"
	"compress/zlib"
	"io"
	"strings"
	"testing"

	"github.com/digitorus/pdfsign/pobj"
	"github.com/google/go-cmp/cmp"
)

type fakeTracker struct {
	changed []ChangedObject
	trailer PriorTrailer
}

func (f *fakeTracker) IsChanged() bool         { return len(f.changed) > 0 }
func (f *fakeTracker) ChangedCount() int       { return len(f.changed) }
func (f *fakeTracker) Trailer() PriorTrailer   { return f.trailer }
func (f *fakeTracker) IterSortedByObjectNumber() []ChangedObject {
	return f.changed
}

type fakeDocument struct {
	tracker    *fakeTracker
	sm         SecurityManager
	encrypted  bool
}

func (d *fakeDocument) ChangeTracker() ChangeTracker     { return d.tracker }
func (d *fakeDocument) SecurityManager() SecurityManager { return d.sm }
func (d *fakeDocument) IsEncrypted() bool                { return d.encrypted }

func annotDict() *pobj.Dictionary {
	d := pobj.NewDictionary()
	d.Set("Type", pobj.Name("Annot"))
	d.Set("Rect", pobj.Array{pobj.Integer(0), pobj.Integer(0), pobj.Integer(100), pobj.Integer(100)})
	return d
}

func priorClassicalTrailer(size, prevPos int64) PriorTrailer {
	d := pobj.NewDictionary()
	d.Set("Size", pobj.Integer(size))
	d.Set("Prev", pobj.LongInt(0))
	return PriorTrailer{Dict: d, Position: prevPos, Size: size}
}

// S1 — single modified dictionary.
func TestAppendUpdate_S1_SingleModifiedDictionary(t *testing.T) {
	t.Parallel()
	doc := &fakeDocument{tracker: &fakeTracker{
		changed: []ChangedObject{
			{Ref: pobj.Reference{Num: 5, Gen: 0}, Value: annotDict()},
		},
		trailer: priorClassicalTrailer(10, 1000),
	}}

	var buf bytes.Buffer
	n, err := AppendUpdate(doc, &buf, 1000)
	if err != nil {
		t.Fatalf("AppendUpdate: %v", err)
	}
	out := buf.String()
	if n != int64(len(out)) {
		t.Fatalf("returned length %d != actual %d", n, len(out))
	}
	if !strings.HasPrefix(out, "\r\n") {
		t.Fatalf("output does not start with CRLF: %q", out[:10])
	}
	if !strings.Contains(out, "5 0 obj\r\n<< /Type /Annot /Rect [0 0 100 100] >>\r\nendobj\r\n") {
		t.Fatalf("missing object body: %q", out)
	}
	if !strings.Contains(out, "0 1\r\n") || !strings.Contains(out, "5 1\r\n") {
		t.Fatalf("missing expected xref subsections: %q", out)
	}
	if !strings.Contains(out, "Size 10") || !strings.Contains(out, "Prev 1000") {
		t.Fatalf("trailer missing Size/Prev: %q", out)
	}

	xrefIdx := strings.Index(out, "xref\r\n")
	startxrefIdx := strings.Index(out, "startxref\r\n")
	numStr := strings.TrimSpace(strings.SplitN(out[startxrefIdx+len("startxref\r\n"):], "\r\n", 2)[0])
	wantPos := int64(1000 + xrefIdx)
	if numStr != itoa(wantPos) {
		t.Fatalf("startxref = %s, want %d (xref keyword at absolute offset)", numStr, wantPos)
	}
}

// S2 — deleted object.
func TestAppendUpdate_S2_DeletedObject(t *testing.T) {
	t.Parallel()
	doc := &fakeDocument{tracker: &fakeTracker{
		changed: []ChangedObject{
			{Ref: pobj.Reference{Num: 7, Gen: 0}, Deleted: true},
		},
		trailer: priorClassicalTrailer(10, 1000),
	}}

	var buf bytes.Buffer
	if _, err := AppendUpdate(doc, &buf, 1000); err != nil {
		t.Fatalf("AppendUpdate: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "7 0 obj") {
		t.Fatalf("deleted object must not have a body: %q", out)
	}
	if !strings.Contains(out, "0000000007 00001 f\r\n") {
		t.Fatalf("expected free-list head pointing at object 7: %q", out)
	}
}

// S4 — compressed xref trailer.
func TestAppendUpdate_S4_CompressedXRefTrailer(t *testing.T) {
	t.Parallel()
	priorDict := pobj.NewDictionary()
	priorDict.Set("Type", pobj.Name("XRef"))
	priorDict.Set("Size", pobj.Integer(21))

	doc := &fakeDocument{tracker: &fakeTracker{
		changed: []ChangedObject{
			{Ref: pobj.Reference{Num: 20, Gen: 0}, Value: annotDict()},
		},
		trailer: PriorTrailer{Dict: priorDict, Position: 5000, Size: 21},
	}}

	var buf bytes.Buffer
	if _, err := AppendUpdate(doc, &buf, 5000); err != nil {
		t.Fatalf("AppendUpdate: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "\r\nxref\r\n") || strings.Contains(out, "\r\ntrailer\r\n") {
		t.Fatalf("compressed path must not emit textual xref/trailer keywords: %q", out)
	}
	if !strings.Contains(out, "21 0 obj") {
		t.Fatalf("expected trailer object number 21: %q", out)
	}
}

// S5 — linear-traversed source: startxref must be -1.
func TestAppendUpdate_S5_LinearTraversedSource(t *testing.T) {
	t.Parallel()
	doc := &fakeDocument{tracker: &fakeTracker{
		changed: []ChangedObject{
			{Ref: pobj.Reference{Num: 5, Gen: 0}, Value: annotDict()},
		},
		trailer: priorClassicalTrailer(10, 0),
	}}

	var buf bytes.Buffer
	if _, err := AppendUpdate(doc, &buf, 1000); err != nil {
		t.Fatalf("AppendUpdate: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "startxref\r\n-1\r\n") {
		t.Fatalf("expected startxref -1, got: %q", out)
	}
}

// S3 — new indirect stream, encrypted.
type xorSecurityManager struct{ key byte }

func (m xorSecurityManager) Encrypt(ref pobj.Reference, decodeParms *pobj.Dictionary, data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ m.key
	}
	return out, nil
}

func TestAppendUpdate_S3_EncryptedStream(t *testing.T) {
	t.Parallel()
	dict := pobj.NewDictionary()
	dict.Set("Filter", pobj.Name("FlateDecode"))
	cs := &ChangedStream{Ref: pobj.Reference{Num: 12, Gen: 0}, Dict: dict, Data: []byte("hello")}

	doc := &fakeDocument{
		encrypted: true,
		sm:        xorSecurityManager{key: 0x5A},
		tracker: &fakeTracker{
			changed: []ChangedObject{{Ref: cs.Ref, Value: cs}},
			trailer: priorClassicalTrailer(13, 2000),
		},
	}

	var buf bytes.Buffer
	if _, err := AppendUpdate(doc, &buf, 2000); err != nil {
		t.Fatalf("AppendUpdate: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "12 0 obj\r\n") {
		t.Fatalf("missing stream object header: %q", out)
	}

	// Recover plaintext: decrypt (xor) then inflate.
	streamStart := strings.Index(out, "stream\r\n") + len("stream\r\n")
	streamEnd := strings.Index(out, "\r\nendstream")
	ciphertext := []byte(out[streamStart:streamEnd])
	decrypted := make([]byte, len(ciphertext))
	for i, b := range ciphertext {
		decrypted[i] = b ^ 0x5A
	}
	zr, err := zlib.NewReader(bytes.NewReader(decrypted))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if string(plain) != "hello" {
		t.Fatalf("recovered %q, want %q", plain, "hello")
	}
}

// S6 — name with special bytes, exercised through a dictionary key.
func TestAppendUpdate_S6_NameEscaping(t *testing.T) {
	t.Parallel()
	d := pobj.NewDictionary()
	d.Set(pobj.Name("A B#C"), pobj.Boolean(true))

	doc := &fakeDocument{tracker: &fakeTracker{
		changed: []ChangedObject{{Ref: pobj.Reference{Num: 9, Gen: 0}, Value: d}},
		trailer: priorClassicalTrailer(10, 1000),
	}}

	var buf bytes.Buffer
	if _, err := AppendUpdate(doc, &buf, 1000); err != nil {
		t.Fatalf("AppendUpdate: %v", err)
	}
	if !strings.Contains(buf.String(), "/A#20B#23C") {
		t.Fatalf("expected escaped name, got: %q", buf.String())
	}
}

func TestAppendUpdate_NoChanges(t *testing.T) {
	t.Parallel()
	doc := &fakeDocument{tracker: &fakeTracker{}}
	var buf bytes.Buffer
	n, err := AppendUpdate(doc, &buf, 1000)
	if err != nil {
		t.Fatalf("AppendUpdate: %v", err)
	}
	if n != 0 || buf.Len() != 0 {
		t.Fatalf("expected zero bytes written, got n=%d buf=%d", n, buf.Len())
	}
}

func TestEntryTable_DuplicateObjectNumberIsFatal(t *testing.T) {
	t.Parallel()
	table := NewEntryTable()
	if err := table.AppendUsed(pobj.Reference{Num: 3}, 10); err != nil {
		t.Fatalf("AppendUsed: %v", err)
	}
	if err := table.AppendUsed(pobj.Reference{Num: 3}, 20); err == nil {
		t.Fatalf("expected ErrDuplicateEntry")
	}
}

func TestBuildFreeListChain_VisitsAscendingAndTerminates(t *testing.T) {
	t.Parallel()
	entries := []Entry{
		{Ref: pobj.Reference{Num: 3}},
		{Ref: pobj.Reference{Num: 7}},
		{Ref: pobj.Reference{Num: 9}},
	}
	head := buildFreeListChain(entries)
	if head != 3 {
		t.Fatalf("chain head = %d, want 3", head)
	}
	visited := []uint32{head}
	cur := head
	for {
		var next uint32
		found := false
		for _, e := range entries {
			if e.Ref.Num == cur {
				next = e.NextFreeObjNum
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("chain broken at %d", cur)
		}
		if next == 0 {
			break
		}
		visited = append(visited, next)
		cur = next
	}
	want := []uint32{3, 7, 9}
	if diff := cmp.Diff(want, visited); diff != "" {
		t.Fatalf("free-list chain mismatch (-want +got):\n%s", diff)
	}
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
