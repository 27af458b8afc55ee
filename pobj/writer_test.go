package pobj

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteName_Escaping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   Name
		want string
	}{
		{"plain", "Type", "/Type"},
		{"space-and-hash", "A B#C", "/A#20B#23C"}, // S6
		{"empty", "", "/"},
		{"control-byte", Name([]byte{'X', 0x01, 'Y'}), "/X#01Y"},
		{"high-byte", Name([]byte{'X', 0xFF}), "/X#FF"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			w := NewWriter(&buf)
			if err := w.writeName(tt.in); err != nil {
				t.Fatalf("writeName: %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteValue_Numbers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   any
		want string
	}{
		{Integer(0), "0"},
		{Integer(-5), "-5"},
		{Integer(100), "100"},
		{Real(3.14), "3.14"},
		{Real(1.0), "1"},
		{Real(-0.5), "-0.5"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := w.WriteValue(tt.in); err != nil {
			t.Fatalf("WriteValue(%v): %v", tt.in, err)
		}
		if got := buf.String(); got != tt.want {
			t.Fatalf("WriteValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteValue_LiteralStringEscaping(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteValue(LiteralString("a(b)c\\d")); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	want := `(a\(b\)c\\d)`
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriteValue_HexString(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteValue(HexString([]byte{0xDE, 0xAD, 0xBE, 0xEF})); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if got, want := buf.String(), "<DEADBEEF>"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriteValue_RawStringRejected(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.WriteValue("bare string")
	if !errors.Is(err, ErrInvalidValueKind) {
		t.Fatalf("expected ErrInvalidValueKind, got %v", err)
	}
}

func TestWriteValue_UnsupportedKind(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.WriteValue(struct{ X int }{X: 1})
	if !errors.Is(err, ErrUnsupportedValueKind) {
		t.Fatalf("expected ErrUnsupportedValueKind, got %v", err)
	}
}

func TestWriteValue_Dictionary(t *testing.T) {
	t.Parallel()
	d := NewDictionary()
	d.Set("Type", Name("Annot"))
	d.Set("Rect", Array{Integer(0), Integer(0), Integer(100), Integer(100)})

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteValue(d); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	want := "<< /Type /Annot /Rect [0 0 100 100] >>"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriteObject_Dictionary(t *testing.T) {
	t.Parallel()
	d := NewDictionary()
	d.Set("Type", Name("Annot"))
	d.Set("Rect", Array{Integer(0), Integer(0), Integer(100), Integer(100)})

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteObject(Reference{Num: 5, Gen: 0}, d); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	want := "5 0 obj\r\n<< /Type /Annot /Rect [0 0 100 100] >>\r\nendobj\r\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriteObject_Stream(t *testing.T) {
	t.Parallel()
	d := NewDictionary()
	d.Set("Filter", Name("FlateDecode"))
	d.Set("Length", Integer(5))
	s := &Stream{Dict: d, Data: []byte("hello")}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteObject(Reference{Num: 12, Gen: 0}, s); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	want := "12 0 obj\r\n<< /Filter /FlateDecode /Length 5 >>\r\nstream\r\nhello\r\nendstream\r\nendobj\r\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriteValue_AffineTransformTruncates(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	m := AffineTransform{SX: 1.9, SHX: 0, TX: 12.99, SHY: 0, SY: 1.0, TY: -3.2}
	if err := w.WriteValue(m); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if got, want := buf.String(), "[1 0 12 0 1 -3]"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriteObject_NilIsNullObject(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.WriteObject(Reference{Num: 1}, nil)
	if !errors.Is(err, ErrNullObject) {
		t.Fatalf("expected ErrNullObject, got %v", err)
	}
}

func TestDictionary_CloneIsIndependentOfKeyOrder(t *testing.T) {
	t.Parallel()
	d := NewDictionary()
	d.Set("Size", Integer(10))
	d.Set("Prev", LongInt(1000))
	d.Set("XRefStm", LongInt(2000))

	c := d.Clone()
	c.Delete("XRefStm")
	c.Set("Size", Integer(11))

	if got, _ := d.Get("Size"); got != Integer(10) {
		t.Fatalf("original mutated: Size = %v", got)
	}
	if c.Has("XRefStm") {
		t.Fatalf("clone still has XRefStm")
	}
	wantKeys := []Name{"Size", "Prev"}
	if len(c.Keys()) != len(wantKeys) {
		t.Fatalf("got keys %v, want %v", c.Keys(), wantKeys)
	}
}
